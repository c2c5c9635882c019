package process

import (
	"bytes"
	"fmt"

	"spear/process/memory_map"
)

// ProcessMemoryAddress represents a memory address within a process
type ProcessMemoryAddress uint64

func (pma ProcessMemoryAddress) ToString() string {
	return fmt.Sprintf("0x%X", uint64(pma))
}

// ProcessMemorySize represents a size of memory region
type ProcessMemorySize uint

func (pms ProcessMemorySize) ToString() string {
	return fmt.Sprintf("%d bytes", uint(pms))
}

// MemoryRegion is a readable range of a loaded module, usually its .text section.
// A region is only valid while the module that owns it stays loaded.
type MemoryRegion struct {
	Base ProcessMemoryAddress
	Size ProcessMemorySize
}

// End returns the first address past the region
func (r MemoryRegion) End() ProcessMemoryAddress {
	return r.Base + ProcessMemoryAddress(r.Size)
}

// Contains reports whether [addr, addr+size) lies inside the region
func (r MemoryRegion) Contains(addr ProcessMemoryAddress, size ProcessMemorySize) bool {
	return addr >= r.Base && addr+ProcessMemoryAddress(size) <= r.End()
}

func (r MemoryRegion) String() string {
	return fmt.Sprintf("%s+%X", r.Base.ToString(), uint(r.Size))
}

// Protection is a page protection value. The numeric values are the Windows PAGE_* constants.
type Protection uint32

const (
	PageNoAccess         Protection = 0x01
	PageReadOnly         Protection = 0x02
	PageReadWrite        Protection = 0x04
	PageWriteCopy        Protection = 0x08
	PageExecute          Protection = 0x10
	PageExecuteRead      Protection = 0x20
	PageExecuteReadWrite Protection = 0x40
	PageExecuteWriteCopy Protection = 0x80
	PageGuard            Protection = 0x100
)

// Perms renders the protection in the "rwx" form used by memory map items
func (p Protection) Perms() string {
	return memory_map.PermsFromProtect(uint32(p))
}

func (p Protection) String() string {
	return fmt.Sprintf("0x%02X(%s)", uint32(p), p.Perms())
}

// AOB (Array of Bytes) represents a pattern to search for in memory
type AOB struct {
	Pattern []byte // The byte pattern to search for
	Mask    []byte // Mask where 0xFF means exact match and 0x00 means wildcard
}

// IsValid checks if the AOB pattern is valid
func (aob AOB) IsValid() bool {
	return len(aob.Pattern) > 0 && len(aob.Pattern) == len(aob.Mask)
}

// Len returns the pattern length in bytes
func (aob AOB) Len() int {
	return len(aob.Pattern)
}

// Significant reports whether position i must match exactly
func (aob AOB) Significant(i int) bool {
	return aob.Mask[i] != 0
}

// MatchAt reports whether the pattern matches data starting at offset i.
// Callers guarantee i+Len() <= len(data).
func (aob AOB) MatchAt(data []byte, i int) bool {
	for j := 0; j < len(aob.Pattern); j++ {
		if aob.Mask[j] == 0 {
			continue
		}
		if data[i+j] != aob.Pattern[j] {
			return false
		}
	}
	return true
}

// NewAOB copies pattern and mask, so the result cannot be changed through the caller's slices
func NewAOB(pattern, mask []byte) (AOB, error) {
	if len(pattern) == 0 {
		return AOB{}, fmt.Errorf("pattern must not be empty")
	}
	if len(pattern) != len(mask) {
		return AOB{}, fmt.Errorf("pattern and mask must be of the same length")
	}
	return AOB{Pattern: bytes.Clone(pattern), Mask: bytes.Clone(mask)}, nil
}

// ExactAOB builds a pattern where every byte is significant
func ExactAOB(pattern []byte) AOB {
	return AOB{Pattern: bytes.Clone(pattern), Mask: bytes.Repeat([]byte{0xFF}, len(pattern))}
}

// MustAOB is ParseAOB for package level pattern tables
func MustAOB(s string) AOB {
	aob, err := ParseAOB(s)
	if err != nil {
		panic(err)
	}
	return aob
}
