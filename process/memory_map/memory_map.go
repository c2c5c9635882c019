package memory_map

import (
	"fmt"
	"sort"
)

// MemoryMapItem represents a memory region in a process's address space
type MemoryMapItem struct {
	Address uint64 // The starting address of the memory region
	Size    uint   // The size of the memory region in bytes
	Perms   string // Permissions (e.g., "r-x" for read, execute)
	Protect uint32 // Raw page protection value
}

// String returns a string representation of the memory map item
func (mmItem MemoryMapItem) String() string {
	return fmt.Sprintf("Address: %x, Size: %d, Perms: %s", mmItem.Address, mmItem.Size, mmItem.Perms)
}

func (mmItem MemoryMapItem) IsReadable() bool {
	return len(mmItem.Perms) > 0 && mmItem.Perms[0] == 'r'
}

func (mmItem MemoryMapItem) IsWritable() bool {
	return len(mmItem.Perms) > 1 && mmItem.Perms[1] == 'w'
}

func (mmItem MemoryMapItem) IsExecutable() bool {
	return len(mmItem.Perms) > 2 && mmItem.Perms[2] == 'x'
}

const pageGuard = 0x100

// PermsFromProtect converts a PAGE_* protection value into "rwx" form
func PermsFromProtect(protect uint32) string {
	perms := []byte("---")
	switch protect &^ pageGuard {
	case 0x02: // PAGE_READONLY
		perms[0] = 'r'
	case 0x04, 0x08: // PAGE_READWRITE, PAGE_WRITECOPY
		perms[0], perms[1] = 'r', 'w'
	case 0x10: // PAGE_EXECUTE
		perms[2] = 'x'
	case 0x20: // PAGE_EXECUTE_READ
		perms[0], perms[2] = 'r', 'x'
	case 0x40, 0x80: // PAGE_EXECUTE_READWRITE, PAGE_EXECUTE_WRITECOPY
		perms[0], perms[1], perms[2] = 'r', 'w', 'x'
	}
	return string(perms)
}

// Sort orders the map by address, which IsValidAddress2 requires
func Sort(memoryMap []MemoryMapItem) {
	sort.Slice(memoryMap, func(i, j int) bool {
		return memoryMap[i].Address < memoryMap[j].Address
	})
}

// IsValidAddress2 finds the region holding addr in a map sorted by address
func IsValidAddress2(addr uint64, memoryMap []MemoryMapItem) *MemoryMapItem {
	i := sort.Search(len(memoryMap), func(i int) bool {
		return memoryMap[i].Address+uint64(memoryMap[i].Size) > addr
	})
	if i < len(memoryMap) && memoryMap[i].Address <= addr {
		return &memoryMap[i]
	}

	return nil
}
