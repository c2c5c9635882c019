package process

import (
	"spear/process/memory_map"
)

// Memory is the minimal surface the patch engine and the hooks need: read, write and
// page protection for one address space.
type Memory interface {
	// ReadMemory reads memory at the specified address
	ReadMemory(addr ProcessMemoryAddress, size ProcessMemorySize) ([]byte, error)

	// WriteMemory writes data at the specified address
	WriteMemory(addr ProcessMemoryAddress, data []byte) error

	// Protect changes the protection of [addr, addr+size) and returns the previous value
	Protect(addr ProcessMemoryAddress, size ProcessMemorySize, prot Protection) (Protection, error)

	// QueryProtection returns the current protection of the page holding addr
	QueryProtection(addr ProcessMemoryAddress) (Protection, error)
}

// Process is the interface that defines operations for interacting with a system process
type Process interface {
	Memory

	// Open opens a process with the given PID for memory operations
	Open(pid ProcessID) error

	// Close closes the process and releases resources
	Close() error

	// GetPID returns the process ID
	GetPID() ProcessID

	// UpdateMemoryMap refreshes the memory map for the process
	UpdateMemoryMap() error

	// IsValidAddress checks if the given memory address is valid and readable
	IsValidAddress(addr ProcessMemoryAddress) bool

	// GetMemoryMap returns a copy of the current memory map
	GetMemoryMap() ([]memory_map.MemoryMapItem, error)
}
