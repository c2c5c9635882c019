//go:build windows

package process_windows

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"

	"spear/process"
)

// LocalMemory is process.Memory for the calling process. Reads and writes touch the
// address space directly, so callers must only pass mapped addresses.
type LocalMemory struct{}

func NewLocalMemory() *LocalMemory {
	return &LocalMemory{}
}

func view(addr process.ProcessMemoryAddress, size int) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(uintptr(addr))), size)
}

// ReadMemory returns a copy of [addr, addr+size)
func (m *LocalMemory) ReadMemory(addr process.ProcessMemoryAddress, size process.ProcessMemorySize) ([]byte, error) {
	if addr == 0 {
		return nil, process.ErrAddressNotMapped
	}
	buf := make([]byte, size)
	copy(buf, view(addr, int(size)))
	return buf, nil
}

// View returns [addr, addr+size) without copying
func (m *LocalMemory) View(addr process.ProcessMemoryAddress, size process.ProcessMemorySize) []byte {
	return view(addr, int(size))
}

func (m *LocalMemory) WriteMemory(addr process.ProcessMemoryAddress, data []byte) error {
	if addr == 0 {
		return process.ErrAddressNotMapped
	}
	copy(view(addr, len(data)), data)
	return nil
}

func (m *LocalMemory) Protect(addr process.ProcessMemoryAddress, size process.ProcessMemorySize, prot process.Protection) (process.Protection, error) {
	var old uint32
	if err := windows.VirtualProtect(uintptr(addr), uintptr(size), uint32(prot), &old); err != nil {
		return 0, fmt.Errorf("VirtualProtect %s at %s: %w", prot, addr.ToString(), err)
	}
	return process.Protection(old), nil
}

func (m *LocalMemory) QueryProtection(addr process.ProcessMemoryAddress) (process.Protection, error) {
	var mbi windows.MemoryBasicInformation
	if err := windows.VirtualQuery(uintptr(addr), &mbi, unsafe.Sizeof(mbi)); err != nil {
		return 0, fmt.Errorf("VirtualQuery at %s: %w", addr.ToString(), err)
	}
	return process.Protection(mbi.Protect), nil
}

var _ process.Memory = (*LocalMemory)(nil)
