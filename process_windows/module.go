//go:build windows

package process_windows

import (
	"fmt"
	"path/filepath"
	"unsafe"

	"golang.org/x/sys/windows"

	"spear/pe"
	"spear/process"
)

// headerPage is how much of a mapped module is read to find its section table
const headerPage = 0x1000

// Module is a module mapped into the calling process
type Module struct {
	Handle windows.Handle
	Path   string
}

// Base is the address the module is mapped at
func (m Module) Base() process.ProcessMemoryAddress {
	return process.ProcessMemoryAddress(m.Handle)
}

// Name is the base name of the module file
func (m Module) Name() string {
	return filepath.Base(m.Path)
}

// HostModule returns the executable of the calling process
func HostModule() (Module, error) {
	var handle windows.Handle
	if err := windows.GetModuleHandleEx(windows.GET_MODULE_HANDLE_EX_FLAG_UNCHANGED_REFCOUNT, nil, &handle); err != nil {
		return Module{}, fmt.Errorf("GetModuleHandleEx: %w", err)
	}
	return moduleFromHandle(handle)
}

// ModuleByName returns a module already loaded by the calling process
func ModuleByName(name string) (Module, error) {
	namePtr, err := windows.UTF16PtrFromString(name)
	if err != nil {
		return Module{}, err
	}

	var handle windows.Handle
	if err := windows.GetModuleHandleEx(windows.GET_MODULE_HANDLE_EX_FLAG_UNCHANGED_REFCOUNT, namePtr, &handle); err != nil {
		return Module{}, fmt.Errorf("GetModuleHandleEx %s: %w", name, err)
	}
	return moduleFromHandle(handle)
}

func moduleFromHandle(handle windows.Handle) (Module, error) {
	buf := make([]uint16, windows.MAX_LONG_PATH)
	n, err := windows.GetModuleFileName(handle, &buf[0], uint32(len(buf)))
	if err != nil {
		return Module{}, fmt.Errorf("GetModuleFileName: %w", err)
	}
	return Module{Handle: handle, Path: windows.UTF16ToString(buf[:n])}, nil
}

// Sections parses the section table from the module's mapped headers
func (m Module) Sections() ([]pe.Section, error) {
	header := unsafe.Slice((*byte)(unsafe.Pointer(m.Handle)), headerPage)
	return pe.MappedSections(header)
}

// SectionRegion returns the mapped range of the named section
func (m Module) SectionRegion(name string) (process.MemoryRegion, error) {
	sections, err := m.Sections()
	if err != nil {
		return process.MemoryRegion{}, fmt.Errorf("%s headers: %w", m.Name(), err)
	}

	s, ok := pe.FindSection(sections, name)
	if !ok {
		return process.MemoryRegion{}, fmt.Errorf("%s has no %s section", m.Name(), name)
	}

	return process.MemoryRegion{
		Base: m.Base() + process.ProcessMemoryAddress(s.VirtualAddress),
		Size: process.ProcessMemorySize(s.VirtualSize),
	}, nil
}

// TextRegion returns the code section of the module
func (m Module) TextRegion() (process.MemoryRegion, error) {
	return m.SectionRegion(".text")
}
