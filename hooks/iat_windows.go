//go:build windows

package hooks

import (
	"encoding/binary"
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"

	"spear/patch"
	"spear/pe"
	"spear/process"
	"spear/resources"
)

// importingDLLs are the names under which modules import the resource functions
var importingDLLs = []string{
	"kernel32.dll",
	"api-ms-win-core-libraryloader-l1-2-0.dll",
	"api-ms-win-core-libraryloader-l1-1-0.dll",
}

type iatSlot struct {
	addr     uintptr
	previous uintptr
}

// iatHook points the import slot for one function at a callback in every module loaded
// at Install time. Modules loaded later and GetProcAddress callers are not redirected.
type iatHook struct {
	name     string
	callback uintptr
	mem      process.Memory
	slots    []iatSlot
	enabled  bool
}

func (h *iatHook) Name() string {
	return h.name
}

func (h *iatHook) Install() error {
	modules, err := loadedModules()
	if err != nil {
		return err
	}

	h.slots = h.slots[:0]
	for _, view := range modules {
		m, err := pe.ParseMapped(view)
		if err != nil {
			continue
		}
		for _, dll := range importingDLLs {
			if rva, ok := m.FindImportSlot(dll, h.name); ok {
				h.slots = append(h.slots, iatSlot{addr: uintptr(unsafe.Pointer(&view[0])) + uintptr(rva)})
			}
		}
		m.Close()
	}

	if len(h.slots) == 0 {
		return fmt.Errorf("no loaded module imports %s", h.name)
	}
	return nil
}

func (h *iatHook) Enable() error {
	if h.enabled {
		return nil
	}

	wrote := 0
	for i := range h.slots {
		slot := &h.slots[i]
		slot.previous = *(*uintptr)(unsafe.Pointer(slot.addr))
		if err := writeSlot(h.mem, slot.addr, h.callback); err != nil {
			// slots already written stay hooked until Disable
			h.enabled = wrote > 0
			return err
		}
		wrote++
	}

	h.enabled = wrote > 0
	return nil
}

func (h *iatHook) Disable() error {
	if !h.enabled {
		return nil
	}
	for _, slot := range h.slots {
		if err := writeSlot(h.mem, slot.addr, slot.previous); err != nil {
			return err
		}
	}
	h.enabled = false
	return nil
}

func writeSlot(mem process.Memory, addr, value uintptr) error {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, uint64(value))
	return patch.WriteProtected(mem, process.ProcessMemoryAddress(addr), buf)
}

// loadedModules returns a view of every module mapped into this process
func loadedModules() ([][]byte, error) {
	self := windows.CurrentProcess()

	var needed uint32
	handles := make([]windows.Handle, 512)
	if err := windows.EnumProcessModules(self, &handles[0], uint32(len(handles))*uint32(unsafe.Sizeof(handles[0])), &needed); err != nil {
		return nil, fmt.Errorf("EnumProcessModules: %w", err)
	}
	count := int(needed / uint32(unsafe.Sizeof(handles[0])))
	count = min(count, len(handles))

	var views [][]byte
	for _, mod := range handles[:count] {
		var info windows.ModuleInfo
		if err := windows.GetModuleInformation(self, mod, &info, uint32(unsafe.Sizeof(info))); err != nil {
			continue
		}
		views = append(views, unsafe.Slice((*byte)(unsafe.Pointer(info.BaseOfDll)), info.SizeOfImage))
	}
	return views, nil
}

// LocalView reads this process's memory in place
func LocalView(ptr uintptr, n int) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(ptr)), n)
}

// AllocReplacement validates data and copies it into a fresh read-only allocation
func AllocReplacement(data []byte) (Replacement, error) {
	if err := resources.ValidateReplacement(data); err != nil {
		return Replacement{}, err
	}

	size := uintptr(len(data))
	addr, err := windows.VirtualAlloc(0, size, windows.MEM_COMMIT|windows.MEM_RESERVE, windows.PAGE_READWRITE)
	if err != nil {
		return Replacement{}, fmt.Errorf("VirtualAlloc %d bytes: %w", size, err)
	}

	view := LocalView(addr, len(data))
	copy(view, data)

	var old uint32
	if err := windows.VirtualProtect(addr, size, windows.PAGE_READONLY, &old); err != nil {
		windows.VirtualFree(addr, 0, windows.MEM_RELEASE)
		return Replacement{}, fmt.Errorf("VirtualProtect replacement: %w", err)
	}

	return Replacement{Addr: addr, Data: view}, nil
}
