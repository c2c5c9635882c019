//go:build windows

package hooks

import (
	"errors"
	"fmt"
	"sync/atomic"
	"syscall"
	"unsafe"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
	"golang.org/x/sys/windows"

	"spear/patch"
	"spear/process"
	"spear/process_windows"
)

const (
	// prologueWindow is how many bytes at the function start are decoded
	prologueWindow = 64

	// nearRange bounds the search for a trampoline page within rel32 reach
	nearRange    = 0x7FF00000
	allocGranule = 0x10000
)

// exportHook redirects an export by patching its body with a jump to the callback, so
// every caller is intercepted however it resolved the function. When the prologue cannot
// be relocated it falls back to import slot redirection.
type exportHook struct {
	name     string
	proc     *windows.LazyProc
	callback uintptr
	mem      process.Memory

	target   uintptr
	prologue prologue
	tramp    uintptr
	iat      *iatHook
	enabled  bool

	// original is what Originals call: the export itself, or the trampoline while detoured
	original atomic.Uintptr

	log *logger.Logger
}

func (h *exportHook) Name() string {
	return h.name
}

func (h *exportHook) call(args ...uintptr) uintptr {
	r, _, _ := syscall.SyscallN(h.original.Load(), args...)
	return r
}

func (h *exportHook) Install() error {
	if h.tramp != 0 || h.iat != nil {
		return nil
	}

	err := h.installInline(followJumpStubs(h.proc.Addr()))
	if err == nil {
		return nil
	}
	if !errors.Is(err, errUnrelocatable) {
		return err
	}

	h.log.Warn("Inline detour unavailable, redirecting imports instead: ", err)
	h.iat = &iatHook{name: h.name, callback: h.callback, mem: h.mem}
	return h.iat.Install()
}

func (h *exportHook) installInline(target uintptr) error {
	p, err := stealPrologue(LocalView(target, prologueWindow), target)
	if err != nil {
		return err
	}

	size := uintptr(len(p.code) + absJumpLen)
	tramp, err := allocNear(target, size)
	if err != nil {
		return err
	}

	code, err := p.trampoline(tramp)
	if err != nil {
		windows.VirtualFree(tramp, 0, windows.MEM_RELEASE)
		return err
	}
	copy(LocalView(tramp, len(code)), code)

	var old uint32
	if err := windows.VirtualProtect(tramp, size, windows.PAGE_EXECUTE_READ, &old); err != nil {
		windows.VirtualFree(tramp, 0, windows.MEM_RELEASE)
		return fmt.Errorf("VirtualProtect trampoline: %w", err)
	}

	h.target, h.prologue, h.tramp = target, p, tramp
	h.log.Infoln("Detouring", h.name, "at", uintptrHex(target), "trampoline", uintptrHex(tramp))
	return nil
}

func (h *exportHook) Enable() error {
	if h.enabled {
		return nil
	}
	if h.iat != nil {
		if err := h.iat.Enable(); err != nil {
			return err
		}
		h.enabled = true
		return nil
	}

	// Originals go through the trampoline before the patch lands
	h.original.Store(h.tramp)
	if err := patch.WriteProtected(h.mem, process.ProcessMemoryAddress(h.target), h.prologue.patch(h.callback)); err != nil {
		h.original.Store(h.proc.Addr())
		return err
	}
	h.enabled = true
	return nil
}

// Disable restores the original bytes. The trampoline stays allocated as a caller may
// still be running through it.
func (h *exportHook) Disable() error {
	if !h.enabled {
		return nil
	}
	if h.iat != nil {
		if err := h.iat.Disable(); err != nil {
			return err
		}
		h.enabled = false
		return nil
	}

	if err := patch.WriteProtected(h.mem, process.ProcessMemoryAddress(h.target), h.prologue.code); err != nil {
		return err
	}
	h.original.Store(h.proc.Addr())
	h.enabled = false
	return nil
}

// followJumpStubs walks forwarding stubs such as kernel32's jumps into kernelbase
func followJumpStubs(addr uintptr) uintptr {
	for i := 0; i < 4; i++ {
		slot, ok := jumpStubSlot(LocalView(addr, 16), addr)
		if !ok {
			break
		}
		next := *(*uintptr)(unsafe.Pointer(slot))
		if next == 0 {
			break
		}
		addr = next
	}
	return addr
}

// allocNear reserves an executable-capable page within rel32 reach of target, falling
// back to anywhere. The trampoline rejects relocations that end up out of range.
func allocNear(target, size uintptr) (uintptr, error) {
	base := target &^ (allocGranule - 1)
	for delta := uintptr(allocGranule); delta < nearRange; delta += allocGranule {
		candidates := []uintptr{base + delta}
		if delta < base {
			candidates = append(candidates, base-delta)
		}
		for _, at := range candidates {
			if addr, err := windows.VirtualAlloc(at, size, windows.MEM_COMMIT|windows.MEM_RESERVE, windows.PAGE_READWRITE); err == nil {
				return addr, nil
			}
		}
	}

	addr, err := windows.VirtualAlloc(0, size, windows.MEM_COMMIT|windows.MEM_RESERVE, windows.PAGE_READWRITE)
	if err != nil {
		return 0, fmt.Errorf("VirtualAlloc trampoline: %w", err)
	}
	return addr, nil
}

// ResourceDetours are the hooks on the kernel32 resource exports
type ResourceDetours struct {
	size *exportHook
	lock *exportHook
	load *exportHook
}

// NewResourceDetours resolves the resource exports. Nothing is patched until the hooks
// from Hooks are installed.
func NewResourceDetours() (*ResourceDetours, error) {
	kernel32 := windows.NewLazySystemDLL("kernel32.dll")
	mem := process_windows.NewLocalMemory()
	log := logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, "detour"))

	resolve := func(name string) (*exportHook, error) {
		proc := kernel32.NewProc(name)
		if err := proc.Find(); err != nil {
			return nil, fmt.Errorf("resolve %s: %w", name, err)
		}
		h := &exportHook{name: name, proc: proc, mem: mem, log: log}
		h.original.Store(proc.Addr())
		return h, nil
	}

	var d ResourceDetours
	var err error
	if d.size, err = resolve(NameSizeofResource); err != nil {
		return nil, err
	}
	if d.lock, err = resolve(NameLockResource); err != nil {
		return nil, err
	}
	if d.load, err = resolve(NameLoadResource); err != nil {
		return nil, err
	}
	return &d, nil
}

// Originals call the unhooked functions whatever state the hooks are in
func (d *ResourceDetours) Originals() Originals {
	return Originals{
		Load: func(module, res uintptr) uintptr {
			return d.load.call(module, res)
		},
		Lock: func(handle uintptr) uintptr {
			return d.lock.call(handle)
		},
		Size: func(module, res uintptr) uint32 {
			return uint32(d.size.call(module, res))
		},
	}
}

// Hooks binds the detours to i in install order: size, lock, load. Call it once; each
// call allocates new callbacks.
func (d *ResourceDetours) Hooks(i *Interceptor) []Hook {
	d.size.callback = windows.NewCallback(func(module, res uintptr) uintptr {
		return uintptr(i.SizeofResource(module, res))
	})
	d.lock.callback = windows.NewCallback(func(handle uintptr) uintptr {
		return i.LockResource(handle)
	})
	d.load.callback = windows.NewCallback(func(module, res uintptr) uintptr {
		return i.LoadResource(module, res)
	})
	return []Hook{d.size, d.lock, d.load}
}
