//go:build windows

package proxy

import (
	"fmt"
	"path/filepath"
	"syscall"

	"golang.org/x/sys/windows"
)

// System loads dll by its full system directory path, so the copy of it already in the
// process under the same name is not returned, and forwards to it. When loading fails the
// forwarder reports that error for every export.
func System(dll string) *Forwarder {
	sys, err := loadSystemDLL(dll)
	if err != nil {
		f := NewForwarder(dll, func(string) (uintptr, error) { return 0, err }, nil)
		f.log.Warn("Real DLL unavailable, exports will fail: ", err)
		return f
	}

	f := NewForwarder(dll,
		func(name string) (uintptr, error) {
			proc, err := sys.FindProc(name)
			if err != nil {
				return 0, err
			}
			return proc.Addr(), nil
		},
		func(addr uintptr, args ...uintptr) uintptr {
			r, _, _ := syscall.SyscallN(addr, args...)
			return r
		},
	)
	f.log.Infoln("Loaded real", sys.Name, "@", fmt.Sprintf("0x%X", uintptr(sys.Handle)))
	return f
}

func loadSystemDLL(dll string) (*windows.DLL, error) {
	dir, err := windows.GetSystemDirectory()
	if err != nil {
		return nil, fmt.Errorf("GetSystemDirectory: %w", err)
	}
	sys, err := windows.LoadDLL(filepath.Join(dir, dll))
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", dll, err)
	}
	return sys, nil
}
