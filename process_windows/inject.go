//go:build windows

package process_windows

import (
	"fmt"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"

	"spear/process"
)

var (
	modkernel32            = windows.NewLazySystemDLL("kernel32.dll")
	procVirtualAllocEx     = modkernel32.NewProc("VirtualAllocEx")
	procVirtualFreeEx      = modkernel32.NewProc("VirtualFreeEx")
	procCreateRemoteThread = modkernel32.NewProc("CreateRemoteThread")
	procGetExitCodeThread  = modkernel32.NewProc("GetExitCodeThread")
	procLoadLibraryW       = modkernel32.NewProc("LoadLibraryW")
)

// InjectTimeout bounds the wait for the remote LoadLibraryW call
const InjectTimeout = 30 * time.Second

// InjectLibrary loads dllPath into the process through a remote LoadLibraryW thread
func (p *WindowsProcess) InjectLibrary(dllPath string) error {
	handle, err := p.openHandle()
	if err != nil {
		return err
	}

	path16, err := windows.UTF16FromString(dllPath)
	if err != nil {
		return fmt.Errorf("invalid library path %q: %w", dllPath, err)
	}
	size := uintptr(len(path16)) * unsafe.Sizeof(path16[0])

	remote, err := p.remoteAlloc(size)
	if err != nil {
		return err
	}
	defer p.remoteFree(remote)

	if err := p.UpdateMemoryMap(); err == nil && !p.IsValidAddress(process.ProcessMemoryAddress(remote)) {
		return fmt.Errorf("remote path buffer at 0x%X: %w", remote, process.ErrAddressNotMapped)
	}

	pathBytes := unsafe.Slice((*byte)(unsafe.Pointer(&path16[0])), size)
	if err := p.WriteMemory(process.ProcessMemoryAddress(remote), pathBytes); err != nil {
		return fmt.Errorf("write library path: %w", err)
	}

	if err := procLoadLibraryW.Find(); err != nil {
		return fmt.Errorf("resolve LoadLibraryW: %w", err)
	}

	// kernel32 is mapped at the same base in every process of the session
	thread, _, callErr := procCreateRemoteThread.Call(uintptr(handle), 0, 0, procLoadLibraryW.Addr(), remote, 0, 0)
	if thread == 0 {
		return fmt.Errorf("CreateRemoteThread: %w", callErr)
	}
	defer windows.CloseHandle(windows.Handle(thread))

	event, err := windows.WaitForSingleObject(windows.Handle(thread), uint32(InjectTimeout.Milliseconds()))
	if err != nil {
		return fmt.Errorf("wait for loader thread: %w", err)
	}
	if event != windows.WAIT_OBJECT_0 {
		return fmt.Errorf("loader thread did not finish within %s", InjectTimeout)
	}

	var code uint32
	if ret, _, callErr := procGetExitCodeThread.Call(thread, uintptr(unsafe.Pointer(&code))); ret == 0 {
		return fmt.Errorf("GetExitCodeThread: %w", callErr)
	}
	// the exit code is the low half of the module handle
	if code == 0 {
		return fmt.Errorf("LoadLibraryW(%s) failed in process %d", dllPath, p.GetPID())
	}

	p.log.Infoln("Injected", dllPath)
	return nil
}

// InjectLibrary opens pid and loads dllPath into it
func InjectLibrary(pid process.ProcessID, dllPath string) error {
	p, err := NewWithPID(pid)
	if err != nil {
		return err
	}
	defer p.Close()

	return p.InjectLibrary(dllPath)
}
