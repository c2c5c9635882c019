//go:build windows

package process_windows

import (
	"fmt"
	"sync"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	moduser32               = windows.NewLazySystemDLL("user32.dll")
	procSetForegroundWindow = moduser32.NewProc("SetForegroundWindow")
	procGetWindowTextW      = moduser32.NewProc("GetWindowTextW")
	procShowWindow          = moduser32.NewProc("ShowWindow")
)

const (
	swHide = 0
	swShow = 5
)

// WindowInfo describes a top-level window
type WindowInfo struct {
	Handle  windows.HWND
	PID     uint32
	Title   string
	Class   string
	Visible bool
}

func (w WindowInfo) String() string {
	return fmt.Sprintf("hwnd=0x%X pid=%d class=%q title=%q", uintptr(w.Handle), w.PID, w.Class, w.Title)
}

// Callbacks are a finite resource, so one enumeration callback is shared under a lock
var (
	enumMu       sync.Mutex
	enumPID      uint32
	enumWindows  []WindowInfo
	enumCallback = windows.NewCallback(func(hwnd windows.HWND, _ uintptr) uintptr {
		var owner uint32
		if _, err := windows.GetWindowThreadProcessId(hwnd, &owner); err != nil || owner != enumPID {
			return 1
		}
		enumWindows = append(enumWindows, describeWindow(hwnd, owner))
		return 1
	})
)

func describeWindow(hwnd windows.HWND, pid uint32) WindowInfo {
	title := make([]uint16, 512)
	n, _, _ := procGetWindowTextW.Call(uintptr(hwnd), uintptr(unsafe.Pointer(&title[0])), uintptr(len(title)))

	class := make([]uint16, 256)
	c, _ := windows.GetClassName(hwnd, &class[0], int32(len(class)))

	return WindowInfo{
		Handle:  hwnd,
		PID:     pid,
		Title:   windows.UTF16ToString(title[:n]),
		Class:   windows.UTF16ToString(class[:c]),
		Visible: windows.IsWindowVisible(hwnd),
	}
}

// TopLevelWindows lists the top-level windows owned by pid
func TopLevelWindows(pid uint32) ([]WindowInfo, error) {
	enumMu.Lock()
	defer enumMu.Unlock()

	enumPID = pid
	enumWindows = nil
	if err := windows.EnumWindows(enumCallback, nil); err != nil {
		return nil, fmt.Errorf("EnumWindows: %w", err)
	}

	found := enumWindows
	enumWindows = nil
	return found, nil
}

// FindWindow returns the first top-level window of pid accepted by match
func FindWindow(pid uint32, match func(title, class string) bool) (WindowInfo, bool) {
	list, err := TopLevelWindows(pid)
	if err != nil {
		return WindowInfo{}, false
	}
	for _, w := range list {
		if match(w.Title, w.Class) {
			return w, true
		}
	}
	return WindowInfo{}, false
}

// HideWindow hides hwnd
func HideWindow(hwnd windows.HWND) {
	procShowWindow.Call(uintptr(hwnd), swHide)
}

// ShowAndFocus shows hwnd and brings it to the foreground
func ShowAndFocus(hwnd windows.HWND) {
	procShowWindow.Call(uintptr(hwnd), swShow)
	procSetForegroundWindow.Call(uintptr(hwnd))
}
