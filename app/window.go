package app

import (
	"fmt"
	"strings"
	"time"

	"spear/process_find"
)

// WindowFinder locates the host's main window
type WindowFinder interface {
	FindMainWindow() (uintptr, bool)
}

// WindowControl shows and hides a window by handle
type WindowControl interface {
	Hide(hwnd uintptr)
	ShowAndFocus(hwnd uintptr)
}

// MainWindowMatch selects the launcher's main window among the host's top-level windows
func MainWindowMatch(title, class string) bool {
	if title == "" || strings.Contains(title, "Overlay") {
		return false
	}
	if strings.Contains(class, "ConsoleWindowClass") || strings.Contains(class, "Winit Thread Event Target") {
		return false
	}
	return strings.Contains(title, "HITMAN") || class == "Launcher"
}

// WaitMainWindow polls finder until the main window exists and records it. It has no timeout.
func (s *State) WaitMainWindow(finder WindowFinder) uintptr {
	interval := s.Config.PollInterval.Duration
	if interval <= 0 {
		interval = process_find.DefaultPollInterval
	}
	for {
		if hwnd, ok := finder.FindMainWindow(); ok {
			s.SetMainWindow(hwnd)
			s.log.Infoln("Main window found:", fmt.Sprintf("0x%X", hwnd))
			return hwnd
		}
		time.Sleep(interval)
	}
}

// HideUntilReady hides the main window now and shows it again once the UI is ready.
// The returned channel is closed after the window has been shown.
func (s *State) HideUntilReady(finder WindowFinder, ctl WindowControl) <-chan struct{} {
	hwnd := s.WaitMainWindow(finder)

	s.log.Infoln("Hiding main window until UI ready...")
	ctl.Hide(hwnd)

	shown := make(chan struct{})
	go func() {
		defer close(shown)
		<-s.Ready.Done()
		ctl.ShowAndFocus(hwnd)
		s.log.Infoln("UI ready, main window shown")
	}()
	return shown
}
