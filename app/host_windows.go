//go:build windows

package app

import (
	"os"

	"golang.org/x/sys/windows"

	"spear/assets"
	"spear/config"
	"spear/hooks"
	"spear/patch"
	"spear/process"
	"spear/process_find"
	"spear/process_windows"
	"spear/supervisor"
)

// windowsHost runs PerformInjection inside the launcher process
type windowsHost struct {
	module process_windows.Module
	mem    *process_windows.LocalMemory
	inv    *process_windows.Invoker
}

func NewWindowsHost() (Host, error) {
	m, err := process_windows.HostModule()
	if err != nil {
		return nil, err
	}
	return &windowsHost{
		module: m,
		mem:    process_windows.NewLocalMemory(),
		inv:    process_windows.NewInvoker(),
	}, nil
}

func (h *windowsHost) Memory() process.Memory {
	return h.mem
}

func (h *windowsHost) TextRegion() (process.MemoryRegion, error) {
	return h.module.TextRegion()
}

func (h *windowsHost) Invoker() patch.Invoker {
	return h.inv
}

func (h *windowsHost) InjectLibrary(pid process.ProcessID, dllPath string) error {
	return process_windows.InjectLibrary(pid, dllPath)
}

func (h *windowsHost) Exit(code uint32) {
	windows.ExitProcess(code)
}

// windowsWindows finds and toggles the top-level windows of this process
type windowsWindows struct {
	pid uint32
}

func (w windowsWindows) FindMainWindow() (uintptr, bool) {
	info, ok := process_windows.FindWindow(w.pid, MainWindowMatch)
	if !ok {
		return 0, false
	}
	return uintptr(info.Handle), true
}

func (windowsWindows) Hide(hwnd uintptr) {
	process_windows.HideWindow(windows.HWND(hwnd))
}

func (windowsWindows) ShowAndFocus(hwnd uintptr) {
	process_windows.ShowAndFocus(windows.HWND(hwnd))
}

// New loads the configuration and detects the role of the current host process
func New() (*State, error) {
	paths, err := config.DefaultPaths()
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(paths)
	if err != nil {
		return nil, err
	}

	exe, err := process_windows.HostModule()
	if err != nil {
		return nil, err
	}

	s := NewState(cfg, paths, RoleFor(exe.Path, cfg))
	s.exePath = exe.Path
	s.log.Infoln("Detected host", exe.Name(), "role", s.Role.String())
	return s, nil
}

// Run starts the flow for the host role. In the launcher it blocks until the main window exists.
func (s *State) Run() {
	switch s.Role {
	case RoleLauncher:
		s.startLauncher(s.exePath)
	case RoleGame:
		s.startGame()
	default:
		s.log.Infoln("Nothing to do in this host")
	}
}

func (s *State) startLauncher(exePath string) {
	if s.Config.InstallHooks {
		s.setupInterception()
	}

	go s.HarvestResources(exePath)

	if s.Config.HideUntilReady {
		s.HideUntilReady(windowsWindows{pid: uint32(os.Getpid())}, windowsWindows{})
	} else {
		s.WaitMainWindow(windowsWindows{pid: uint32(os.Getpid())})
	}
	s.log.Infoln("Initialization complete")
}

func (s *State) startGame() {
	if s.Config.InstallHooks {
		s.setupInterception()
	}

	if err := os.MkdirAll(s.Paths.Root, 0755); err != nil {
		s.log.Warn("Failed to create spear directory: ", err)
	}

	sup := supervisor.New(supervisor.NewWindowsJobs(), process_find.New(),
		supervisor.WithPollInterval(s.Config.PollInterval.Duration))
	s.StartWatchdog(sup)
}

func (s *State) setupInterception() {
	rep, err := hooks.AllocReplacement(assets.Background)
	if err != nil {
		s.log.Warn("Replacement image unavailable, resource hooks disabled: ", err)
		return
	}

	detours, err := hooks.NewResourceDetours()
	if err != nil {
		s.log.Warn("Resource functions unavailable, resource hooks disabled: ", err)
		return
	}

	i := hooks.NewInterceptor(detours.Originals(), hooks.LocalView, rep)
	s.InstallInterception(hooks.NewSet(detours.Hooks(i)...))
}

// PerformInjectionAsync runs PerformInjection on its own goroutine, as the UI thread must not block
func (s *State) PerformInjectionAsync() {
	go func() {
		host, err := NewWindowsHost()
		if err != nil {
			s.log.Warn("Failed to open host module: ", err)
			return
		}
		if err := s.PerformInjection(host, process_find.New(process_find.WithDetails(false))); err != nil {
			s.log.Warn("Injection aborted: ", err)
		}
	}()
}
