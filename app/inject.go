package app

import (
	"fmt"

	"spear/patch"
	"spear/process"
	"spear/search"
)

// Host is the OS surface used by PerformInjection
type Host interface {
	// Memory accesses the host's own address space
	Memory() process.Memory

	// TextRegion is the code section of the host executable
	TextRegion() (process.MemoryRegion, error)

	Invoker() patch.Invoker

	InjectLibrary(pid process.ProcessID, dllPath string) error

	// Exit terminates the host process
	Exit(code uint32)
}

// PerformInjection patches and calls the launcher's play handler, waits for the game to
// start, loads the module into it and then ends the launcher. The UI must be ready and the
// main window known. Only one run may be active.
// It returns an error when any step fails; the host keeps running in that case.
func (s *State) PerformInjection(host Host, finder process.ProcessFinder) error {
	if s.Role != RoleLauncher {
		return fmt.Errorf("%w: %s", ErrWrongRole, s.Role)
	}
	if !s.Ready.IsSet() {
		return ErrNotReady
	}
	if _, ok := s.MainWindow(); !ok {
		return ErrNoWindow
	}
	if !s.injecting.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer s.injecting.Store(false)

	s.log.Infoln("Play requested, scanning for patterns")

	region, err := host.TextRegion()
	if err != nil {
		s.log.Warn("Failed to locate code section: ", err)
		return err
	}

	options := []patch.Option{patch.WithInvoker(host.Invoker())}
	if s.Config.ScanWorkers > 0 {
		options = append(options, patch.WithScanner(search.New(search.WithMaxDOP(uint(s.Config.ScanWorkers)))))
	}

	engine := patch.NewEngine(host.Memory(), region, options...)
	result, err := engine.Run(patch.DefaultPlayPlan)
	if err != nil {
		s.log.Warn("Play patch failed: ", err)
		return err
	}
	s.log.Infoln("Play handler invoked at", result.Function.ToString())

	game := finder.WaitForProcess(s.Config.GameExe, s.Config.PollInterval.Duration)

	s.log.Infoln("Injecting", s.Config.ModuleName, "into", game.String())
	if err := host.InjectLibrary(game.PID, s.Config.ModuleName); err != nil {
		s.log.Warn("Injection failed: ", err)
		return err
	}

	s.injected.Store(true)
	s.log.Infoln("Injection complete, exiting launcher")
	host.Exit(0)
	return nil
}
