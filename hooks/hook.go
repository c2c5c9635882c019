package hooks

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"

	"spear/process"
)

// Entry point names, in install order
const (
	NameSizeofResource = "SizeofResource"
	NameLockResource   = "LockResource"
	NameLoadResource   = "LoadResource"
)

// Hook is one redirected entry point. Each hook installs and fails on its own.
type Hook interface {
	Name() string

	// Install prepares the redirection without activating it
	Install() error

	// Enable activates the redirection
	Enable() error

	// Disable restores the original entry point
	Disable() error
}

// Set installs a group of hooks in order, tolerating individual failures
type Set struct {
	mu      sync.Mutex
	hooks   []Hook
	enabled []Hook
	log     *logger.Logger
}

// NewSet creates a set that installs hooks in the order given
func NewSet(hooks ...Hook) *Set {
	return &Set{
		hooks: hooks,
		log:   logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, "hook-set")),
	}
}

// InstallAll installs and enables every hook. A failing hook is logged and skipped;
// the returned error joins every failure.
func (s *Set) InstallAll() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for _, h := range s.hooks {
		if err := h.Install(); err != nil {
			err = fmt.Errorf("%w: %s install: %v", process.ErrHookInstall, h.Name(), err)
			s.log.Warn("Skipping hook: ", err)
			errs = append(errs, err)
			continue
		}
		if err := h.Enable(); err != nil {
			err = fmt.Errorf("%w: %s enable: %v", process.ErrHookInstall, h.Name(), err)
			s.log.Warn("Skipping hook: ", err)
			errs = append(errs, err)
			continue
		}

		s.enabled = append(s.enabled, h)
		s.log.Infoln("Enabled", h.Name(), "hook")
	}

	s.log.Infoln("Hooks active:", len(s.enabled), "of", len(s.hooks))
	return len(s.enabled), errors.Join(errs...)
}

// Enabled lists the names of the active hooks in install order
func (s *Set) Enabled() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, len(s.enabled))
	for i, h := range s.enabled {
		names[i] = h.Name()
	}
	return names
}

// DisableAll disables active hooks in reverse install order
func (s *Set) DisableAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for i := len(s.enabled) - 1; i >= 0; i-- {
		if err := s.enabled[i].Disable(); err != nil {
			errs = append(errs, fmt.Errorf("%s disable: %w", s.enabled[i].Name(), err))
		}
	}
	s.enabled = nil
	return errors.Join(errs...)
}

func uintptrHex(v uintptr) string {
	return fmt.Sprintf("0x%X", v)
}
