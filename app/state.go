// Package app holds the process-wide state of the injected module and the flows that run
// in each host process.
package app

import (
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"

	"spear/config"
	"spear/resources"
)

var (
	ErrNotReady  = errors.New("ui not ready")
	ErrBusy      = errors.New("injection already running")
	ErrNoWindow  = errors.New("main window not found")
	ErrWrongRole = errors.New("operation not available in this host")
)

// ReadyFlag is set once by the UI layer when it has finished drawing
type ReadyFlag struct {
	once sync.Once
	ch   chan struct{}
}

func NewReadyFlag() *ReadyFlag {
	return &ReadyFlag{ch: make(chan struct{})}
}

// Set marks the UI ready. Later calls are no-ops.
func (f *ReadyFlag) Set() {
	f.once.Do(func() { close(f.ch) })
}

func (f *ReadyFlag) IsSet() bool {
	select {
	case <-f.ch:
		return true
	default:
		return false
	}
}

// Done is closed when the flag is set
func (f *ReadyFlag) Done() <-chan struct{} {
	return f.ch
}

// Role is the kind of host process the module was loaded into
type Role int

const (
	RoleUnknown Role = iota
	RoleLauncher
	RoleGame
)

func (r Role) String() string {
	switch r {
	case RoleLauncher:
		return "launcher"
	case RoleGame:
		return "game"
	default:
		return "unknown"
	}
}

// RoleFor maps the host executable path to its role
func RoleFor(exePath string, cfg *config.Config) Role {
	name := filepath.Base(strings.ReplaceAll(exePath, `\`, "/"))
	switch {
	case strings.EqualFold(name, cfg.LauncherExe):
		return RoleLauncher
	case strings.EqualFold(name, cfg.GameExe):
		return RoleGame
	default:
		return RoleUnknown
	}
}

// State is created once per host process and passed to every flow
type State struct {
	Config *config.Config
	Paths  config.Paths
	Role   Role
	Ready  *ReadyFlag
	Cache  *resources.Cache

	log     *logger.Logger
	exePath string

	mu         sync.Mutex
	mainWindow uintptr

	injecting atomic.Bool
	injected  atomic.Bool
}

func NewState(cfg *config.Config, paths config.Paths, role Role) *State {
	return &State{
		Config: cfg,
		Paths:  paths,
		Role:   role,
		Ready:  NewReadyFlag(),
		Cache:  resources.NewCache(paths.CacheDir),
		log:    logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, "spear")),
	}
}

func (s *State) SetMainWindow(h uintptr) {
	s.mu.Lock()
	s.mainWindow = h
	s.mu.Unlock()
}

func (s *State) MainWindow() (uintptr, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mainWindow, s.mainWindow != 0
}

// Injected reports whether the module was loaded into the game
func (s *State) Injected() bool {
	return s.injected.Load()
}
