// Package proxy lets this module stand in for a system DLL: calls arriving at its
// exports are passed on to the real DLL from the system directory.
package proxy

import (
	"fmt"
	"sync"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
)

// Resolver finds an export of the real DLL
type Resolver func(name string) (uintptr, error)

// Caller calls addr with the platform calling convention
type Caller func(addr uintptr, args ...uintptr) uintptr

// Forwarder resolves exports of one DLL on first use and calls through to them
type Forwarder struct {
	dll     string
	resolve Resolver
	call    Caller

	mu    sync.RWMutex
	procs map[string]uintptr

	log *logger.Logger
}

func NewForwarder(dll string, resolve Resolver, call Caller) *Forwarder {
	return &Forwarder{
		dll:     dll,
		resolve: resolve,
		call:    call,
		procs:   make(map[string]uintptr),
		log:     logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, "proxy")),
	}
}

func (f *Forwarder) DLL() string {
	return f.dll
}

// Resolve returns the address of name in the real DLL. Successful lookups are cached.
func (f *Forwarder) Resolve(name string) (uintptr, error) {
	f.mu.RLock()
	addr, ok := f.procs[name]
	f.mu.RUnlock()
	if ok {
		return addr, nil
	}

	addr, err := f.resolve(name)
	if err != nil {
		return 0, fmt.Errorf("%s!%s: %w", f.dll, name, err)
	}
	if addr == 0 {
		return 0, fmt.Errorf("%s!%s resolved to nil", f.dll, name)
	}

	f.mu.Lock()
	f.procs[name] = addr
	f.mu.Unlock()
	return addr, nil
}

// Call forwards to name, returning fallback when the real export is missing
func (f *Forwarder) Call(fallback uintptr, name string, args ...uintptr) uintptr {
	addr, err := f.Resolve(name)
	if err != nil {
		f.log.Warn("Forwarding failed: ", err)
		return fallback
	}
	return f.call(addr, args...)
}

// Preload resolves every name up front and returns the ones the real DLL lacks
func (f *Forwarder) Preload(names []string) []string {
	var missing []string
	for _, name := range names {
		if _, err := f.Resolve(name); err != nil {
			missing = append(missing, name)
		}
	}
	f.log.Infoln("Forwarding", len(names)-len(missing), "of", len(names), "exports to", f.dll)
	return missing
}
