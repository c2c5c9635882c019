//go:build windows

// Command spear is built with -buildmode=c-shared and deployed as winmm.dll next to the launcher
// and the game. Its winmm exports forward to the system copy of the DLL.
package main

import "C"
import (
	"sync"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"

	"spear/app"
	"spear/proxy"
)

var (
	log = logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, "spear-dll"))

	mu    sync.Mutex
	state *app.State
)

func current() *app.State {
	mu.Lock()
	defer mu.Unlock()
	return state
}

// init runs when the DLL is attached; the loader lock is held, so work moves to a goroutine
func init() {
	go func() {
		winmm().Preload(proxy.ExportNames(proxy.WinmmExports))

		s, err := app.New()
		if err != nil {
			log.Warn("Failed to initialize: ", err)
			return
		}

		mu.Lock()
		state = s
		mu.Unlock()

		s.Run()
	}()
}

// SpearSetUIReady is called by the UI once it has finished drawing
//
//export SpearSetUIReady
func SpearSetUIReady() {
	s := current()
	if s == nil {
		log.Warn("UI ready before initialization: ", app.ErrNotReady)
		return
	}
	s.Ready.Set()
}

// SpearPerformInjection is called when the play button is pressed
//
//export SpearPerformInjection
func SpearPerformInjection() {
	s := current()
	if s == nil {
		log.Warn("Play pressed before initialization: ", app.ErrNotReady)
		return
	}
	s.PerformInjectionAsync()
}

func main() {}
