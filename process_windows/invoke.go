//go:build windows

package process_windows

import (
	"fmt"
	"syscall"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"

	"spear/process"
)

// Invoker calls functions of the calling process by address.
//
// Nothing checks that addr is a function with no parameters. The caller owns that:
// only pass addresses resolved by a pattern match against the exact build in use.
type Invoker struct {
	log *logger.Logger
}

func NewInvoker() *Invoker {
	return &Invoker{
		log: logger.NewLogger(coloransi.Color(coloransi.Red, coloransi.ColorOrange, "invoke")),
	}
}

// Invoke calls addr with no arguments using the platform calling convention
func (inv *Invoker) Invoke(addr process.ProcessMemoryAddress) (uintptr, error) {
	if addr == 0 {
		return 0, fmt.Errorf("invoke: %w", process.ErrAddressNotMapped)
	}

	inv.log.Infoln("Calling", addr.ToString())
	ret, _, _ := syscall.SyscallN(uintptr(addr))
	inv.log.Infoln("Call to", addr.ToString(), "returned", fmt.Sprintf("0x%X", ret))

	return ret, nil
}
