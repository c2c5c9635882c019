package patch

import (
	"bytes"
	"fmt"

	"spear/process"
)

// Plan describes one patch: the function that owns the call site, the call site
// inside it and the bytes that replace the call site.
type Plan struct {
	Name        string
	Function    process.AOB
	CallSite    process.AOB
	Replacement []byte
}

// Validate checks that the replacement is an in-place patch of the call site
func (p Plan) Validate() error {
	if !p.Function.IsValid() || !p.CallSite.IsValid() {
		return fmt.Errorf("plan %s: invalid pattern", p.Name)
	}
	if len(p.Replacement) != p.CallSite.Len() {
		return fmt.Errorf("plan %s: %w (%d != %d)", p.Name, process.ErrSizeMismatch, len(p.Replacement), p.CallSite.Len())
	}
	return nil
}

// DefaultPlayPlan disables the window-close call in the launcher's play handler so the
// handler can be called directly without tearing down the launcher UI first.
var DefaultPlayPlan = Plan{
	Name: "play-handler",
	Function: process.MustAOB("40 53 48 81 EC A0 01 00 00 48 8B 05 E4 A9 03 00 48 33 C4 48 89 84 24 90 01 00 00 " +
		"48 8B D9 BA 02 7F 00 00 33 C9 FF 15 F1 5E 02 00"),
	CallSite:    process.MustAOB("84 C0 74 08 48 8B CB E8 F6 49 FF FF"),
	Replacement: []byte{0x84, 0xC0, 0x74, 0x08, 0x48, 0x8B, 0xCB, 0x90, 0x90, 0x90, 0x90, 0x90},
}

// Site is a located patch site with a snapshot of its current bytes
type Site struct {
	Address     process.ProcessMemoryAddress
	Original    []byte
	Replacement []byte
}

// NewSite builds a Site, rejecting size-changing patches
func NewSite(addr process.ProcessMemoryAddress, original, replacement []byte) (Site, error) {
	if len(original) != len(replacement) {
		return Site{}, fmt.Errorf("%w: %d != %d", process.ErrSizeMismatch, len(replacement), len(original))
	}
	return Site{
		Address:     addr,
		Original:    bytes.Clone(original),
		Replacement: bytes.Clone(replacement),
	}, nil
}

// Len is the number of bytes the site covers
func (s Site) Len() int {
	return len(s.Original)
}

func (s Site) String() string {
	return fmt.Sprintf("site %s+%d", s.Address.ToString(), s.Len())
}
