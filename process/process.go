// Package process provides the types and interfaces shared by the scanner,
// the patch engine, the interception layer and the supervisor.
package process

import "errors"

var (
	// ErrAddressNotMapped is returned when a memory address is not found within any mapped region of a process.
	ErrAddressNotMapped = errors.New("address not mapped")

	// ErrProcessNotOpen is returned when an operation requiring an open process is attempted
	// before the process has been successfully opened or after it has been closed.
	ErrProcessNotOpen = errors.New("process not open")

	// ErrPatternNotFound means a required byte signature is absent, usually a binary version mismatch.
	ErrPatternNotFound = errors.New("pattern not found")

	// ErrProtectionChange means the OS refused a memory protection change.
	ErrProtectionChange = errors.New("memory protection change failed")

	// ErrSizeMismatch is returned for patches whose replacement length differs from the original.
	ErrSizeMismatch = errors.New("replacement size does not match original")

	// ErrHookInstall means one interception could not be installed.
	ErrHookInstall = errors.New("hook install failed")

	// ErrProcessControl covers job creation, spawn and assignment failures.
	ErrProcessControl = errors.New("process control failed")

	// ErrResourceMalformed marks resource directory arithmetic that leaves the buffer.
	ErrResourceMalformed = errors.New("resource directory malformed")

	ErrProcessNotFound = errors.New("process not found")
)
