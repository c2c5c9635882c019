package patch

import (
	"fmt"

	"spear/process"
)

// WritableProtection is requested for the bytes being patched. Code pages stay executable
// so other threads running nearby instructions keep working.
const WritableProtection = process.PageExecuteReadWrite

// Writable makes exactly [addr, addr+size) writable, runs fn and restores the previous
// protection on every path, including a failing or panicking fn.
func Writable(mem process.Memory, addr process.ProcessMemoryAddress, size process.ProcessMemorySize, fn func(prev process.Protection) error) (prev process.Protection, err error) {
	prev, err = mem.Protect(addr, size, WritableProtection)
	if err != nil {
		return 0, fmt.Errorf("%w: %d bytes at %s: %v", process.ErrProtectionChange, size, addr.ToString(), err)
	}

	defer func() {
		if _, rerr := mem.Protect(addr, size, prev); rerr != nil && err == nil {
			err = fmt.Errorf("%w: restore %s at %s: %v", process.ErrProtectionChange, prev, addr.ToString(), rerr)
		}
	}()

	return prev, fn(prev)
}

// WriteProtected writes data at addr under a temporary writable protection
func WriteProtected(mem process.Memory, addr process.ProcessMemoryAddress, data []byte) error {
	_, err := Writable(mem, addr, process.ProcessMemorySize(len(data)), func(process.Protection) error {
		if err := mem.WriteMemory(addr, data); err != nil {
			return fmt.Errorf("failed to write %d bytes at %s: %w", len(data), addr.ToString(), err)
		}
		return nil
	})
	return err
}
