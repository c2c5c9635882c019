//go:build !windows

package main

import "github.com/spf13/cobra"

// supervise and inject drive Windows job objects and remote threads
func platformCommands() []*cobra.Command {
	return nil
}
