//go:build windows

package main

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"spear/app"
	"spear/process"
	"spear/process_find"
	"spear/process_windows"
	"spear/supervisor"
)

func platformCommands() []*cobra.Command {
	return []*cobra.Command{newSuperviseCmd(), newInjectCmd()}
}

func newSuperviseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "supervise",
		Short: "Start the companion processes and the game watchdog, ending all of them on Ctrl-C",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, cfg, err := loadConfig()
			if err != nil {
				return err
			}

			s := app.NewState(cfg, p, app.RoleGame)
			sup := supervisor.New(supervisor.NewWindowsJobs(), process_find.New(),
				supervisor.WithPollInterval(cfg.PollInterval.Duration))
			w := s.StartWatchdog(sup)
			defer w.Close()

			for _, sp := range w.Spawned {
				fmt.Println("started", sp.String())
			}
			fmt.Println("waiting for", cfg.GameExe, "(Ctrl-C to stop)")

			interrupt := make(chan os.Signal, 1)
			signal.Notify(interrupt, os.Interrupt)

			select {
			case game := <-w.Game:
				fmt.Println("tracking", game.String())
				<-interrupt
			case <-interrupt:
			}

			fmt.Println("closing job")
			return w.Close()
		},
	}
}

func newInjectCmd() *cobra.Command {
	var (
		pidFlag  uint32
		nameFlag string
	)

	cmd := &cobra.Command{
		Use:   "inject <dll>",
		Short: "Load a DLL into a running process",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pid := process.ProcessID(pidFlag)
			if pid == 0 {
				if nameFlag == "" {
					return fmt.Errorf("--pid or --name is required")
				}
				found, err := process_find.New(process_find.WithDetails(false)).FindProcessByName(nameFlag)
				if err != nil {
					return err
				}
				pid = found[0].PID
			}

			if err := process_windows.InjectLibrary(pid, args[0]); err != nil {
				return err
			}
			fmt.Println("injected", args[0], "into", pid)
			return nil
		},
	}
	cmd.Flags().Uint32Var(&pidFlag, "pid", 0, "target process id")
	cmd.Flags().StringVar(&nameFlag, "name", "", "target process name")
	return cmd
}
