package main

import (
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tabsdata/tabsdata/internal/tracker"
)

// exitNoAction is spec §6's "nothing to stop" exit code.
const exitNoAction = 2

func stopCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop a running tabsd daemon for this instance",
		RunE: func(cmd *cobra.Command, args []string) error {
			layout := resolveLayout()
			status, pid := tracker.Check(layout.Workspace)
			if status != tracker.Running {
				fmt.Fprintln(os.Stderr, "tabsd is not running for this instance")
				os.Exit(exitNoAction)
			}

			proc, err := os.FindProcess(pid)
			if err != nil {
				return fmt.Errorf("find process %d: %w", pid, err)
			}
			if err := proc.Signal(syscall.SIGTERM); err != nil {
				return fmt.Errorf("signal process %d: %w", pid, err)
			}

			deadline := time.Now().Add(timeout)
			for time.Now().Before(deadline) {
				if s, _ := tracker.Check(layout.Workspace); s != tracker.Running {
					fmt.Println("stopped")
					return nil
				}
				time.Sleep(100 * time.Millisecond)
			}
			if err := proc.Signal(syscall.SIGKILL); err != nil {
				return fmt.Errorf("kill process %d: %w", pid, err)
			}
			fmt.Println("killed")
			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "grace period before escalating to SIGKILL")
	return cmd
}
