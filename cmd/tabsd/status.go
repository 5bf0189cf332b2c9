package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tabsdata/tabsdata/internal/tracker"
)

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report whether a tabsd daemon is running for this instance",
		RunE: func(cmd *cobra.Command, args []string) error {
			layout := resolveLayout()
			status, pid := tracker.Check(layout.Workspace)
			switch status {
			case tracker.Running:
				fmt.Printf("running (pid %d)\n", pid)
			case tracker.NotRunning:
				fmt.Printf("not running (stale pid %d)\n", pid)
			default:
				fmt.Println("not running")
			}
			return nil
		},
	}
}
