// Command tabsd is the orchestrator CLI: it boots the supervisor
// daemon that spawns and supervises a dataset pipeline's workers.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tabsdata/tabsdata/internal/config"
)

var (
	instanceFlag   string
	repositoryFlag string
	workspaceFlag  string
	profileFlag    string
)

func resolveLayout() config.InstanceLayout {
	l := config.DefaultInstanceLayout().
		ApplyEnv().
		ApplyFlags(instanceFlag, repositoryFlag, workspaceFlag, profileFlag)
	// Repository and workspace default under whichever instance root won.
	if repositoryFlag == "" && os.Getenv("TABSD_REPOSITORY") == "" {
		l.Repository = l.Instance + "/repository"
	}
	if workspaceFlag == "" && os.Getenv("TABSD_WORKSPACE") == "" {
		l.Workspace = l.Instance + "/workspace"
	}
	return l
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "tabsd",
		Short: "tabsd - dataset pipeline worker supervisor",
	}

	rootCmd.PersistentFlags().StringVar(&instanceFlag, "instance", "", "instance root (default ~/.tabsdata/instances/tabsdata)")
	rootCmd.PersistentFlags().StringVar(&repositoryFlag, "repository", "", "persistent data folder (default <instance>/repository)")
	rootCmd.PersistentFlags().StringVar(&workspaceFlag, "workspace", "", "transient data folder (default <instance>/workspace)")
	rootCmd.PersistentFlags().StringVar(&profileFlag, "profile", "", "profile folder containing config.yaml")

	rootCmd.AddCommand(
		daemonCmd(),
		stopCmd(),
		statusCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
