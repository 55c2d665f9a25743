package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Norgate-AV/abuild/internal/version"
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "abuild",
		Short:        "Incremental build orchestrator",
		Long:         `Run the build steps of every component whose directory content changed since the last build.`,
		SilenceUsage: true,
	}

	rootCmd.Version = fmt.Sprintf("%s (%s) %s", version.Version, version.Commit, version.BuildTime)
	rootCmd.PersistentFlags().StringP("config", "c", "", "Config file (default: .abuild.{yml,yaml,json,toml} in the current or a parent directory)")
	rootCmd.PersistentFlags().String("state-file", "", "Build state file (default: .abuild_state next to the config)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Verbose output")

	rootCmd.AddCommand(
		newBuildCmd(),
		newHashCmd(),
		newStateCmd(),
		newHistoryCmd(),
		newWatchCmd(),
	)

	return rootCmd
}

func Execute() {
	err := newRootCmd().Execute()
	if err != nil {
		os.Exit(1)
	}
}
