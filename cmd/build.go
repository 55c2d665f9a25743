package cmd

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Norgate-AV/abuild/internal/config"
	"github.com/Norgate-AV/abuild/internal/history"
	"github.com/Norgate-AV/abuild/internal/logging"
	"github.com/Norgate-AV/abuild/internal/metrics"
	"github.com/Norgate-AV/abuild/internal/orchestrator"
	"github.com/Norgate-AV/abuild/internal/runner"
	"github.com/Norgate-AV/abuild/internal/state"
)

func newBuildCmd() *cobra.Command {
	buildCmd := &cobra.Command{
		Use:   "build",
		Short: "Build changed components",
		Long: `Hash every configured component and run the steps of those that changed.

Steps are filtered with --tags. A plain tag runs only steps with that tag;
a tag prefixed with "!" excludes it and runs everything else. If any tag is
an exclusion the whole list is read as exclusions.`,
		Args:         cobra.NoArgs,
		RunE:         runBuild,
		SilenceUsage: true,
	}

	addBuildFlags(buildCmd)

	return buildCmd
}

func addBuildFlags(cmd *cobra.Command) {
	cmd.Flags().StringArrayP("tags", "t", []string{}, "Only run steps with this tag, or \"!tag\" to skip it (repeatable)")
	cmd.Flags().Bool("lock", false, "Hold an exclusive lock on the state file during the run")
	cmd.Flags().String("metrics-file", "", "Write run metrics in Prometheus text format to this file")
	cmd.Flags().Bool("no-history", false, "Do not record the run in the build history")
}

func runBuild(cmd *cobra.Command, args []string) error {
	viper.Reset()

	cfg, err := config.NewLoader().LoadForBuild(cmd)
	if err != nil {
		return err
	}

	log := logging.New(cmd.ErrOrStderr(), cfg.Verbose)

	requested, err := cmd.Flags().GetStringArray("tags")
	if err != nil {
		return err
	}

	return executeBuild(cmd, cfg, requested, log)
}

// executeBuild runs one orchestrator pass with the optional extras the build
// flags ask for
func executeBuild(cmd *cobra.Command, cfg *config.Config, requested []string, log zerolog.Logger) error {
	if lock, _ := cmd.Flags().GetBool("lock"); lock {
		unlock, err := state.Lock(cfg.StateFile)
		if err != nil {
			return err
		}
		defer unlock()
	}

	store, err := state.Open(cfg.StateFile)
	if err != nil {
		return err
	}

	o := orchestrator.New(store, runner.New(cmd.OutOrStdout()), log)

	if noHistory, _ := cmd.Flags().GetBool("no-history"); !noHistory {
		h, err := history.Open(cfg.HistoryDir)
		if err != nil {
			return err
		}
		defer h.Close()

		o.History = h
	}

	if path, _ := cmd.Flags().GetString("metrics-file"); path != "" {
		o.Metrics = metrics.New()

		defer func() {
			if err := o.Metrics.WriteFile(path); err != nil {
				log.Warn().Err(err).Str("path", path).Msg("failed to write metrics")
			}
		}()
	}

	log.Debug().
		Str("state_file", cfg.StateFile).
		Strs("tags", requested).
		Int("components", len(cfg.Components)).
		Msg("starting build")

	return o.Build(requested, cfg)
}
