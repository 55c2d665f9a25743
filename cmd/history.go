package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Norgate-AV/abuild/internal/config"
	"github.com/Norgate-AV/abuild/internal/history"
)

func newHistoryCmd() *cobra.Command {
	historyCmd := &cobra.Command{
		Use:          "history",
		Short:        "Show recent component builds",
		Args:         cobra.NoArgs,
		RunE:         runHistory,
		SilenceUsage: true,
	}

	historyCmd.Flags().IntP("limit", "n", 20, "Number of builds to show (0 for all)")
	historyCmd.Flags().Bool("clear", false, "Delete the build history")
	historyCmd.Flags().String("component", "", "Show only the most recent build of this component path")

	return historyCmd
}

func runHistory(cmd *cobra.Command, args []string) error {
	viper.Reset()

	cfg, err := config.NewLoader().LoadForBuild(cmd)
	if err != nil {
		return err
	}

	h, err := history.Open(cfg.HistoryDir)
	if err != nil {
		return err
	}
	defer h.Close()

	if clearAll, _ := cmd.Flags().GetBool("clear"); clearAll {
		return h.Clear()
	}

	var entries []history.Entry
	if component, _ := cmd.Flags().GetString("component"); component != "" {
		last, err := h.Last(component)
		if err != nil {
			return err
		}

		if last == nil {
			return fmt.Errorf("no recorded build for %s", component)
		}

		entries = append(entries, *last)
	} else {
		limit, _ := cmd.Flags().GetInt("limit")
		if entries, err = h.List(limit); err != nil {
			return err
		}
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTIME\tCOMPONENT\tHASH\tSTEPS\tRESULT")

	for _, e := range entries {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
			e.ID, e.Timestamp.Format(time.DateTime), e.Component, shortHash(e.Hash), stepSummary(e.Steps), result(e))
	}

	if err := w.Flush(); err != nil {
		return err
	}

	count, failed, err := h.Stats()
	if err != nil {
		return err
	}

	if cfg.Verbose {
		fmt.Fprintf(cmd.OutOrStdout(), "\n%d builds recorded, %d failed\n", count, failed)
	}

	return nil
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}

	return h
}

// stepSummary renders steps as name:code, skipped steps as name:-
func stepSummary(steps []history.StepRecord) string {
	parts := make([]string, 0, len(steps))
	for _, s := range steps {
		if s.Skipped {
			parts = append(parts, s.Name+":-")
			continue
		}

		parts = append(parts, fmt.Sprintf("%s:%d", s.Name, s.Code))
	}

	return strings.Join(parts, " ")
}

func result(e history.Entry) string {
	if e.Success {
		return "ok"
	}

	return "failed"
}
