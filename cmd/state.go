package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/Norgate-AV/abuild/internal/config"
	"github.com/Norgate-AV/abuild/internal/state"
)

func newStateCmd() *cobra.Command {
	stateCmd := &cobra.Command{
		Use:   "state",
		Short: "Inspect or reset the build state",
	}

	showCmd := &cobra.Command{
		Use:          "show",
		Short:        "Print the recorded component hashes",
		Args:         cobra.NoArgs,
		RunE:         runStateShow,
		SilenceUsage: true,
	}
	showCmd.Flags().StringP("format", "f", "yaml", "Output format (yaml or json)")

	forgetCmd := &cobra.Command{
		Use:          "forget <path>...",
		Short:        "Drop components from the state so their next build runs",
		Args:         cobra.MinimumNArgs(1),
		RunE:         runStateForget,
		SilenceUsage: true,
	}

	clearCmd := &cobra.Command{
		Use:          "clear",
		Short:        "Drop every component from the state",
		Args:         cobra.NoArgs,
		RunE:         runStateClear,
		SilenceUsage: true,
	}

	stateCmd.AddCommand(showCmd, forgetCmd, clearCmd)

	return stateCmd
}

// stateDoc mirrors state.FullState with YAML field names
type stateDoc struct {
	Components []componentDoc `yaml:"components"`
	Timestamp  string         `yaml:"timestamp"`
}

type componentDoc struct {
	Name string `yaml:"name"`
	Hash string `yaml:"hash"`
}

func openStateStore(cmd *cobra.Command) (*state.Store, error) {
	viper.Reset()

	cfg, err := config.NewLoader().LoadForBuild(cmd)
	if err != nil {
		return nil, err
	}

	return state.Open(cfg.StateFile)
}

func runStateShow(cmd *cobra.Command, args []string) error {
	store, err := openStateStore(cmd)
	if err != nil {
		return err
	}

	st := store.State()
	format, _ := cmd.Flags().GetString("format")

	var data []byte
	switch format {
	case "json":
		data, err = json.MarshalIndent(st, "", "  ")
		data = append(data, '\n')
	case "yaml":
		doc := stateDoc{Timestamp: st.Timestamp}
		for _, c := range st.Components {
			doc.Components = append(doc.Components, componentDoc(c))
		}
		data, err = yaml.Marshal(doc)
	default:
		return fmt.Errorf("unknown format %q", format)
	}
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}

	_, err = cmd.OutOrStdout().Write(data)

	return err
}

func runStateForget(cmd *cobra.Command, args []string) error {
	store, err := openStateStore(cmd)
	if err != nil {
		return err
	}

	for _, path := range args {
		removed, err := store.Forget(path)
		if err != nil {
			return err
		}

		if !removed {
			fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %s is not in the state\n", path)
		}
	}

	return nil
}

func runStateClear(cmd *cobra.Command, args []string) error {
	store, err := openStateStore(cmd)
	if err != nil {
		return err
	}

	return store.Clear()
}
