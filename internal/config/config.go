package config

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/viper"
)

// Default configuration values
const (
	DefaultStateFile  = ".abuild_state"
	DefaultHistoryDir = ".abuild-cache"
	DefaultTag        = "default"
	DefaultVerbose    = false
)

// Step is a single shell command belonging to a component
type Step struct {
	// Shell command to execute in the component directory
	Cmd string

	// Display label, empty means Cmd
	Name string

	// Tag used for selecting steps at invocation time
	Tag string

	// Abort the component (and the run) when the command exits non-zero
	BreakOnError bool
}

// DisplayName returns the label used in status lines and errors
func (s Step) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}

	return s.Cmd
}

// Component is a directory-rooted unit of build work
type Component struct {
	// Path as written in the config file, used as the state key
	Path string

	// Display label, empty means Path
	Name string

	// Absolute directory the path resolves to
	Root string

	// Steps in execution order
	Steps []Step
}

// DisplayName returns the label used in status lines
func (c Component) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}

	return c.Path
}

// Holds the configuration options for abuild
type Config struct {
	// Components in build order
	Components []Component

	// Path to the persisted build state
	StateFile string

	// Directory holding the build history database
	HistoryDir string

	// Enable verbose output
	Verbose bool

	// Directory relative component paths resolve against
	BaseDir string
}

type rawStep struct {
	Cmd          string `mapstructure:"cmd"`
	Name         string `mapstructure:"name"`
	Tag          string `mapstructure:"tag"`
	BreakOnError *bool  `mapstructure:"break_on_error"`
}

type rawComponent struct {
	Path  string    `mapstructure:"path"`
	Name  string    `mapstructure:"name"`
	Steps []rawStep `mapstructure:"steps"`
}

func Load() (*Config, error) {
	cfg := &Config{
		StateFile:  viper.GetString("state_file"),
		HistoryDir: viper.GetString("history_dir"),
		Verbose:    viper.GetBool("verbose"),
	}

	if used := viper.ConfigFileUsed(); used != "" {
		cfg.BaseDir = filepath.Dir(used)
	}

	var raw []rawComponent
	if err := viper.UnmarshalKey("components", &raw); err != nil {
		return nil, fmt.Errorf("invalid components: %w", err)
	}

	for _, rc := range raw {
		c := Component{
			Path: rc.Path,
			Name: rc.Name,
		}

		for _, rs := range rc.Steps {
			s := Step{
				Cmd:          rs.Cmd,
				Name:         rs.Name,
				Tag:          rs.Tag,
				BreakOnError: true,
			}

			if rs.BreakOnError != nil {
				s.BreakOnError = *rs.BreakOnError
			}

			c.Steps = append(c.Steps, s)
		}

		cfg.Components = append(cfg.Components, c)
	}

	// Apply defaults if not set
	if cfg.StateFile == "" {
		cfg.StateFile = DefaultStateFile
	}

	if cfg.HistoryDir == "" {
		cfg.HistoryDir = DefaultHistoryDir
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	base := c.BaseDir
	if base == "" {
		abs, err := filepath.Abs(".")
		if err != nil {
			return fmt.Errorf("failed to resolve working directory: %v", err)
		}

		base = abs
	}

	c.StateFile = resolve(base, c.StateFile)
	c.HistoryDir = resolve(base, c.HistoryDir)

	seen := make(map[string]bool)
	for i := range c.Components {
		comp := &c.Components[i]
		if comp.Path == "" {
			return fmt.Errorf("component %d: path is required", i)
		}

		if seen[comp.Path] {
			return fmt.Errorf("duplicate component path: %s", comp.Path)
		}
		seen[comp.Path] = true

		comp.Root = resolve(base, comp.Path)

		for j := range comp.Steps {
			step := &comp.Steps[j]
			if step.Cmd == "" {
				return fmt.Errorf("component %s: step %d: cmd is required", comp.DisplayName(), j)
			}

			if step.Tag == "" {
				step.Tag = DefaultTag
			}
		}
	}

	return nil
}

func resolve(base, path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}

	return filepath.Join(base, path)
}
