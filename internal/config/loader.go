package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Loader handles configuration loading from various sources
type Loader struct{}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	return &Loader{}
}

// LoadForBuild loads configuration for build operations. The per-user config
// supplies defaults, the project config overrides it, and flags override both.
// An explicit --config flag wins over a config file discovered from the
// working directory.
func (l *Loader) LoadForBuild(cmd *cobra.Command) (*Config, error) {
	l.setupViperDefaults()
	l.loadGlobalConfig()

	if err := l.loadConfigFile(cmd); err != nil {
		return nil, err
	}

	l.bindCommandFlags(cmd)

	return Load()
}

// setupViperDefaults sets up default values for viper
func (l *Loader) setupViperDefaults() {
	viper.SetDefault("state_file", DefaultStateFile)
	viper.SetDefault("history_dir", DefaultHistoryDir)
	viper.SetDefault("verbose", DefaultVerbose)
}

// loadGlobalConfig loads the per-user config from GlobalConfigDir
func (l *Loader) loadGlobalConfig() {
	dir := GlobalConfigDir()
	if dir == "" {
		return
	}

	for _, ext := range []string{"yml", "yaml", "json", "toml"} {
		globalPath := filepath.Join(dir, "config."+ext)

		if _, err := os.Stat(globalPath); err == nil {
			viper.SetConfigFile(globalPath)

			if err := viper.MergeInConfig(); err == nil {
				break
			}
		}
	}
}

// loadConfigFile reads the explicit or discovered config file
func (l *Loader) loadConfigFile(cmd *cobra.Command) error {
	path := ""
	if f := cmd.Flags().Lookup("config"); f != nil {
		path = f.Value.String()
	}

	if path == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to get working directory: %w", err)
		}

		path = FindLocalConfig(cwd)
	}

	if path == "" {
		return fmt.Errorf("no .abuild config file found")
	}

	viper.SetConfigFile(path)
	if err := viper.MergeInConfig(); err != nil {
		return fmt.Errorf("failed to read config %s: %w", path, err)
	}

	return nil
}

// bindCommandFlags binds command flags to viper
func (l *Loader) bindCommandFlags(cmd *cobra.Command) {
	_ = viper.BindPFlag("state_file", cmd.Flags().Lookup("state-file"))
	_ = viper.BindPFlag("verbose", cmd.Flags().Lookup("verbose"))
}
