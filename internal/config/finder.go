package config

import (
	"os"
	"path/filepath"
)

// FindLocalConfig finds the project config file by walking up directories
func FindLocalConfig(dir string) string {
	for {
		for _, ext := range []string{"yml", "yaml", "json", "toml"} {
			path := filepath.Join(dir, ".abuild."+ext)

			if _, err := os.Stat(path); err == nil {
				return path
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}

		dir = parent
	}

	return ""
}

// GlobalConfigDir returns the per-user config directory: $ABUILD_CONFIG_HOME
// when set, otherwise abuild under the OS user config dir (%AppData% on
// Windows, $XDG_CONFIG_HOME or ~/.config on Linux)
func GlobalConfigDir() string {
	if dir := os.Getenv("ABUILD_CONFIG_HOME"); dir != "" {
		return dir
	}

	base, err := os.UserConfigDir()
	if err != nil {
		return ""
	}

	return filepath.Join(base, "abuild")
}
