package cmd

import (
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Norgate-AV/abuild/internal/config"
	"github.com/Norgate-AV/abuild/internal/logging"
	"github.com/Norgate-AV/abuild/internal/state"
)

func newWatchCmd() *cobra.Command {
	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Rebuild changed components whenever files change",
		Long: `Run a build, then watch every component directory and run another build
after files change. Builds never overlap; a failed build is reported and
watching continues.`,
		Args:         cobra.NoArgs,
		RunE:         runWatch,
		SilenceUsage: true,
	}

	addBuildFlags(watchCmd)
	watchCmd.Flags().Duration("debounce", 500*time.Millisecond, "Quiet period after the last change before rebuilding")

	return watchCmd
}

func runWatch(cmd *cobra.Command, args []string) error {
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

	debounce, _ := cmd.Flags().GetDuration("debounce")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	for _, comp := range cfg.Components {
		if err := watchTree(watcher, comp.Root, cfg); err != nil {
			return err
		}
	}

	build := func() {
		if err := executeBuild(cmd, cfg, requested, log); err != nil {
			log.Error().Err(err).Msg("build failed")
		}
		log.Info().Msg("watching for changes")
	}

	build()

	trigger := make(chan struct{}, 1)
	var timer *time.Timer

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			if !relevantEvent(event, cfg) {
				continue
			}

			log.Debug().Str("op", event.Op.String()).Str("file", event.Name).Msg("change detected")

			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := watchTree(watcher, event.Name, cfg); err != nil {
						log.Warn().Err(err).Str("dir", event.Name).Msg("failed to watch directory")
					}
				}
			}

			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounce, func() {
				select {
				case trigger <- struct{}{}:
				default:
				}
			})

		case <-trigger:
			build()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("watch error")
		}
	}
}

// watchTree adds root and every directory below it to the watcher
func watchTree(w *fsnotify.Watcher, root string, cfg *config.Config) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if !d.IsDir() {
			return nil
		}

		if path == cfg.HistoryDir || d.Name() == ".git" {
			return filepath.SkipDir
		}

		return w.Add(path)
	})
}

// relevantEvent drops events caused by abuild's own bookkeeping
func relevantEvent(event fsnotify.Event, cfg *config.Config) bool {
	if event.Op == fsnotify.Chmod {
		return false
	}

	name := filepath.Clean(event.Name)
	if name == cfg.StateFile || name == cfg.StateFile+".lock" {
		return false
	}

	if strings.HasPrefix(filepath.Base(name), state.TempPrefix) {
		return false
	}

	if name == cfg.HistoryDir || strings.HasPrefix(name, cfg.HistoryDir+string(filepath.Separator)) {
		return false
	}

	return true
}
