// Package orchestrator drives incremental builds.
//
// Components are evaluated one at a time in config order. Each component's
// directory hash is compared with the state store; unchanged components are
// skipped, changed ones run their tag-selected steps in order. The first
// fail-fast step error stops the whole run. The component's new hash is
// committed to the state file even when its build fails.
package orchestrator

import (
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/Norgate-AV/abuild/internal/config"
	"github.com/Norgate-AV/abuild/internal/fingerprint"
	"github.com/Norgate-AV/abuild/internal/history"
	"github.com/Norgate-AV/abuild/internal/metrics"
	"github.com/Norgate-AV/abuild/internal/runner"
	"github.com/Norgate-AV/abuild/internal/state"
	"github.com/Norgate-AV/abuild/internal/tags"
)

// StepRunner executes a single step in a directory
type StepRunner interface {
	RunWithResult(step config.Step, cwd string) (runner.Result, error)
}

// Recorder stores finished component builds
type Recorder interface {
	Record(entry *history.Entry) error
}

// Orchestrator builds the components of a config against a state store
type Orchestrator struct {
	Store  *state.Store
	Runner StepRunner
	Hash   state.HashFunc
	Logger zerolog.Logger

	// Optional
	History Recorder
	Metrics *metrics.Metrics
}

// New creates an orchestrator hashing directories with fingerprint.HashDirectory
func New(store *state.Store, r StepRunner, logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		Store:  store,
		Runner: r,
		Hash:   fingerprint.HashDirectory,
		Logger: logger,
	}
}

// Build evaluates every component in order and stops at the first error
func (o *Orchestrator) Build(requested []string, cfg *config.Config) error {
	for _, comp := range cfg.Components {
		if err := o.buildComponent(comp, requested); err != nil {
			return err
		}
	}

	return nil
}

func (o *Orchestrator) buildComponent(comp config.Component, requested []string) (err error) {
	log := o.Logger.With().Str("component", comp.DisplayName()).Logger()

	d, err := o.Store.Begin(comp.Path, comp.Root, o.Hash)
	if err != nil {
		return err
	}

	defer func() {
		if cerr := d.Commit(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if !d.NeedRebuild {
		log.Info().Msg("unchanged, skipping")
		o.countComponent(metrics.ComponentUnchanged)
		return nil
	}

	log.Info().Str("hash", d.Hash).Str("previous", d.Previous).Msg("building")

	entry := &history.Entry{
		Component: comp.Path,
		Hash:      d.Hash,
		Tags:      requested,
		Timestamp: time.Now(),
	}
	defer func() {
		entry.Success = err == nil
		if err != nil {
			entry.Error = err.Error()
		}
		o.record(log, entry)
	}()

	for _, step := range comp.Steps {
		stepLog := log.With().Str("step", step.DisplayName()).Str("tag", step.Tag).Logger()

		if !tags.Select(step.Tag, requested) {
			stepLog.Info().Msg("not running - tag not selected")
			entry.Steps = append(entry.Steps, history.StepRecord{Name: step.DisplayName(), Tag: step.Tag, Skipped: true})
			o.countStep(metrics.StepSkipped, 0)
			continue
		}

		stepLog.Info().Msg("running")

		res, runErr := o.Runner.RunWithResult(step, comp.Root)
		entry.Steps = append(entry.Steps, history.StepRecord{
			Name:     step.DisplayName(),
			Tag:      step.Tag,
			Code:     res.Code,
			Duration: res.Duration,
		})

		if runErr != nil || res.Failed() {
			o.countStep(metrics.StepFailed, res.Duration.Seconds())
		} else {
			o.countStep(metrics.StepOK, res.Duration.Seconds())
		}

		if runErr != nil {
			var buildErr *runner.BuildError
			if errors.As(runErr, &buildErr) {
				stepLog.Error().Int("code", buildErr.Code).Msg("step failed, aborting")
			}
			o.countComponent(metrics.ComponentFailed)
			return runErr
		}

		if res.Failed() {
			stepLog.Warn().Int("code", res.Code).Msg("step failed, continuing")
		}
	}

	o.countComponent(metrics.ComponentBuilt)
	log.Info().Msg("done")

	return nil
}

// record stores the entry; a history failure never fails the build
func (o *Orchestrator) record(log zerolog.Logger, entry *history.Entry) {
	if o.History == nil {
		return
	}

	if err := o.History.Record(entry); err != nil {
		log.Warn().Err(err).Msg("failed to record build history")
	}
}

func (o *Orchestrator) countComponent(result string) {
	if o.Metrics != nil {
		o.Metrics.Component(result)
	}
}

func (o *Orchestrator) countStep(result string, seconds float64) {
	if o.Metrics != nil {
		o.Metrics.Step(result, seconds)
	}
}
