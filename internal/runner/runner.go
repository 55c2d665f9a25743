// Package runner executes build steps through the system shell.
package runner

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"time"

	"github.com/Norgate-AV/abuild/internal/codes"
	"github.com/Norgate-AV/abuild/internal/config"
)

// Commander interface for testing
type Commander interface {
	CombinedOutput() ([]byte, error)
}

// BuildError is returned when a fail-fast step exits non-zero
type BuildError struct {
	Step string
	Code int
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("build step %q failed with exit code %d: %s", e.Step, e.Code, codes.GetErrorMessage(e.Code))
}

// Result describes one finished step
type Result struct {
	Step     string
	Code     int
	Output   []byte
	Duration time.Duration
}

// Failed reports whether the step exited non-zero
func (r Result) Failed() bool {
	return !codes.IsSuccess(r.Code)
}

// Runner runs step commands and copies their output to Out
type Runner struct {
	Out io.Writer

	execCommand func(name string, args ...string) Commander
}

// New creates a runner printing step output to out, or stdout when out is nil
func New(out io.Writer) *Runner {
	if out == nil {
		out = os.Stdout
	}

	return &Runner{
		Out: out,
		execCommand: func(name string, args ...string) Commander {
			return exec.Command(name, args...)
		},
	}
}

// Shell returns the interpreter and arguments used to run cmd
func Shell(cmd string) (string, []string) {
	if runtime.GOOS == "windows" {
		return "cmd", []string{"/C", cmd}
	}

	return "sh", []string{"-c", cmd}
}

// Run executes step in cwd. A non-zero exit is a *BuildError only when the
// step breaks on error.
func (r *Runner) Run(step config.Step, cwd string) error {
	_, err := r.RunWithResult(step, cwd)
	return err
}

// RunWithResult is Run that also reports the exit code, output and duration.
// It blocks until the command exits.
func (r *Runner) RunWithResult(step config.Step, cwd string) (Result, error) {
	res := Result{Step: step.DisplayName()}

	name, args := Shell(step.Cmd)
	c := r.execCommand(name, args...)
	if cmd, ok := c.(*exec.Cmd); ok {
		cmd.Dir = cwd
	}

	start := time.Now()
	out, err := c.CombinedOutput()
	res.Duration = time.Since(start)
	res.Output = out

	if len(out) > 0 {
		if _, werr := r.Out.Write(out); werr != nil {
			return res, fmt.Errorf("failed to write output of %s: %w", res.Step, werr)
		}
	}

	if err != nil {
		var exitErr interface{ ExitCode() int }
		if !errors.As(err, &exitErr) {
			return res, fmt.Errorf("failed to run %s: %w", res.Step, err)
		}

		res.Code = exitErr.ExitCode()
	}

	if res.Failed() && step.BreakOnError {
		return res, &BuildError{Step: res.Step, Code: res.Code}
	}

	return res, nil
}
