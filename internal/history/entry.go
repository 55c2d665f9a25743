package history

import "time"

// StepRecord is the outcome of one step of a component build
type StepRecord struct {
	// Name is the step display name
	Name string `json:"name"`

	// Tag the step was classified with
	Tag string `json:"tag"`

	// Code is the exit code, zero for skipped steps
	Code int `json:"code"`

	// Skipped is true when the tag filter did not select the step
	Skipped bool `json:"skipped,omitempty"`

	// Duration the command ran for
	Duration time.Duration `json:"duration"`
}

// Entry represents one component build
type Entry struct {
	// ID is assigned by the history database, increasing per record
	ID uint64 `json:"id"`

	// Component is the component path from the config
	Component string `json:"component"`

	// Hash is the directory hash the build ran against
	Hash string `json:"hash"`

	// Tags requested on the command line
	Tags []string `json:"tags,omitempty"`

	// Timestamp when the build started
	Timestamp time.Time `json:"timestamp"`

	// Steps in execution order, including skipped ones
	Steps []StepRecord `json:"steps"`

	// Success is false when a step aborted the build
	Success bool `json:"success"`

	// Error describes why the build aborted
	Error string `json:"error,omitempty"`
}
