// Package state persists the last known content hash of every component.
//
// The state file is JSON:
//
//	{"components": [{"name": "<component path>", "hash": "<hex digest>"}],
//	 "timestamp": "<ISO-8601>"}
//
// A Store is loaded once per run and flushed to disk after every component
// decision that changes it.
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

const (
	// DefaultFile is the default state file name
	DefaultFile = ".abuild_state"

	// TempPrefix starts the name of temp files written next to the state file
	TempPrefix = ".abuild-state-"
)

// ComponentState is the last hash recorded for one component path
type ComponentState struct {
	Name string `json:"name"`
	Hash string `json:"hash"`
}

// FullState is the persisted record of every component
type FullState struct {
	Components []ComponentState `json:"components"`

	// Timestamp is informational; any ISO-8601 text is accepted on load
	Timestamp string `json:"timestamp"`
}

// Lookup returns the entry recorded for the component path
func (f *FullState) Lookup(name string) (ComponentState, bool) {
	for _, c := range f.Components {
		if c.Name == name {
			return c, true
		}
	}

	return ComponentState{}, false
}

// set replaces the entry for name, or appends one
func (f *FullState) set(name, hash string) {
	for i := range f.Components {
		if f.Components[i].Name == name {
			f.Components[i].Hash = hash
			return
		}
	}

	f.Components = append(f.Components, ComponentState{Name: name, Hash: hash})
}

func (f *FullState) remove(name string) bool {
	for i := range f.Components {
		if f.Components[i].Name == name {
			f.Components = append(f.Components[:i], f.Components[i+1:]...)
			return true
		}
	}

	return false
}

// Store owns the in-memory state of one state file
type Store struct {
	path  string
	state *FullState
}

// Open loads the state file at path. A missing file yields an empty state.
func Open(path string) (*Store, error) {
	s := &Store{path: path}

	st, err := s.read()
	if err != nil {
		return nil, err
	}

	s.state = st

	return s, nil
}

// Path returns the state file location
func (s *Store) Path() string {
	return s.path
}

// State returns a copy of the current in-memory state
func (s *Store) State() FullState {
	st := FullState{Timestamp: s.state.Timestamp}
	st.Components = append([]ComponentState{}, s.state.Components...)

	return st
}

// Lookup returns the entry recorded for the component path
func (s *Store) Lookup(name string) (ComponentState, bool) {
	return s.state.Lookup(name)
}

func (s *Store) read() (*FullState, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return &FullState{Timestamp: now()}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}

	var st FullState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("failed to parse state file %s: %w", s.path, err)
	}

	return &st, nil
}

// flush writes the in-memory state through a temp file and rename
func (s *Store) flush() error {
	s.state.Timestamp = now()

	data, err := json.MarshalIndent(s.state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, TempPrefix+"*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("failed to write state: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("failed to sync state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close state: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("failed to replace state file: %w", err)
	}

	return nil
}

// Forget drops the entry for a component path so its next build runs.
// It reports whether an entry existed.
func (s *Store) Forget(name string) (bool, error) {
	if !s.state.remove(name) {
		return false, nil
	}

	return true, s.flush()
}

// Clear drops every entry
func (s *Store) Clear() error {
	s.state.Components = nil
	return s.flush()
}

// Lock takes an advisory lock next to the state file at path so concurrent
// abuild processes do not interleave their read-modify-write cycles. Take it
// before Open so the state read happens under the lock.
func Lock(path string) (func() error, error) {
	fl := flock.New(path + ".lock")

	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to lock state file: %w", err)
	}

	if !locked {
		return nil, fmt.Errorf("state file %s is locked by another abuild process", path)
	}

	return fl.Unlock, nil
}

func now() string {
	return time.Now().Format(time.RFC3339)
}
