package state

import "fmt"

// HashFunc computes the content hash of a component directory
type HashFunc func(dir string) (string, error)

// Decision is the outcome of comparing a component against the store.
// Commit persists the hash computed by Begin; callers defer it so the hash is
// recorded whether or not the build that follows succeeds.
type Decision struct {
	// NeedRebuild is true for a first build or a changed hash
	NeedRebuild bool

	// Hash is the digest computed when the decision was made
	Hash string

	// Previous is the stored hash, empty for a first build
	Previous string

	name      string
	store     *Store
	committed bool
}

// Begin hashes dir once and compares it with the entry stored under name
func (s *Store) Begin(name, dir string, hash HashFunc) (*Decision, error) {
	h, err := hash(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to hash %s: %w", dir, err)
	}

	d := &Decision{
		NeedRebuild: true,
		Hash:        h,
		name:        name,
		store:       s,
	}

	if prev, ok := s.state.Lookup(name); ok {
		d.Previous = prev.Hash
		d.NeedRebuild = prev.Hash != h
	}

	return d, nil
}

// Commit records the decision's hash and flushes the state file. Unchanged
// components leave the file untouched. Calling Commit more than once is a
// no-op.
func (d *Decision) Commit() error {
	if d.committed || !d.NeedRebuild {
		return nil
	}
	d.committed = true

	d.store.state.set(d.name, d.Hash)

	return d.store.flush()
}
