// Package history keeps a log of component builds.
//
// Each time the orchestrator runs a component's steps it records an Entry
// with the directory hash, the step exit codes and whether the build
// succeeded. The build state file only knows the latest hash per component;
// the history answers "what ran, and did it pass" after the fact.
//
// Entries are JSON documents in a BoltDB bucket keyed by a big-endian
// sequence number, so iteration order is insertion order.
package history

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"github.com/Norgate-AV/abuild/internal/config"
)

const (
	// bucketName is the BoltDB bucket name for build entries
	bucketName = "builds"

	dbName = "history.db"
)

// History stores build entries using BoltDB
type History struct {
	db   *bbolt.DB
	root string
}

// Open creates or opens the history database in dir, or in the default
// history directory under the working directory when dir is empty
func Open(dir string) (*History, error) {
	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}

		dir = filepath.Join(cwd, config.DefaultHistoryDir)
	}

	// Ensure history directory exists
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	db, err := bbolt.Open(filepath.Join(dir, dbName), 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create history bucket: %w", err)
	}

	return &History{
		db:   db,
		root: dir,
	}, nil
}

// Close closes the history database
func (h *History) Close() error {
	if h.db != nil {
		return h.db.Close()
	}

	return nil
}

// Record appends an entry and sets its ID
func (h *History) Record(entry *Entry) error {
	err := h.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))

		id, err := b.NextSequence()
		if err != nil {
			return err
		}
		entry.ID = id

		data, err := json.Marshal(entry)
		if err != nil {
			return err
		}

		return b.Put(itob(id), data)
	})
	if err != nil {
		return fmt.Errorf("failed to record build: %w", err)
	}

	return nil
}

// List returns up to limit entries, newest first. A limit of zero or less
// returns every entry.
func (h *History) List(limit int) ([]Entry, error) {
	var entries []Entry

	err := h.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(bucketName)).Cursor()

		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(entries) >= limit {
				break
			}

			var e Entry
			if err := json.Unmarshal(v, &e); err != nil {
				return fmt.Errorf("corrupt entry %d: %w", binary.BigEndian.Uint64(k), err)
			}

			entries = append(entries, e)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return entries, nil
}

// Last returns the most recent entry for a component, or nil
func (h *History) Last(component string) (*Entry, error) {
	var found *Entry

	err := h.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(bucketName)).Cursor()

		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			var e Entry
			if err := json.Unmarshal(v, &e); err != nil {
				return err
			}

			if e.Component == component {
				found = &e
				return nil
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return found, nil
}

// Clear removes all entries
func (h *History) Clear() error {
	return h.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket([]byte(bucketName)); err != nil {
			return err
		}

		_, err := tx.CreateBucket([]byte(bucketName))
		return err
	})
}

// Stats returns the number of entries and how many of them failed
func (h *History) Stats() (int, int, error) {
	var count, failed int

	err := h.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).ForEach(func(_, v []byte) error {
			var e Entry
			if err := json.Unmarshal(v, &e); err != nil {
				return err
			}

			count++
			if !e.Success {
				failed++
			}

			return nil
		})
	})
	if err != nil {
		return 0, 0, err
	}

	return count, failed, nil
}

func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)

	return b
}
