// Package fingerprint computes a deterministic content hash for a component
// directory.
//
// Files are visited in lexicographic order of their slash-separated path
// relative to the root, so the digest does not depend on directory listing
// order or on the platform path separator. Only file contents are hashed.
//
// Each directory may carry an IgnoreFile with one glob pattern per line.
// Patterns apply to the declaring directory and everything below it, except
// patterns written with a leading "/" which apply to the declaring directory
// only. Ignored directories are not descended into.
package fingerprint

import (
	"bufio"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// IgnoreFile is the per-directory ignore pattern file name
const IgnoreFile = ".abuildignore"

// HashDirectory returns the hex encoded digest of all non-ignored files
// under root
func HashDirectory(root string) (string, error) {
	files, err := Walk(root)
	if err != nil {
		return "", err
	}

	h := md5.New()
	for _, rel := range files {
		if err := hashFile(h, filepath.Join(root, filepath.FromSlash(rel))); err != nil {
			return "", err
		}
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// Walk returns the sorted slash-separated relative paths of every file
// HashDirectory would include
func Walk(root string) ([]string, error) {
	var files []string
	if err := walk(root, "", nil, &files); err != nil {
		return nil, err
	}

	sort.Strings(files)

	return files, nil
}

func walk(dir, rel string, inherited []string, files *[]string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to list %s: %w", dir, err)
	}

	local, recursive, err := readIgnoreFile(filepath.Join(dir, IgnoreFile))
	if err != nil {
		return err
	}

	// patterns handed to subdirectories
	below := append(append([]string{}, inherited...), recursive...)
	// patterns in effect for this directory's entries
	active := append(append([]string{}, below...), local...)

	for _, entry := range entries {
		name := entry.Name()
		if name == IgnoreFile {
			continue
		}

		relPath := path.Join(rel, name)
		if ignored(name, relPath, active) {
			continue
		}

		full := filepath.Join(dir, name)

		isDir := entry.IsDir()
		if entry.Type()&fs.ModeSymlink != 0 {
			info, err := os.Stat(full)
			if err != nil {
				return fmt.Errorf("failed to stat %s: %w", full, err)
			}

			// symlinked directories are not followed
			if info.IsDir() {
				continue
			}
		}

		if isDir {
			if err := walk(full, relPath, below, files); err != nil {
				return err
			}
			continue
		}

		*files = append(*files, relPath)
	}

	return nil
}

// readIgnoreFile splits the patterns of an ignore file into those anchored
// to the declaring directory and those inherited by subdirectories.
// A missing file yields no patterns.
func readIgnoreFile(name string) (local, recursive []string, err error) {
	f, err := os.Open(name)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s: %w", name, err)
	}
	defer f.Close()

	s := bufio.NewScanner(f)
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			local = append(local, strings.TrimPrefix(line, "/"))
		} else {
			recursive = append(recursive, line)
		}
	}

	if err := s.Err(); err != nil {
		return nil, nil, fmt.Errorf("failed to read %s: %w", name, err)
	}

	return local, recursive, nil
}

// ignored reports whether name, or any path suffix of relPath, matches one
// of the patterns
func ignored(name, relPath string, patterns []string) bool {
	for _, p := range patterns {
		if ok, _ := path.Match(p, name); ok {
			return true
		}

		if matchSuffix(p, relPath) {
			return true
		}
	}

	return false
}

func matchSuffix(pattern, relPath string) bool {
	for s := relPath; ; {
		if ok, _ := path.Match(pattern, s); ok {
			return true
		}

		i := strings.IndexByte(s, '/')
		if i < 0 {
			return false
		}

		s = s[i+1:]
	}
}

func hashFile(w io.Writer, name string) error {
	f, err := os.Open(name)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", name, err)
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("failed to hash %s: %w", name, err)
	}

	return nil
}
