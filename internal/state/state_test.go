package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixedHash returns a HashFunc that always yields hash
func fixedHash(hash string) HashFunc {
	return func(string) (string, error) {
		return hash, nil
	}
}

func readStateFile(t *testing.T, path string) FullState {
	t.Helper()

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var st FullState
	require.NoError(t, json.Unmarshal(data, &st))

	return st
}

func TestOpen_MissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFile)

	store, err := Open(path)
	require.NoError(t, err)
	assert.Empty(t, store.State().Components)
	assert.NoFileExists(t, path, "opening should not create the file")
}

func TestOpen_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFile)
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := Open(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse state file")
}

func TestBegin_FirstBuild(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFile)
	store, err := Open(path)
	require.NoError(t, err)

	d, err := store.Begin("lib", "/src/lib", fixedHash("aaa"))
	require.NoError(t, err)
	assert.True(t, d.NeedRebuild)
	assert.Equal(t, "aaa", d.Hash)
	assert.Empty(t, d.Previous)

	require.NoError(t, d.Commit())

	st := readStateFile(t, path)
	assert.Equal(t, []ComponentState{{Name: "lib", Hash: "aaa"}}, st.Components)
	_, err = time.Parse(time.RFC3339, st.Timestamp)
	assert.NoError(t, err, "timestamp should be ISO-8601")
}

func TestBegin_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFile)
	store, err := Open(path)
	require.NoError(t, err)

	d, err := store.Begin("lib", "/src/lib", fixedHash("aaa"))
	require.NoError(t, err)
	require.NoError(t, d.Commit())

	// A fresh store sees the persisted hash
	reloaded, err := Open(path)
	require.NoError(t, err)

	entry, ok := reloaded.Lookup("lib")
	require.True(t, ok)
	assert.Equal(t, "aaa", entry.Hash)

	d, err = reloaded.Begin("lib", "/src/lib", fixedHash("aaa"))
	require.NoError(t, err)
	assert.False(t, d.NeedRebuild)
	assert.Equal(t, "aaa", d.Previous)
}

func TestCommit_UnchangedDoesNotWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFile)
	store, err := Open(path)
	require.NoError(t, err)

	d, err := store.Begin("lib", "/src/lib", fixedHash("aaa"))
	require.NoError(t, err)
	require.NoError(t, d.Commit())

	// Replace the file contents with a marker; an unchanged decision must not
	// rewrite it
	require.NoError(t, os.WriteFile(path, []byte("marker"), 0o644))

	d, err = store.Begin("lib", "/src/lib", fixedHash("aaa"))
	require.NoError(t, err)
	require.False(t, d.NeedRebuild)
	require.NoError(t, d.Commit())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "marker", string(data))
}

func TestCommit_ReplacesEntry(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFile)
	store, err := Open(path)
	require.NoError(t, err)

	for _, h := range []string{"aaa", "bbb", "ccc"} {
		d, err := store.Begin("lib", "/src/lib", fixedHash(h))
		require.NoError(t, err)
		assert.True(t, d.NeedRebuild, "hash %s should need a rebuild", h)
		require.NoError(t, d.Commit())
	}

	d, err := store.Begin("app", "/src/app", fixedHash("zzz"))
	require.NoError(t, err)
	require.NoError(t, d.Commit())

	st := readStateFile(t, path)
	assert.Equal(t, []ComponentState{
		{Name: "lib", Hash: "ccc"},
		{Name: "app", Hash: "zzz"},
	}, st.Components)
}

func TestCommit_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFile)
	store, err := Open(path)
	require.NoError(t, err)

	d, err := store.Begin("lib", "/src/lib", fixedHash("aaa"))
	require.NoError(t, err)
	require.NoError(t, d.Commit())
	require.NoError(t, d.Commit())

	assert.Len(t, readStateFile(t, path).Components, 1)
}

func TestBegin_HashError(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), DefaultFile))
	require.NoError(t, err)

	_, err = store.Begin("lib", "/src/lib", func(string) (string, error) {
		return "", fmt.Errorf("disk on fire")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk on fire")
}

func TestCommit_PersistFailureKeepsDecision(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")

	store, err := Open(filepath.Join(sub, DefaultFile))
	require.NoError(t, err)

	// The state file's directory becomes a regular file, so the flush fails
	require.NoError(t, os.WriteFile(sub, []byte("x"), 0o644))

	d, err := store.Begin("lib", "/src/lib", fixedHash("aaa"))
	require.NoError(t, err)

	assert.Error(t, d.Commit())
	assert.True(t, d.NeedRebuild, "the decision is not retracted")
}

func TestStore_ForgetAndClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFile)
	store, err := Open(path)
	require.NoError(t, err)

	for _, name := range []string{"a", "b"} {
		d, err := store.Begin(name, name, fixedHash(name))
		require.NoError(t, err)
		require.NoError(t, d.Commit())
	}

	removed, err := store.Forget("a")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = store.Forget("missing")
	require.NoError(t, err)
	assert.False(t, removed)

	assert.Equal(t, []ComponentState{{Name: "b", Hash: "b"}}, readStateFile(t, path).Components)

	require.NoError(t, store.Clear())
	assert.Empty(t, readStateFile(t, path).Components)
}

func TestLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFile)

	unlock, err := Lock(path)
	require.NoError(t, err)

	_, err = Lock(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "locked by another abuild process")

	require.NoError(t, unlock())

	unlock, err = Lock(path)
	require.NoError(t, err)
	require.NoError(t, unlock())
}

// A second process cannot read the state while the first holds the lock, so
// its later read sees the first process's entries.
func TestLock_SerializesReadModifyWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFile)

	unlockB, err := Lock(path)
	require.NoError(t, err)

	_, err = Lock(path)
	require.Error(t, err, "A must wait for B before reading")

	storeB, err := Open(path)
	require.NoError(t, err)
	d, err := storeB.Begin("lib", "lib", fixedHash("aaa"))
	require.NoError(t, err)
	require.NoError(t, d.Commit())
	require.NoError(t, unlockB())

	unlockA, err := Lock(path)
	require.NoError(t, err)
	defer unlockA()

	storeA, err := Open(path)
	require.NoError(t, err)
	d, err = storeA.Begin("app", "app", fixedHash("aaa"))
	require.NoError(t, err)
	require.NoError(t, d.Commit())

	assert.Equal(t, []ComponentState{
		{Name: "lib", Hash: "aaa"},
		{Name: "app", Hash: "aaa"},
	}, readStateFile(t, path).Components)
}

func TestOpen_TimestampWithoutOffset(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFile)
	content := `{"components": [{"name": "lib", "hash": "aaa"}], "timestamp": "2024-05-01T12:30:00.123456"}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	store, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, "2024-05-01T12:30:00.123456", store.State().Timestamp)

	d, err := store.Begin("lib", "lib", fixedHash("aaa"))
	require.NoError(t, err)
	assert.False(t, d.NeedRebuild)
}
