package memory

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_MissingFileIsEmpty(t *testing.T) {
	s := Open(filepath.Join(t.TempDir(), "memory.json"), DefaultCapacity, nil)
	assert.Equal(t, 0, s.Len())
}

func TestOpen_MalformedFileIsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	s := Open(path, DefaultCapacity, nil)
	assert.Equal(t, 0, s.Len())
}

func TestRecord_PersistsJSONArray(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "memory.json")
	s := Open(path, DefaultCapacity, nil)

	s.Record("first whisper")
	s.Record("second whisper")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var got []string
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, []string{"first whisper", "second whisper"}, got)
}

func TestRecord_EvictsOldestAtCapacity(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory.json")
	s := Open(path, 50, nil)
	for i := 1; i <= 51; i++ {
		s.Record(fmt.Sprintf("revelation %d", i))
	}

	entries := s.Entries()
	require.Len(t, entries, 50)
	assert.NotContains(t, entries, "revelation 1")
	assert.Contains(t, entries, "revelation 51")

	reopened := Open(path, 50, nil)
	assert.Equal(t, entries, reopened.Entries())
}

func TestOpen_TrimsOversizedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory.json")
	var entries []string
	for i := 0; i < 60; i++ {
		entries = append(entries, fmt.Sprintf("e%d", i))
	}
	data, err := json.Marshal(entries)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	s := Open(path, 50, nil)
	got := s.Entries()
	require.Len(t, got, 50)
	assert.Equal(t, "e10", got[0])
	assert.Equal(t, "e59", got[49])
}

func TestRecord_WriteFailureKeepsMemory(t *testing.T) {
	dir := t.TempDir()
	// A directory where the file should be makes every write fail.
	path := filepath.Join(dir, "memory.json")
	require.NoError(t, os.Mkdir(path, 0o755))

	s := Open(path, DefaultCapacity, nil)
	s.Record("still remembered")
	assert.Equal(t, []string{"still remembered"}, s.Entries())
}

func TestRecent(t *testing.T) {
	s := Open(filepath.Join(t.TempDir(), "memory.json"), DefaultCapacity, nil)
	for _, e := range []string{"a", "b", "c"} {
		s.Record(e)
	}
	assert.Equal(t, []string{"b", "c"}, s.Recent(2))
}
