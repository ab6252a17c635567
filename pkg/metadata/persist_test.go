package metadata

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveLoad_RoundTrip(t *testing.T) {
	s := New()
	s.Insert(FileMetadata{
		Filename: "a.txt", Owner: "alice", FileSize: 10,
		WordCount: 2, CharCount: 10, LastAccess: 100, LastModified: 200,
		IsBackup: true, // expected to NOT survive the round trip
	})
	s.Insert(FileMetadata{
		Filename: "b.txt", Owner: "bob", FileSize: 20,
		WordCount: 4, CharCount: 20, LastAccess: 300, LastModified: 400,
	})
	s.Insert(FileMetadata{
		Filename: "c.txt", Owner: "carol", FileSize: 30,
		WordCount: 6, CharCount: 30, LastAccess: 500, LastModified: 600,
	})

	path := filepath.Join(t.TempDir(), "metadata.db")
	require.NoError(t, s.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, loaded.Count())

	got, ok := loaded.Get("a.txt")
	require.True(t, ok)
	assert.Equal(t, "alice", got.Owner)
	assert.Equal(t, uint64(10), got.FileSize)
	assert.Equal(t, uint64(2), got.WordCount)
	assert.Equal(t, uint64(10), got.CharCount)
	assert.Equal(t, int64(100), got.LastAccess)
	assert.Equal(t, int64(200), got.LastModified)
	// is_backup is never persisted by the legacy format.
	assert.False(t, got.IsBackup)

	got2, ok := loaded.Get("b.txt")
	require.True(t, ok)
	assert.Equal(t, "bob", got2.Owner)
}

func TestLoad_MissingFile_ReturnsEmptyStore(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "nope.db"))
	require.NoError(t, err)
	assert.Equal(t, 0, s.Count())
}

func TestLoad_TruncatedFile_ToleratesAndKeepsPartialTable(t *testing.T) {
	s := New()
	s.Insert(FileMetadata{Filename: "a.txt", Owner: "alice", FileSize: 1})
	s.Insert(FileMetadata{Filename: "b.txt", Owner: "bob", FileSize: 2})

	path := filepath.Join(t.TempDir(), "metadata.db")
	require.NoError(t, s.Save(path))

	full, err := os.ReadFile(path)
	require.NoError(t, err)

	truncated := full[:len(full)-3]
	require.NoError(t, os.WriteFile(path, truncated, 0600))

	loaded, err := Load(path)
	require.NoError(t, err)
	// Only the last record is cut short; the first, complete record survives.
	assert.Equal(t, 1, loaded.Count())
}
