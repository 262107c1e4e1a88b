package retention

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohankatakam/kgvault/internal/snapshot"
)

func writeBackup(t *testing.T, dir, source string, ts time.Time) string {
	t.Helper()
	path := filepath.Join(dir, snapshot.FileName(source, ts))
	require.NoError(t, os.WriteFile(path, []byte(`{}`), 0644))
	return path
}

func TestList_SortsByEmbeddedTimestamp(t *testing.T) {
	dir := t.TempDir()
	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.Local)

	oldest := writeBackup(t, dir, "neo4j", base)
	newest := writeBackup(t, dir, "neo4j", base.Add(48*time.Hour))
	middle := writeBackup(t, dir, "neo4j", base.Add(24*time.Hour))

	// make mtime disagree with the embedded order
	now := time.Now()
	require.NoError(t, os.Chtimes(newest, now.Add(-time.Hour), now.Add(-time.Hour)))
	require.NoError(t, os.Chtimes(oldest, now, now))

	// noise that must be ignored
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), nil, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".neo4j_backup_20250101_120000.json.tmp-1"), nil, 0644))
	writeBackup(t, dir, "other", base.Add(72*time.Hour))

	entries, err := NewManager(dir, "neo4j", DefaultPolicy()).List()
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, newest, entries[0].Path)
	assert.Equal(t, middle, entries[1].Path)
	assert.Equal(t, oldest, entries[2].Path)

	all, err := NewManager(dir, "", DefaultPolicy()).List()
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestList_MissingDirectory(t *testing.T) {
	entries, err := NewManager(filepath.Join(t.TempDir(), "absent"), "neo4j", DefaultPolicy()).List()
	require.NoError(t, err)
	assert.Empty(t, entries)

	latest, err := NewManager(filepath.Join(t.TempDir(), "absent"), "neo4j", DefaultPolicy()).Latest()
	require.NoError(t, err)
	assert.Nil(t, latest)
}

func TestPrune_RetentionBound(t *testing.T) {
	dir := t.TempDir()
	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.Local)
	m := NewManager(dir, "neo4j", Policy{MaxSnapshots: 1})

	var last string
	for i := 0; i < 5; i++ {
		last = writeBackup(t, dir, "neo4j", base.Add(time.Duration(i)*time.Minute))
		result := m.Prune()
		assert.Empty(t, result.Errors)
	}

	entries, err := m.List()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, last, entries[0].Path)
}

func TestPrune_KeepsN(t *testing.T) {
	dir := t.TempDir()
	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.Local)
	for i := 0; i < 6; i++ {
		writeBackup(t, dir, "neo4j", base.Add(time.Duration(i)*time.Hour))
	}

	result := NewManager(dir, "neo4j", Policy{MaxSnapshots: 3}).Prune()
	assert.Len(t, result.Kept, 3)
	assert.Len(t, result.Deleted, 3)
	assert.Equal(t, 17, result.Kept[0].Timestamp.Hour())
}

func TestPrune_ZeroMaxKeepsOne(t *testing.T) {
	dir := t.TempDir()
	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.Local)
	writeBackup(t, dir, "neo4j", base)
	writeBackup(t, dir, "neo4j", base.Add(time.Second))

	m := NewManager(dir, "neo4j", Policy{MaxSnapshots: 0})
	assert.Equal(t, 1, m.Policy().MaxSnapshots)
	result := m.Prune()
	assert.Len(t, result.Kept, 1)
}

func TestPrune_DeleteFailureIsCollected(t *testing.T) {
	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("directory permissions are not enforced for this user")
	}

	dir := t.TempDir()
	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.Local)
	writeBackup(t, dir, "neo4j", base)
	writeBackup(t, dir, "neo4j", base.Add(time.Minute))

	require.NoError(t, os.Chmod(dir, 0555))
	t.Cleanup(func() { os.Chmod(dir, 0755) })

	result := NewManager(dir, "neo4j", DefaultPolicy()).Prune()
	assert.Len(t, result.Errors, 1)
	assert.Len(t, result.Kept, 1)
	assert.Empty(t, result.Deleted)
}
