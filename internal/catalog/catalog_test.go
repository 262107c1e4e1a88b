package catalog

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := Open(filepath.Join(t.TempDir(), FileName))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestRecordAndRecent(t *testing.T) {
	c := openTestCatalog(t)

	for i, kind := range []Kind{KindCreated, KindPruned, KindRestored} {
		e, err := c.Record(Event{Kind: kind, File: "neo4j_backup_20250101_120000.json", Nodes: int64(i)})
		require.NoError(t, err)
		assert.NotEmpty(t, e.ID)
		assert.False(t, e.At.IsZero())
	}

	events, err := c.Recent(0)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, KindRestored, events[0].Kind, "newest first")
	assert.Equal(t, KindCreated, events[2].Kind)

	limited, err := c.Recent(2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	n, err := c.Count()
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestReopenKeepsHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)

	c, err := Open(path)
	require.NoError(t, err)
	_, err = c.Record(Event{Kind: KindFailed, Error: "neo4j unreachable"})
	require.NoError(t, err)
	require.NoError(t, c.Close())

	c, err = Open(path)
	require.NoError(t, err)
	defer c.Close()

	events, err := c.Recent(10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "neo4j unreachable", events[0].Error)
}

func TestNilCatalogIsNoop(t *testing.T) {
	var c *Catalog

	_, err := c.Record(Event{Kind: KindCreated})
	assert.NoError(t, err)

	events, err := c.Recent(5)
	assert.NoError(t, err)
	assert.Empty(t, events)
	assert.NoError(t, c.Close())
	assert.Equal(t, "", c.Path())
}
