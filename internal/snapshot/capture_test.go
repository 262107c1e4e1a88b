package snapshot

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohankatakam/kgvault/internal/errors"
	"github.com/rohankatakam/kgvault/internal/graph"
)

func TestCapture(t *testing.T) {
	snap := captureSample(t)

	assert.Equal(t, "20250314_092653", snap.Metadata.Timestamp)
	assert.Equal(t, "test", snap.Metadata.Reason)
	assert.Equal(t, "neo4j", snap.Metadata.Source)
	assert.Equal(t, FormatVersion, snap.Metadata.Version)
	assert.Equal(t, BackupTypeFull, snap.Metadata.BackupType)
	assert.Equal(t, int64(4), snap.Metadata.NodeCount)
	assert.Equal(t, int64(3), snap.Metadata.RelationshipCount)

	// keys are capture ordinals and endpoints point at them
	byKey := make(map[int64]NodeRecord)
	for i, n := range snap.Data.Nodes {
		assert.Equal(t, int64(i), n.Key)
		byKey[n.Key] = n
	}
	uses := snap.Data.Relationships[0]
	assert.Equal(t, "USES_PATTERN", uses.Type)
	assert.True(t, byKey[uses.StartKey].Properties["name"].Equal(String("read_tag")))
	assert.True(t, byKey[uses.EndKey].Properties["name"].Equal(String("polling")))

	require.NotNil(t, snap.Data.Statistics)
	assert.Equal(t, int64(2), snap.Data.Statistics.Labels["Pattern"])
	assert.Equal(t, int64(1), snap.Data.Statistics.RelationshipTypes["CALLS"])
}

// skewedStore reports counts that differ from what it streams
type skewedStore struct {
	graph.Store
	counts graph.Counts
}

func (s skewedStore) Counts(ctx context.Context) (graph.Counts, error) { return s.counts, nil }

func TestCapture_CountMismatch(t *testing.T) {
	store := skewedStore{Store: sampleStore(t), counts: graph.Counts{Nodes: 5, Relationships: 3}}

	_, err := Capture(context.Background(), store, CaptureOptions{Now: fixedClock})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrCapture)
}

// danglingStore streams a relationship whose end node was never streamed
type danglingStore struct {
	*graph.MemoryStore
}

func (s danglingStore) ScanRelationships(ctx context.Context, fn func(graph.Relationship) error) error {
	return fn(graph.Relationship{ElementID: "r9", Type: "CALLS", StartID: "f1", EndID: "ghost"})
}

func (s danglingStore) Counts(ctx context.Context) (graph.Counts, error) {
	c, err := s.MemoryStore.Counts(ctx)
	c.Relationships = 1
	return c, err
}

func TestCapture_DanglingEndpoint(t *testing.T) {
	store := danglingStore{MemoryStore: sampleStore(t)}

	_, err := Capture(context.Background(), store, CaptureOptions{Now: fixedClock})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrCapture)
	assert.Contains(t, err.Error(), "ghost")
}

func TestCapture_UnrepresentableProperty(t *testing.T) {
	store := graph.NewMemoryStore()
	require.NoError(t, store.Load([]graph.Node{
		{ElementID: "n", Labels: []string{"Template"}, Properties: map[string]any{"blob": []byte("x")}},
	}, nil))

	_, err := Capture(context.Background(), store, CaptureOptions{Now: fixedClock})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrSerialization)
}

func TestCapture_EmptyGraph(t *testing.T) {
	snap, err := Capture(context.Background(), graph.NewMemoryStore(), CaptureOptions{Now: fixedClock})
	require.NoError(t, err)
	assert.Zero(t, snap.Metadata.NodeCount)

	data, err := Marshal(snap)
	require.NoError(t, err)
	decoded, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Empty(t, decoded.Data.Nodes)
}

func TestCapture_UnlabeledNode(t *testing.T) {
	store := sampleStore(t)
	require.NoError(t, store.Load([]graph.Node{{ElementID: "bare", Labels: nil}}, nil))

	_, err := Capture(context.Background(), store, CaptureOptions{Now: fixedClock})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrCapture)
	assert.Contains(t, err.Error(), "bare")
}
