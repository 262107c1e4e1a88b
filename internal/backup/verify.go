package backup

import (
	"context"

	"github.com/rohankatakam/kgvault/internal/errors"
	"github.com/rohankatakam/kgvault/internal/graph"
	"github.com/rohankatakam/kgvault/internal/policy"
	"github.com/rohankatakam/kgvault/internal/restore"
	"github.com/rohankatakam/kgvault/internal/snapshot"
)

// Verify decodes a snapshot file and loads it into an empty in-memory graph
// to prove it can be restored. The live store is not touched.
func Verify(ctx context.Context, path string, opts restore.Options) (*VerifyResult, error) {
	snap, err := snapshot.ReadFile(path)
	if err != nil {
		return nil, err
	}

	mem := graph.NewMemoryStore()
	opts.BatchesPerSecond = 0
	report, err := restore.New(mem, opts).Full(ctx, snap)
	if err != nil {
		return nil, err
	}

	counts, err := mem.Counts(ctx)
	if err != nil {
		return nil, err
	}
	if counts.Nodes != snap.Metadata.NodeCount {
		return nil, errors.CorruptSnapshotErrorf("loaded %d nodes, metadata declares %d", counts.Nodes, snap.Metadata.NodeCount)
	}

	stats := snap.Data.Statistics
	if stats == nil {
		stats = snapshot.ComputeStatistics(snap.Data.Nodes, snap.Data.Relationships)
	}

	return &VerifyResult{
		File:                 path,
		Metadata:             snap.Metadata,
		Loaded:               policy.Stats{Nodes: counts.Nodes, Relationships: counts.Relationships},
		SkippedRelationships: report.RelationshipsSkipped,
		Statistics:           stats,
	}, nil
}
