package snapshot

import (
	"context"
	"log/slog"
	"time"

	"github.com/rohankatakam/kgvault/internal/errors"
	"github.com/rohankatakam/kgvault/internal/graph"
)

// CaptureOptions controls snapshot metadata
type CaptureOptions struct {
	Reason string
	Source string

	// Now overrides the capture clock (tests)
	Now func() time.Time
}

// Capture reads the whole graph into a Snapshot. The store is only read.
//
// Declared counts are read first and compared against the streamed rows; a
// difference means the graph changed during capture or a query lost rows,
// and is reported as a CaptureError.
func Capture(ctx context.Context, store graph.Store, opts CaptureOptions) (*Snapshot, error) {
	logger := slog.Default().With("component", "snapshot")
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	startTime := time.Now()

	counts, err := store.Counts(ctx)
	if err != nil {
		return nil, errors.CaptureError(err, "failed to read graph counts")
	}

	keys := make(map[string]int64, counts.Nodes)
	nodes := make([]NodeRecord, 0, counts.Nodes)
	err = store.ScanNodes(ctx, func(n graph.Node) error {
		// a snapshot node must carry a label to be recreated
		if len(n.Labels) == 0 {
			return errors.CaptureErrorf("node %s has no labels and cannot be restored", n.ElementID)
		}
		props, err := FromProperties(n.Properties)
		if err != nil {
			if e, ok := err.(*errors.Error); ok {
				return e.WithContext("labels", n.Labels)
			}
			return err
		}
		key := int64(len(nodes))
		keys[n.ElementID] = key
		nodes = append(nodes, NodeRecord{
			Key:        key,
			Labels:     append([]string(nil), n.Labels...),
			Properties: props,
		})
		return nil
	})
	if err != nil {
		switch errors.GetType(err) {
		case errors.ErrorTypeSerialization, errors.ErrorTypeCapture:
			return nil, err
		}
		return nil, errors.CaptureError(err, "failed to read nodes")
	}

	rels := make([]RelationshipRecord, 0, counts.Relationships)
	err = store.ScanRelationships(ctx, func(r graph.Relationship) error {
		startKey, ok := keys[r.StartID]
		if !ok {
			return errors.CaptureErrorf("relationship %s (%s) starts at uncaptured node %s", r.ElementID, r.Type, r.StartID)
		}
		endKey, ok := keys[r.EndID]
		if !ok {
			return errors.CaptureErrorf("relationship %s (%s) ends at uncaptured node %s", r.ElementID, r.Type, r.EndID)
		}
		props, err := FromProperties(r.Properties)
		if err != nil {
			if e, ok := err.(*errors.Error); ok {
				return e.WithContext("relationship_type", r.Type)
			}
			return err
		}
		rels = append(rels, RelationshipRecord{
			Type:       r.Type,
			Properties: props,
			StartKey:   startKey,
			EndKey:     endKey,
		})
		return nil
	})
	if err != nil {
		switch errors.GetType(err) {
		case errors.ErrorTypeSerialization, errors.ErrorTypeCapture:
			return nil, err
		}
		return nil, errors.CaptureError(err, "failed to read relationships")
	}

	if int64(len(nodes)) != counts.Nodes {
		return nil, errors.CaptureErrorf("node count changed during capture: declared %d, read %d", counts.Nodes, len(nodes))
	}
	if int64(len(rels)) != counts.Relationships {
		return nil, errors.CaptureErrorf("relationship count changed during capture: declared %d, read %d", counts.Relationships, len(rels))
	}

	at := now()
	snap := &Snapshot{
		Metadata: Metadata{
			Timestamp:         at.Format(TimestampLayout),
			Datetime:          at.Format(time.RFC3339),
			Reason:            opts.Reason,
			NodeCount:         int64(len(nodes)),
			RelationshipCount: int64(len(rels)),
			Version:           FormatVersion,
			BackupType:        BackupTypeFull,
			Source:            opts.Source,
		},
		Data: Data{
			Nodes:         nodes,
			Relationships: rels,
			Statistics:    ComputeStatistics(nodes, rels),
		},
	}

	logger.Info("graph captured",
		"nodes", len(nodes),
		"relationships", len(rels),
		"duration_ms", time.Since(startTime).Milliseconds())
	return snap, nil
}
