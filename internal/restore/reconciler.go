// Package restore applies snapshots to a live graph store.
//
// Full restores replace the whole graph inside one write transaction.
// Selective restores only add what is missing and never delete. Both resolve
// relationship endpoints through snapshot node keys, never through store ids.
package restore

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/rohankatakam/kgvault/internal/errors"
	"github.com/rohankatakam/kgvault/internal/graph"
	"github.com/rohankatakam/kgvault/internal/snapshot"
)

// Options tune how writes are issued
type Options struct {
	Batches graph.BatchConfig

	// BatchesPerSecond throttles write batches; 0 means unlimited
	BatchesPerSecond float64
}

// DefaultOptions returns unthrottled default batch sizes
func DefaultOptions() Options {
	return Options{Batches: graph.DefaultBatchConfig()}
}

// Reconciler applies snapshots to a store. The caller must ensure no other
// writer uses the store while a restore runs.
type Reconciler struct {
	store   graph.Store
	opts    Options
	limiter *rate.Limiter
	logger  *slog.Logger
}

// New creates a Reconciler for store
func New(store graph.Store, opts Options) *Reconciler {
	if opts.Batches.NodeBatchSize <= 0 || opts.Batches.RelationshipBatchSize <= 0 {
		defaults := graph.DefaultBatchConfig()
		if opts.Batches.NodeBatchSize <= 0 {
			opts.Batches.NodeBatchSize = defaults.NodeBatchSize
		}
		if opts.Batches.RelationshipBatchSize <= 0 {
			opts.Batches.RelationshipBatchSize = defaults.RelationshipBatchSize
		}
	}

	var limiter *rate.Limiter
	if opts.BatchesPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.BatchesPerSecond), 1)
	}

	return &Reconciler{
		store:   store,
		opts:    opts,
		limiter: limiter,
		logger:  slog.Default().With("component", "restore"),
	}
}

// Full deletes everything in the store and loads the snapshot.
//
// Relationships whose endpoint keys do not resolve to a loaded node are
// skipped, counted and reported as warnings; they do not fail the restore.
// A failed write returns a RestoreError together with the report of what
// had been attempted.
func (r *Reconciler) Full(ctx context.Context, snap *snapshot.Snapshot) (*Report, error) {
	start := time.Now()
	var report *Report

	err := r.store.Write(ctx, func(w graph.Writer) error {
		// The store may retry this function, so start from a clean report
		report = &Report{Mode: ModeFull}

		deleted, err := w.DeleteAll(ctx)
		if err != nil {
			return fmt.Errorf("clear graph: %w", err)
		}
		report.NodesDeleted = deleted.NodesDeleted
		report.RelationshipsDeleted = deleted.RelationshipsDeleted

		keyToID, err := r.createNodes(ctx, w, snap.Data.Nodes, report)
		if err != nil {
			return err
		}

		specs := make([]graph.RelationshipSpec, 0, len(snap.Data.Relationships))
		for i, rel := range snap.Data.Relationships {
			spec, ok := resolve(rel, keyToID)
			if !ok {
				report.RelationshipsSkipped++
				report.warn("relationship %d (%s) skipped: endpoint %d -> %d not in snapshot", i, rel.Type, rel.StartKey, rel.EndKey)
				continue
			}
			specs = append(specs, spec)
		}
		return r.createRelationships(ctx, w, specs, report)
	})

	return r.finish(report, start, err, ModeFull)
}

// Selective merges the snapshot into the live graph without deleting.
//
// Snapshot nodes carrying any preserved label are skipped (the live copy
// wins) but still resolve to a live node of the same identity so that
// relationships can attach to it. Other snapshot nodes are created unless
// their identity already exists. A relationship is created only if both
// endpoints resolve and no relationship of the same type already connects
// the same ordered pair.
func (r *Reconciler) Selective(ctx context.Context, snap *snapshot.Snapshot, preserve []string, ident IdentityPolicy) (*Report, error) {
	start := time.Now()

	live, err := r.indexLiveGraph(ctx, ident)
	if err != nil {
		return &Report{Mode: ModeSelective, Duration: time.Since(start)},
			errors.RestoreError(err, "failed to read live graph")
	}

	preserved := make(map[string]bool, len(preserve))
	for _, l := range preserve {
		preserved[l] = true
	}

	var report *Report
	err = r.store.Write(ctx, func(w graph.Writer) error {
		report = &Report{Mode: ModeSelective}
		keyToID := make(map[int64]string, len(snap.Data.Nodes))

		// snapshot keys waiting for a node created in this run, by identity
		pending := make(map[string][]int64)
		var toCreate []snapshot.NodeRecord

		for _, n := range snap.Data.Nodes {
			identity := ident.Identity(n.Labels, n.Properties)
			liveID, exists := live.nodes[identity]

			if hasAny(n.Labels, preserved) {
				report.NodesPreserved++
				if exists {
					keyToID[n.Key] = liveID
				}
				continue
			}
			if exists {
				report.NodesMatched++
				keyToID[n.Key] = liveID
				continue
			}
			if keys, queued := pending[identity]; queued {
				// same entity twice in the snapshot
				report.NodesMatched++
				pending[identity] = append(keys, n.Key)
				continue
			}
			pending[identity] = []int64{n.Key}
			toCreate = append(toCreate, n)
		}

		created, err := r.createNodes(ctx, w, toCreate, report)
		if err != nil {
			return err
		}
		for _, n := range toCreate {
			id := created[n.Key]
			for _, key := range pending[ident.Identity(n.Labels, n.Properties)] {
				keyToID[key] = id
			}
		}

		existing := make(map[string]bool, len(live.relationships))
		for k := range live.relationships {
			existing[k] = true
		}

		var specs []graph.RelationshipSpec
		for i, rel := range snap.Data.Relationships {
			spec, ok := resolve(rel, keyToID)
			if !ok {
				report.RelationshipsSkipped++
				report.warn("relationship %d (%s) skipped: endpoint %d -> %d has no live or restored node", i, rel.Type, rel.StartKey, rel.EndKey)
				continue
			}
			key := relationshipKey(spec.StartID, spec.Type, spec.EndID)
			if existing[key] {
				report.RelationshipsDuplicate++
				continue
			}
			existing[key] = true
			specs = append(specs, spec)
		}
		return r.createRelationships(ctx, w, specs, report)
	})

	return r.finish(report, start, err, ModeSelective)
}

func (r *Reconciler) finish(report *Report, start time.Time, err error, mode Mode) (*Report, error) {
	if report == nil {
		report = &Report{Mode: mode}
	}
	report.Duration = time.Since(start)

	if err != nil {
		r.logger.Error("restore failed",
			"mode", mode,
			"nodes_created", report.NodesCreated,
			"relationships_created", report.RelationshipsCreated,
			"error", err)
		return report, errors.RestoreError(err, fmt.Sprintf("%s restore failed", mode)).
			WithContext("nodes_attempted", report.NodesCreated).
			WithContext("relationships_attempted", report.RelationshipsCreated).
			WithContext("relationships_skipped", report.RelationshipsSkipped)
	}

	report.Committed = true
	for _, w := range report.Warnings {
		r.logger.Warn(w)
	}
	if report.DroppedWarnings > 0 {
		r.logger.Warn("further restore warnings suppressed", "count", report.DroppedWarnings)
	}
	r.logger.Info("restore complete",
		"mode", mode,
		"nodes_deleted", report.NodesDeleted,
		"nodes_created", report.NodesCreated,
		"nodes_matched", report.NodesMatched,
		"nodes_preserved", report.NodesPreserved,
		"relationships_created", report.RelationshipsCreated,
		"relationships_duplicate", report.RelationshipsDuplicate,
		"relationships_skipped", report.RelationshipsSkipped,
		"duration_ms", report.Duration.Milliseconds())
	return report, nil
}

// createNodes creates records in batches and returns snapshot key -> element id
func (r *Reconciler) createNodes(ctx context.Context, w graph.Writer, nodes []snapshot.NodeRecord, report *Report) (map[int64]string, error) {
	keyToID := make(map[int64]string, len(nodes))
	for _, c := range graph.Chunks(len(nodes), r.opts.Batches.NodeBatchSize) {
		if err := r.wait(ctx); err != nil {
			return nil, err
		}

		batch := nodes[c[0]:c[1]]
		specs := make([]graph.NodeSpec, len(batch))
		for i, n := range batch {
			specs[i] = graph.NodeSpec{
				Labels:     n.Labels,
				Properties: snapshot.ToProperties(n.Properties),
			}
		}

		ids, err := w.CreateNodes(ctx, specs)
		if err != nil {
			return nil, fmt.Errorf("create nodes %d-%d: %w", c[0], c[1], err)
		}
		for i, n := range batch {
			keyToID[n.Key] = ids[i]
		}
		report.NodesCreated += len(batch)
		r.logger.Debug("node batch created", "from", c[0], "to", c[1])
	}
	return keyToID, nil
}

func (r *Reconciler) createRelationships(ctx context.Context, w graph.Writer, specs []graph.RelationshipSpec, report *Report) error {
	for _, c := range graph.Chunks(len(specs), r.opts.Batches.RelationshipBatchSize) {
		if err := r.wait(ctx); err != nil {
			return err
		}
		n, err := w.CreateRelationships(ctx, specs[c[0]:c[1]])
		report.RelationshipsCreated += n
		if err != nil {
			return fmt.Errorf("create relationships %d-%d: %w", c[0], c[1], err)
		}
		r.logger.Debug("relationship batch created", "from", c[0], "to", c[1])
	}
	return nil
}

func (r *Reconciler) wait(ctx context.Context) error {
	if r.limiter == nil {
		return ctx.Err()
	}
	return r.limiter.Wait(ctx)
}

type liveIndex struct {
	nodes         map[string]string // identity -> element id
	relationships map[string]bool   // relationshipKey
}

func (r *Reconciler) indexLiveGraph(ctx context.Context, ident IdentityPolicy) (*liveIndex, error) {
	idx := &liveIndex{
		nodes:         make(map[string]string),
		relationships: make(map[string]bool),
	}
	err := r.store.ScanNodes(ctx, func(n graph.Node) error {
		identity := ident.liveIdentity(n.Labels, n.Properties, n.ElementID)
		if _, dup := idx.nodes[identity]; !dup {
			idx.nodes[identity] = n.ElementID
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan live nodes: %w", err)
	}
	err = r.store.ScanRelationships(ctx, func(rel graph.Relationship) error {
		idx.relationships[relationshipKey(rel.StartID, rel.Type, rel.EndID)] = true
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan live relationships: %w", err)
	}
	r.logger.Debug("live graph indexed", "identities", len(idx.nodes), "relationships", len(idx.relationships))
	return idx, nil
}

func resolve(rel snapshot.RelationshipRecord, keyToID map[int64]string) (graph.RelationshipSpec, bool) {
	startID, ok := keyToID[rel.StartKey]
	if !ok {
		return graph.RelationshipSpec{}, false
	}
	endID, ok := keyToID[rel.EndKey]
	if !ok {
		return graph.RelationshipSpec{}, false
	}
	return graph.RelationshipSpec{
		Type:       rel.Type,
		StartID:    startID,
		EndID:      endID,
		Properties: snapshot.ToProperties(rel.Properties),
	}, true
}

func relationshipKey(startID, relType, endID string) string {
	return startID + "\x00" + relType + "\x00" + endID
}

func hasAny(labels []string, set map[string]bool) bool {
	for _, l := range labels {
		if set[l] {
			return true
		}
	}
	return false
}
