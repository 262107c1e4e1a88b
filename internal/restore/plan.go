package restore

import (
	"context"

	"github.com/rohankatakam/kgvault/internal/errors"
	"github.com/rohankatakam/kgvault/internal/graph"
	"github.com/rohankatakam/kgvault/internal/snapshot"
)

// Request describes one restore
type Request struct {
	Mode     Mode
	Preserve []string
	Identity IdentityPolicy
}

// Apply runs the requested restore mode against the reconciler's store
func (r *Reconciler) Apply(ctx context.Context, snap *snapshot.Snapshot, req Request) (*Report, error) {
	switch req.Mode {
	case ModeSelective:
		return r.Selective(ctx, snap, req.Preserve, req.Identity)
	case ModeFull, "":
		return r.Full(ctx, snap)
	default:
		return nil, errors.ValidationErrorf("unknown restore mode %q", req.Mode)
	}
}

// Plan computes what a restore would do without writing to live. The live
// graph is copied into memory and the restore runs against the copy.
func Plan(ctx context.Context, live graph.Store, snap *snapshot.Snapshot, req Request, opts Options) (*Report, error) {
	mem, err := graph.CopyToMemory(ctx, live)
	if err != nil {
		return nil, errors.RestoreError(err, "failed to copy live graph for dry run")
	}

	// throttling only matters for the real store
	opts.BatchesPerSecond = 0
	report, err := New(mem, opts).Apply(ctx, snap, req)
	if report != nil {
		report.DryRun = true
	}
	return report, err
}
