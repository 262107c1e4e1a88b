package backup

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rohankatakam/kgvault/internal/catalog"
	"github.com/rohankatakam/kgvault/internal/errors"
	"github.com/rohankatakam/kgvault/internal/restore"
	"github.com/rohankatakam/kgvault/internal/snapshot"
)

// RestoreFromBackup applies a snapshot file to the live graph. An empty path
// selects the newest backup.
//
// The file is fully decoded and checked before anything is written, so a
// corrupt snapshot leaves the live graph untouched. Unless disabled, a
// safety backup of the live graph is taken first; if it fails the restore
// does not start.
func (m *Manager) RestoreFromBackup(ctx context.Context, path string, opts RestoreOptions) (*RestoreResult, error) {
	startTime := time.Now()
	result := &RestoreResult{}

	if path == "" {
		latest, err := m.retention.Latest()
		if err != nil {
			return m.restoreFailed(result, opts, err)
		}
		if latest == nil {
			return m.restoreFailed(result, opts, errors.ValidationErrorf("no backups found in %s", m.cfg.Directory))
		}
		path = latest.Path
	}
	result.File = path

	mode := opts.Mode
	if mode == "" {
		mode = restore.ModeFull
	}
	if _, err := restore.ParseMode(string(mode)); err != nil {
		return m.restoreFailed(result, opts, errors.ValidationError(err.Error()))
	}

	snap, err := snapshot.ReadFile(path)
	if err != nil {
		return m.restoreFailed(result, opts, err)
	}
	result.Metadata = snap.Metadata

	req := restore.Request{
		Mode:     mode,
		Preserve: opts.Preserve,
		Identity: m.cfg.Identity,
	}

	if opts.DryRun {
		report, err := restore.Plan(ctx, m.store, snap, req, m.cfg.Restore)
		result.Report = report
		if err != nil {
			return m.restoreFailed(result, opts, err)
		}
		result.Success = true
		result.Message = report.Summary()
		return result, nil
	}

	if m.cfg.SafetyBackup && !opts.SkipSafetyBackup {
		safety, err := m.createBackup(ctx, fmt.Sprintf("pre-restore safety backup (restoring %s)", filepath.Base(path)),
			TriggerPreRestore, m.cfg.Source+safetySuffix, m.safety)
		if err != nil {
			return m.restoreFailed(result, opts, fmt.Errorf("safety backup failed, restore not started: %w", err))
		}
		result.SafetyBackup = safety.Path
	}

	report, err := restore.New(m.store, m.cfg.Restore).Apply(ctx, snap, req)
	result.Report = report
	if err != nil {
		return m.restoreFailed(result, opts, err)
	}

	var nodes, rels int64
	if report != nil {
		nodes = int64(report.NodesCreated)
		rels = int64(report.RelationshipsCreated)
	}
	m.record(catalog.Event{
		Kind:          catalog.KindRestored,
		Operation:     "restore",
		File:          filepath.Base(path),
		Mode:          string(mode),
		Nodes:         nodes,
		Relationships: rels,
	})

	result.Success = true
	result.Message = fmt.Sprintf("Restored %s: %s", filepath.Base(path), report.Summary())
	m.logger.Info("restore finished",
		"file", path,
		"mode", mode,
		"safety_backup", result.SafetyBackup,
		"duration_ms", time.Since(startTime).Milliseconds())
	return result, nil
}

func (m *Manager) restoreFailed(result *RestoreResult, opts RestoreOptions, err error) (*RestoreResult, error) {
	m.logger.Error("restore failed", "file", result.File, "error", err)
	m.record(catalog.Event{
		Kind:      catalog.KindFailed,
		Operation: "restore",
		File:      baseName(result.File),
		Mode:      string(opts.Mode),
		DryRun:    opts.DryRun,
		Error:     err.Error(),
	})
	result.Success = false
	result.Message = fmt.Sprintf("Restore failed: %v", err)
	return result, err
}

func baseName(path string) string {
	if path == "" {
		return ""
	}
	return filepath.Base(path)
}
