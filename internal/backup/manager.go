package backup

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/rohankatakam/kgvault/internal/catalog"
	"github.com/rohankatakam/kgvault/internal/errors"
	"github.com/rohankatakam/kgvault/internal/graph"
	"github.com/rohankatakam/kgvault/internal/policy"
	"github.com/rohankatakam/kgvault/internal/retention"
	"github.com/rohankatakam/kgvault/internal/snapshot"
)

// Manager runs backup and restore operations against one graph store and
// one backup directory. Operations are meant to run one at a time.
type Manager struct {
	store     graph.Store
	cfg       Config
	retention *retention.Manager
	safety    *retention.Manager
	catalog   *catalog.Catalog
	logger    *slog.Logger
}

// NewManager creates a Manager. cat may be nil to disable history.
func NewManager(store graph.Store, cfg Config, cat *catalog.Catalog) *Manager {
	if cfg.Source == "" {
		cfg.Source = "neo4j"
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Manager{
		store:     store,
		cfg:       cfg,
		retention: retention.NewManager(cfg.Directory, cfg.Source, cfg.Retention),
		safety:    retention.NewManager(cfg.Directory, cfg.Source+safetySuffix, cfg.Retention),
		catalog:   cat,
		logger:    slog.Default().With("component", "backup"),
	}
}

// CreateFullBackup captures the whole graph, writes the snapshot file and
// applies retention. A failed prune is reported in the result but does not
// fail the backup.
func (m *Manager) CreateFullBackup(ctx context.Context, reason string) (*Result, error) {
	if reason == "" {
		reason = "manual backup"
	}
	return m.createBackup(ctx, reason, TriggerManual, m.cfg.Source, m.retention)
}

// AutoBackup backs up only when the policy engine says the graph changed
// enough since the newest snapshot.
func (m *Manager) AutoBackup(ctx context.Context) (*Result, error) {
	counts, err := m.store.Counts(ctx)
	if err != nil {
		return m.failed(TriggerAuto, "", errors.CaptureError(err, "failed to read graph counts"))
	}
	current := policy.Stats{Nodes: counts.Nodes, Relationships: counts.Relationships}

	last, err := m.lastStats()
	if err != nil {
		m.logger.Warn("newest snapshot unreadable, treating as no prior backup", "error", err)
		last = nil
	}

	decision := policy.Evaluate(current, last, m.cfg.Thresholds)
	if !decision.Backup {
		m.logger.Info("automatic backup not needed",
			"nodes", current.Nodes,
			"relationships", current.Relationships)
		return &Result{
			Success:  true,
			Skipped:  true,
			Trigger:  TriggerAuto,
			Decision: &decision,
			Message:  "no backup needed: graph has not changed enough since the last backup",
		}, nil
	}

	result, err := m.createBackup(ctx, decision.Reason(), TriggerAuto, m.cfg.Source, m.retention)
	if result != nil {
		result.Decision = &decision
	}
	return result, err
}

// lastStats returns the totals recorded in the newest snapshot, or nil
func (m *Manager) lastStats() (*policy.Stats, error) {
	latest, err := m.retention.Latest()
	if err != nil || latest == nil {
		return nil, err
	}
	meta, err := snapshot.ReadMetadata(latest.Path)
	if err != nil {
		return nil, err
	}
	return &policy.Stats{Nodes: meta.NodeCount, Relationships: meta.RelationshipCount}, nil
}

func (m *Manager) createBackup(ctx context.Context, reason string, trigger Trigger, source string, ret *retention.Manager) (*Result, error) {
	startTime := time.Now()

	snap, err := snapshot.Capture(ctx, m.store, snapshot.CaptureOptions{
		Reason: reason,
		Source: source,
		Now:    m.cfg.Now,
	})
	if err != nil {
		return m.failed(trigger, reason, err)
	}

	path, err := snapshot.WriteFile(m.cfg.Directory, snap)
	if err != nil {
		return m.failed(trigger, reason, err)
	}

	result := &Result{
		Success:  true,
		Path:     path,
		Metadata: snap.Metadata,
		Trigger:  trigger,
	}

	m.record(catalog.Event{
		Kind:          catalog.KindCreated,
		Operation:     "backup",
		File:          filepath.Base(path),
		Reason:        reason,
		Trigger:       string(trigger),
		Nodes:         snap.Metadata.NodeCount,
		Relationships: snap.Metadata.RelationshipCount,
	})

	pruned := ret.Prune()
	for _, e := range pruned.Deleted {
		result.Pruned = append(result.Pruned, e.Name)
		m.record(catalog.Event{Kind: catalog.KindPruned, Operation: "retention", File: e.Name})
	}
	for _, perr := range pruned.Errors {
		result.PruneErrors = append(result.PruneErrors, perr.Error())
	}

	result.Message = fmt.Sprintf("Backup created: %s (%d nodes, %d relationships)",
		filepath.Base(path), snap.Metadata.NodeCount, snap.Metadata.RelationshipCount)

	m.logger.Info("backup created",
		"file", path,
		"trigger", trigger,
		"nodes", snap.Metadata.NodeCount,
		"relationships", snap.Metadata.RelationshipCount,
		"pruned", len(result.Pruned),
		"duration_ms", time.Since(startTime).Milliseconds())
	return result, nil
}

func (m *Manager) failed(trigger Trigger, reason string, err error) (*Result, error) {
	m.logger.Error("backup failed", "trigger", trigger, "error", err)
	m.record(catalog.Event{
		Kind:      catalog.KindFailed,
		Operation: "backup",
		Reason:    reason,
		Trigger:   string(trigger),
		Error:     err.Error(),
	})
	return &Result{
		Success: false,
		Trigger: trigger,
		Message: fmt.Sprintf("Backup failed: %v", err),
	}, err
}

// record writes a catalog event; catalog problems never fail an operation
func (m *Manager) record(e catalog.Event) {
	if _, err := m.catalog.Record(e); err != nil {
		m.logger.Warn("failed to record catalog event", "kind", e.Kind, "error", err)
	}
}

// History returns the newest catalog events
func (m *Manager) History(ctx context.Context, limit int) ([]catalog.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return m.catalog.Recent(limit)
}

// Status compares the live graph with the newest backup
func (m *Manager) Status(ctx context.Context) (*Status, error) {
	counts, err := m.store.Counts(ctx)
	if err != nil {
		return nil, errors.CaptureError(err, "failed to read graph counts")
	}

	status := &Status{
		Live:       policy.Stats{Nodes: counts.Nodes, Relationships: counts.Relationships},
		Thresholds: m.cfg.Thresholds,
	}

	var last *policy.Stats
	latest, err := m.retention.Latest()
	if err != nil {
		return nil, err
	}
	if latest != nil {
		info := BackupInfo{Entry: *latest}
		meta, err := snapshot.ReadMetadata(latest.Path)
		if err != nil {
			info.Error = err.Error()
		} else {
			info.Metadata = meta
			last = &policy.Stats{Nodes: meta.NodeCount, Relationships: meta.RelationshipCount}
		}
		status.Latest = &info
	}

	status.Decision = policy.Evaluate(status.Live, last, m.cfg.Thresholds)
	return status, nil
}
