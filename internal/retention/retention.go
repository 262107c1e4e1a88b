// Package retention bounds the number of snapshot files kept on disk.
//
// Snapshots are ordered by the timestamp embedded in their file name, not by
// modification time, so copied or restored-from-archive files keep their
// place in history.
package retention

import (
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rohankatakam/kgvault/internal/errors"
	"github.com/rohankatakam/kgvault/internal/snapshot"
)

// DefaultMaxSnapshots is the number of snapshots kept when not configured
const DefaultMaxSnapshots = 1

// Policy configures retention
type Policy struct {
	MaxSnapshots int `yaml:"max_snapshots" mapstructure:"max_snapshots"`
}

// DefaultPolicy keeps only the newest snapshot
func DefaultPolicy() Policy {
	return Policy{MaxSnapshots: DefaultMaxSnapshots}
}

// Entry is a snapshot file found in the backup directory
type Entry struct {
	Path      string    `json:"path"`
	Name      string    `json:"name"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
	Size      int64     `json:"size"`
}

// PruneResult lists what Prune kept and removed. Errors holds delete
// failures; they never make Prune fail.
type PruneResult struct {
	Kept    []Entry
	Deleted []Entry
	Errors  []error
}

// Manager owns the snapshot files of one source in one directory
type Manager struct {
	dir    string
	source string
	policy Policy
	logger *slog.Logger
}

// NewManager creates a retention manager. An empty source matches snapshots
// of every source in dir.
func NewManager(dir, source string, policy Policy) *Manager {
	if policy.MaxSnapshots < 1 {
		policy.MaxSnapshots = DefaultMaxSnapshots
	}
	if source != "" {
		source = snapshot.SanitizeSource(source)
	}
	return &Manager{
		dir:    dir,
		source: source,
		policy: policy,
		logger: slog.Default().With("component", "retention"),
	}
}

// Dir returns the managed directory
func (m *Manager) Dir() string {
	return m.dir
}

// Policy returns the effective policy
func (m *Manager) Policy() Policy {
	return m.policy
}

// List returns snapshot files newest first. A missing directory is empty.
// Files not following the snapshot naming convention are ignored.
func (m *Manager) List() ([]Entry, error) {
	dirEntries, err := os.ReadDir(m.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.FileSystemErrorf(err, "failed to list backup directory %s", m.dir)
	}

	var entries []Entry
	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}
		source, ts, ok := snapshot.ParseFileName(de.Name())
		if !ok {
			continue
		}
		if m.source != "" && source != m.source {
			continue
		}

		var size int64
		if info, err := de.Info(); err == nil {
			size = info.Size()
		}
		entries = append(entries, Entry{
			Path:      filepath.Join(m.dir, de.Name()),
			Name:      de.Name(),
			Source:    source,
			Timestamp: ts,
			Size:      size,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].Timestamp.Equal(entries[j].Timestamp) {
			return entries[i].Timestamp.After(entries[j].Timestamp)
		}
		return entries[i].Name > entries[j].Name
	})
	return entries, nil
}

// Latest returns the newest snapshot, or nil when there is none
func (m *Manager) Latest() (*Entry, error) {
	entries, err := m.List()
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}
	return &entries[0], nil
}

// Prune deletes all but the newest MaxSnapshots files. Delete failures are
// logged and collected in the result; the caller's backup has already
// succeeded and must not be reported as failed because of them.
func (m *Manager) Prune() PruneResult {
	var result PruneResult

	entries, err := m.List()
	if err != nil {
		m.logger.Warn("failed to list backups for pruning", "dir", m.dir, "error", err)
		result.Errors = append(result.Errors, err)
		return result
	}

	for i, e := range entries {
		if i < m.policy.MaxSnapshots {
			result.Kept = append(result.Kept, e)
			continue
		}
		if err := os.Remove(e.Path); err != nil {
			m.logger.Warn("failed to delete old backup", "file", e.Name, "error", err)
			result.Errors = append(result.Errors, errors.FileSystemErrorf(err, "failed to delete %s", e.Path))
			continue
		}
		m.logger.Info("deleted old backup", "file", e.Name, "timestamp", e.Timestamp.Format(snapshot.TimestampLayout))
		result.Deleted = append(result.Deleted, e)
	}

	if len(result.Deleted) > 0 {
		m.logger.Info("backup retention applied",
			"kept", len(result.Kept),
			"deleted", len(result.Deleted),
			"max_snapshots", m.policy.MaxSnapshots)
	}
	return result
}
