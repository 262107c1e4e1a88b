// Package backup ties capture, policy, retention, restore and the catalog
// together into the operations exposed by the CLI.
//
// Usage:
//
//	mgr := backup.NewManager(store, cfg, cat)
//
//	// Manual backup
//	result, err := mgr.CreateFullBackup(ctx, "before schema change")
//
//	// Restore the newest snapshot, keeping live Deployment nodes
//	res, err := mgr.RestoreFromBackup(ctx, "", backup.RestoreOptions{
//	    Mode:     restore.ModeSelective,
//	    Preserve: []string{"Deployment"},
//	})
package backup

import (
	"time"

	"github.com/rohankatakam/kgvault/internal/policy"
	"github.com/rohankatakam/kgvault/internal/restore"
	"github.com/rohankatakam/kgvault/internal/retention"
	"github.com/rohankatakam/kgvault/internal/snapshot"
)

// Trigger records why a backup was taken
type Trigger string

const (
	// TriggerManual is an operator-requested backup
	TriggerManual Trigger = "manual"

	// TriggerAuto is a backup the policy engine decided on
	TriggerAuto Trigger = "auto"

	// TriggerPreRestore is the safety backup taken before a restore
	TriggerPreRestore Trigger = "pre_restore"
)

// safetySuffix is appended to the source name of pre-restore backups so
// that they are retained separately from regular backups
const safetySuffix = "_pre_restore"

// Config configures a Manager
type Config struct {
	Directory  string
	Source     string
	Retention  retention.Policy
	Thresholds policy.Thresholds
	Restore    restore.Options
	Identity   restore.IdentityPolicy

	// SafetyBackup takes a backup of the live graph before every restore
	SafetyBackup bool

	// Now overrides the clock (tests)
	Now func() time.Time
}

// Result is the outcome of a backup operation
type Result struct {
	Success  bool
	Message  string
	Path     string
	Metadata snapshot.Metadata
	Trigger  Trigger

	// Skipped is set when AutoBackup decided no backup was needed
	Skipped  bool
	Decision *policy.Decision

	Pruned      []string
	PruneErrors []string
}

// RestoreOptions configures RestoreFromBackup
type RestoreOptions struct {
	Mode     restore.Mode
	Preserve []string

	// DryRun computes the report against an in-memory copy of the live graph
	DryRun bool

	// SkipSafetyBackup disables the pre-restore backup for this restore
	SkipSafetyBackup bool
}

// RestoreResult is the outcome of a restore
type RestoreResult struct {
	Success      bool
	Message      string
	File         string
	Metadata     snapshot.Metadata
	Report       *restore.Report
	SafetyBackup string
}

// BackupInfo describes one retained snapshot file
type BackupInfo struct {
	retention.Entry
	Metadata snapshot.Metadata `json:"metadata"`
	Safety   bool              `json:"safety"`
	Error    string            `json:"error,omitempty"`
}

// Status summarizes the live graph against the newest backup
type Status struct {
	Live       policy.Stats
	Latest     *BackupInfo
	Decision   policy.Decision
	Thresholds policy.Thresholds
}

// VerifyResult reports the check of one snapshot file
type VerifyResult struct {
	File     string
	Metadata snapshot.Metadata
	Loaded   policy.Stats

	// SkippedRelationships have an endpoint key that no node in the file carries
	SkippedRelationships int
	Statistics           *snapshot.Statistics
}
