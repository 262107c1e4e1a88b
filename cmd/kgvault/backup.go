package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rohankatakam/kgvault/internal/backup"
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Create graph backups",
}

var backupReason string

var backupCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Capture the whole graph into a new snapshot",
	Long: `Capture every node and relationship into a snapshot file in the backup
directory, then prune old snapshots down to backup.max_snapshots.

Examples:
  kgvault backup create --reason "before schema migration"`,
	Args: cobra.NoArgs,
	RunE: runBackupCreate,
}

var backupAutoCmd = &cobra.Command{
	Use:   "auto",
	Short: "Back up only if the graph changed enough since the last backup",
	Long: `Compare the live graph with the newest snapshot and back up when any
threshold fires: node delta, relationship delta or percentage growth.
Meant for cron or CI schedules; exits 0 when no backup was needed.`,
	Args: cobra.NoArgs,
	RunE: runBackupAuto,
}

func init() {
	backupCmd.AddCommand(backupCreateCmd)
	backupCmd.AddCommand(backupAutoCmd)

	backupCreateCmd.Flags().StringVar(&backupReason, "reason", "", "reason recorded in the snapshot metadata")
}

func runBackupCreate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	mgr, cleanup, err := openManager(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	result, err := mgr.CreateFullBackup(ctx, backupReason)
	if err != nil {
		return err
	}
	printBackupResult(result)
	return nil
}

func runBackupAuto(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	mgr, cleanup, err := openManager(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	result, err := mgr.AutoBackup(ctx)
	if err != nil {
		return err
	}
	if result.Skipped {
		fmt.Printf("⏭  %s\n", result.Message)
		return nil
	}
	printBackupResult(result)
	if result.Decision != nil {
		fmt.Printf("   Triggered by: %s\n", strings.Join(result.Decision.Reasons, "; "))
	}
	return nil
}

func printBackupResult(result *backup.Result) {
	fmt.Printf("✅ %s\n", result.Message)
	fmt.Printf("   File: %s\n", result.Path)
	if result.Metadata.Reason != "" {
		fmt.Printf("   Reason: %s\n", result.Metadata.Reason)
	}
	for _, name := range result.Pruned {
		fmt.Printf("   Pruned: %s\n", name)
	}
	for _, perr := range result.PruneErrors {
		logger.Warnf("Retention: %s", perr)
	}
}
