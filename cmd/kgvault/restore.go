package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/rohankatakam/kgvault/internal/backup"
	"github.com/rohankatakam/kgvault/internal/config"
	"github.com/rohankatakam/kgvault/internal/restore"
)

var (
	restoreMode           string
	restorePreserve       []string
	restoreDryRun         bool
	restoreNoSafetyBackup bool
	restoreYes            bool
)

var restoreCmd = &cobra.Command{
	Use:   "restore [file]",
	Short: "Restore a snapshot into the graph",
	Long: `Restore a snapshot file. Without a file the newest backup is used.

Modes:
  full       delete everything, then recreate the snapshot exactly
  selective  merge the snapshot into the live graph; nodes with a
             --preserve label keep their live version and nothing is deleted

A safety backup of the live graph is taken first unless --no-safety-backup
is given or restore.safety_backup is false.

Examples:
  kgvault restore --dry-run
  kgvault restore neo4j_backup_20250101_120000.json
  kgvault restore --mode selective --preserve Deployment,Pattern`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRestore,
}

func init() {
	restoreCmd.Flags().StringVar(&restoreMode, "mode", "", "restore mode: full or selective (default from restore.mode)")
	restoreCmd.Flags().StringSliceVar(&restorePreserve, "preserve", nil, "labels whose live nodes are kept in selective mode")
	restoreCmd.Flags().BoolVar(&restoreDryRun, "dry-run", false, "report what would change without writing")
	restoreCmd.Flags().BoolVar(&restoreNoSafetyBackup, "no-safety-backup", false, "skip the pre-restore backup")
	restoreCmd.Flags().BoolVarP(&restoreYes, "yes", "y", false, "do not ask for confirmation")
}

func runRestore(cmd *cobra.Command, args []string) error {
	mode := restoreMode
	if mode == "" {
		mode = cfg.Restore.Mode
	}
	parsed, err := restore.ParseMode(mode)
	if err != nil {
		return err
	}

	preserve := restorePreserve
	if !cmd.Flags().Changed("preserve") {
		preserve = cfg.Restore.PreserveLabels
	}
	if parsed == restore.ModeFull && len(preserve) > 0 && cmd.Flags().Changed("preserve") {
		logger.Warn("--preserve only applies to selective restores and is ignored")
	}

	var path string
	if len(args) == 1 {
		path = resolveBackupPath(args[0])
	}

	if !restoreDryRun && !restoreYes && !confirmRestore(parsed, path) {
		fmt.Println("Restore cancelled")
		return nil
	}

	ctx := cmd.Context()
	mgr, cleanup, err := openManager(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	result, err := mgr.RestoreFromBackup(ctx, path, backup.RestoreOptions{
		Mode:             parsed,
		Preserve:         preserve,
		DryRun:           restoreDryRun,
		SkipSafetyBackup: restoreNoSafetyBackup,
	})
	if result != nil && result.SafetyBackup != "" {
		fmt.Printf("🛟 Safety backup: %s\n", result.SafetyBackup)
	}
	if err != nil {
		if result != nil && result.Report != nil {
			fmt.Printf("   Attempted: %s\n", result.Report.Summary())
		}
		return err
	}

	printRestoreResult(result)
	return nil
}

func printRestoreResult(result *backup.RestoreResult) {
	icon := "✅"
	if result.Report != nil && result.Report.DryRun {
		icon = "🔎"
	}
	fmt.Printf("%s %s\n", icon, result.Message)
	fmt.Printf("   Snapshot: %s (%s)\n", result.File, result.Metadata.Datetime)

	report := result.Report
	if report == nil {
		return
	}
	fmt.Printf("   Duration: %s\n", report.Duration.Round(time.Millisecond))
	for _, w := range report.Warnings {
		fmt.Printf("   ⚠️  %s\n", w)
	}
	if report.DroppedWarnings > 0 {
		fmt.Printf("   ... and %d more warnings\n", report.DroppedWarnings)
	}
}

// confirmRestore asks before a destructive restore when a terminal is attached
func confirmRestore(mode restore.Mode, path string) bool {
	if !term.IsTerminal(int(syscall.Stdin)) || cfg.DeploymentMode() == config.ModeCI {
		return true
	}

	target := path
	if target == "" {
		target = "the newest backup"
	}
	if mode == restore.ModeFull {
		fmt.Printf("This will DELETE the whole graph and replace it with %s. Continue? (y/N): ", target)
	} else {
		fmt.Printf("This will merge %s into the live graph. Continue? (y/N): ", target)
	}

	line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
