package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rohankatakam/kgvault/internal/backup"
	"github.com/rohankatakam/kgvault/internal/policy"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Compare the live graph with the newest backup",
	Long: `Show live node and relationship counts, the newest backup and whether
'kgvault backup auto' would take a backup right now.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	mgr, cleanup, err := openManager(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	status, err := mgr.Status(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("🔍 kgvault status\n")
	fmt.Printf("%s\n", strings.Repeat("═", 50))

	fmt.Printf("\n📋 Configuration:\n")
	fmt.Printf("  Mode: %s (%s)\n", cfg.DeploymentMode(), cfg.DeploymentMode().Description())
	fmt.Printf("  Neo4j: %s (database %s)\n", cfg.Neo4j.URI, cfg.Neo4j.Database)
	fmt.Printf("  Backup directory: %s\n", cfg.Backup.Directory)
	fmt.Printf("  Retention: %d snapshot(s)\n", cfg.Backup.MaxSnapshots)

	fmt.Printf("\n🕸  Live graph:\n")
	fmt.Printf("  Nodes: %d\n", status.Live.Nodes)
	fmt.Printf("  Relationships: %d\n", status.Live.Relationships)

	fmt.Printf("\n💾 Newest backup:\n")
	printLatest(status)

	fmt.Printf("\n⏱  Automatic backup:\n")
	printThresholds(status.Thresholds)
	if status.Decision.Backup {
		fmt.Printf("  Decision: ⚠️  backup due (%s)\n", strings.Join(status.Decision.Reasons, "; "))
	} else {
		fmt.Printf("  Decision: ✅ up to date\n")
	}
	return nil
}

func printLatest(status *backup.Status) {
	latest := status.Latest
	if latest == nil {
		fmt.Printf("  Status: ❌ none yet (run 'kgvault backup create')\n")
		return
	}
	fmt.Printf("  File: %s\n", latest.Name)
	if latest.Error != "" {
		fmt.Printf("  Status: ❌ unreadable (%s)\n", latest.Error)
		return
	}
	fmt.Printf("  Created: %s\n", latest.Metadata.Datetime)
	fmt.Printf("  Reason: %s\n", latest.Metadata.Reason)
	fmt.Printf("  Nodes: %d (%+d)\n", latest.Metadata.NodeCount, status.Live.Nodes-latest.Metadata.NodeCount)
	fmt.Printf("  Relationships: %d (%+d)\n", latest.Metadata.RelationshipCount, status.Live.Relationships-latest.Metadata.RelationshipCount)
	fmt.Printf("  Size: %s\n", formatBytes(latest.Size))
}

func printThresholds(t policy.Thresholds) {
	show := func(name string, enabled bool, value string) {
		if !enabled {
			value = "disabled"
		}
		fmt.Printf("  %s: %s\n", name, value)
	}
	show("Node delta", t.NodeDelta > 0, fmt.Sprintf("%d", t.NodeDelta))
	show("Relationship delta", t.RelationshipDelta > 0, fmt.Sprintf("%d", t.RelationshipDelta))
	show("Growth", t.PercentageGrowth > 0, fmt.Sprintf("%.0f%%", t.PercentageGrowth*100))
}

func verifySnapshot(cmd *cobra.Command, path string) (*backup.VerifyResult, error) {
	return backup.Verify(cmd.Context(), path, cfg.RestoreOptions())
}
