package main

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/rohankatakam/kgvault/internal/snapshot"
)

var listJSON bool

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List retained backups, newest first",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent backup, restore and retention events",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

var verifyCmd = &cobra.Command{
	Use:   "verify <file>",
	Short: "Check that a snapshot decodes and restores cleanly",
	Long: `Decode a snapshot file and restore it into an empty in-memory graph.
Neo4j is not contacted, so this is safe to run anywhere.`,
	Args: cobra.ExactArgs(1),
	RunE: runVerify,
}

func init() {
	listCmd.Flags().BoolVar(&listJSON, "json", false, "print JSON instead of a table")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of events to show")
	historyCmd.Flags().BoolVar(&listJSON, "json", false, "print JSON instead of a table")
}

func runList(cmd *cobra.Command, args []string) error {
	mgr, cleanup := openOfflineManager()
	defer cleanup()

	infos, err := mgr.ListBackups(cmd.Context())
	if err != nil {
		return err
	}
	if listJSON {
		return printJSON(infos)
	}
	if len(infos) == 0 {
		fmt.Printf("No backups in %s\n", cfg.Backup.Directory)
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "FILE\tCREATED\tNODES\tRELS\tSIZE\tREASON")
	for _, info := range infos {
		name := info.Name
		if info.Safety {
			name += " (safety)"
		}
		if info.Error != "" {
			fmt.Fprintf(w, "%s\t%s\t-\t-\t%s\t✗ %s\n", name, info.Timestamp.Format(time.DateTime), formatBytes(info.Size), info.Error)
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\t%s\n", name, info.Timestamp.Format(time.DateTime),
			info.Metadata.NodeCount, info.Metadata.RelationshipCount, formatBytes(info.Size), info.Metadata.Reason)
	}
	return w.Flush()
}

func runHistory(cmd *cobra.Command, args []string) error {
	mgr, cleanup := openOfflineManager()
	defer cleanup()

	events, err := mgr.History(cmd.Context(), historyLimit)
	if err != nil {
		return err
	}
	if listJSON {
		return printJSON(events)
	}
	if len(events) == 0 {
		fmt.Println("No history recorded yet")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tEVENT\tOPERATION\tFILE\tDETAIL")
	for _, e := range events {
		detail := e.Reason
		switch {
		case e.Error != "":
			detail = "error: " + e.Error
		case e.Mode != "":
			detail = fmt.Sprintf("mode=%s nodes=%d rels=%d", e.Mode, e.Nodes, e.Relationships)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", e.At.Local().Format(time.DateTime), e.Kind, e.Operation, e.File, detail)
	}
	return w.Flush()
}

func runVerify(cmd *cobra.Command, args []string) error {
	path := resolveBackupPath(args[0])
	result, err := verifySnapshot(cmd, path)
	if err != nil {
		return err
	}

	fmt.Printf("✅ %s is restorable\n", path)
	fmt.Printf("   %s\n", snapshot.Describe(result.Metadata))
	fmt.Printf("   Loaded: %d nodes, %d relationships\n", result.Loaded.Nodes, result.Loaded.Relationships)
	if result.SkippedRelationships > 0 {
		fmt.Printf("   ⚠️  %d relationships reference missing nodes and would be skipped\n", result.SkippedRelationships)
	}
	if result.Statistics != nil {
		printCounts("Labels", result.Statistics.Labels)
		printCounts("Relationship types", result.Statistics.RelationshipTypes)
	}
	return nil
}

func printCounts(title string, counts map[string]int64) {
	if len(counts) == 0 {
		return
	}
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s=%d", name, counts[name]))
	}
	fmt.Printf("   %s: %s\n", title, strings.Join(parts, ", "))
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
