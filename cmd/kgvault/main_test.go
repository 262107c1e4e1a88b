package main

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohankatakam/kgvault/internal/config"
	"github.com/rohankatakam/kgvault/internal/errors"
	"github.com/rohankatakam/kgvault/internal/logging"
)

func TestResolveBackupPath(t *testing.T) {
	dir := t.TempDir()
	cfg = config.Default()
	cfg.Backup.Directory = dir

	existing := filepath.Join(t.TempDir(), "graph_backup_20250101_000000.json")
	require.NoError(t, os.WriteFile(existing, []byte("{}"), 0600))

	assert.Equal(t, "", resolveBackupPath(""))
	assert.Equal(t, existing, resolveBackupPath(existing))
	assert.Equal(t, filepath.Join(dir, "neo4j_backup_20250101_000000.json"),
		resolveBackupPath("neo4j_backup_20250101_000000.json"))
	assert.Equal(t, "missing/dir/file.json", resolveBackupPath("missing/dir/file.json"))
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", formatBytes(512))
	assert.Equal(t, "1.5 KB", formatBytes(1536))
	assert.Equal(t, "2.0 MB", formatBytes(2*1024*1024))
}

func TestCommandTree(t *testing.T) {
	want := [][]string{
		{"backup", "create"},
		{"backup", "auto"},
		{"restore"},
		{"list"},
		{"history"},
		{"verify"},
		{"status"},
		{"config", "show"},
		{"config", "validate"},
		{"credentials", "set"},
		{"credentials", "delete"},
	}
	for _, path := range want {
		cmd, _, err := rootCmd.Find(path)
		require.NoError(t, err, path)
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}

	for _, flag := range []string{"mode", "preserve", "dry-run", "no-safety-backup"} {
		assert.NotNil(t, restoreCmd.Flags().Lookup(flag), flag)
	}
	assert.NotNil(t, backupCreateCmd.Flags().Lookup("reason"))
}

func TestFormatError(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() {
		logging.Close()
		slog.SetDefault(prev)
	})

	var console bytes.Buffer
	require.NoError(t, logging.Initialize(logging.Config{Level: logging.INFO, Console: &console}))

	assert.Equal(t, "Error: plain failure\n", formatError(fmt.Errorf("plain failure")))

	msg := formatError(errors.RestoreError(fmt.Errorf("tx aborted"), "restore failed"))
	assert.Contains(t, msg, "Fatal error: ")
	assert.Contains(t, msg, "tx aborted")
	assert.Contains(t, msg, "--verbose")

	require.NoError(t, logging.Initialize(logging.Config{Level: logging.DEBUG, Console: &console}))
	detail := formatError(fmt.Errorf("backup: %w",
		errors.CaptureErrorf("node n1 has no labels").WithContext("source", "neo4j")))
	assert.Contains(t, detail, "node n1 has no labels")
	assert.Contains(t, detail, "source: neo4j")
}
