package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"github.com/rohankatakam/kgvault/internal/policy"
	"github.com/rohankatakam/kgvault/internal/restore"
)

func TestMain(m *testing.M) {
	// Never touch the developer's real keychain
	keyring.MockInit()
	os.Exit(m.Run())
}

// isolateEnv points HOME at a temp dir and clears every variable Load reads
func isolateEnv(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	for _, key := range []string{
		"NEO4J_URI", "NEO4J_USER", "NEO4J_PASSWORD", "NEO4J_DATABASE",
		"KGVAULT_BACKUP_DIR", "KGVAULT_SOURCE", "KGVAULT_MAX_BACKUPS",
		"KGVAULT_NODE_THRESHOLD", "KGVAULT_REL_THRESHOLD", "KGVAULT_GROWTH_THRESHOLD",
		"KGVAULT_PRESERVE_LABELS", "KGVAULT_MODE",
	} {
		t.Setenv(key, "")
	}
	require.NoError(t, NewKeyringManager().DeleteNeo4jPassword())
	return home
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "neo4j", cfg.Backup.Source)
	assert.Equal(t, 1, cfg.Backup.MaxSnapshots)
	assert.Equal(t, int64(50), cfg.Backup.Thresholds.NodeDelta)
	assert.Equal(t, int64(100), cfg.Backup.Thresholds.RelationshipDelta)
	assert.InDelta(t, 0.10, cfg.Backup.Thresholds.PercentageGrowth, 1e-9)
	assert.Equal(t, "full", cfg.Restore.Mode)
	assert.True(t, cfg.Restore.SafetyBackup)
	assert.Equal(t, 1000, cfg.Restore.BatchSize)

	// identity rules are sorted by label
	require.NotEmpty(t, cfg.Restore.Identity)
	assert.Equal(t, "Deployment", cfg.Restore.Identity[0].Label)
}

func TestLoad_NoFileUsesDefaults(t *testing.T) {
	home := isolateEnv(t)
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, ".kgvault", "backups"), cfg.Backup.Directory)
	assert.Equal(t, "bolt://localhost:7687", cfg.Neo4j.URI)
	assert.Equal(t, restore.DefaultIdentityPolicy(), cfg.IdentityPolicy())
	assert.Empty(t, cfg.Neo4j.Password)
}

func TestLoad_File(t *testing.T) {
	isolateEnv(t)
	path := writeConfig(t, `
neo4j:
  uri: neo4j://graph.internal:7687
  user: backup
  database: knowledge
  connect_timeout: 10s
backup:
  directory: /var/lib/kgvault
  max_snapshots: 5
  thresholds:
    node_delta: 10
restore:
  mode: selective
  preserve_labels: [Deployment]
  identity:
    - label: Function
      properties: [name]
  batch_size: 250
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "neo4j://graph.internal:7687", cfg.Neo4j.URI)
	assert.Equal(t, "backup", cfg.Neo4j.User)
	assert.Equal(t, "knowledge", cfg.Neo4j.Database)
	assert.Equal(t, 10*time.Second, cfg.Neo4j.ConnectTimeout)
	assert.Equal(t, "/var/lib/kgvault", cfg.Backup.Directory)
	assert.Equal(t, 5, cfg.Backup.MaxSnapshots)
	assert.Equal(t, int64(10), cfg.Backup.Thresholds.NodeDelta)
	assert.Equal(t, int64(100), cfg.Backup.Thresholds.RelationshipDelta, "unset thresholds keep defaults")
	assert.Equal(t, "selective", cfg.Restore.Mode)
	assert.Equal(t, []string{"Deployment"}, cfg.Restore.PreserveLabels)
	assert.Equal(t, 250, cfg.Restore.BatchSize)
	assert.True(t, cfg.Restore.SafetyBackup)

	ident := cfg.IdentityPolicy()
	assert.Equal(t, map[string][]string{"Function": {"name"}}, ident.Keys, "configured rules replace the defaults")
	assert.Equal(t, []string{"name"}, ident.Fallback)
}

func TestLoad_ExampleFile(t *testing.T) {
	home := isolateEnv(t)

	cfg, err := Load(filepath.Join("..", "..", "kgvault.example.yaml"))
	require.NoError(t, err)

	def := Default()
	assert.Equal(t, def.Backup.Thresholds, cfg.Backup.Thresholds)
	assert.Equal(t, def.Backup.MaxSnapshots, cfg.Backup.MaxSnapshots)
	assert.Equal(t, filepath.Join(home, ".kgvault", "backups"), cfg.Backup.Directory)
	assert.Equal(t, restore.DefaultIdentityPolicy(), cfg.IdentityPolicy())
	assert.Empty(t, cfg.Neo4j.Password)
}

func TestLoad_ZeroThresholdDisablesTrigger(t *testing.T) {
	isolateEnv(t)
	path := writeConfig(t, `
backup:
  thresholds:
    node_delta: 0
    relationship_delta: -1
    percentage_growth: 0
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	th := cfg.Backup.Thresholds
	assert.Equal(t, int64(0), th.NodeDelta)
	assert.Equal(t, int64(-1), th.RelationshipDelta)

	last := policy.Stats{Nodes: 100, Relationships: 200}
	assert.False(t, policy.ShouldBackup(policy.Stats{Nodes: 101, Relationships: 201}, &last, th))
	assert.True(t, policy.ShouldBackup(policy.Stats{Nodes: 101, Relationships: 201}, nil, th))
}

func TestLoad_InvalidFile(t *testing.T) {
	isolateEnv(t)
	path := writeConfig(t, "backup: [unclosed")

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoad_EnvOverrides(t *testing.T) {
	isolateEnv(t)
	dir := t.TempDir()
	t.Setenv("NEO4J_URI", "neo4j+s://prod.example.com")
	t.Setenv("NEO4J_USER", "ops")
	t.Setenv("NEO4J_PASSWORD", "from-env")
	t.Setenv("KGVAULT_BACKUP_DIR", dir)
	t.Setenv("KGVAULT_SOURCE", "staging")
	t.Setenv("KGVAULT_MAX_BACKUPS", "3")
	t.Setenv("KGVAULT_NODE_THRESHOLD", "25")
	t.Setenv("KGVAULT_REL_THRESHOLD", "not-a-number")
	t.Setenv("KGVAULT_GROWTH_THRESHOLD", "0.5")
	t.Setenv("KGVAULT_PRESERVE_LABELS", "Deployment, Pattern,,")

	path := writeConfig(t, "backup:\n  source: from-file\n")
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "neo4j+s://prod.example.com", cfg.Neo4j.URI)
	assert.Equal(t, "ops", cfg.Neo4j.User)
	assert.Equal(t, "from-env", cfg.Neo4j.Password)
	assert.Equal(t, dir, cfg.Backup.Directory)
	assert.Equal(t, "staging", cfg.Backup.Source, "env beats the config file")
	assert.Equal(t, 3, cfg.Backup.MaxSnapshots)
	assert.Equal(t, int64(25), cfg.Backup.Thresholds.NodeDelta)
	assert.Equal(t, int64(100), cfg.Backup.Thresholds.RelationshipDelta, "unparsable values are ignored")
	assert.InDelta(t, 0.5, cfg.Backup.Thresholds.PercentageGrowth, 1e-9)
	assert.Equal(t, []string{"Deployment", "Pattern"}, cfg.Restore.PreserveLabels)
}

func TestLoad_PasswordFromKeychain(t *testing.T) {
	isolateEnv(t)
	require.NoError(t, NewKeyringManager().SetNeo4jPassword("from-keychain"))
	t.Cleanup(func() { _ = NewKeyringManager().DeleteNeo4jPassword() })

	cfg, err := Load(writeConfig(t, "mode: ci\n"))
	require.NoError(t, err)
	assert.Equal(t, "from-keychain", cfg.Neo4j.Password)
	assert.Equal(t, ModeCI, cfg.DeploymentMode())
}

func TestLoad_ConfigPasswordBeatsKeychain(t *testing.T) {
	isolateEnv(t)
	require.NoError(t, NewKeyringManager().SetNeo4jPassword("from-keychain"))
	t.Cleanup(func() { _ = NewKeyringManager().DeleteNeo4jPassword() })

	cfg, err := Load(writeConfig(t, "neo4j:\n  password: from-file\n"))
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.Neo4j.Password)
}

func TestSave_RoundTripWithoutPassword(t *testing.T) {
	isolateEnv(t)
	cfg := Default()
	cfg.Neo4j.Password = "secret"
	cfg.Backup.Directory = "/srv/backups"
	cfg.Backup.MaxSnapshots = 4
	cfg.Restore.PreserveLabels = []string{"Deployment"}

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, cfg.Save(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "secret")

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/srv/backups", loaded.Backup.Directory)
	assert.Equal(t, 4, loaded.Backup.MaxSnapshots)
	assert.Equal(t, []string{"Deployment"}, loaded.Restore.PreserveLabels)
	assert.Equal(t, cfg.IdentityPolicy(), loaded.IdentityPolicy())
	assert.Empty(t, loaded.Neo4j.Password)
}

func TestManagerConfig(t *testing.T) {
	cfg := Default()
	cfg.Backup.Directory = "/tmp/kg"
	cfg.Backup.Source = "prod"
	cfg.Backup.MaxSnapshots = 3
	cfg.Restore.BatchSize = 200
	cfg.Restore.BatchesPerSecond = 4
	cfg.Restore.SafetyBackup = false
	cfg.Restore.Identity = []IdentityRule{
		{Label: "Function", Properties: []string{"name", "category"}},
		{Label: "Empty"},
		{Properties: []string{"ignored"}},
	}

	mc := cfg.ManagerConfig()

	assert.Equal(t, "/tmp/kg", mc.Directory)
	assert.Equal(t, "prod", mc.Source)
	assert.Equal(t, 3, mc.Retention.MaxSnapshots)
	assert.Equal(t, cfg.Backup.Thresholds, mc.Thresholds)
	assert.False(t, mc.SafetyBackup)
	assert.Equal(t, 200, mc.Restore.Batches.NodeBatchSize)
	assert.Equal(t, 5000, mc.Restore.Batches.RelationshipBatchSize)
	assert.InDelta(t, 4.0, mc.Restore.BatchesPerSecond, 1e-9)
	assert.Equal(t, map[string][]string{"Function": {"name", "category"}}, mc.Identity.Keys)
}

func TestClientOptions(t *testing.T) {
	cfg := Default()
	cfg.Neo4j.MaxPoolSize = 0
	cfg.Neo4j.ConnectTimeout = 30 * time.Second

	opts := cfg.ClientOptions()
	assert.Equal(t, 10, opts.MaxConnectionPoolSize, "zero keeps the driver default")
	assert.Equal(t, 30*time.Second, opts.ConnectTimeout)
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"A", "B"}, SplitList(" A ,B,, "))
	assert.Nil(t, SplitList(""))
}

func TestExpandPath(t *testing.T) {
	home := isolateEnv(t)
	assert.Equal(t, filepath.Join(home, "backups"), expandPath("~/backups"))
	assert.Equal(t, "/abs", expandPath("/abs"))
	assert.Equal(t, "", expandPath(""))
}
