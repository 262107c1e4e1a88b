package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/rohankatakam/kgvault/internal/backup"
	"github.com/rohankatakam/kgvault/internal/graph"
	"github.com/rohankatakam/kgvault/internal/policy"
	"github.com/rohankatakam/kgvault/internal/restore"
	"github.com/rohankatakam/kgvault/internal/retention"
)

// Config holds all configuration settings
type Config struct {
	// Deployment mode override ("development", "packaged", "ci"); empty means detect
	Mode string `yaml:"mode" mapstructure:"mode"`

	Neo4j   Neo4jConfig   `yaml:"neo4j" mapstructure:"neo4j"`
	Backup  BackupConfig  `yaml:"backup" mapstructure:"backup"`
	Restore RestoreConfig `yaml:"restore" mapstructure:"restore"`
	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`
}

type Neo4jConfig struct {
	URI            string        `yaml:"uri" mapstructure:"uri"`
	User           string        `yaml:"user" mapstructure:"user"`
	Password       string        `yaml:"password,omitempty" mapstructure:"password"`
	Database       string        `yaml:"database" mapstructure:"database"`
	MaxPoolSize    int           `yaml:"max_pool_size" mapstructure:"max_pool_size"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" mapstructure:"connect_timeout"`
}

type BackupConfig struct {
	Directory    string            `yaml:"directory" mapstructure:"directory"`
	Source       string            `yaml:"source" mapstructure:"source"`
	MaxSnapshots int               `yaml:"max_snapshots" mapstructure:"max_snapshots"`
	Thresholds   policy.Thresholds `yaml:"thresholds" mapstructure:"thresholds"`
}

// IdentityRule lists the properties that identify a node carrying Label.
// Rules are a list rather than a map because viper lowercases map keys and
// labels are case sensitive.
type IdentityRule struct {
	Label      string   `yaml:"label" mapstructure:"label"`
	Properties []string `yaml:"properties" mapstructure:"properties"`
}

type RestoreConfig struct {
	Mode             string         `yaml:"mode" mapstructure:"mode"`
	PreserveLabels   []string       `yaml:"preserve_labels" mapstructure:"preserve_labels"`
	Identity         []IdentityRule `yaml:"identity" mapstructure:"identity"`
	IdentityFallback []string       `yaml:"identity_fallback" mapstructure:"identity_fallback"`
	BatchSize        int            `yaml:"batch_size" mapstructure:"batch_size"`
	BatchesPerSecond float64        `yaml:"batches_per_second" mapstructure:"batches_per_second"`
	SafetyBackup     bool           `yaml:"safety_backup" mapstructure:"safety_backup"`
}

type LoggingConfig struct {
	Level     string `yaml:"level" mapstructure:"level"`
	Directory string `yaml:"directory" mapstructure:"directory"`
	JSON      bool   `yaml:"json" mapstructure:"json"`
}

// Default returns default configuration
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	backupDir := "backups"
	if homeDir != "" {
		backupDir = filepath.Join(homeDir, ".kgvault", "backups")
	}

	ident := restore.DefaultIdentityPolicy()
	return &Config{
		Neo4j: Neo4jConfig{
			URI:            "bolt://localhost:7687",
			User:           "neo4j",
			Database:       "neo4j",
			MaxPoolSize:    graph.DefaultClientOptions().MaxConnectionPoolSize,
			ConnectTimeout: graph.DefaultClientOptions().ConnectTimeout,
		},
		Backup: BackupConfig{
			Directory:    backupDir,
			Source:       "neo4j",
			MaxSnapshots: retention.DefaultMaxSnapshots,
			Thresholds:   policy.DefaultThresholds(),
		},
		Restore: RestoreConfig{
			Mode:             string(restore.ModeFull),
			Identity:         rulesFromPolicy(ident),
			IdentityFallback: ident.Fallback,
			BatchSize:        graph.DefaultBatchConfig().NodeBatchSize,
			SafetyBackup:     true,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from file. An empty path searches the standard
// locations; a missing file is not an error.
func Load(path string) (*Config, error) {
	loadEnvFiles()

	v := viper.New()
	v.SetConfigType("yaml")

	cfg := Default()
	v.SetDefault("mode", cfg.Mode)
	v.SetDefault("backup.directory", cfg.Backup.Directory)
	v.SetDefault("backup.source", cfg.Backup.Source)
	v.SetDefault("backup.max_snapshots", cfg.Backup.MaxSnapshots)
	v.SetDefault("restore.mode", cfg.Restore.Mode)
	v.SetDefault("restore.batch_size", cfg.Restore.BatchSize)
	v.SetDefault("restore.safety_backup", cfg.Restore.SafetyBackup)
	v.SetDefault("logging.level", cfg.Logging.Level)

	// KGVAULT_BACKUP_SOURCE style variables map onto nested keys
	v.SetEnvPrefix("KGVAULT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".kgvault")
		v.AddConfigPath(".")
		homeDir, _ := os.UserHomeDir()
		v.AddConfigPath(filepath.Join(homeDir, ".kgvault"))
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	// Slices decode element-wise onto existing values, so list defaults
	// are applied after unmarshalling instead of before.
	cfg.Restore.Identity = nil
	cfg.Restore.IdentityFallback = nil
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	defaults := Default()
	if cfg.Restore.Identity == nil {
		cfg.Restore.Identity = defaults.Restore.Identity
	}
	if cfg.Restore.IdentityFallback == nil {
		cfg.Restore.IdentityFallback = defaults.Restore.IdentityFallback
	}

	applyEnvOverrides(cfg)
	cfg.Backup.Directory = expandPath(cfg.Backup.Directory)
	cfg.Logging.Directory = expandPath(cfg.Logging.Directory)

	return cfg, nil
}

// loadEnvFiles loads .env files in order of precedence. godotenv never
// overrides a variable that is already set, so earlier files win.
func loadEnvFiles() {
	envFiles := []string{
		".env.local",
		".env",
	}

	for _, file := range envFiles {
		if _, err := os.Stat(file); err == nil {
			_ = godotenv.Load(file)
		}
	}

	homeDir, _ := os.UserHomeDir()
	homeEnvFile := filepath.Join(homeDir, ".kgvault", ".env")
	if _, err := os.Stat(homeEnvFile); err == nil {
		_ = godotenv.Load(homeEnvFile)
	}
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(cfg *Config) {
	// Neo4j connection
	if uri := os.Getenv("NEO4J_URI"); uri != "" {
		cfg.Neo4j.URI = uri
	}
	if user := os.Getenv("NEO4J_USER"); user != "" {
		cfg.Neo4j.User = user
	}
	if db := os.Getenv("NEO4J_DATABASE"); db != "" {
		cfg.Neo4j.Database = db
	}

	// Password precedence: 1. env var 2. config file 3. keychain.
	// The credentials file and the interactive prompt are left to
	// CredentialManager so that Load never blocks on stdin.
	if password := os.Getenv("NEO4J_PASSWORD"); password != "" {
		cfg.Neo4j.Password = password
	} else if cfg.Neo4j.Password == "" {
		km := NewKeyringManager()
		if km.IsAvailable() {
			if stored, err := km.GetNeo4jPassword(); err == nil && stored != "" {
				cfg.Neo4j.Password = stored
			}
		}
	}

	// Backup settings
	if dir := os.Getenv("KGVAULT_BACKUP_DIR"); dir != "" {
		cfg.Backup.Directory = expandPath(dir)
	}
	cfg.Backup.Source = GetString("KGVAULT_SOURCE", cfg.Backup.Source)
	cfg.Backup.MaxSnapshots = GetInt("KGVAULT_MAX_BACKUPS", cfg.Backup.MaxSnapshots)
	cfg.Backup.Thresholds.NodeDelta = GetInt64("KGVAULT_NODE_THRESHOLD", cfg.Backup.Thresholds.NodeDelta)
	cfg.Backup.Thresholds.RelationshipDelta = GetInt64("KGVAULT_REL_THRESHOLD", cfg.Backup.Thresholds.RelationshipDelta)
	cfg.Backup.Thresholds.PercentageGrowth = GetFloat("KGVAULT_GROWTH_THRESHOLD", cfg.Backup.Thresholds.PercentageGrowth)

	// Restore settings
	if labels := os.Getenv("KGVAULT_PRESERVE_LABELS"); labels != "" {
		cfg.Restore.PreserveLabels = SplitList(labels)
	}

	if mode := os.Getenv("KGVAULT_MODE"); mode != "" {
		cfg.Mode = mode
	}
}

// SplitList splits a comma separated list, dropping blanks
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// expandPath expands ~ to home directory
func expandPath(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, path[1:])
	}
	return path
}

// Save saves configuration to file. The Neo4j password is never written.
func (c *Config) Save(path string) error {
	v := viper.New()
	v.SetConfigType("yaml")

	neo := c.Neo4j
	neo.Password = ""

	v.Set("mode", c.Mode)
	v.Set("neo4j", neo)
	v.Set("backup", c.Backup)
	v.Set("restore", c.Restore)
	v.Set("logging", c.Logging)

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// DeploymentMode returns the configured mode, or the detected one
func (c *Config) DeploymentMode() DeploymentMode {
	if m, ok := ParseDeploymentMode(c.Mode); ok {
		return m
	}
	return DetectMode()
}

// ClientOptions returns the Neo4j driver settings
func (c *Config) ClientOptions() graph.ClientOptions {
	opts := graph.DefaultClientOptions()
	if c.Neo4j.MaxPoolSize > 0 {
		opts.MaxConnectionPoolSize = c.Neo4j.MaxPoolSize
	}
	if c.Neo4j.ConnectTimeout > 0 {
		opts.ConnectTimeout = c.Neo4j.ConnectTimeout
	}
	return opts
}

// IdentityPolicy builds the selective merge identity rules
func (c *Config) IdentityPolicy() restore.IdentityPolicy {
	p := restore.IdentityPolicy{
		Keys:     make(map[string][]string, len(c.Restore.Identity)),
		Fallback: append([]string(nil), c.Restore.IdentityFallback...),
	}
	for _, rule := range c.Restore.Identity {
		if rule.Label == "" || len(rule.Properties) == 0 {
			continue
		}
		p.Keys[rule.Label] = append([]string(nil), rule.Properties...)
	}
	return p
}

// RestoreOptions returns the reconciler batch and throttle settings
func (c *Config) RestoreOptions() restore.Options {
	opts := restore.DefaultOptions()
	opts.Batches = opts.Batches.WithNodeBatchSize(c.Restore.BatchSize)
	if c.Restore.BatchesPerSecond > 0 {
		opts.BatchesPerSecond = c.Restore.BatchesPerSecond
	}
	return opts
}

// ManagerConfig assembles the backup manager configuration
func (c *Config) ManagerConfig() backup.Config {
	return backup.Config{
		Directory:    c.Backup.Directory,
		Source:       c.Backup.Source,
		Retention:    retention.Policy{MaxSnapshots: c.Backup.MaxSnapshots},
		Thresholds:   c.Backup.Thresholds,
		Restore:      c.RestoreOptions(),
		Identity:     c.IdentityPolicy(),
		SafetyBackup: c.Restore.SafetyBackup,
	}
}

func rulesFromPolicy(p restore.IdentityPolicy) []IdentityRule {
	labels := make([]string, 0, len(p.Keys))
	for label := range p.Keys {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	rules := make([]IdentityRule, 0, len(labels))
	for _, label := range labels {
		rules = append(rules, IdentityRule{Label: label, Properties: p.Keys[label]})
	}
	return rules
}
