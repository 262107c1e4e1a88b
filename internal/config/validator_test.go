package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohankatakam/kgvault/internal/errors"
)

func validConfig() *Config {
	cfg := Default()
	cfg.Neo4j.URI = "neo4j+s://graph.example.com:7687"
	cfg.Neo4j.Password = "a-long-random-password"
	cfg.Backup.Directory = "/srv/kgvault"
	return cfg
}

func TestValidate_ValidConfig(t *testing.T) {
	for _, mode := range []DeploymentMode{ModeDevelopment, ModePackaged, ModeCI} {
		result := validConfig().ValidateWithMode(ValidationContextAll, mode)
		assert.False(t, result.HasErrors(), "mode %s: %s", mode, result.Error())
	}
}

func TestValidate_Neo4j(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*Config)
		mode     DeploymentMode
		wantErr  string
		wantWarn string
	}{
		{
			name:    "missing uri",
			mutate:  func(c *Config) { c.Neo4j.URI = "" },
			mode:    ModeDevelopment,
			wantErr: "NEO4J_URI is required",
		},
		{
			name:    "http scheme",
			mutate:  func(c *Config) { c.Neo4j.URI = "http://graph:7474" },
			mode:    ModeDevelopment,
			wantErr: "bolt:// or neo4j://",
		},
		{
			name:    "missing password",
			mutate:  func(c *Config) { c.Neo4j.Password = "" },
			mode:    ModePackaged,
			wantErr: "NEO4J_PASSWORD is required",
		},
		{
			name:    "insecure password packaged",
			mutate:  func(c *Config) { c.Neo4j.Password = "neo4j" },
			mode:    ModePackaged,
			wantErr: "insecure default",
		},
		{
			name:     "insecure password development",
			mutate:   func(c *Config) { c.Neo4j.Password = "password" },
			mode:     ModeDevelopment,
			wantWarn: "very common password",
		},
		{
			name:     "localhost packaged",
			mutate:   func(c *Config) { c.Neo4j.URI = "bolt://localhost:7687" },
			mode:     ModePackaged,
			wantWarn: "localhost",
		},
		{
			name:    "localhost in ci is strict",
			mutate:  func(c *Config) { c.Neo4j.URI = "bolt://localhost:7687" },
			mode:    ModeCI,
			wantErr: "localhost",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			result := cfg.ValidateWithMode(ValidationContextBackup, tt.mode)

			if tt.wantErr != "" {
				require.True(t, result.HasErrors())
				assert.Contains(t, result.Error(), tt.wantErr)
			} else {
				assert.False(t, result.HasErrors(), result.Error())
			}
			if tt.wantWarn != "" {
				require.NotEmpty(t, result.Warnings)
				assert.Contains(t, result.Warnings[0], tt.wantWarn)
			}
		})
	}
}

func TestValidate_Restore(t *testing.T) {
	cfg := validConfig()
	cfg.Restore.Mode = "partial"
	cfg.Restore.BatchSize = -1
	cfg.Restore.Identity = append(cfg.Restore.Identity, IdentityRule{})

	result := cfg.ValidateWithMode(ValidationContextRestore, ModeDevelopment)
	require.True(t, result.HasErrors())
	assert.Len(t, result.Errors, 3)
	assert.Contains(t, result.Error(), `unknown restore mode "partial"`)
}

func TestValidate_OfflineSkipsNeo4j(t *testing.T) {
	cfg := validConfig()
	cfg.Neo4j.URI = ""
	cfg.Neo4j.Password = ""

	result := cfg.ValidateWithMode(ValidationContextOffline, ModeCI)
	assert.False(t, result.HasErrors(), result.Error())
}

func TestValidate_Backup(t *testing.T) {
	cfg := validConfig()
	cfg.Backup.Directory = ""
	cfg.Backup.Source = "../escape"
	cfg.Backup.MaxSnapshots = 0

	result := cfg.ValidateWithMode(ValidationContextOffline, ModeDevelopment)
	assert.Len(t, result.Errors, 2)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "at least 1 backup")
}

func TestValidate_DisabledThresholdsWarn(t *testing.T) {
	cfg := validConfig()
	cfg.Backup.Thresholds.NodeDelta = 0
	cfg.Backup.Thresholds.RelationshipDelta = 0
	cfg.Backup.Thresholds.PercentageGrowth = 0

	result := cfg.ValidateWithMode(ValidationContextOffline, ModeDevelopment)
	assert.False(t, result.HasErrors())
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "never back up")
}

func TestRequireNeo4j(t *testing.T) {
	cfg := validConfig()
	cfg.Mode = "development"
	require.NoError(t, cfg.RequireNeo4j())

	cfg.Neo4j.User = ""
	err := cfg.RequireNeo4j()
	assert.ErrorIs(t, err, errors.ErrConfig)
}

func TestParseDeploymentMode(t *testing.T) {
	tests := map[string]DeploymentMode{
		"dev":         ModeDevelopment,
		" Production": ModePackaged,
		"CICD":        ModeCI,
	}
	for in, want := range tests {
		got, ok := ParseDeploymentMode(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got)
	}

	_, ok := ParseDeploymentMode("staging")
	assert.False(t, ok)
}

func TestDetectMode_EnvOverride(t *testing.T) {
	t.Setenv("KGVAULT_MODE", "ci")
	assert.Equal(t, ModeCI, DetectMode())

	t.Setenv("KGVAULT_MODE", "packaged")
	assert.Equal(t, ModePackaged, DetectMode())
}

func TestDeploymentModeCapabilities(t *testing.T) {
	assert.True(t, ModePackaged.AllowsInteractivePrompts())
	assert.False(t, ModeCI.AllowsInteractivePrompts())
	assert.True(t, ModeCI.RequiresStrictValidation())
	assert.True(t, ModeDevelopment.AllowsDevelopmentDefaults())
	assert.False(t, ModeDevelopment.RequiresSecureCredentials())
}
