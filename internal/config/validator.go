package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/rohankatakam/kgvault/internal/errors"
	"github.com/rohankatakam/kgvault/internal/graph"
	"github.com/rohankatakam/kgvault/internal/restore"
)

// ValidationContext specifies what configuration is required
type ValidationContext string

const (
	// ValidationContextBackup - backup commands need Neo4j and a backup directory
	ValidationContextBackup ValidationContext = "backup"
	// ValidationContextRestore - restore additionally needs valid restore settings
	ValidationContextRestore ValidationContext = "restore"
	// ValidationContextOffline - list, verify and history only read the backup directory
	ValidationContextOffline ValidationContext = "offline"
	// ValidationContextAll - validate all configuration
	ValidationContextAll ValidationContext = "all"
)

// ValidationResult holds validation results
type ValidationResult struct {
	Valid    bool
	Errors   []string
	Warnings []string
}

// AddError adds an error to the validation result
func (vr *ValidationResult) AddError(format string, args ...interface{}) {
	vr.Valid = false
	vr.Errors = append(vr.Errors, fmt.Sprintf(format, args...))
}

// AddWarning adds a warning to the validation result
func (vr *ValidationResult) AddWarning(format string, args ...interface{}) {
	vr.Warnings = append(vr.Warnings, fmt.Sprintf(format, args...))
}

// HasErrors returns true if there are any errors
func (vr *ValidationResult) HasErrors() bool {
	return !vr.Valid || len(vr.Errors) > 0
}

// Error returns a formatted error message
func (vr *ValidationResult) Error() string {
	if !vr.HasErrors() {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("Configuration validation failed:\n")
	for _, err := range vr.Errors {
		sb.WriteString(fmt.Sprintf("  ✗ %s\n", err))
	}

	if len(vr.Warnings) > 0 {
		sb.WriteString("\nWarnings:\n")
		for _, warn := range vr.Warnings {
			sb.WriteString(fmt.Sprintf("  ! %s\n", warn))
		}
	}

	return sb.String()
}

// Validate validates configuration for the given context using the
// configured or detected deployment mode
func (c *Config) Validate(ctx ValidationContext) *ValidationResult {
	return c.ValidateWithMode(ctx, c.DeploymentMode())
}

// ValidateWithMode validates configuration for the given context and deployment mode
func (c *Config) ValidateWithMode(ctx ValidationContext, mode DeploymentMode) *ValidationResult {
	result := &ValidationResult{Valid: true}

	switch ctx {
	case ValidationContextBackup:
		c.validateNeo4j(result, true, mode)
		c.validateBackup(result)
	case ValidationContextRestore:
		c.validateNeo4j(result, true, mode)
		c.validateBackup(result)
		c.validateRestore(result)
	case ValidationContextOffline:
		c.validateBackup(result)
	case ValidationContextAll:
		c.validateNeo4j(result, true, mode)
		c.validateBackup(result)
		c.validateRestore(result)
	}

	// CI runs unattended, so anything suspicious fails the run
	if mode.RequiresStrictValidation() {
		for _, warn := range result.Warnings {
			result.AddError("%s", warn)
		}
		result.Warnings = nil
	}

	return result
}

func (c *Config) validateNeo4j(result *ValidationResult, required bool, mode DeploymentMode) {
	if c.Neo4j.URI == "" {
		if required {
			result.AddError("NEO4J_URI is required but not set")
		} else {
			result.AddWarning("NEO4J_URI is not set")
		}
	} else {
		u, err := url.Parse(c.Neo4j.URI)
		if err != nil {
			result.AddError("NEO4J_URI is invalid: %v", err)
		} else {
			switch u.Scheme {
			case "bolt", "bolt+s", "bolt+ssc", "neo4j", "neo4j+s", "neo4j+ssc":
			default:
				result.AddError("NEO4J_URI must use a bolt:// or neo4j:// scheme, got %q", u.Scheme)
			}
		}

		// Localhost only matters outside development
		if strings.Contains(c.Neo4j.URI, "localhost") || strings.Contains(c.Neo4j.URI, "127.0.0.1") {
			if mode.RequiresSecureCredentials() {
				result.AddWarning("Neo4j URI points at localhost in %s mode (%s)", mode, mode.Description())
			}
		}
	}

	if c.Neo4j.User == "" {
		if required {
			result.AddError("NEO4J_USER is required but not set")
		} else {
			result.AddWarning("NEO4J_USER is not set")
		}
	}

	if c.Neo4j.Password == "" {
		if required {
			result.AddError("NEO4J_PASSWORD is required but not set. Set it via %s.", mode.ConfigSource())
		} else {
			result.AddWarning("NEO4J_PASSWORD is not set")
		}
	} else {
		insecurePasswords := []string{"password", "neo4j", "changeme", "test"}
		for _, insecure := range insecurePasswords {
			if c.Neo4j.Password != insecure {
				continue
			}
			if mode.RequiresSecureCredentials() {
				result.AddError("NEO4J_PASSWORD is set to an insecure default (%s). This is not allowed in %s mode. Set a secure password via %s.", insecure, mode, mode.ConfigSource())
			} else if mode.AllowsDevelopmentDefaults() {
				result.AddWarning("NEO4J_PASSWORD is set to a very common password (%s). Consider changing it even for local development.", insecure)
			}
		}
	}

	if c.Neo4j.Database == "" {
		result.AddWarning("NEO4J_DATABASE is not set, the server default database will be used")
	}
	if c.Neo4j.MaxPoolSize < 0 {
		result.AddError("neo4j.max_pool_size must not be negative, got %d", c.Neo4j.MaxPoolSize)
	}
}

func (c *Config) validateBackup(result *ValidationResult) {
	if c.Backup.Directory == "" {
		result.AddError("backup.directory (KGVAULT_BACKUP_DIR) is required but not set")
	}
	if strings.ContainsAny(c.Backup.Source, `/\`) {
		result.AddError("backup.source must not contain path separators, got %q", c.Backup.Source)
	}
	if c.Backup.MaxSnapshots < 1 {
		result.AddWarning("backup.max_snapshots is %d, at least 1 backup is always kept", c.Backup.MaxSnapshots)
	}

	t := c.Backup.Thresholds
	if t.NodeDelta <= 0 && t.RelationshipDelta <= 0 && t.PercentageGrowth <= 0 {
		result.AddWarning("all automatic backup thresholds are disabled; `backup auto` will never back up")
	}
	if t.PercentageGrowth > 1 {
		result.AddWarning("backup.thresholds.percentage_growth is a fraction (0.10 = 10%%), got %.2f", t.PercentageGrowth)
	}
}

func (c *Config) validateRestore(result *ValidationResult) {
	if _, err := restore.ParseMode(c.Restore.Mode); err != nil {
		result.AddError("restore.mode: %v", err)
	}
	for _, label := range c.Restore.PreserveLabels {
		if _, err := graph.QuoteIdentifier(label); err != nil {
			result.AddError("restore.preserve_labels: %v", err)
		}
	}
	for _, rule := range c.Restore.Identity {
		if rule.Label == "" {
			result.AddError("restore.identity: rule without label")
		} else if len(rule.Properties) == 0 {
			result.AddWarning("restore.identity: rule for %s has no properties and is ignored", rule.Label)
		}
	}
	if c.Restore.BatchSize < 0 {
		result.AddError("restore.batch_size must not be negative, got %d", c.Restore.BatchSize)
	}
	if c.Restore.BatchesPerSecond < 0 {
		result.AddError("restore.batches_per_second must not be negative, got %.2f", c.Restore.BatchesPerSecond)
	}
	if !c.Restore.SafetyBackup {
		result.AddWarning("restore.safety_backup is disabled; a restore cannot be undone")
	}
}

// RequireNeo4j checks if Neo4j configuration is valid and returns error if not
func (c *Config) RequireNeo4j() error {
	result := &ValidationResult{Valid: true}
	c.validateNeo4j(result, true, c.DeploymentMode())

	if result.HasErrors() {
		return errors.ConfigError(result.Error())
	}

	return nil
}
