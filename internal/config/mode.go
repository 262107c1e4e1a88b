package config

import (
	"os"
	"strings"
)

// DeploymentMode represents the deployment context
type DeploymentMode string

const (
	// ModeDevelopment is a local checkout talking to a local Neo4j container.
	// Passwords from .env are acceptable.
	ModeDevelopment DeploymentMode = "development"

	// ModePackaged is an installed binary run by an operator.
	// Credentials via env vars, keychain, credentials file or prompt.
	ModePackaged DeploymentMode = "packaged"

	// ModeCI is a scheduled or pipeline run (e.g. nightly `kgvault backup auto`).
	// Credentials come from the environment only and nothing prompts.
	ModeCI DeploymentMode = "ci"
)

// DetectMode determines the deployment context based on environment
func DetectMode() DeploymentMode {
	// Explicit mode override (highest priority)
	if m, ok := ParseDeploymentMode(os.Getenv("KGVAULT_MODE")); ok {
		return m
	}

	// CI environment detection
	if isCI() {
		return ModeCI
	}

	// Development indicators: a .env file or a source checkout
	for _, marker := range []string{".env", "go.mod", "docker-compose.yml"} {
		if _, err := os.Stat(marker); err == nil {
			return ModeDevelopment
		}
	}

	return ModePackaged
}

// ParseDeploymentMode maps a mode name or alias to a DeploymentMode
func ParseDeploymentMode(s string) (DeploymentMode, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "development", "dev":
		return ModeDevelopment, true
	case "packaged", "pkg", "production", "prod":
		return ModePackaged, true
	case "ci", "cicd":
		return ModeCI, true
	}
	return "", false
}

// isCI detects if running in a CI/CD environment
func isCI() bool {
	ciEnvVars := []string{
		"CI",
		"CONTINUOUS_INTEGRATION",
		"GITHUB_ACTIONS",
		"GITLAB_CI",
		"CIRCLECI",
		"JENKINS_URL",
		"BUILDKITE",
		"TF_BUILD",
	}

	for _, envVar := range ciEnvVars {
		if os.Getenv(envVar) != "" {
			return true
		}
	}

	return false
}

// String returns the string representation of the mode
func (m DeploymentMode) String() string {
	return string(m)
}

// AllowsDevelopmentDefaults returns true if mode allows .env defaults
func (m DeploymentMode) AllowsDevelopmentDefaults() bool {
	return m == ModeDevelopment
}

// RequiresSecureCredentials returns true if mode requires secure passwords
func (m DeploymentMode) RequiresSecureCredentials() bool {
	return m == ModePackaged || m == ModeCI
}

// AllowsInteractivePrompts returns true if interactive prompts are allowed
func (m DeploymentMode) AllowsInteractivePrompts() bool {
	return m == ModePackaged
}

// RequiresStrictValidation returns true if mode requires strict validation
func (m DeploymentMode) RequiresStrictValidation() bool {
	return m == ModeCI
}

// Description returns a human-readable description of the mode
func (m DeploymentMode) Description() string {
	switch m {
	case ModeDevelopment:
		return "Local development (source checkout, local Neo4j)"
	case ModePackaged:
		return "Packaged installation"
	case ModeCI:
		return "CI/CD pipeline"
	default:
		return "Unknown mode"
	}
}

// ConfigSource returns where credentials should come from
func (m DeploymentMode) ConfigSource() string {
	switch m {
	case ModeDevelopment:
		return ".env file"
	case ModePackaged:
		return "environment variables, keychain, credentials file or prompt"
	case ModeCI:
		return "environment variables only"
	default:
		return "unknown"
	}
}
