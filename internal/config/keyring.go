package config

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/zalando/go-keyring"
)

const (
	// KeyringService is the service name in the OS keychain
	KeyringService = "kgvault"

	// KeyringNeo4jPasswordItem is the key for the Neo4j password
	KeyringNeo4jPasswordItem = "neo4j-password"

	keyringProbeItem = "test-availability"
)

// KeyringManager handles secure credential storage in OS keychain
type KeyringManager struct {
	logger *slog.Logger
}

// NewKeyringManager creates a new keyring manager
func NewKeyringManager() *KeyringManager {
	return &KeyringManager{
		logger: slog.Default().With("component", "keyring"),
	}
}

// SetNeo4jPassword stores the Neo4j password in the OS keychain:
// - macOS: Keychain Access.app → "kgvault" → "neo4j-password"
// - Windows: Credential Manager → "kgvault"
// - Linux: Secret Service (requires libsecret)
func (km *KeyringManager) SetNeo4jPassword(password string) error {
	if password == "" {
		return fmt.Errorf("neo4j password cannot be empty")
	}

	if err := keyring.Set(KeyringService, KeyringNeo4jPasswordItem, password); err != nil {
		km.logger.Error("failed to save neo4j password to keychain", "error", err)
		return fmt.Errorf("failed to save to OS keychain: %w", err)
	}

	km.logger.Info("neo4j password saved to keychain", "service", KeyringService)
	return nil
}

// GetNeo4jPassword retrieves the Neo4j password; empty when not stored
func (km *KeyringManager) GetNeo4jPassword() (string, error) {
	password, err := keyring.Get(KeyringService, KeyringNeo4jPasswordItem)
	if err == keyring.ErrNotFound {
		return "", nil
	}
	if err != nil {
		km.logger.Error("failed to get neo4j password from keychain", "error", err)
		return "", fmt.Errorf("failed to read from OS keychain: %w", err)
	}

	km.logger.Debug("neo4j password retrieved from keychain")
	return password, nil
}

// DeleteNeo4jPassword removes the Neo4j password from the OS keychain
func (km *KeyringManager) DeleteNeo4jPassword() error {
	err := keyring.Delete(KeyringService, KeyringNeo4jPasswordItem)
	if err == keyring.ErrNotFound {
		// Already deleted, not an error
		return nil
	}
	if err != nil {
		km.logger.Error("failed to delete neo4j password from keychain", "error", err)
		return fmt.Errorf("failed to delete from OS keychain: %w", err)
	}

	km.logger.Info("neo4j password deleted from keychain")
	return nil
}

// IsAvailable checks if OS keychain is available.
// Returns false on headless systems (CI/CD) where keychain isn't available.
func (km *KeyringManager) IsAvailable() bool {
	_, err := keyring.Get(KeyringService, keyringProbeItem)
	if err == nil || err == keyring.ErrNotFound {
		return true
	}
	km.logger.Debug("keychain not available", "error", err)
	return false
}

// PasswordSourceInfo describes where the Neo4j password comes from
type PasswordSourceInfo struct {
	Source      string // "env", "keychain", "config", "credentials_file", "none"
	Secure      bool
	Recommended string
}

// GetPasswordSource determines where the Neo4j password is coming from
func (km *KeyringManager) GetPasswordSource(cfg *Config, credentialsPath string) PasswordSourceInfo {
	if os.Getenv("NEO4J_PASSWORD") != "" {
		return PasswordSourceInfo{
			Source:      "env",
			Secure:      true,
			Recommended: "Using environment variable (good for CI/CD)",
		}
	}

	if stored, _ := km.GetNeo4jPassword(); stored != "" {
		return PasswordSourceInfo{
			Source:      "keychain",
			Secure:      true,
			Recommended: "Stored securely in OS keychain",
		}
	}

	if cfg != nil && cfg.Neo4j.Password != "" {
		return PasswordSourceInfo{
			Source:      "config",
			Secure:      false,
			Recommended: "Plaintext password in config file. Run: kgvault credentials set",
		}
	}

	if credentialsPath != "" {
		if _, err := os.Stat(credentialsPath); err == nil {
			return PasswordSourceInfo{
				Source:      "credentials_file",
				Secure:      false,
				Recommended: fmt.Sprintf("Using %s (consider the OS keychain)", credentialsPath),
			}
		}
	}

	return PasswordSourceInfo{
		Source:      "none",
		Secure:      false,
		Recommended: "No Neo4j password configured. Run: kgvault credentials set",
	}
}

// MaskSecret masks a secret for display, keeping the first and last two characters
func MaskSecret(secret string) string {
	if secret == "" {
		return "(not set)"
	}
	if len(secret) < 8 {
		return "***"
	}
	return fmt.Sprintf("%s...%s", secret[:2], secret[len(secret)-2:])
}
