package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/rohankatakam/kgvault/internal/errors"
)

// CredentialManager resolves the Neo4j password.
// Priority: Environment Variable → Keychain → Credentials File → Interactive Prompt
type CredentialManager struct {
	mode       DeploymentMode
	keyring    *KeyringManager
	configPath string
	in         io.Reader
	out        io.Writer
}

// Credentials is the on-disk fallback when no keychain is available
type Credentials struct {
	Neo4jPassword string `yaml:"neo4j_password"`
}

// NewCredentialManager creates a credential manager for the given mode
func NewCredentialManager(mode DeploymentMode) *CredentialManager {
	homeDir, _ := os.UserHomeDir()
	return &CredentialManager{
		mode:       mode,
		keyring:    NewKeyringManager(),
		configPath: filepath.Join(homeDir, ".config", "kgvault", "credentials.yaml"),
		in:         os.Stdin,
		out:        os.Stderr,
	}
}

// WithConfigPath overrides the credentials file location
func (cm *CredentialManager) WithConfigPath(path string) *CredentialManager {
	cm.configPath = path
	return cm
}

// WithIO replaces the prompt input and output streams
func (cm *CredentialManager) WithIO(in io.Reader, out io.Writer) *CredentialManager {
	cm.in = in
	cm.out = out
	return cm
}

// GetNeo4jPassword retrieves the Neo4j password using the priority chain
func (cm *CredentialManager) GetNeo4jPassword() (string, error) {
	if password := os.Getenv("NEO4J_PASSWORD"); password != "" {
		return password, nil
	}

	if cm.keyring.IsAvailable() {
		if password, err := cm.keyring.GetNeo4jPassword(); err == nil && password != "" {
			return password, nil
		}
	}

	if creds, err := cm.loadConfigFile(); err == nil && creds.Neo4jPassword != "" {
		return creds.Neo4jPassword, nil
	}

	// Only prompt in packaged mode, never in CI
	if cm.mode.AllowsInteractivePrompts() && isInteractive() {
		fmt.Fprintln(cm.out, "\nNeo4j password not found.")
		return cm.promptForPassword()
	}

	return "", errors.ConfigErrorf(
		"NEO4J_PASSWORD not found. Set it via:\n"+
			"  1. Environment variable: export NEO4J_PASSWORD=...\n"+
			"  2. Run: kgvault credentials set (stores it in the OS keychain)\n"+
			"  3. Credentials file: %s", cm.configPath)
}

// SaveNeo4jPassword stores the password in the keychain, or in the
// credentials file when no keychain is available. It returns where the
// password went.
func (cm *CredentialManager) SaveNeo4jPassword(password string) (string, error) {
	if password == "" {
		return "", errors.ValidationError("neo4j password cannot be empty")
	}

	if cm.keyring.IsAvailable() {
		if err := cm.keyring.SetNeo4jPassword(password); err != nil {
			return "", errors.Wrap(err, errors.ErrorTypeConfig, errors.SeverityHigh,
				"failed to save neo4j password to keychain")
		}
		return "keychain", nil
	}

	if err := cm.saveConfigFile(Credentials{Neo4jPassword: password}); err != nil {
		return "", errors.FileSystemErrorf(err, "failed to write %s", cm.configPath)
	}
	return cm.configPath, nil
}

// DeleteNeo4jPassword removes the password from the keychain and the
// credentials file
func (cm *CredentialManager) DeleteNeo4jPassword() error {
	if cm.keyring.IsAvailable() {
		if err := cm.keyring.DeleteNeo4jPassword(); err != nil {
			return errors.Wrap(err, errors.ErrorTypeConfig, errors.SeverityHigh,
				"failed to delete neo4j password from keychain")
		}
	}

	if err := os.Remove(cm.configPath); err != nil && !os.IsNotExist(err) {
		return errors.FileSystemErrorf(err, "failed to remove %s", cm.configPath)
	}
	return nil
}

// ReadPassword reads a secret from the manager's input without echo
func (cm *CredentialManager) ReadPassword(prompt string) (string, error) {
	fmt.Fprint(cm.out, prompt)
	return cm.readSecurely()
}

func (cm *CredentialManager) loadConfigFile() (*Credentials, error) {
	data, err := os.ReadFile(cm.configPath)
	if err != nil {
		return nil, err
	}

	var creds Credentials
	if err := yaml.Unmarshal(data, &creds); err != nil {
		return nil, err
	}

	return &creds, nil
}

func (cm *CredentialManager) saveConfigFile(creds Credentials) error {
	dir := filepath.Dir(cm.configPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	data, err := yaml.Marshal(creds)
	if err != nil {
		return err
	}

	// user-only read/write
	return os.WriteFile(cm.configPath, data, 0600)
}

func (cm *CredentialManager) promptForPassword() (string, error) {
	password, err := cm.ReadPassword("Enter Neo4j password: ")
	if err != nil {
		return "", err
	}
	if password == "" {
		return "", errors.ConfigError("neo4j password is required")
	}

	if where, err := cm.SaveNeo4jPassword(password); err == nil {
		fmt.Fprintf(cm.out, "Saved to %s\n", where)
	}
	return password, nil
}

// readSecurely reads a password from stdin without echoing
func (cm *CredentialManager) readSecurely() (string, error) {
	if cm.in == os.Stdin && term.IsTerminal(int(syscall.Stdin)) {
		bytes, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Fprintln(cm.out)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(bytes)), nil
	}

	// Piped input
	reader := bufio.NewReader(cm.in)
	line, err := reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// isInteractive returns true if stdin is a terminal (not piped)
func isInteractive() bool {
	return term.IsTerminal(int(syscall.Stdin))
}

// GetMode returns the deployment mode the manager was created for
func (cm *CredentialManager) GetMode() DeploymentMode {
	return cm.mode
}

// GetConfigPath returns the path to the credentials file
func (cm *CredentialManager) GetConfigPath() string {
	return cm.configPath
}
