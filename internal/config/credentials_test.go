package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"github.com/rohankatakam/kgvault/internal/errors"
)

// withoutKeychain makes every keychain call fail for the rest of the test
func withoutKeychain(t *testing.T) {
	t.Helper()
	keyring.MockInitWithError(fmt.Errorf("no secret service"))
	t.Cleanup(keyring.MockInit)
}

func newTestCredentialManager(t *testing.T, mode DeploymentMode) *CredentialManager {
	t.Helper()
	isolateEnv(t)
	path := filepath.Join(t.TempDir(), "kgvault", "credentials.yaml")
	return NewCredentialManager(mode).WithConfigPath(path).WithIO(strings.NewReader(""), io.Discard)
}

func TestCredentialManager_EnvWins(t *testing.T) {
	cm := newTestCredentialManager(t, ModeCI)
	_, err := cm.SaveNeo4jPassword("from-keychain")
	require.NoError(t, err)
	t.Setenv("NEO4J_PASSWORD", "from-env")

	password, err := cm.GetNeo4jPassword()
	require.NoError(t, err)
	assert.Equal(t, "from-env", password)
}

func TestCredentialManager_KeychainRoundTrip(t *testing.T) {
	cm := newTestCredentialManager(t, ModeCI)

	where, err := cm.SaveNeo4jPassword("s3cret")
	require.NoError(t, err)
	assert.Equal(t, "keychain", where)

	password, err := cm.GetNeo4jPassword()
	require.NoError(t, err)
	assert.Equal(t, "s3cret", password)

	require.NoError(t, cm.DeleteNeo4jPassword())
	_, err = cm.GetNeo4jPassword()
	assert.ErrorIs(t, err, errors.ErrConfig)
}

func TestCredentialManager_FileFallback(t *testing.T) {
	cm := newTestCredentialManager(t, ModeCI)
	withoutKeychain(t)

	where, err := cm.SaveNeo4jPassword("file-secret")
	require.NoError(t, err)
	assert.Equal(t, cm.GetConfigPath(), where)

	info, err := os.Stat(cm.GetConfigPath())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	password, err := cm.GetNeo4jPassword()
	require.NoError(t, err)
	assert.Equal(t, "file-secret", password)

	require.NoError(t, cm.DeleteNeo4jPassword())
	_, err = os.Stat(cm.GetConfigPath())
	assert.True(t, os.IsNotExist(err))
}

func TestCredentialManager_MissingInCI(t *testing.T) {
	cm := newTestCredentialManager(t, ModeCI)

	_, err := cm.GetNeo4jPassword()
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrConfig)
	assert.Contains(t, err.Error(), "kgvault credentials set")
}

func TestCredentialManager_SaveEmpty(t *testing.T) {
	cm := newTestCredentialManager(t, ModePackaged)

	_, err := cm.SaveNeo4jPassword("")
	assert.ErrorIs(t, err, errors.ErrValidation)
}

func TestCredentialManager_ReadPasswordFromPipe(t *testing.T) {
	cm := newTestCredentialManager(t, ModePackaged)
	var out strings.Builder
	cm.WithIO(strings.NewReader("  piped-secret \n"), &out)

	password, err := cm.ReadPassword("Password: ")
	require.NoError(t, err)
	assert.Equal(t, "piped-secret", password)
	assert.Equal(t, "Password: ", out.String())
}

func TestKeyringManager_PasswordSource(t *testing.T) {
	isolateEnv(t)
	km := NewKeyringManager()
	cfg := Default()
	credPath := filepath.Join(t.TempDir(), "credentials.yaml")

	assert.Equal(t, "none", km.GetPasswordSource(cfg, credPath).Source)

	require.NoError(t, os.WriteFile(credPath, []byte("neo4j_password: x\n"), 0600))
	assert.Equal(t, "credentials_file", km.GetPasswordSource(cfg, credPath).Source)

	cfg.Neo4j.Password = "plain"
	info := km.GetPasswordSource(cfg, credPath)
	assert.Equal(t, "config", info.Source)
	assert.False(t, info.Secure)

	require.NoError(t, km.SetNeo4jPassword("stored"))
	t.Cleanup(func() { _ = km.DeleteNeo4jPassword() })
	info = km.GetPasswordSource(cfg, credPath)
	assert.Equal(t, "keychain", info.Source)
	assert.True(t, info.Secure)

	t.Setenv("NEO4J_PASSWORD", "env")
	assert.Equal(t, "env", km.GetPasswordSource(cfg, credPath).Source)
}

func TestKeyringManager_Unavailable(t *testing.T) {
	withoutKeychain(t)
	km := NewKeyringManager()

	assert.False(t, km.IsAvailable())
	_, err := km.GetNeo4jPassword()
	assert.Error(t, err)
	assert.Error(t, km.SetNeo4jPassword("x"))
}

func TestKeyringManager_SetEmpty(t *testing.T) {
	assert.Error(t, NewKeyringManager().SetNeo4jPassword(""))
}

func TestMaskSecret(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "(not set)"},
		{"short", "***"},
		{"correct-horse", "co...se"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MaskSecret(tt.in))
	}
}
