package credential

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSecrets(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "secrets.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestResolveSecretsFirst(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "from-env")
	path := writeSecrets(t, `GEMINI_API_KEY = "from-secrets"`)

	key, source, err := Default(path).Resolve("GEMINI_API_KEY")
	require.NoError(t, err)
	assert.Equal(t, "from-secrets", key)
	assert.Equal(t, "secrets:"+path, source)
}

func TestResolveFallsBackToEnv(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "from-env")
	path := writeSecrets(t, `OTHER_KEY = "x"`)

	key, source, err := Default(path).Resolve("GEMINI_API_KEY")
	require.NoError(t, err)
	assert.Equal(t, "from-env", key)
	assert.Equal(t, "env", source)
}

func TestResolveMissingSecretsFile(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "from-env")

	key, _, err := Default(filepath.Join(t.TempDir(), "absent.toml")).Resolve("GEMINI_API_KEY")
	require.NoError(t, err)
	assert.Equal(t, "from-env", key)
}

func TestResolveExhausted(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	path := writeSecrets(t, `GEMINI_API_KEY = "   "`)

	_, _, err := Default(path).Resolve("GEMINI_API_KEY")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingCredential))

	var cfgErr *ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "GEMINI_API_KEY", cfgErr.Name)
	assert.Equal(t, []string{"secrets:" + path, "env"}, cfgErr.Tried)
	assert.Contains(t, err.Error(), "GEMINI_API_KEY not set")
}

func TestResolveMalformedSecrets(t *testing.T) {
	path := writeSecrets(t, `GEMINI_API_KEY = `)

	_, _, err := Default(path).Resolve("GEMINI_API_KEY")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrMissingCredential))
}

func TestResolveNonStringSecret(t *testing.T) {
	path := writeSecrets(t, `GEMINI_API_KEY = 42`)

	_, _, err := NewResolver(NewSecretsFile(path)).Resolve("GEMINI_API_KEY")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "want string")
}

func TestResolveOrder(t *testing.T) {
	r := NewResolver(Static{}, Static{"K": " second "}, Static{"K": "third"})
	key, _, err := r.Resolve("K")
	require.NoError(t, err)
	assert.Equal(t, "second", key)
}

func TestFingerprint(t *testing.T) {
	a := Fingerprint("sk-one")
	assert.Len(t, a, 16)
	assert.Equal(t, a, Fingerprint("sk-one"))
	assert.NotEqual(t, a, Fingerprint("sk-two"))
	assert.NotContains(t, a, "sk-one")
}
