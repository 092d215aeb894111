package main

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pario-ai/codegen/pkg/credential"
)

func writeConfig(t *testing.T, baseURL string) string {
	t.Helper()
	dir := t.TempDir()
	content := fmt.Sprintf(`
listen: "127.0.0.1:0"
db_path: %q
model:
  base_url: %q
credential:
  secrets_path: %q
`, filepath.Join(dir, "codegen.db"), baseURL, filepath.Join(dir, "secrets.toml"))
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestServeHaltsWithoutCredential(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	path := writeConfig(t, "http://127.0.0.1:1")

	_, err := run(t, "serve", "-c", path)
	require.Error(t, err)
	assert.ErrorIs(t, err, credential.ErrMissingCredential)
	assert.Contains(t, err.Error(), "GEMINI_API_KEY not set")
}

func TestGenerateOneShot(t *testing.T) {
	var calls atomic.Int32
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "sk-test", r.Header.Get("x-goog-api-key"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"candidates":[{"content":{"role":"model","parts":[{"text":"def add(a,b): return a+b\n"}]}}],
			"usageMetadata":{"promptTokenCount":12,"candidatesTokenCount":9,"totalTokenCount":21}}`)
	}))
	defer upstream.Close()

	t.Setenv("GEMINI_API_KEY", "sk-test")
	path := writeConfig(t, upstream.URL)

	out, err := run(t, "generate", "-c", path, "A function that adds two numbers")
	require.NoError(t, err)
	assert.Equal(t, "def add(a,b): return a+b\n", out)
	assert.Equal(t, int32(1), calls.Load())

	out, err = run(t, "stats", "-c", path, "--mine")
	require.NoError(t, err)
	assert.Contains(t, out, credential.Fingerprint("sk-test"))
	assert.Contains(t, out, "21")
	assert.Contains(t, out, "Total tokens for "+credential.Fingerprint("sk-test")+" (all time): 21")
	assert.NotContains(t, out, "TIME")

	out, err = run(t, "stats", "-c", path, "--mine", "--records", "--since", "2000-01-01")
	require.NoError(t, err)
	assert.Contains(t, out, "(since 2000-01-01): 21")
	assert.Contains(t, out, "TIME")
	assert.Contains(t, out, "gemini-2.5-flash")

	_, err = run(t, "stats", "-c", path, "--mine", "--since", "yesterday")
	require.Error(t, err)
}

func TestGenerateUpstreamError(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"error":{"code":403,"message":"API key not valid","status":"PERMISSION_DENIED"}}`)
	}))
	defer upstream.Close()

	t.Setenv("GEMINI_API_KEY", "sk-bad")
	path := writeConfig(t, upstream.URL)

	out, err := run(t, "generate", "-c", path, "anything")
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(out, "An error occurred: "), out)
}

func TestGenerateEmptyPrompt(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "sk-test")
	path := writeConfig(t, "http://127.0.0.1:1")

	root := newRootCmd()
	root.SetIn(strings.NewReader("   \n"))
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"generate", "-c", path})
	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "prompt is empty")
}

func TestMCPGenerate(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"candidates":[{"content":{"role":"model","parts":[{"text":"print('hi')\n"}]}}]}`)
	}))
	defer upstream.Close()

	t.Setenv("GEMINI_API_KEY", "sk-test")
	path := writeConfig(t, upstream.URL)

	in := `{"jsonrpc":"2.0","id":1,"method":"initialize"}
{"jsonrpc":"2.0","method":"notifications/initialized"}
{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"generate_code","arguments":{"prompt":"print hi"}}}
`
	root := newRootCmd()
	var out bytes.Buffer
	root.SetIn(strings.NewReader(in))
	root.SetOut(&out)
	root.SetArgs([]string{"mcp", "-c", path})
	require.NoError(t, root.Execute())

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"name":"codegen"`)
	assert.Contains(t, lines[1], `print('hi')`)
	assert.NotContains(t, lines[1], `"isError"`)
}
