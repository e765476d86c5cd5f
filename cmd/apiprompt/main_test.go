package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cli struct {
	t   *testing.T
	cfg string
}

func newCLI(t *testing.T) *cli {
	dir := t.TempDir()
	t.Setenv("APIPROMPT_STORE_PATH", filepath.Join(dir, "apiprompt.db"))
	t.Setenv("APIPROMPT_OUTPUT_DIR", filepath.Join(dir, "out"))
	t.Setenv("APIPROMPT_LOG_FORMAT", "json")
	return &cli{t: t, cfg: filepath.Join(dir, "config.yaml")}
}

func (c *cli) run(stdin string, args ...string) (string, error) {
	c.t.Helper()
	a := &app{}
	defer a.close()
	cmd := newRootCmd(a)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--config", c.cfg}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func (c *cli) must(stdin string, args ...string) string {
	c.t.Helper()
	out, err := c.run(stdin, args...)
	require.NoError(c.t, err, "apiprompt %s", strings.Join(args, " "))
	return out
}

func TestEndpointWorkflow(t *testing.T) {
	c := newCLI(t)
	projectID := strings.TrimSpace(c.must("", "project", "create", "Shop"))
	require.NotEmpty(t, projectID)

	id := strings.TrimSpace(c.must("", "endpoint", "create",
		"--project", projectID, "--title", "Create user", "--method", "post", "--path", "users",
		"--security", "open", "--persona", "staff", "--pref", "unitTests=true", "--pref", "cleanCode=false"))

	c.must("", "schema", "add", id)
	c.must("", "schema", "set", id, "--path", "0", "--name", "email", "--format", "email")
	c.must("", "response", "add", id, "201")

	out := c.must("", "prompt", id)
	assert.True(t, strings.HasPrefix(out, "# System Prompt\nYou are a Staff Engineer"))
	assert.Contains(t, out, "- Endpoint: POST /users")
	assert.Contains(t, out, `"name": "email"`)
	assert.Contains(t, out, `"201"`)
	assert.Contains(t, out, "- Unit Tests")
	assert.NotContains(t, out, "- Clean Code")

	list := c.must("", "endpoint", "list", "--project", projectID, "--search", "user")
	assert.Contains(t, list, id)

	_, err := c.run("", "schema", "remove", id, "--path", "/")
	assert.Error(t, err)

	exported := c.must("", "endpoint", "export", "--project", projectID)
	c.must(exported, "endpoint", "import", "--project", projectID)
	lines := strings.Split(strings.TrimSpace(c.must("", "endpoint", "list", "--project", projectID)), "\n")
	assert.Len(t, lines, 2)
	assert.Contains(t, c.must("", "project", "list"), "Shop")
}

func TestPromptFromFile(t *testing.T) {
	c := newCLI(t)
	out := c.must(`{"title":"Ping","method":"GET","path":"/ping","security":"secure","authMechanism":"jwt"}`, "prompt", "--file", "-")
	assert.Contains(t, out, "- Auth: secure (jwt)")
	assert.Contains(t, out, "- 401 if unauthenticated")

	_, err := c.run("", "prompt")
	assert.Error(t, err)
}

func TestExportWritesFiles(t *testing.T) {
	c := newCLI(t)
	projectID := strings.TrimSpace(c.must("", "project", "create", "Shop"))
	c.must("", "endpoint", "create", "--project", projectID, "--title", "Get user", "--path", "/users/:id")

	dir := filepath.Join(t.TempDir(), "export")
	c.must("", "export", "--project", projectID, "--dir", dir)
	for _, name := range []string{"openapi.yaml", "prompts.md"} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}
}

func TestPersonas(t *testing.T) {
	c := newCLI(t)
	out := c.must("", "personas")
	assert.Contains(t, out, "* senior")
	assert.Contains(t, out, "noExtraComments")
}

func TestImportHAR(t *testing.T) {
	c := newCLI(t)
	projectID := strings.TrimSpace(c.must("", "project", "create", "Shop"))
	capture := `{"log":{"entries":[
	  {"startedDateTime":"2026-01-02T10:00:00Z",
	   "request":{"method":"GET","url":"https://api.example.com/orders/12","headers":[{"name":"Authorization","value":"Bearer t0k"}]},
	   "response":{"status":200,"content":{"mimeType":"application/json","text":"{\"total\":9.5}"}}},
	  {"startedDateTime":"2026-01-02T10:00:01Z",
	   "request":{"method":"GET","url":"https://api.example.com/orders/13","headers":[]},
	   "response":{"status":200,"content":{"mimeType":"application/json","text":"{\"total\":1}"}}}
	]}}`
	out := c.must(capture, "endpoint", "import", "--project", projectID, "--har")
	assert.Equal(t, "imported 1 endpoints\n", out)

	list := c.must("", "endpoint", "list", "--project", projectID)
	assert.Contains(t, list, "/orders/:id")
}

func TestPromptSend(t *testing.T) {
	c := newCLI(t)
	var received string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := new(bytes.Buffer)
		_, _ = body.ReadFrom(r.Body)
		received = body.String()
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"package users"}}]}`))
	}))
	defer srv.Close()
	t.Setenv("APIPROMPT_ASSISTANT_BASE_URL", srv.URL)

	out := c.must(`{"title":"Ping","method":"GET","path":"/ping","security":"open"}`, "prompt", "--file", "-", "--send")
	assert.Equal(t, "package users\n", out)
	assert.Contains(t, received, "GET /ping")
}
