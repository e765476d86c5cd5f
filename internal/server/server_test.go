package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/yourorg/apiprompt/internal/config"
	"github.com/yourorg/apiprompt/internal/store"
	"github.com/yourorg/apiprompt/pkg/types"
)

func newTestServer(t *testing.T, tokens ...string) (*Server, *store.SQLiteStore) {
	t.Helper()

	tmpDir := t.TempDir()
	cfg := &config.Config{}
	cfg.SetDefaults()
	cfg.Output.Dir = filepath.Join(tmpDir, "output")
	cfg.Server.APITokens = tokens

	st, err := store.NewSQLiteStore(filepath.Join(tmpDir, "apiprompt.db"))
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})

	srv, err := New(cfg, st)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	return srv, st
}

func do(t *testing.T, srv *Server, method, path string, body any, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeInto(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func seed(t *testing.T, srv *Server) (types.Project, types.Endpoint) {
	t.Helper()
	rec := do(t, srv, http.MethodPost, "/api/projects", map[string]string{"name": "Shop"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create project status = %d body=%s", rec.Code, rec.Body)
	}
	var p types.Project
	decodeInto(t, rec, &p)

	rec = do(t, srv, http.MethodPost, "/api/projects/"+p.ID+"/endpoints", map[string]any{
		"title":  "List users",
		"method": "GET",
		"path":   "/users",
		"roles":  []string{"admin"},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create endpoint status = %d body=%s", rec.Code, rec.Body)
	}
	var e types.Endpoint
	decodeInto(t, rec, &e)
	return p, e
}

func TestServerHealthAndEmptyProjects(t *testing.T) {
	srv, _ := newTestServer(t)

	if rec := do(t, srv, http.MethodGet, "/health", nil); rec.Code != http.StatusOK {
		t.Fatalf("health status = %d", rec.Code)
	}
	rec := do(t, srv, http.MethodGet, "/api/projects", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var projects []types.Project
	decodeInto(t, rec, &projects)
	if len(projects) != 0 {
		t.Fatalf("expected no projects, got %d", len(projects))
	}
}

func TestServerEndpointLifecycle(t *testing.T) {
	srv, _ := newTestServer(t)
	p, e := seed(t, srv)

	if e.Security != types.SecuritySecure || e.ProjectID != p.ID {
		t.Fatalf("unexpected defaults: %+v", e)
	}

	rec := do(t, srv, http.MethodGet, "/api/endpoints/"+e.ID+"/prompt", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("prompt status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "- Endpoint: GET /users") {
		t.Fatalf("unexpected prompt: %s", rec.Body)
	}

	rec = do(t, srv, http.MethodGet, "/api/projects/"+p.ID+"/endpoints?method=post", nil)
	var list []types.Endpoint
	decodeInto(t, rec, &list)
	if len(list) != 0 {
		t.Fatalf("method filter should exclude GET endpoints")
	}
	rec = do(t, srv, http.MethodGet, "/api/projects/"+p.ID+"/endpoints?role=admin&search=USER", nil)
	decodeInto(t, rec, &list)
	if len(list) != 1 {
		t.Fatalf("expected one match, got %d", len(list))
	}

	e.Title = "List all users"
	e.Security = types.SecurityPublic
	rec = do(t, srv, http.MethodPut, "/api/endpoints/"+e.ID, e)
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d body=%s", rec.Code, rec.Body)
	}
	var updated types.Endpoint
	decodeInto(t, rec, &updated)
	if updated.Title != "List all users" || updated.ProjectID != p.ID {
		t.Fatalf("unexpected update result: %+v", updated)
	}

	if rec := do(t, srv, http.MethodDelete, "/api/endpoints/"+e.ID, nil); rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}
	if rec := do(t, srv, http.MethodGet, "/api/endpoints/"+e.ID, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("get after delete status = %d", rec.Code)
	}
}

func TestServerValidationErrors(t *testing.T) {
	srv, _ := newTestServer(t)
	p, e := seed(t, srv)

	rec := do(t, srv, http.MethodPost, "/api/projects/"+p.ID+"/endpoints", map[string]any{
		"title": "Trace", "method": "TRACE", "path": "/x",
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("invalid method status = %d", rec.Code)
	}
	if rec := do(t, srv, http.MethodPost, "/api/projects/missing/endpoints", map[string]any{
		"title": "X", "method": "GET", "path": "/x",
	}); rec.Code != http.StatusNotFound {
		t.Fatalf("missing project status = %d", rec.Code)
	}
	if rec := do(t, srv, http.MethodPost, "/api/projects", "{"); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad json status = %d", rec.Code)
	}
	if rec := do(t, srv, http.MethodPost, "/api/endpoints/"+e.ID+"/schema/body", map[string]string{
		"action": "remove", "path": "/",
	}); rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("root delete status = %d", rec.Code)
	}
	if rec := do(t, srv, http.MethodPost, "/api/endpoints/"+e.ID+"/schema/cookies", map[string]string{
		"action": "add_child",
	}); rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("unknown section status = %d", rec.Code)
	}
}

func TestServerSchemaAndResponses(t *testing.T) {
	srv, _ := newTestServer(t)
	_, e := seed(t, srv)

	rec := do(t, srv, http.MethodPost, "/api/endpoints/"+e.ID+"/schema/query", map[string]string{"action": "add_child"})
	if rec.Code != http.StatusOK {
		t.Fatalf("add_child status = %d body=%s", rec.Code, rec.Body)
	}
	rec = do(t, srv, http.MethodPost, "/api/endpoints/"+e.ID+"/schema/query", map[string]any{
		"action": "update", "path": "0", "patch": map[string]any{"name": "page", "type": "number"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d body=%s", rec.Code, rec.Body)
	}

	rec = do(t, srv, http.MethodPut, "/api/endpoints/"+e.ID+"/responses/200", `{"type":"object","properties":[{"name":"items","type":"array"}]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("put response status = %d body=%s", rec.Code, rec.Body)
	}
	if rec := do(t, srv, http.MethodPut, "/api/endpoints/"+e.ID+"/responses/700", ""); rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("bad status code = %d", rec.Code)
	}

	rec = do(t, srv, http.MethodGet, "/api/endpoints/"+e.ID+"/prompt", nil)
	out := rec.Body.String()
	if !strings.Contains(out, `"page"`) || !strings.Contains(out, `"items"`) {
		t.Fatalf("prompt misses edits: %s", out)
	}

	if rec := do(t, srv, http.MethodDelete, "/api/endpoints/"+e.ID+"/responses/200", nil); rec.Code != http.StatusOK {
		t.Fatalf("delete response status = %d", rec.Code)
	}
	if rec := do(t, srv, http.MethodDelete, "/api/endpoints/"+e.ID+"/responses/200", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("second delete status = %d", rec.Code)
	}

	rec = do(t, srv, http.MethodPost, "/api/endpoints/"+e.ID+"/schema/query/check", `{"page": 2}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("check status = %d body=%s", rec.Code, rec.Body)
	}
	rec = do(t, srv, http.MethodPost, "/api/endpoints/"+e.ID+"/schema/query/check", `{"page": "two"}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("mismatch status = %d", rec.Code)
	}
}

func TestServerPreviewAndInfer(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := do(t, srv, http.MethodPost, "/api/prompt/preview", map[string]any{
		"title": "Ping", "method": "GET", "path": "/ping", "security": "open", "personaKey": "staff",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("preview status = %d", rec.Code)
	}
	if !strings.HasPrefix(rec.Body.String(), "# System Prompt\nYou are a Staff Engineer") {
		t.Fatalf("unexpected preview: %q", rec.Body.String())
	}

	rec = do(t, srv, http.MethodPost, "/api/schema/infer", `{"id":"3f2b8c1e-5d4a-4e6b-9c7d-1a2b3c4d5e6f","n":1}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("infer status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"format":"uuid"`) {
		t.Fatalf("unexpected inferred tree: %s", rec.Body)
	}
}

func TestServerPreviewRendersOnlySentFields(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := do(t, srv, http.MethodPost, "/api/prompt/preview", map[string]any{
		"title": "Ping", "method": "get", "path": "ping", "roles": "admin,user",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("preview status = %d: %s", rec.Code, rec.Body)
	}
	out := rec.Body.String()
	if !strings.Contains(out, "- Endpoint: GET /ping") || !strings.Contains(out, "- Roles: admin, user") {
		t.Fatalf("unexpected context: %q", out)
	}
	for _, unwanted := range []string{"# User Preferences", "- Errors:", "- Auth: secure"} {
		if strings.Contains(out, unwanted) {
			t.Fatalf("preview contains %q without it being sent: %q", unwanted, out)
		}
	}
}

func TestServerTokenAuth(t *testing.T) {
	srv, _ := newTestServer(t, "s3cret")

	body := map[string]string{"name": "Shop"}
	if rec := do(t, srv, http.MethodPost, "/api/projects", body); rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous create status = %d", rec.Code)
	}
	if rec := do(t, srv, http.MethodPost, "/api/projects", body, "Authorization", "Bearer nope"); rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad token status = %d", rec.Code)
	}
	if rec := do(t, srv, http.MethodPost, "/api/projects", body, "Authorization", "Bearer s3cret"); rec.Code != http.StatusCreated {
		t.Fatalf("authorised create status = %d", rec.Code)
	}
	if rec := do(t, srv, http.MethodGet, "/api/projects", nil); rec.Code != http.StatusOK {
		t.Fatalf("reads stay open, status = %d", rec.Code)
	}
}

func TestServerMetricsAndOpenAPI(t *testing.T) {
	srv, _ := newTestServer(t)
	p, _ := seed(t, srv)

	rec := do(t, srv, http.MethodGet, "/api/projects/"+p.ID+"/openapi.yaml", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "openapi: 3.0.3") {
		t.Fatalf("openapi status = %d body=%s", rec.Code, rec.Body)
	}

	rec = do(t, srv, http.MethodGet, "/metrics", nil)
	if !strings.Contains(rec.Body.String(), `route="/api/projects/{projectID}/endpoints"`) {
		t.Fatalf("metrics missing route label: %s", rec.Body)
	}
}

func TestServerIndex(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := do(t, srv, http.MethodGet, "/", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `value="senior" selected`) {
		t.Fatalf("index status = %d", rec.Code)
	}
}
