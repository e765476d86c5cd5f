package har

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/yourorg/apiprompt/pkg/schema"
	"github.com/yourorg/apiprompt/pkg/types"
)

const captureHAR = `{
  "log": {
    "entries": [
      {
        "startedDateTime": "2026-01-02T10:00:01Z",
        "request": {
          "method": "get",
          "url": "https://api.example.com/users/42?expand=true&page=2",
          "headers": [
            {"name": "Authorization", "value": "Bearer aaa.bbb.ccc"},
            {"name": "X-Tenant", "value": "acme"},
            {"name": "Accept", "value": "application/json"}
          ]
        },
        "response": {
          "status": 200,
          "content": {"mimeType": "application/json", "text": "{\"id\":42,\"email\":\"a@b.co\"}"}
        }
      },
      {
        "startedDateTime": "2026-01-02T10:00:00Z",
        "request": {
          "method": "POST",
          "url": "https://api.example.com/users",
          "headers": [{"name": "Cookie", "value": "sid=1"}],
          "postData": {"mimeType": "application/json", "text": "{\"name\":\"ann\",\"age\":3}"}
        },
        "response": {
          "status": 201,
          "content": {"mimeType": "application/json", "encoding": "base64", "text": "eyJpZCI6MX0="}
        }
      },
      {
        "startedDateTime": "2026-01-02T10:00:02Z",
        "request": {
          "method": "GET",
          "url": "https://api.example.com/users/7",
          "headers": [{"name": "Authorization", "value": "Bearer aaa.bbb.ccc"}]
        },
        "response": {
          "status": 404,
          "content": {"mimeType": "text/plain", "text": "not found"}
        }
      },
      {
        "startedDateTime": "2026-01-02T10:00:03Z",
        "request": {"method": "GET", "url": "https://cdn.example.com/app.js", "headers": []},
        "response": {"status": 200, "content": {"mimeType": "application/javascript", "text": "x"}}
      },
      {
        "startedDateTime": "2026-01-02T10:00:04Z",
        "request": {"method": "GET", "url": "https://api.example.com/avatar", "headers": []},
        "response": {"status": 200, "content": {"mimeType": "image/png", "text": "iVBORw0KGgo="}}
      }
    ]
  }
}`

func parseFixture(t *testing.T) []Capture {
	t.Helper()
	path := filepath.Join(t.TempDir(), "capture.har")
	if err := os.WriteFile(path, []byte(captureHAR), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open fixture: %v", err)
	}
	defer f.Close()
	caps, err := Parse(f)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return caps
}

func TestParse(t *testing.T) {
	caps := parseFixture(t)
	if len(caps) != 5 {
		t.Fatalf("len(caps) = %d, want 5", len(caps))
	}
	first := caps[0]
	if first.Method != "POST" || first.Path != "/users" {
		t.Fatalf("first capture = %s %s, want POST /users", first.Method, first.Path)
	}
	if first.ResponseBody != `{"id":1}` {
		t.Fatalf("base64 body = %q", first.ResponseBody)
	}
	if caps[1].Method != "GET" || caps[1].Query.Get("page") != "2" {
		t.Fatalf("second capture = %+v", caps[1])
	}
	if caps[4].ResponseBody != "" {
		t.Fatalf("binary body = %q, want dropped", caps[4].ResponseBody)
	}
}

func TestParseRejectsBadDocument(t *testing.T) {
	if _, err := Parse(strings.NewReader("{")); err == nil {
		t.Fatal("Parse() error = nil, want decode error")
	}
	bad := `{"log":{"entries":[{"startedDateTime":"yesterday","request":{"method":"GET","url":"/"},"response":{}}]}}`
	if _, err := Parse(strings.NewReader(bad)); err == nil {
		t.Fatal("Parse() error = nil, want time error")
	}
}

func TestDraft(t *testing.T) {
	opts := DefaultOptions()
	opts.Host = "api.example.com"
	eps := Draft("p1", parseFixture(t), opts)
	if len(eps) != 3 {
		t.Fatalf("len(eps) = %d, want 3: %+v", len(eps), eps)
	}

	create := eps[0]
	if create.Method != "POST" || create.Path != "/users" || create.Title != "POST /users" {
		t.Fatalf("create = %s %s %q", create.Method, create.Path, create.Title)
	}
	if create.ProjectID != "p1" || create.AuthMechanism != "cookie" || !create.IsSecure() {
		t.Fatalf("create auth = %s/%s", create.Security, create.AuthMechanism)
	}
	if len(create.RequestSpec.Properties) != 2 || create.RequestSpec.Properties[0].Name != "name" {
		t.Fatalf("create body = %+v", create.RequestSpec)
	}
	if !create.ResponseSpec.Has("201") {
		t.Fatalf("create responses = %v", create.ResponseSpec.Statuses())
	}

	get := eps[1]
	if get.Path != "/users/:id" || get.AuthMechanism != "jwt" {
		t.Fatalf("get = %s auth %s", get.Path, get.AuthMechanism)
	}
	if got := get.ResponseSpec.Statuses(); len(got) != 2 {
		t.Fatalf("get statuses = %v, want 200 and 404", got)
	}
	if !schema.IsEmpty(get.ResponseSpec.ByStatus["404"]) {
		t.Fatalf("plain text response should be empty object")
	}
	if get.RequestQuery == nil || len(get.RequestQuery.Properties) != 2 {
		t.Fatalf("query = %+v", get.RequestQuery)
	}
	expand := get.RequestQuery.Properties[0]
	if expand.Name != "expand" || expand.Kind != schema.KindBoolean || expand.Required {
		t.Fatalf("expand = %+v", expand)
	}
	if get.RequestHeaders == nil || len(get.RequestHeaders.Properties) != 1 || get.RequestHeaders.Properties[0].Name != "X-Tenant" {
		t.Fatalf("headers = %+v", get.RequestHeaders)
	}

	avatar := eps[2]
	if avatar.Security != types.SecurityOpen || avatar.AuthMechanism != "" {
		t.Fatalf("avatar auth = %s/%s", avatar.Security, avatar.AuthMechanism)
	}
}

func TestTemplatePath(t *testing.T) {
	tests := map[string]string{
		"/users":                                     "/users",
		"/users/42/orders/7":                         "/users/:id/orders/:id2",
		"/items/0b9a3c1e-6f1d-4c52-9d1a-2f3b4c5d6e7f": "/items/:id",
		"/v2/items":                                  "/v2/items",
	}
	for in, want := range tests {
		if got := templatePath(in); got != want {
			t.Errorf("templatePath(%q) = %q, want %q", in, got, want)
		}
	}
}
