package prompt

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/yourorg/apiprompt/pkg/schema"
	"github.com/yourorg/apiprompt/pkg/types"
)

func openEndpoint() *types.Endpoint {
	return &types.Endpoint{
		Method:      "GET",
		Path:        "/users/{id}",
		Security:    "open",
		PersonaKey:  "staff",
		RequestSpec: &schema.Node{},
		PromptPrefs: types.PromptPrefs{},
	}
}

func userBody() *schema.Node {
	return &schema.Node{Kind: schema.KindObject, Properties: []*schema.Node{
		{Name: "email", Kind: schema.KindString, Required: true, Format: "email"},
	}}
}

func TestGenerateOpenEndpointScenario(t *testing.T) {
	got := Generate(openEndpoint())
	want := "# System Prompt\n" +
		"You are a Staff Engineer. Your task is to design the endpoint with strong architecture decisions, clean boundaries, and production-grade patterns.\n" +
		"\n" +
		"# Context\n" +
		"- Endpoint: GET /users/{id}\n" +
		"- Module: N/A\n" +
		"- Auth: open\n" +
		"- Roles: not specified\n" +
		"\n" +
		"# Request\n" +
		"- Body: object\n" +
		"- Body fields: NOT SPECIFIED (properties list is empty)\n" +
		"Instructions: implement the endpoint without assuming body fields. If body is required, return a validation error describing missing contract details.\n" +
		"\n" +
		"# Response\n" +
		"- Success response: NOT SPECIFIED\n" +
		"Instructions: return a minimal success response with status 200 and JSON `{ \"ok\": true }` unless the endpoint contract is defined otherwise."
	if got != want {
		t.Fatalf("unexpected prompt:\n%s\n--- want ---\n%s", got, want)
	}
}

func TestGenerateSecureAuthAndRoles(t *testing.T) {
	e := openEndpoint()
	e.Security = "secure"
	e.AuthMechanism = "jwt"
	e.Roles = types.NewRoles("admin", "user")
	got := Generate(e)
	if !strings.Contains(got, "- Auth: secure (jwt)\n") {
		t.Fatalf("expected jwt auth line, got:\n%s", got)
	}
	if !strings.Contains(got, "- Roles: admin, user") {
		t.Fatalf("expected roles line, got:\n%s", got)
	}
	if !strings.Contains(got, "- Errors:\n"+unauthenticated+"\n"+unauthorized) {
		t.Fatalf("expected both error bullets, got:\n%s", got)
	}
}

func TestGenerateAuthLineFallbacks(t *testing.T) {
	e := openEndpoint()
	e.Security = ""
	if got := Generate(e); !strings.Contains(got, "- Auth: public\n") {
		t.Fatalf("expected public auth, got:\n%s", got)
	}
	e.Security = "secure"
	if got := Generate(e); !strings.Contains(got, "- Auth: secure (mechanism not specified)\n") {
		t.Fatalf("expected unspecified mechanism, got:\n%s", got)
	}
}

func TestGenerateErrorsOnlyWhenSecure(t *testing.T) {
	e := openEndpoint()
	if strings.Contains(Generate(e), "- Errors:") {
		t.Fatalf("open endpoint must not list errors")
	}
}

func TestGenerateErrorSuppressionIsStructural(t *testing.T) {
	e := openEndpoint()
	e.Security = "secure"
	if err := e.ResponseSpec.Set("401", schema.DefaultRoot()); err != nil {
		t.Fatal(err)
	}
	if err := e.ResponseSpec.Set("200", &schema.Node{Kind: schema.KindObject, Properties: []*schema.Node{
		{Name: "code", Kind: schema.KindString, Description: "403"},
	}}); err != nil {
		t.Fatal(err)
	}
	got := Generate(e)
	if strings.Contains(got, unauthenticated) {
		t.Fatalf("401 bullet should be suppressed by a 401 response:\n%s", got)
	}
	if !strings.Contains(got, unauthorized) {
		t.Fatalf("403 bullet must stay when no 403 response is defined:\n%s", got)
	}
	if !strings.Contains(got, "- Defined Responses:\n{") {
		t.Fatalf("expected defined responses block:\n%s", got)
	}
}

func TestGenerateSingleResponseSchema(t *testing.T) {
	e := openEndpoint()
	r, err := types.ParseResponseSpec([]byte(`{"type":"object","properties":[{"name":"ok","type":"boolean"}]}`), nil)
	if err != nil {
		t.Fatal(err)
	}
	e.ResponseSpec = r
	got := Generate(e)
	if !strings.Contains(got, "- Success response:\n{") {
		t.Fatalf("expected single schema block:\n%s", got)
	}
	if strings.Contains(got, "NOT SPECIFIED\nInstructions: return") {
		t.Fatalf("fallback must not be used:\n%s", got)
	}
}

func TestGenerateBodyDump(t *testing.T) {
	e := openEndpoint()
	e.RequestSpec = userBody()
	got := Generate(e)
	if !strings.Contains(got, "# Request\n- Body: object\n- Body fields:\n{\n  \"type\": \"object\",") {
		t.Fatalf("expected indented body dump:\n%s", got)
	}
	if !strings.Contains(got, `"name": "email"`) {
		t.Fatalf("expected field in dump:\n%s", got)
	}
	if strings.Contains(got, "NOT SPECIFIED (properties list is empty)") {
		t.Fatalf("fallback must not appear with a body")
	}
}

func TestGenerateDumpsTextUnescaped(t *testing.T) {
	e := openEndpoint()
	e.RequestSpec = &schema.Node{Kind: schema.KindObject, Properties: []*schema.Node{
		{Name: "age", Kind: schema.KindNumber, Description: "must be > 0 & < 150"},
		{Name: "tag", Kind: schema.KindString, Validation: &schema.Validation{Pattern: "<[a-z]+>"}},
	}}
	e.ResponseSpec = types.ResponseSpec{ByStatus: map[string]*schema.Node{
		"200": {Kind: schema.KindObject, Properties: []*schema.Node{
			{Name: "html", Kind: schema.KindString, Description: "<b>bold</b> & more"},
		}},
	}}
	got := Generate(e)
	for _, want := range []string{
		`"description": "must be > 0 & < 150"`,
		`"pattern": "<[a-z]+>"`,
		`"description": "<b>bold</b> & more"`,
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("expected %s in dump:\n%s", want, got)
		}
	}
	for _, escaped := range []string{`\u003c`, `\u003e`, `\u0026`} {
		if strings.Contains(got, escaped) {
			t.Fatalf("dump contains HTML escape %s:\n%s", escaped, got)
		}
	}
}

func TestGenerateKeepsExplicitOptional(t *testing.T) {
	var body schema.Node
	stored := `{"type":"object","properties":[{"name":"nick","type":"string","required":false},{"name":"age","type":"number"}]}`
	if err := json.Unmarshal([]byte(stored), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	e := openEndpoint()
	e.RequestSpec = &body
	got := Generate(e)
	if !strings.Contains(got, "\"name\": \"nick\",\n      \"type\": \"string\",\n      \"required\": false") {
		t.Fatalf("expected explicit required false:\n%s", got)
	}
	if strings.Count(got, `"required"`) != 1 {
		t.Fatalf("required written for a field that never stored it:\n%s", got)
	}
}

func TestGenerateEmptyObjectBodyUsesFallback(t *testing.T) {
	e := openEndpoint()
	e.RequestSpec = schema.DefaultRoot()
	got := Generate(e)
	if !strings.Contains(got, "Body fields: NOT SPECIFIED") || strings.Contains(got, "Body fields:\n") {
		t.Fatalf("expected fallback for empty object:\n%s", got)
	}
}

func TestGenerateQueryAndHeaders(t *testing.T) {
	e := openEndpoint()
	e.RequestQuery = &schema.Node{Kind: schema.KindObject, Properties: []*schema.Node{{Name: "page", Kind: schema.KindNumber}}}
	got := Generate(e)
	if !strings.Contains(got, "\n\n# Query Parameters:\n{") {
		t.Fatalf("expected query block:\n%s", got)
	}
	if strings.Contains(got, "# Headers:") {
		t.Fatalf("headers block must be omitted when empty")
	}
	e.RequestHeaders = &schema.Node{Kind: schema.KindObject, Properties: []*schema.Node{{Name: "X-Tenant", Kind: schema.KindString}}}
	got = Generate(e)
	if strings.Index(got, "# Query Parameters:") > strings.Index(got, "# Headers:") {
		t.Fatalf("query block must precede headers")
	}
}

func TestGenerateContextOptionalLines(t *testing.T) {
	e := openEndpoint()
	e.ModuleName = "users"
	e.BusinessDesc = "Admins look up a user"
	e.TechNotes = "Use the read replica."
	got := Generate(e)
	if !strings.Contains(got, "- Module: users\n") {
		t.Fatalf("expected module line")
	}
	if !strings.Contains(got, "- Roles: not specified\n- Business Scenario: Admins look up a user\n\n# Technical Notes:\nUse the read replica.\n\n# Request") {
		t.Fatalf("unexpected context layout:\n%s", got)
	}
}

func TestGeneratePreferences(t *testing.T) {
	e := openEndpoint()
	e.PromptPrefs = types.PromptPrefs{{Key: "cleanCode", Enabled: true}, {Key: "unitTests", Enabled: false}}
	got := Generate(e)
	if !strings.HasSuffix(got, "\n\n# User Preferences\n- Clean Code") {
		t.Fatalf("expected single preference bullet:\n%s", got)
	}

	e.PromptPrefs = types.PromptPrefs{{Key: "apiTests", Enabled: true}, {Key: "strictTypes", Enabled: true}}
	got = Generate(e)
	if !strings.HasSuffix(got, "# User Preferences\n- API Tests\n- strictTypes") {
		t.Fatalf("expected stored order and raw key fallback:\n%s", got)
	}
}

func TestGeneratePersonaFallback(t *testing.T) {
	senior, _ := lookupPersona("senior")
	for _, key := range []string{"", "minimalist", "SENIOR"} {
		e := openEndpoint()
		e.PersonaKey = key
		if !strings.HasPrefix(Generate(e), "# System Prompt\n"+senior.Text+"\n\n") {
			t.Fatalf("key %q should fall back to senior", key)
		}
	}

	g := New(WithDefaultPersona("security"), WithDefaultPersona("nope"))
	e := openEndpoint()
	e.PersonaKey = ""
	if !strings.Contains(g.Generate(e), "Security-minded Backend Engineer") {
		t.Fatalf("configured default persona not applied")
	}
}

func TestGenerateDeterministic(t *testing.T) {
	e := openEndpoint()
	e.Security = "secure"
	e.RequestSpec = userBody()
	_ = e.ResponseSpec.Set("200", userBody())
	_ = e.ResponseSpec.Set("404", schema.DefaultRoot())
	_ = e.ResponseSpec.Set("201", schema.DefaultRoot())
	e.PromptPrefs = types.DefaultPrefs()

	first := Generate(e)
	for i := 0; i < 20; i++ {
		if got := Generate(e.Clone()); got != first {
			t.Fatalf("render %d differs", i)
		}
	}
	if strings.Index(first, `"200"`) > strings.Index(first, `"404"`) {
		t.Fatalf("status codes must be sorted")
	}
}

func TestGenerateNilEndpoint(t *testing.T) {
	got := Generate(nil)
	if !strings.Contains(got, "- Auth: public") {
		t.Fatalf("nil endpoint should render defaults:\n%s", got)
	}
}

type recorder struct {
	mu   sync.Mutex
	keys []string
}

func (r *recorder) ObservePrompt(persona string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keys = append(r.keys, persona)
}

func TestGenerateAllKeepsOrder(t *testing.T) {
	rec := &recorder{}
	g := New(WithRecorder(rec))
	var eps []*types.Endpoint
	for _, p := range []string{"/a", "/b", "/c", "/d"} {
		e := openEndpoint()
		e.Path = p
		eps = append(eps, e)
	}
	out, err := g.GenerateAll(context.Background(), eps)
	if err != nil {
		t.Fatal(err)
	}
	for i, e := range eps {
		if out[i] != g.Generate(e) {
			t.Fatalf("result %d out of order", i)
		}
	}
	if len(rec.keys) != 2*len(eps) {
		t.Fatalf("expected %d observations, got %d", 2*len(eps), len(rec.keys))
	}
}

func TestGenerateAllCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New().GenerateAll(ctx, []*types.Endpoint{openEndpoint()}); err == nil {
		t.Fatalf("expected context error")
	}
}

func TestPersonasListing(t *testing.T) {
	ps := Personas()
	if len(ps) != 4 || ps[0].Key != "senior" || ps[3].Key != "api-designer" {
		t.Fatalf("unexpected personas: %+v", ps)
	}
	ps[0].Text = "mutated"
	if p, _ := lookupPersona("senior"); p.Text == "mutated" {
		t.Fatalf("Personas must return a copy")
	}
	if len(PreferenceLabels()) != 5 {
		t.Fatalf("expected five labels")
	}
}
