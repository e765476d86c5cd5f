// Package prompt renders an endpoint record into the instruction document
// handed to an AI coding assistant. Rendering is deterministic and does no
// I/O: equal records produce byte-identical output.
package prompt

import (
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/yourorg/apiprompt/pkg/schema"
	"github.com/yourorg/apiprompt/pkg/types"
)

const (
	emptyBody = `- Body: object
- Body fields: NOT SPECIFIED (properties list is empty)
Instructions: implement the endpoint without assuming body fields. If body is required, return a validation error describing missing contract details.`

	emptyResponse = "- Success response: NOT SPECIFIED\n" +
		"Instructions: return a minimal success response with status 200 and JSON `{ \"ok\": true }` unless the endpoint contract is defined otherwise."

	unauthenticated = "  - 401 if unauthenticated (secure endpoint)"
	unauthorized    = "  - 403 if unauthorized (when roles are later defined)"
)

// Recorder observes finished renders.
type Recorder interface {
	ObservePrompt(persona string, d time.Duration)
}

// Option configures a Generator.
type Option func(*Generator)

// WithDefaultPersona replaces the persona used for empty or unknown keys.
// Keys outside the persona table are ignored.
func WithDefaultPersona(key string) Option {
	return func(g *Generator) {
		if IsPersona(key) {
			g.persona = key
		}
	}
}

// WithRecorder reports each render to r.
func WithRecorder(r Recorder) Option {
	return func(g *Generator) { g.rec = r }
}

// Generator renders prompts. The zero value is not usable; call New.
type Generator struct {
	persona string
	rec     Recorder
}

// New returns a Generator with the senior persona as fallback.
func New(opts ...Option) *Generator {
	g := &Generator{persona: DefaultPersona}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

var std = New()

// Generate renders e with the default Generator.
func Generate(e *types.Endpoint) string {
	return std.Generate(e)
}

// ResolvePersona returns the persona key actually used for key.
func (g *Generator) ResolvePersona(key string) string {
	if IsPersona(key) {
		return key
	}
	return g.persona
}

// Generate renders e. Sections are separated by one blank line and empty
// optional sections are left out entirely.
func (g *Generator) Generate(e *types.Endpoint) string {
	start := time.Now()
	if e == nil {
		e = &types.Endpoint{}
	}
	key := g.ResolvePersona(e.PersonaKey)
	p, _ := lookupPersona(key)

	sections := []string{
		"# System Prompt\n" + p.Text,
		contextSection(e),
	}
	if e.TechNotes != "" {
		sections = append(sections, "# Technical Notes:\n"+e.TechNotes)
	}
	sections = append(sections, requestSection(e), responseSection(e))
	if prefs := preferencesSection(e.PromptPrefs); prefs != "" {
		sections = append(sections, prefs)
	}
	out := strings.Join(sections, "\n\n")

	if g.rec != nil {
		g.rec.ObservePrompt(key, time.Since(start))
	}
	return out
}

func contextSection(e *types.Endpoint) string {
	module := e.ModuleName
	if module == "" {
		module = "N/A"
	}
	roles := "not specified"
	if len(e.Roles) > 0 {
		roles = e.Roles.String()
	}
	lines := []string{
		"# Context",
		fmt.Sprintf("- Endpoint: %s %s", e.Method, e.Path),
		"- Module: " + module,
		"- Auth: " + authLine(e),
		"- Roles: " + roles,
	}
	if e.BusinessDesc != "" {
		lines = append(lines, "- Business Scenario: "+e.BusinessDesc)
	}
	return strings.Join(lines, "\n")
}

func authLine(e *types.Endpoint) string {
	if !e.IsSecure() {
		if e.Security == "" {
			return types.SecurityPublic
		}
		return e.Security
	}
	if e.AuthMechanism != "" {
		return fmt.Sprintf("%s (%s)", e.Security, e.AuthMechanism)
	}
	return e.Security + " (mechanism not specified)"
}

func requestSection(e *types.Endpoint) string {
	blocks := []string{"# Request\n" + bodyBlock(e.RequestSpec)}
	if !schema.IsEmpty(e.RequestQuery) {
		blocks = append(blocks, "# Query Parameters:\n"+pretty(e.RequestQuery))
	}
	if !schema.IsEmpty(e.RequestHeaders) {
		blocks = append(blocks, "# Headers:\n"+pretty(e.RequestHeaders))
	}
	return strings.Join(blocks, "\n\n")
}

func bodyBlock(body *schema.Node) string {
	if schema.IsEmpty(body) {
		return emptyBody
	}
	return "- Body: object\n- Body fields:\n" + pretty(body)
}

func responseSection(e *types.Endpoint) string {
	lines := []string{"# Response"}
	r := e.ResponseSpec
	switch {
	case r.IsEmpty():
		lines = append(lines, emptyResponse)
	case r.Single != nil:
		lines = append(lines, "- Success response:\n"+pretty(r.Single))
	default:
		lines = append(lines, "- Defined Responses:\n"+pretty(r))
	}
	if e.IsSecure() {
		lines = append(lines, "- Errors:")
		if !r.Has("401") {
			lines = append(lines, unauthenticated)
		}
		if !r.Has("403") {
			lines = append(lines, unauthorized)
		}
	}
	return strings.Join(lines, "\n")
}

func preferencesSection(p types.PromptPrefs) string {
	enabled := p.Enabled()
	if len(enabled) == 0 {
		return ""
	}
	lines := make([]string, 0, len(enabled)+1)
	lines = append(lines, "# User Preferences")
	for _, k := range enabled {
		lines = append(lines, "- "+labelFor(k))
	}
	return strings.Join(lines, "\n")
}

// pretty renders v as JSON with two-space indentation and no HTML escaping.
// Values that cannot be encoded fall back to their Go formatting.
func pretty(v interface{}) string {
	b, err := json.MarshalIndentWithOption(v, "", "  ", json.DisableHTMLEscape())
	if err != nil {
		return fmt.Sprintf("%+v", v)
	}
	return string(b)
}
