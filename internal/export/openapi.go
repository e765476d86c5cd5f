// Package export writes a project's endpoints to disk as an OpenAPI document
// and as a Markdown bundle of generated prompts.
package export

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/renameio/v2"
	"gopkg.in/yaml.v3"

	"github.com/yourorg/apiprompt/pkg/schema"
	"github.com/yourorg/apiprompt/pkg/types"
)

const (
	OpenAPIFile  = "openapi.yaml"
	MarkdownFile = "prompts.md"
)

var colonParam = regexp.MustCompile(`:([A-Za-z_][A-Za-z0-9_]*)`)
var braceParam = regexp.MustCompile(`\{([^}]+)\}`)

// RenderOpenAPI writes dir/openapi.yaml describing every endpoint of project.
func RenderOpenAPI(project *types.Project, endpoints []*types.Endpoint, dir string) (string, error) {
	doc, err := BuildOpenAPI(project, endpoints)
	if err != nil {
		return "", err
	}
	data, err := yaml.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("export: encode openapi: %w", err)
	}
	return writeFile(dir, OpenAPIFile, data)
}

// BuildOpenAPI returns the OpenAPI 3.0 document as plain maps, ready for
// YAML or JSON encoding.
func BuildOpenAPI(project *types.Project, endpoints []*types.Endpoint) (map[string]any, error) {
	if project == nil {
		return nil, fmt.Errorf("export: project is nil")
	}
	info := map[string]any{"title": project.Name, "version": "1.0.0"}
	if project.Description != "" {
		info["description"] = project.Description
	}
	paths := map[string]any{}
	schemes := map[string]any{}
	tags := map[string]struct{}{}

	for _, e := range endpoints {
		if e == nil {
			continue
		}
		p := templatePath(e.Path)
		item, ok := paths[p].(map[string]any)
		if !ok {
			item = map[string]any{}
			paths[p] = item
		}
		method := strings.ToLower(e.Method)
		if _, dup := item[method]; dup {
			return nil, fmt.Errorf("export: duplicate operation %s %s", e.Method, p)
		}
		op := operation(e, p)
		if e.IsSecure() {
			name, scheme := securityScheme(e.AuthMechanism)
			schemes[name] = scheme
			op["security"] = []map[string]any{{name: []string{}}}
		}
		if e.ModuleName != "" {
			tags[e.ModuleName] = struct{}{}
		}
		item[method] = op
	}

	doc := map[string]any{
		"openapi": "3.0.3",
		"info":    info,
		"paths":   paths,
	}
	if len(schemes) > 0 {
		doc["components"] = map[string]any{"securitySchemes": schemes}
	}
	if len(tags) > 0 {
		list := make([]map[string]any, 0, len(tags))
		for _, name := range sortedKeys(tags) {
			list = append(list, map[string]any{"name": name})
		}
		doc["tags"] = list
	}
	return doc, nil
}

func operation(e *types.Endpoint, path string) map[string]any {
	op := map[string]any{"summary": e.Title}
	if e.BusinessDesc != "" {
		op["description"] = e.BusinessDesc
	}
	if e.ModuleName != "" {
		op["tags"] = []string{e.ModuleName}
	}
	if len(e.Roles) > 0 {
		op["x-roles"] = []string(e.Roles)
	}

	var params []map[string]any
	for _, m := range braceParam.FindAllStringSubmatch(path, -1) {
		params = append(params, map[string]any{
			"name":     m[1],
			"in":       "path",
			"required": true,
			"schema":   map[string]any{"type": "string"},
		})
	}
	params = append(params, parameters(e.RequestQuery, "query")...)
	params = append(params, parameters(e.RequestHeaders, "header")...)
	if len(params) > 0 {
		op["parameters"] = params
	}

	if e.Method != http.MethodGet && e.Method != http.MethodDelete && !schema.IsEmpty(e.RequestSpec) {
		op["requestBody"] = map[string]any{
			"required": true,
			"content":  jsonContent(e.RequestSpec),
		}
	}
	op["responses"] = responses(e)
	return op
}

func parameters(root *schema.Node, in string) []map[string]any {
	if schema.IsEmpty(root) {
		return nil
	}
	var out []map[string]any
	for _, p := range root.Properties {
		if p == nil || p.Name == "" {
			continue
		}
		param := map[string]any{
			"name":   p.Name,
			"in":     in,
			"schema": Schema(p),
		}
		if p.Required {
			param["required"] = true
		}
		if p.Description != "" {
			param["description"] = p.Description
		}
		out = append(out, param)
	}
	return out
}

func responses(e *types.Endpoint) map[string]any {
	out := map[string]any{}
	r := e.ResponseSpec
	switch {
	case r.Single != nil:
		out["200"] = response("200", r.Single)
	case len(r.ByStatus) > 0:
		for _, status := range r.Statuses() {
			out[status] = response(status, r.ByStatus[status])
		}
	default:
		out["200"] = map[string]any{"description": "OK"}
	}
	if e.IsSecure() {
		if _, ok := out["401"]; !ok {
			out["401"] = map[string]any{"description": "Unauthenticated"}
		}
		if _, ok := out["403"]; !ok {
			out["403"] = map[string]any{"description": "Unauthorized"}
		}
	}
	return out
}

func response(status string, n *schema.Node) map[string]any {
	var code int
	fmt.Sscanf(status, "%d", &code)
	desc := http.StatusText(code)
	if desc == "" {
		desc = "Status " + status
	}
	resp := map[string]any{"description": desc}
	if !schema.IsEmpty(n) {
		resp["content"] = jsonContent(n)
	}
	return resp
}

func jsonContent(n *schema.Node) map[string]any {
	return map[string]any{"application/json": map[string]any{"schema": Schema(n)}}
}

// Schema converts a node into an OpenAPI schema object. Numbers with an
// int32 or int64 format become integers.
func Schema(n *schema.Node) map[string]any {
	out := map[string]any{}
	if n == nil {
		return out
	}
	switch n.Kind {
	case "":
	case schema.KindNumber:
		if n.Format == "int32" || n.Format == "int64" {
			out["type"] = "integer"
		} else {
			out["type"] = "number"
		}
	default:
		out["type"] = string(n.Kind)
	}
	if n.Format != "" {
		out["format"] = n.Format
	}
	if n.Description != "" {
		out["description"] = n.Description
	}
	if v := n.Validation; !v.IsZero() {
		if v.Min != nil {
			out["minimum"] = *v.Min
		}
		if v.Max != nil {
			out["maximum"] = *v.Max
		}
		if v.MinLength != nil {
			out["minLength"] = *v.MinLength
		}
		if v.MaxLength != nil {
			out["maxLength"] = *v.MaxLength
		}
		if v.Pattern != "" {
			out["pattern"] = v.Pattern
		}
	}
	switch n.Kind {
	case schema.KindObject, "":
		if n.Properties == nil {
			break
		}
		props := map[string]any{}
		var required []string
		for _, c := range n.Properties {
			if c == nil || c.Name == "" {
				continue
			}
			props[c.Name] = Schema(c)
			if c.Required {
				required = append(required, c.Name)
			}
		}
		out["properties"] = props
		if len(required) > 0 {
			out["required"] = required
		}
	case schema.KindArray:
		if n.Items != nil {
			out["items"] = Schema(n.Items)
		} else {
			out["items"] = map[string]any{}
		}
	}
	return out
}

func securityScheme(mechanism string) (string, map[string]any) {
	switch mechanism {
	case "jwt":
		return "jwt", map[string]any{"type": "http", "scheme": "bearer", "bearerFormat": "JWT"}
	case "cookie":
		return "cookie", map[string]any{"type": "apiKey", "in": "cookie", "name": "session"}
	case "api_key":
		return "api_key", map[string]any{"type": "apiKey", "in": "header", "name": "X-API-Key"}
	case "basic":
		return "basic", map[string]any{"type": "http", "scheme": "basic"}
	case "oauth2":
		return "oauth2", map[string]any{
			"type": "oauth2",
			"flows": map[string]any{
				"clientCredentials": map[string]any{"tokenUrl": "/oauth/token", "scopes": map[string]any{}},
			},
		}
	default:
		return "bearer", map[string]any{"type": "http", "scheme": "bearer"}
	}
}

// templatePath rewrites :id segments to the {id} form OpenAPI expects.
func templatePath(p string) string {
	return colonParam.ReplaceAllString(types.NormalizePath(p), "{$1}")
}

// ValidateOpenAPI reads an exported document and reports structural problems.
// Every request and response schema must also compile as JSON Schema.
func ValidateOpenAPI(path string) []string {
	data, err := os.ReadFile(path)
	if err != nil {
		return []string{err.Error()}
	}
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return []string{err.Error()}
	}
	var errs []string
	if v, _ := doc["openapi"].(string); !strings.HasPrefix(v, "3.") {
		errs = append(errs, "missing or unsupported openapi version")
	}
	if info, ok := doc["info"].(map[string]any); !ok || info["title"] == nil {
		errs = append(errs, "missing info.title")
	}
	paths, ok := doc["paths"].(map[string]any)
	if !ok || len(paths) == 0 {
		return append(errs, "missing or empty paths")
	}
	for _, p := range sortedKeys(paths) {
		item, ok := paths[p].(map[string]any)
		if !ok {
			errs = append(errs, fmt.Sprintf("invalid path item for %s", p))
			continue
		}
		for _, method := range sortedKeys(item) {
			op, ok := item[method].(map[string]any)
			if !ok {
				errs = append(errs, fmt.Sprintf("%s %s: invalid operation", method, p))
				continue
			}
			if _, ok := op["responses"].(map[string]any); !ok {
				errs = append(errs, fmt.Sprintf("%s %s: missing responses", method, p))
			}
			for _, s := range operationSchemas(op) {
				if err := compileSchema(s); err != nil {
					errs = append(errs, fmt.Sprintf("%s %s: %v", method, p, err))
				}
			}
		}
	}
	return errs
}

func operationSchemas(op map[string]any) []any {
	var out []any
	collect := func(content any) {
		c, _ := content.(map[string]any)
		for _, media := range c {
			if m, ok := media.(map[string]any); ok && m["schema"] != nil {
				out = append(out, m["schema"])
			}
		}
	}
	if body, ok := op["requestBody"].(map[string]any); ok {
		collect(body["content"])
	}
	resps, _ := op["responses"].(map[string]any)
	for _, status := range sortedKeys(resps) {
		if r, ok := resps[status].(map[string]any); ok {
			collect(r["content"])
		}
	}
	return out
}

func writeFile(dir, name string, data []byte) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, name)
	if err := renameio.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("export: write %s: %w", name, err)
	}
	return path, nil
}
