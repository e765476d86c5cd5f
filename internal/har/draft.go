package har

import (
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/yourorg/apiprompt/pkg/schema"
	"github.com/yourorg/apiprompt/pkg/types"
)

// Options narrows which captures become endpoints.
type Options struct {
	// Host keeps only captures sent to this host when set.
	Host string
	// IgnoreExtensions drops static assets by path suffix.
	IgnoreExtensions []string
}

// DefaultOptions skips the usual static assets.
func DefaultOptions() Options {
	return Options{IgnoreExtensions: []string{".js", ".css", ".png", ".jpg", ".gif", ".svg", ".woff", ".woff2", ".ico", ".map", ".html"}}
}

// credentialHeaders never become part of a header tree; they decide the
// auth mechanism instead.
var credentialHeaders = map[string]struct{}{
	"authorization": {}, "cookie": {}, "x-api-key": {}, "x-auth-token": {},
}

// Draft groups captures by method and templated path and derives one
// endpoint per group: body and query trees from the first capture that has
// them, one response tree per observed status.
func Draft(projectID string, captures []Capture, opts Options) []*types.Endpoint {
	var order []string
	groups := map[string][]Capture{}
	for _, c := range captures {
		if !keep(c, opts) {
			continue
		}
		key := c.Method + " " + templatePath(c.Path)
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], c)
	}

	out := make([]*types.Endpoint, 0, len(order))
	for _, key := range order {
		method, p, _ := strings.Cut(key, " ")
		out = append(out, draftEndpoint(projectID, method, p, groups[key]))
	}
	return out
}

func keep(c Capture, opts Options) bool {
	if opts.Host != "" && !strings.EqualFold(c.Host, opts.Host) {
		return false
	}
	if !contains(types.Methods, c.Method) {
		return false
	}
	ext := strings.ToLower(path.Ext(c.Path))
	for _, ignored := range opts.IgnoreExtensions {
		if ext == strings.ToLower(ignored) {
			return false
		}
	}
	return true
}

func draftEndpoint(projectID, method, p string, caps []Capture) *types.Endpoint {
	e := types.NewEndpoint(projectID, fmt.Sprintf("%s %s", method, p), method, p)
	e.Security, e.AuthMechanism = authOf(caps)

	for _, c := range caps {
		if body, ok := inferJSON(c.RequestBody, c.RequestMime); ok {
			e.RequestSpec = body
			break
		}
	}
	e.RequestQuery = queryTree(caps)
	e.RequestHeaders = headerTree(caps)

	for _, c := range caps {
		status := strconv.Itoa(c.Status)
		if !types.ValidStatus(status) || e.ResponseSpec.Has(status) {
			continue
		}
		// Set stores an empty object for non-JSON bodies.
		node, _ := inferJSON(c.ResponseBody, c.ResponseMime)
		_ = e.ResponseSpec.Set(status, node)
	}
	return e
}

func authOf(caps []Capture) (security, mechanism string) {
	for _, c := range caps {
		for name, value := range c.Headers {
			switch strings.ToLower(name) {
			case "authorization":
				scheme, token, _ := strings.Cut(value, " ")
				switch {
				case strings.EqualFold(scheme, "basic"):
					return types.SecuritySecure, "basic"
				case strings.Count(token, ".") == 2:
					return types.SecuritySecure, "jwt"
				default:
					return types.SecuritySecure, "bearer"
				}
			case "x-api-key":
				return types.SecuritySecure, "api_key"
			case "cookie":
				mechanism = "cookie"
			}
		}
	}
	if mechanism != "" {
		return types.SecuritySecure, mechanism
	}
	return types.SecurityOpen, ""
}

func inferJSON(body, mime string) (*schema.Node, bool) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, false
	}
	if !strings.Contains(strings.ToLower(mime), "json") && body[0] != '{' && body[0] != '[' {
		return nil, false
	}
	n, err := schema.Infer([]byte(body))
	if err != nil {
		return nil, false
	}
	return n, true
}

// queryTree merges the query keys of all captures. A key is required when
// every capture sent it.
func queryTree(caps []Capture) *schema.Node {
	seen := map[string]int{}
	sample := map[string][]string{}
	for _, c := range caps {
		for k, vs := range c.Query {
			seen[k]++
			if _, ok := sample[k]; !ok {
				sample[k] = vs
			}
		}
	}
	if len(seen) == 0 {
		return nil
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	root := &schema.Node{Kind: schema.KindObject, Properties: []*schema.Node{}}
	for _, k := range keys {
		n := scalarNode(sample[k])
		n.Name = k
		n.Required = seen[k] == len(caps)
		root.Properties = append(root.Properties, n)
	}
	return root
}

// headerTree lists custom request headers, leaving out credentials and the
// headers every browser sends.
func headerTree(caps []Capture) *schema.Node {
	names := map[string]struct{}{}
	for _, c := range caps {
		for name := range c.Headers {
			lower := strings.ToLower(name)
			if _, ok := credentialHeaders[lower]; ok || !strings.HasPrefix(lower, "x-") {
				continue
			}
			names[name] = struct{}{}
		}
	}
	if len(names) == 0 {
		return nil
	}
	sorted := make([]string, 0, len(names))
	for n := range names {
		sorted = append(sorted, n)
	}
	sort.Strings(sorted)
	root := &schema.Node{Kind: schema.KindObject, Properties: []*schema.Node{}}
	for _, n := range sorted {
		root.Properties = append(root.Properties, &schema.Node{Name: n, Kind: schema.KindString})
	}
	return root
}

func scalarNode(values []string) *schema.Node {
	if len(values) > 1 {
		return &schema.Node{Kind: schema.KindArray, Items: scalarNode(values[:1])}
	}
	v := ""
	if len(values) == 1 {
		v = values[0]
	}
	if _, err := strconv.ParseFloat(v, 64); err == nil && v != "" {
		return &schema.Node{Kind: schema.KindNumber}
	}
	if v == "true" || v == "false" {
		return &schema.Node{Kind: schema.KindBoolean}
	}
	return &schema.Node{Kind: schema.KindString}
}

// templatePath replaces numeric and UUID segments with :id, :id2, ...
func templatePath(p string) string {
	segs := strings.Split(strings.Trim(p, "/"), "/")
	n := 0
	for i, s := range segs {
		if !isIdentifier(s) {
			continue
		}
		n++
		if n == 1 {
			segs[i] = ":id"
		} else {
			segs[i] = ":id" + strconv.Itoa(n)
		}
	}
	return "/" + strings.Join(segs, "/")
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	if _, err := strconv.ParseUint(s, 10, 64); err == nil {
		return true
	}
	_, err := uuid.Parse(s)
	return err == nil && len(s) == 36
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
