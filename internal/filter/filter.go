package filter

import (
	"sort"
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/yourorg/apiprompt/pkg/types"
)

// Query narrows an endpoint list. Empty fields match everything.
type Query struct {
	Search   string
	Method   string
	Security string
	Role     string
	// Fuzzy ranks search hits by subsequence match instead of requiring a
	// substring of the title or path.
	Fuzzy bool
}

// Apply returns the endpoints matching q. Without fuzzy search the input
// order is kept; with it the best matches come first.
func Apply(endpoints []*types.Endpoint, q Query) []*types.Endpoint {
	search := strings.ToLower(strings.TrimSpace(q.Search))
	filtered := make([]*types.Endpoint, 0, len(endpoints))
	for _, e := range endpoints {
		if q.Method != "" && e.Method != q.Method {
			continue
		}
		if !matchesSecurity(e, q.Security) {
			continue
		}
		if q.Role != "" && !e.Roles.Has(q.Role) {
			continue
		}
		if search != "" && !q.Fuzzy && !matchesText(e, search) {
			continue
		}
		filtered = append(filtered, e)
	}
	if search == "" || !q.Fuzzy {
		return filtered
	}
	return rank(filtered, search)
}

// matchesSecurity treats anything that is not "secure" as public.
func matchesSecurity(e *types.Endpoint, want string) bool {
	switch want {
	case types.SecuritySecure:
		return e.IsSecure()
	case types.SecurityPublic:
		return !e.IsSecure()
	}
	return true
}

func matchesText(e *types.Endpoint, term string) bool {
	return strings.Contains(strings.ToLower(e.Title), term) ||
		strings.Contains(strings.ToLower(e.Path), term)
}

type searchSource []*types.Endpoint

func (s searchSource) String(i int) string { return s[i].Title + " " + s[i].Path }
func (s searchSource) Len() int            { return len(s) }

func rank(endpoints []*types.Endpoint, term string) []*types.Endpoint {
	matches := fuzzy.FindFrom(term, searchSource(endpoints))
	out := make([]*types.Endpoint, 0, len(matches))
	for _, m := range matches {
		out = append(out, endpoints[m.Index])
	}
	return out
}

// Roles collects the distinct roles used by endpoints, sorted, for filter
// pickers.
func Roles(endpoints []*types.Endpoint) []string {
	seen := make(map[string]struct{})
	for _, e := range endpoints {
		for _, r := range e.Roles {
			seen[r] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for r := range seen {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}
