package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/yourorg/apiprompt/pkg/schema"
)

// SchemaDetector decides from the top-level keys of a stored response
// definition whether it is a single schema rather than a map of status codes.
type SchemaDetector func(keys []string) bool

// LooksLikeSchema treats a definition as a single schema when it has a "type"
// or "properties" key at the top level. An object schema with a property named
// like a status code is misread as a map when it lacks both keys.
func LooksLikeSchema(keys []string) bool {
	for _, k := range keys {
		if k == "type" || k == "properties" {
			return true
		}
	}
	return false
}

// ResponseSpec holds the responses of an endpoint. Records written by older
// versions may carry one schema instead of a map of status codes; that shape
// decodes into Single and is re-encoded unchanged.
type ResponseSpec struct {
	Single   *schema.Node
	ByStatus map[string]*schema.Node
}

// IsEmpty reports whether no response is defined.
func (r ResponseSpec) IsEmpty() bool {
	return r.Single == nil && len(r.ByStatus) == 0
}

// Has reports whether a response is defined for status.
func (r ResponseSpec) Has(status string) bool {
	_, ok := r.ByStatus[status]
	return ok
}

// Statuses returns the defined status codes in ascending order.
func (r ResponseSpec) Statuses() []string {
	out := make([]string, 0, len(r.ByStatus))
	for k := range r.ByStatus {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Set defines or replaces the response for status. A nil node stores an empty
// object. A legacy single schema is moved under "200" first.
func (r *ResponseSpec) Set(status string, n *schema.Node) error {
	if !ValidStatus(status) {
		return fmt.Errorf("%w: bad status code %q", ErrInvalid, status)
	}
	if n == nil {
		n = schema.DefaultRoot()
	}
	if r.ByStatus == nil {
		r.ByStatus = make(map[string]*schema.Node)
	}
	if r.Single != nil {
		if _, ok := r.ByStatus["200"]; !ok {
			r.ByStatus["200"] = r.Single
		}
		r.Single = nil
	}
	r.ByStatus[status] = n
	return nil
}

// Add defines status with an empty object unless it already exists.
func (r *ResponseSpec) Add(status string) error {
	if r.Has(status) {
		return nil
	}
	return r.Set(status, nil)
}

// Delete removes status and reports whether it was present.
func (r *ResponseSpec) Delete(status string) bool {
	if !r.Has(status) {
		return false
	}
	delete(r.ByStatus, status)
	return true
}

// Clone returns a deep copy of r.
func (r ResponseSpec) Clone() ResponseSpec {
	out := ResponseSpec{Single: r.Single.Clone()}
	if r.ByStatus != nil {
		out.ByStatus = make(map[string]*schema.Node, len(r.ByStatus))
		for k, v := range r.ByStatus {
			out.ByStatus[k] = v.Clone()
		}
	}
	return out
}

// ValidStatus reports whether s is a three digit HTTP status code.
func ValidStatus(s string) bool {
	if len(s) != 3 {
		return false
	}
	n, err := strconv.Atoi(s)
	return err == nil && n >= 100 && n <= 599
}

// MarshalJSON encodes a single schema as itself and a status map as an
// object with sorted keys.
func (r ResponseSpec) MarshalJSON() ([]byte, error) {
	if r.Single != nil {
		return schema.Marshal(r.Single)
	}
	if r.ByStatus == nil {
		return []byte("{}"), nil
	}
	return schema.Marshal(r.ByStatus)
}

func (r *ResponseSpec) UnmarshalJSON(data []byte) error {
	out, err := ParseResponseSpec(data, nil)
	if err != nil {
		return err
	}
	*r = out
	return nil
}

// ParseResponseSpec decodes a stored response definition. detect picks the
// single-schema shape; nil means LooksLikeSchema. Empty input and JSON null
// yield an empty spec.
func ParseResponseSpec(data []byte, detect SchemaDetector) (ResponseSpec, error) {
	if detect == nil {
		detect = LooksLikeSchema
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return ResponseSpec{}, nil
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return ResponseSpec{}, fmt.Errorf("response spec: %w", err)
	}
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	if len(keys) > 0 && detect(keys) {
		n, err := schema.Parse(data)
		if err != nil {
			return ResponseSpec{}, fmt.Errorf("response spec: %w", err)
		}
		return ResponseSpec{Single: n}, nil
	}

	out := ResponseSpec{ByStatus: make(map[string]*schema.Node, len(raw))}
	for _, k := range keys {
		n, err := schema.Parse(raw[k])
		if err != nil {
			return ResponseSpec{}, fmt.Errorf("response spec %s: %w", k, err)
		}
		out.ByStatus[k] = schema.Normalize(n)
	}
	return out, nil
}
