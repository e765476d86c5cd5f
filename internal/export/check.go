package export

import (
	"bytes"
	"errors"
	"fmt"
	"sort"

	"github.com/goccy/go-json"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/yourorg/apiprompt/pkg/schema"
)

// ErrSampleMismatch wraps the validator's report when a sample payload does
// not satisfy a tree.
var ErrSampleMismatch = errors.New("sample does not match schema")

// CheckSample validates a JSON payload against the contract described by n.
func CheckSample(n *schema.Node, sample []byte) error {
	compiled, err := compile(Schema(n))
	if err != nil {
		return err
	}
	var doc interface{}
	dec := json.NewDecoder(bytes.NewReader(sample))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("export: decode sample: %w", err)
	}
	if err := compiled.Validate(doc); err != nil {
		return fmt.Errorf("%w: %v", ErrSampleMismatch, err)
	}
	return nil
}

func compileSchema(v any) error {
	_, err := compile(v)
	return err
}

func compile(v any) (*jsonschema.Schema, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("export: encode schema: %w", err)
	}
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft7
	if err := c.AddResource("contract.json", bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("export: add schema: %w", err)
	}
	s, err := c.Compile("contract.json")
	if err != nil {
		return nil, fmt.Errorf("export: compile schema: %w", err)
	}
	return s, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
