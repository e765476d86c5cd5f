package types

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Roles is an ordered set of role names.
type Roles []string

// NewRoles builds a set from names, trimming blanks and dropping duplicates
// while keeping first-seen order.
func NewRoles(names ...string) Roles {
	out := Roles{}
	for _, n := range names {
		out = out.Add(n)
	}
	return out
}

// ParseRoles splits a comma-separated list.
func ParseRoles(s string) Roles {
	return NewRoles(strings.Split(s, ",")...)
}

// Has reports whether name is in the set.
func (r Roles) Has(name string) bool {
	return contains(r, name)
}

// Add returns the set with name appended unless already present.
func (r Roles) Add(name string) Roles {
	name = strings.TrimSpace(name)
	if name == "" || r.Has(name) {
		return r
	}
	return append(r, name)
}

// Remove returns the set without name.
func (r Roles) Remove(name string) Roles {
	out := make(Roles, 0, len(r))
	for _, v := range r {
		if v != name {
			out = append(out, v)
		}
	}
	return out
}

func (r Roles) String() string {
	return strings.Join(r, ", ")
}

// UnmarshalJSON accepts an array or a comma-separated string and drops
// duplicates.
func (r *Roles) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*r = ParseRoles(s)
		return nil
	}
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return err
	}
	*r = NewRoles(names...)
	return nil
}
