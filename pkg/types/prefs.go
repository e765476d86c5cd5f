package types

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Preference keys known to the prompt generator.
const (
	PrefCleanCode       = "cleanCode"
	PrefBestPractice    = "bestPractice"
	PrefNoExtraComments = "noExtraComments"
	PrefUnitTests       = "unitTests"
	PrefAPITests        = "apiTests"
)

// Pref is one preference toggle.
type Pref struct {
	Key     string
	Enabled bool
}

// PromptPrefs is an ordered mapping of preference key to toggle. It encodes
// as a JSON object and keeps the key order found when decoding.
type PromptPrefs []Pref

// DefaultPrefs returns the preferences a new endpoint starts with.
func DefaultPrefs() PromptPrefs {
	return PromptPrefs{
		{Key: PrefCleanCode, Enabled: true},
		{Key: PrefBestPractice, Enabled: true},
		{Key: PrefNoExtraComments, Enabled: true},
	}
}

// Get returns the toggle for key.
func (p PromptPrefs) Get(key string) (enabled, ok bool) {
	for _, v := range p {
		if v.Key == key {
			return v.Enabled, true
		}
	}
	return false, false
}

// Set updates key in place or appends it.
func (p PromptPrefs) Set(key string, enabled bool) PromptPrefs {
	for i := range p {
		if p[i].Key == key {
			p[i].Enabled = enabled
			return p
		}
	}
	return append(p, Pref{Key: key, Enabled: enabled})
}

// Enabled returns the keys switched on, in stored order.
func (p PromptPrefs) Enabled() []string {
	var out []string
	for _, v := range p {
		if v.Enabled {
			out = append(out, v.Key)
		}
	}
	return out
}

func (p PromptPrefs) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, v := range p {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(v.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		if v.Enabled {
			buf.WriteString(":true")
		} else {
			buf.WriteString(":false")
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (p *PromptPrefs) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*p = nil
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("prompt prefs: expected object, got %v", tok)
	}
	out := PromptPrefs{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key := tok.(string)
		var enabled bool
		if err := dec.Decode(&enabled); err != nil {
			return fmt.Errorf("prompt prefs: %s: %w", key, err)
		}
		out = out.Set(key, enabled)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*p = out
	return nil
}
