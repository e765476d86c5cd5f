package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Infer derives a tree from a sample JSON document. Object keys keep their
// document order, arrays take their items shape from the first element and
// every present field is marked required.
func Infer(sample []byte) (*Node, error) {
	dec := json.NewDecoder(bytes.NewReader(sample))
	dec.UseNumber()
	n, err := inferValue(dec)
	if err != nil {
		return nil, fmt.Errorf("infer: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("infer: trailing data after document")
	}
	return n, nil
}

func inferValue(dec *json.Decoder) (*Node, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch v := tok.(type) {
	case json.Delim:
		switch v {
		case '{':
			return inferObject(dec)
		case '[':
			return inferArray(dec)
		}
		return nil, fmt.Errorf("unexpected delimiter %q", v)
	case string:
		return &Node{Kind: KindString, Format: stringFormat(v)}, nil
	case json.Number:
		n := &Node{Kind: KindNumber}
		if _, err := v.Int64(); err == nil {
			n.Format = "int64"
		} else {
			n.Format = "double"
		}
		return n, nil
	case bool:
		return &Node{Kind: KindBoolean}, nil
	case nil:
		return &Node{Kind: KindString}, nil
	}
	return nil, fmt.Errorf("unexpected token %v", tok)
}

func inferObject(dec *json.Decoder) (*Node, error) {
	obj := &Node{Kind: KindObject, Properties: []*Node{}}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("object key is %T", tok)
		}
		child, err := inferValue(dec)
		if err != nil {
			return nil, err
		}
		child.Name = key
		child.Required = true
		obj.Properties = append(obj.Properties, child)
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return obj, nil
}

func inferArray(dec *json.Decoder) (*Node, error) {
	arr := &Node{Kind: KindArray}
	for dec.More() {
		if arr.Items == nil {
			item, err := inferValue(dec)
			if err != nil {
				return nil, err
			}
			arr.Items = item
			continue
		}
		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return nil, err
		}
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return arr, nil
}

func stringFormat(s string) string {
	switch {
	case s == "":
		return ""
	case isUUID(s):
		return "uuid"
	case isDateTime(s):
		return "date-time"
	case isDate(s):
		return "date"
	case isEmail(s):
		return "email"
	}
	return ""
}

func isUUID(s string) bool {
	if len(s) != 36 {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}

func isDateTime(s string) bool {
	_, err := time.Parse(time.RFC3339, s)
	return err == nil
}

func isDate(s string) bool {
	_, err := time.Parse(time.DateOnly, s)
	return err == nil
}

func isEmail(s string) bool {
	if !strings.Contains(s, "@") || strings.ContainsAny(s, " <>") {
		return false
	}
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}
