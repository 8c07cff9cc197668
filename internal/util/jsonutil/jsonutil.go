package jsonutil

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
)

// Unmarshal decodes possibly messy model output into v: it strips markdown
// code fences, trims to the outermost JSON value, and unwraps one level of
// string quoting before giving up.
func Unmarshal(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err == nil {
		return nil
	}
	clean := Sanitize(data)
	if err := json.Unmarshal(clean, v); err == nil {
		return nil
	}
	// Whole payload may be a JSON-encoded string containing JSON.
	var s string
	if err := json.Unmarshal(clean, &s); err == nil {
		return json.Unmarshal([]byte(s), v)
	}
	return errors.New("jsonutil: cannot parse JSON payload")
}

// UnmarshalRaw accepts json.RawMessage directly.
func UnmarshalRaw(raw json.RawMessage, v any) error {
	return Unmarshal([]byte(raw), v)
}

// Sanitize strips code fences and leading/trailing prose around the first
// complete JSON object or array.
func Sanitize(data []byte) []byte {
	s := strings.TrimSpace(string(data))
	if strings.HasPrefix(s, "```") {
		if i := strings.Index(s, "\n"); i >= 0 {
			s = s[i+1:]
		}
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
		s = strings.TrimSpace(s)
	}
	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return []byte(s)
	}
	open := s[start]
	var close byte = '}'
	if open == '[' {
		close = ']'
	}
	if end := strings.LastIndexByte(s, close); end > start {
		s = s[start : end+1]
	}
	return []byte(s)
}

// MarshalNoEscape encodes v into JSON without escaping <, >, & into <, etc.
func MarshalNoEscape(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Canonical returns deterministic JSON for hashing: keys sorted, no HTML
// escaping, no insignificant whitespace.
func Canonical(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var tmp any
	if err := json.Unmarshal(b, &tmp); err != nil {
		return nil, err
	}
	// encoding/json sorts map keys on marshal.
	return MarshalNoEscape(tmp)
}
