// Package component decodes JSON lists of pluggable components (algorithms,
// metrics). Each entry names its implementation with a type tag property and
// carries the remaining fields for the implementation's own decoder.
package component

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	json "github.com/goccy/go-json"
)

// Definition is one entry of a component list.
type Definition struct {
	Type string          // implementation tag, leading "." stripped
	Name string          // display name, defaults to Type
	Raw  json.RawMessage // the complete entry, for the implementation decoder
}

// Parse decodes a JSON array of objects. tagKey names the property that
// holds the implementation tag ("algorithm" or "metric"). Line and block
// comments are allowed.
func Parse(data []byte, tagKey string) ([]Definition, error) {
	var entries []json.RawMessage
	if err := json.Unmarshal(StripComments(data), &entries); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	defs := make([]Definition, 0, len(entries))
	for i, raw := range entries {
		var head map[string]json.RawMessage
		if err := json.Unmarshal(raw, &head); err != nil {
			return nil, fmt.Errorf("%w: entry %d: %w", ErrMalformed, i, err)
		}
		tag, err := stringField(head, tagKey)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		tag = strings.TrimPrefix(strings.TrimSpace(tag), ".")
		if tag == "" {
			return nil, fmt.Errorf("%w: entry %d has no %q property", ErrMissingType, i, tagKey)
		}
		name, err := stringField(head, "name")
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		if name == "" {
			name = tag
		}
		defs = append(defs, Definition{Type: tag, Name: name, Raw: raw})
	}
	return defs, nil
}

// ReadFile reads and parses a component list from path.
func ReadFile(path, tagKey string) ([]Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	defs, err := Parse(data, tagKey)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return defs, nil
}

// Decode unmarshals the definition into v.
func (d Definition) Decode(v any) error {
	if err := json.Unmarshal(d.Raw, v); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrMalformed, d.Name, err)
	}
	return nil
}

func stringField(head map[string]json.RawMessage, key string) (string, error) {
	raw, ok := head[key]
	if !ok {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("%w: %q must be a string", ErrMalformed, key)
	}
	return s, nil
}

// StripComments removes // and /* */ comments outside of string literals.
func StripComments(data []byte) []byte {
	var out bytes.Buffer
	out.Grow(len(data))
	inString := false
	for i := 0; i < len(data); i++ {
		c := data[i]
		if inString {
			out.WriteByte(c)
			switch c {
			case '\\':
				if i+1 < len(data) {
					i++
					out.WriteByte(data[i])
				}
			case '"':
				inString = false
			}
			continue
		}
		if c == '"' {
			inString = true
			out.WriteByte(c)
			continue
		}
		if c == '/' && i+1 < len(data) {
			switch data[i+1] {
			case '/':
				for i < len(data) && data[i] != '\n' {
					i++
				}
				if i < len(data) {
					out.WriteByte('\n')
				}
				continue
			case '*':
				end := bytes.Index(data[i+2:], []byte("*/"))
				if end < 0 {
					return out.Bytes()
				}
				i += end + 3
				out.WriteByte(' ')
				continue
			}
		}
		out.WriteByte(c)
	}
	return out.Bytes()
}
