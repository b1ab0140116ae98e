// Package dataformat implements the host data-format utilities exposed to
// plugins: JSON path lookup, CSV parsing, and INI access. Each service is a
// stateless value; returned strings are plain copies owned by the caller.
package dataformat

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/glyph-labs/glyphflow/core"
)

var (
	_ core.JSONService = JSON{}
	_ core.CSVService  = CSV{}
	_ core.INIService  = INI{}
)

// JSON implements core.JSONService on encoding/json.
type JSON struct{}

// Lookup evaluates a dotted path against a JSON document. Path segments
// name object keys or array indices ("items.0.name"). String leaves are
// returned raw; every other value is re-encoded as compact JSON. An empty
// path returns the whole document compacted.
func (JSON) Lookup(doc, path string) (string, bool) {
	var v any
	if err := json.Unmarshal([]byte(doc), &v); err != nil {
		return "", false
	}

	if path != "" {
		for _, seg := range strings.Split(path, ".") {
			switch cur := v.(type) {
			case map[string]any:
				next, ok := cur[seg]
				if !ok {
					return "", false
				}
				v = next
			case []any:
				i, err := strconv.Atoi(seg)
				if err != nil || i < 0 || i >= len(cur) {
					return "", false
				}
				v = cur[i]
			default:
				return "", false
			}
		}
	}

	if s, ok := v.(string); ok {
		return s, true
	}
	out, err := json.Marshal(v)
	if err != nil {
		return "", false
	}
	return string(out), true
}

// Stringify re-encodes a JSON document in compact form.
func (JSON) Stringify(doc string) (string, error) {
	var v any
	if err := json.Unmarshal([]byte(doc), &v); err != nil {
		return "", fmt.Errorf("stringify: %w", err)
	}
	out, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("stringify: %w", err)
	}
	return string(out), nil
}

// Validate reports whether doc is well-formed JSON.
func (JSON) Validate(doc string) bool {
	return json.Valid([]byte(doc))
}
