// Package configyaml is optional sugar outside the planner/executor core:
// a host program may decode a YAML document into the config sub-map a
// Context carries (spec §3 "Context"), instead of building that map by
// hand. The core itself never reads a file -- spec.md §6 is explicit that
// there is "no file format, no CLI" at the engine boundary.
//
// It decodes with gopkg.in/yaml.v3, the library the reference corpus's
// compose-file formatter (awsqed-config-formatter) uses to parse the same
// kind of document.
package configyaml

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads path and decodes it as a YAML mapping, returning it as the
// kind of map[string]any a Context's Config field expects. An empty
// document decodes to an empty, non-nil map.
func Load(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("configyaml: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes data as a YAML mapping. It is Load's body split out so
// callers that already have the bytes (e.g. from an embedded asset) don't
// need a real file on disk.
func Parse(data []byte) (map[string]any, error) {
	var root map[string]any
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("configyaml: decode: %w", err)
	}
	if root == nil {
		root = make(map[string]any)
	}
	return normalize(root), nil
}

// normalize recursively rewrites yaml.v3's map[string]interface{} decode
// result into map[string]any with nested map[interface{}]interface{} (a
// quirk of YAML's untyped-key maps) folded into map[string]any too, so
// every level matches the map[string]any shape ctxkit.Context.Config
// expects for its recursive merge.
func normalize(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = normalize(item)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[fmt.Sprint(k)] = normalize(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = normalize(item)
		}
		return out
	default:
		return v
	}
}
