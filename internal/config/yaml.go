package config

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	yaml "go.yaml.in/yaml/v3"
)

// toStrictJSON rewrites a YAML config file as JSON bytes so the one strict
// decoder (DisallowUnknownFields) covers both formats. Files without a
// .yaml/.yml extension pass through untouched.
func toStrictJSON(path string, data []byte) ([]byte, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
	default:
		return data, nil
	}

	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse yaml %s: %w", filepath.Base(path), err)
	}
	out, err := json.Marshal(jsonSafe(doc))
	if err != nil {
		return nil, fmt.Errorf("rewrite %s as json: %w", filepath.Base(path), err)
	}
	return out, nil
}

// jsonSafe stringifies map keys recursively; YAML permits non-string keys
// that json.Marshal rejects.
func jsonSafe(v any) any {
	switch node := v.(type) {
	case map[any]any:
		out := make(map[string]any, len(node))
		for k, child := range node {
			out[fmt.Sprint(k)] = jsonSafe(child)
		}
		return out
	case map[string]any:
		for k, child := range node {
			node[k] = jsonSafe(child)
		}
		return node
	case []any:
		for i, child := range node {
			node[i] = jsonSafe(child)
		}
		return node
	}
	return v
}
