package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadParams reads the parameter-substitution dictionary. It returns nil
// when substitution is disabled, which turns fuzzing into a no-op.
func LoadParams(cfg ParamsConfig) (map[string]string, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	data, err := os.ReadFile(cfg.File)
	if err != nil {
		return nil, fmt.Errorf("read params: %w", err)
	}
	return ParseParams(data)
}

// ParseParams decodes a flat YAML mapping of parameter name to value.
// Scalar values of any type are kept in their textual form.
func ParseParams(data []byte) (map[string]string, error) {
	var raw map[string]yaml.Node
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode params: %w", err)
	}
	params := make(map[string]string, len(raw))
	for name, node := range raw {
		if node.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("param %q: value must be a scalar", name)
		}
		params[name] = node.Value
	}
	return params, nil
}
