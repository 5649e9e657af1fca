package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/flagsearch/internal/ir"
)

// marshalSettings converts session settings to canonical JSON TEXT.
// Uses RFC 8785 canonical JSON so equal settings are stored byte-identical.
func marshalSettings(settings map[string]string) (string, error) {
	obj := make(map[string]any, len(settings))
	for k, v := range settings {
		obj[k] = v
	}
	data, err := ir.MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("marshal settings: %w", err)
	}
	return string(data), nil
}

// unmarshalSettings parses settings stored by marshalSettings.
func unmarshalSettings(data string) (map[string]string, error) {
	settings := map[string]string{}
	if data == "" {
		return settings, nil
	}
	if err := json.Unmarshal([]byte(data), &settings); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}
	return settings, nil
}
