package store

import (
	"encoding/json"
	"fmt"

	"github.com/cardity-org/cardity-core/internal/ir"
)

// marshalList converts a string list to canonical JSON TEXT for storage.
func marshalList(list []string) (string, error) {
	if list == nil {
		list = []string{}
	}
	data, err := ir.MarshalCanonical(ir.FromStringSlice(list))
	if err != nil {
		return "", fmt.Errorf("marshal list: %w", err)
	}
	return string(data), nil
}

// marshalMap converts a string map to canonical JSON TEXT for storage.
func marshalMap(m map[string]string) (string, error) {
	data, err := ir.MarshalCanonical(ir.FromStrings(m))
	if err != nil {
		return "", fmt.Errorf("marshal map: %w", err)
	}
	return string(data), nil
}

func unmarshalList(text string) ([]string, error) {
	list := []string{}
	if err := json.Unmarshal([]byte(text), &list); err != nil {
		return nil, fmt.Errorf("unmarshal list: %w", err)
	}
	return list, nil
}

func unmarshalMap(text string) (map[string]string, error) {
	m := map[string]string{}
	if err := json.Unmarshal([]byte(text), &m); err != nil {
		return nil, fmt.Errorf("unmarshal map: %w", err)
	}
	return m, nil
}
