package store

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/roach88/rcontract/internal/canonical"
)

// marshalDocument converts a request or progress event to canonical JSON
// TEXT for storage. A nil value is stored as "{}".
func marshalDocument(what string, v any) (string, error) {
	if v == nil {
		return "{}", nil
	}
	data, err := canonical.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal %s: %w", what, err)
	}
	return string(data), nil
}

// unmarshalDocument parses stored JSON TEXT. Numbers decode as
// json.Number so large integers survive a read-back.
func unmarshalDocument(what, data string) (map[string]any, error) {
	if data == "" || data == "{}" {
		return map[string]any{}, nil
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(data)))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", what, err)
	}
	return obj, nil
}
