package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// objectKeys lists the keys of the JSON object in data in document order.
func objectKeys(data []byte) ([]string, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("expected a JSON object, got %v", tok)
	}

	var keys []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("expected an object key, got %v", tok)
		}
		keys = append(keys, key)

		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, err
		}
	}
	return keys, nil
}

// marshalObject encodes fields as a JSON object. Keys come out in the order they were read,
// then in the default order for keys the input did not have, then sorted.
func marshalObject(fields map[string]any, read, defaults []string) ([]byte, error) {
	order := make([]string, 0, len(fields))
	seen := make(map[string]bool, len(fields))
	for _, keys := range [][]string{read, defaults} {
		for _, k := range keys {
			if _, ok := fields[k]; ok && !seen[k] {
				seen[k] = true
				order = append(order, k)
			}
		}
	}
	var rest []string
	for k := range fields {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	order = append(order, rest...)

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range order {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(fields[k])
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s: %w", k, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
