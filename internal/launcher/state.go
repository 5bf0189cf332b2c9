package launcher

import "encoding/json"

// encodeState serializes a state-store value for delivery to a child's
// stdin. A map value is filtered by the declared key prefixes (if any)
// before re-serialization; any other value is passed through unchanged
// as an opaque encoded blob.
func encodeState(value any, prefixes []string) ([]byte, error) {
	m, ok := value.(map[string]any)
	if !ok || len(prefixes) == 0 {
		return json.Marshal(value)
	}
	filtered := make(map[string]any, len(m))
	for k, v := range m {
		for _, p := range prefixes {
			if hasPrefix(k, p) {
				filtered[k] = v
				break
			}
		}
	}
	return json.Marshal(filtered)
}

// decodeState parses a worker's captured stdout into the declared
// state_type. The type itself is opaque to the launcher: it is recorded
// as-is alongside the decoded value so callers can interpret it.
func decodeState(stateType string, raw []byte) (any, error) {
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, err
	}
	return value, nil
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}
