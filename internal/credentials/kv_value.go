package credentials

import (
	"encoding/json"
	"fmt"
)

// KV values are JSON strings. A missing key comes back from the JS bridge
// as the text "<null>" or "<undefined>", which must read as absent.
func encodeKVValue(value string) (string, error) {
	b, err := json.Marshal(value)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeKVValue(raw string) (string, bool, error) {
	switch raw {
	case "", "<null>", "<undefined>":
		return "", false, nil
	}
	var v string
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return "", false, fmt.Errorf("malformed KV value: %w", err)
	}
	if v == "" {
		return "", false, nil
	}
	return v, true, nil
}
