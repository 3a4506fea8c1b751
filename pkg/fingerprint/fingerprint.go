// Package fingerprint produces content hashes for raw record payloads.
// Payloads are canonicalized before hashing, so two captures that differ
// only in JSON key order or whitespace share a fingerprint and deduplicate.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
)

// FromJSON fingerprints a raw JSON payload. Payloads that do not parse as
// JSON are hashed byte for byte, so malformed captures still deduplicate
// on exact repeats.
func FromJSON(data []byte) string {
	var value any
	if err := json.Unmarshal(data, &value); err != nil {
		sum := sha256.Sum256(data)
		return hex.EncodeToString(sum[:])
	}
	sum := sha256.Sum256([]byte(canonicalize(value)))
	return hex.EncodeToString(sum[:])
}

// canonicalize creates a deterministic string representation by sorting
// map keys and recursively processing nested structures.
func canonicalize(data any) string {
	switch v := data.(type) {
	case map[string]any:
		return canonicalizeMap(v)
	case []any:
		return canonicalizeArray(v)
	default:
		b, _ := json.Marshal(v)
		return string(b)
	}
}

func canonicalizeMap(m map[string]any) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := "{"
	for i, k := range keys {
		if i > 0 {
			result += ","
		}
		keyJSON, _ := json.Marshal(k)
		result += string(keyJSON) + ":" + canonicalize(m[k])
	}
	result += "}"
	return result
}

func canonicalizeArray(arr []any) string {
	result := "["
	for i, v := range arr {
		if i > 0 {
			result += ","
		}
		result += canonicalize(v)
	}
	result += "]"
	return result
}
