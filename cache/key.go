package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// CanonicalKey hashes any JSON-serializable value into a stable hex key.
// The value is marshalled, decoded into generic maps/slices and marshalled
// again: encoding/json writes map keys in sorted order, so two logically
// identical descriptions built with different field insertion orders hash
// identically. Slices keep their element order.
func CanonicalKey(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return "", err
	}
	canonical, err := json.Marshal(generic)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}
