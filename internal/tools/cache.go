package tools

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"
)

// ResultCache stores successful tool payloads.
type ResultCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// CacheKey derives a stable key from the tool id and its parameters.
// encoding/json sorts map keys, so equal maps hash equally.
func CacheKey(id ToolID, params map[string]interface{}) (string, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(raw)
	return "tool:" + string(id) + ":" + hex.EncodeToString(sum[:16]), nil
}

func encodeCached(data map[string]interface{}) ([]byte, error) {
	return json.Marshal(data)
}

func decodeCached(raw []byte, out *map[string]interface{}) error {
	return json.Unmarshal(raw, out)
}
