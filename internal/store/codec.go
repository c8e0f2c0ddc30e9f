package store

import (
	"context"
	"encoding/json"
	"fmt"
)

// GetJSON reads key and decodes its value into v, returning the version.
func GetJSON(ctx context.Context, kv KV, key string, v any) (uint64, error) {
	rec, err := kv.Get(ctx, key)
	if err != nil {
		return 0, err
	}
	if err := json.Unmarshal(rec.Value, v); err != nil {
		return 0, fmt.Errorf("decode %q: %w", key, err)
	}
	return rec.Version, nil
}

// PutJSON encodes v into a Write expecting version.
func PutJSON(key string, v any, version uint64) (Write, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Write{}, fmt.Errorf("encode %q: %w", key, err)
	}
	return Write{Key: key, Value: data, Version: version}, nil
}
