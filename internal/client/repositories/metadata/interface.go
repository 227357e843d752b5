// Package metadata keeps small key/value facts about the local store, such
// as when the queue was last synchronized.
package metadata

import (
	"context"
)

// Well-known keys.
const (
	KeyLastSyncAt     = "last_sync_at"
	KeyLastSyncResult = "last_sync_result"
)

type Repository interface {
	// Get returns (nil, nil) for an unknown key.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) (map[string][]byte, error)
	Clear(ctx context.Context) error
}
