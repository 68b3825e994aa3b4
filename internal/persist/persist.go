package persist

import (
	"context"
	"errors"
)

// Well-known document keys.
const (
	KeyProviders     = "providers"
	KeyCacheSnapshot = "cache_snapshot"
)

// ErrNotFound is returned by Load when no document exists for the key.
var ErrNotFound = errors.New("document not found")

// Persister stores whole serialized documents under fixed keys.
// Save replaces the document atomically: a concurrent Load sees either the
// previous or the new content, never a partial write.
type Persister interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
}
