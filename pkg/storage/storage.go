package storage

import (
	"context"
)

// Storage defines the key-value persistence collaborator. Values are stored
// as JSON documents under fixed, configurable key names.
type Storage interface {
	// Health and lifecycle
	Ping(ctx context.Context) error
	Close() error

	// LoadJSON decodes the document stored under key into v.
	// Returns false with a nil error when the key does not exist.
	LoadJSON(ctx context.Context, key string, v any) (bool, error)

	// SaveJSON encodes v and stores it under key, overwriting any previous value
	SaveJSON(ctx context.Context, key string, v any) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}
