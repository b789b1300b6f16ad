// Package storage is the gateway to the S3-compatible object store that holds
// receipt images. Objects are uploaded by clients directly through signed
// URLs; the server only signs, inspects, lists and deletes.
package storage

import (
	"context"
	"time"
)

// Storage is the interface for object store operations used by the service.
type Storage interface {
	// PresignUpload returns a URL that allows a single PUT of key with the
	// given content type until ttl elapses.
	PresignUpload(ctx context.Context, key, contentType string, ttl time.Duration) (string, error)
	// PresignDownload returns a URL that allows GET of key until ttl elapses.
	PresignDownload(ctx context.Context, key string, ttl time.Duration) (string, error)
	// Exists reports whether an object is stored under key.
	Exists(ctx context.Context, key string) (bool, error)
	// Delete removes an object identified by key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// List returns every key under prefix, deduplicated and sorted.
	List(ctx context.Context, prefix string) ([]string, error)
	// PublicURL constructs the browser-accessible URL for a given key.
	PublicURL(key string) string
}
