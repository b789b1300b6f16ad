// Package storagetest provides an in-memory storage.Storage for tests.
package storagetest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/spendlog/service/internal/storage"
)

var _ storage.Storage = (*Bucket)(nil)

// Bucket is an in-memory object store. Signed URLs are opaque strings; tests
// simulate the client's direct upload with Put.
type Bucket struct {
	mu      sync.Mutex
	objects map[string]bool
	// FailDelete makes Delete fail for the listed keys.
	FailDelete map[string]bool
	// FailList makes List return an error.
	FailList bool
	Deletes  []string
	Presigns []string
}

// NewBucket returns an empty Bucket holding the given keys.
func NewBucket(keys ...string) *Bucket {
	b := &Bucket{objects: map[string]bool{}, FailDelete: map[string]bool{}}
	for _, k := range keys {
		b.objects[k] = true
	}
	return b
}

// Put stores key as if a client had uploaded to its signed URL.
func (b *Bucket) Put(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = true
}

// Has reports whether key is stored.
func (b *Bucket) Has(key string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.objects[key]
}

// Len returns the number of stored objects.
func (b *Bucket) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.objects)
}

func (b *Bucket) PresignUpload(_ context.Context, key, contentType string, ttl time.Duration) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Presigns = append(b.Presigns, key)
	return fmt.Sprintf("https://bucket.test/%s?method=PUT&type=%s&ttl=%d", key, contentType, int(ttl.Seconds())), nil
}

func (b *Bucket) PresignDownload(_ context.Context, key string, ttl time.Duration) (string, error) {
	return fmt.Sprintf("https://bucket.test/%s?method=GET&ttl=%d", key, int(ttl.Seconds())), nil
}

func (b *Bucket) Exists(_ context.Context, key string) (bool, error) {
	return b.Has(key), nil
}

func (b *Bucket) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Deletes = append(b.Deletes, key)
	if b.FailDelete[key] {
		return fmt.Errorf("remove object %q: service unavailable", key)
	}
	delete(b.objects, key)
	return nil
}

func (b *Bucket) List(_ context.Context, prefix string) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.FailList {
		return nil, fmt.Errorf("list objects %q: access denied", prefix)
	}
	var keys []string
	for k := range b.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (b *Bucket) PublicURL(key string) string {
	return "https://cdn.test/" + key
}
