package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Supported upload content types and the key extension each one produces.
var uploadExtensions = map[string]string{
	"image/png":  "png",
	"image/jpg":  "jpg",
	"image/jpeg": "jpeg",
}

// UploadTicket is handed to a client so it can upload directly to the store.
type UploadTicket struct {
	Key       string    `json:"key"`
	SignedURL string    `json:"signedUrl"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// IsSupportedType reports whether contentType may be uploaded.
func IsSupportedType(contentType string) bool {
	_, ok := uploadExtensions[contentType]
	return ok
}

// UserPrefix returns the key prefix that scopes all of a user's objects.
func UserPrefix(userID string) string {
	return userID + "/"
}

// OwnedBy reports whether key lies under the user's prefix.
func OwnedBy(userID, key string) bool {
	prefix := UserPrefix(userID)
	return userID != "" && strings.HasPrefix(key, prefix) && len(key) > len(prefix)
}

// NewKey generates a fresh key "<userID>/<uuid>.<ext>" for contentType.
func NewKey(userID, contentType string) (string, error) {
	if !IsSupportedType(contentType) {
		return "", fmt.Errorf("unsupported content type %q", contentType)
	}
	ext := uploadExtensions[contentType]
	if userID == "" {
		return "", fmt.Errorf("empty owner")
	}
	return UserPrefix(userID) + uuid.NewString() + "." + ext, nil
}

// IssueUploadURL generates a new key under the user's prefix and signs a PUT
// for it. Nothing is recorded: an unused ticket leaves no trace.
func IssueUploadURL(ctx context.Context, s Storage, userID, contentType string, ttl time.Duration) (*UploadTicket, error) {
	key, err := NewKey(userID, contentType)
	if err != nil {
		return nil, err
	}
	signed, err := s.PresignUpload(ctx, key, contentType, ttl)
	if err != nil {
		return nil, fmt.Errorf("presign upload %q: %w", key, err)
	}
	return &UploadTicket{
		Key:       key,
		SignedURL: signed,
		ExpiresAt: time.Now().Add(ttl).UTC(),
	}, nil
}
