// Package storage holds source assets, generated results, and thumbnails in an
// S3-compatible bucket or a local directory, and resolves stored URIs to URLs.
package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"media-studio/internal/config"
)

var ErrNotFound = errors.New("object not found")

// Object describes a stored blob.
type Object struct {
	Key         string
	URI         string
	Size        int64
	ContentType string
}

// Name is the last path element of the key.
func (o Object) Name() string {
	return path.Base(o.Key)
}

// Store is implemented by the S3 and local backends.
type Store interface {
	Put(ctx context.Context, key string, body []byte, contentType string) (Object, error)
	Get(ctx context.Context, key string) ([]byte, string, error)
	List(ctx context.Context, prefix string) ([]Object, error)
	// Owns reports whether uri points into this store, returning its key.
	Owns(uri string) (string, bool)
}

// New picks S3 when a bucket is configured and the local directory otherwise.
func New(ctx context.Context, cfg config.Config) (Store, error) {
	if cfg.S3Bucket != "" {
		return NewS3(ctx, cfg)
	}
	return NewLocal(cfg.LocalStorageDir), nil
}

// SanitizeKey normalizes a user-supplied key so it stays inside its prefix.
func SanitizeKey(key string) string {
	key = strings.ReplaceAll(key, "\\", "/")
	key = path.Clean("/" + key)
	return strings.TrimPrefix(key, "/")
}

// ParseURI splits scheme://bucket/key. Local URIs have an empty bucket.
func ParseURI(uri string) (scheme, bucket, key string, err error) {
	scheme, rest, ok := strings.Cut(uri, "://")
	if !ok || scheme == "" || rest == "" {
		return "", "", "", fmt.Errorf("parse uri %q: missing scheme", uri)
	}
	if scheme == "file" {
		return scheme, "", strings.TrimPrefix(rest, "/"), nil
	}
	bucket, key, _ = strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", "", fmt.Errorf("parse uri %q: missing bucket", uri)
	}
	return scheme, bucket, key, nil
}
