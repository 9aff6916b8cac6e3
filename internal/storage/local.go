package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Local stores objects under a directory; keys map to relative paths.
type Local struct {
	baseDir string
}

func NewLocal(baseDir string) *Local {
	if baseDir == "" {
		baseDir = "./data"
	}
	return &Local{baseDir: baseDir}
}

// Dir is the root directory, served by the API under /files/.
func (l *Local) Dir() string { return l.baseDir }

func (l *Local) Put(_ context.Context, key string, body []byte, contentType string) (Object, error) {
	key = SanitizeKey(key)
	p := filepath.Join(l.baseDir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return Object{}, fmt.Errorf("create dirs: %w", err)
	}
	if err := os.WriteFile(p, body, 0o644); err != nil {
		return Object{}, fmt.Errorf("write file: %w", err)
	}
	return Object{Key: key, URI: "file://" + key, Size: int64(len(body)), ContentType: contentType}, nil
}

func (l *Local) Get(_ context.Context, key string) ([]byte, string, error) {
	key = SanitizeKey(key)
	body, err := os.ReadFile(filepath.Join(l.baseDir, filepath.FromSlash(key)))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, "", fmt.Errorf("read %s: %w", key, ErrNotFound)
		}
		return nil, "", fmt.Errorf("read file: %w", err)
	}
	return body, mime.TypeByExtension(filepath.Ext(key)), nil
}

func (l *Local) List(_ context.Context, prefix string) ([]Object, error) {
	root := filepath.Join(l.baseDir, filepath.FromSlash(SanitizeKey(prefix)))
	var objects []Object
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return filepath.SkipDir
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(l.baseDir, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		objects = append(objects, Object{Key: key, URI: "file://" + key, Size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", prefix, err)
	}
	sort.Slice(objects, func(i, j int) bool { return objects[i].Key < objects[j].Key })
	return objects, nil
}

func (l *Local) Owns(uri string) (string, bool) {
	if !strings.HasPrefix(uri, "file://") {
		return "", false
	}
	return SanitizeKey(strings.TrimPrefix(uri, "file://")), true
}
