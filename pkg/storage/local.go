package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore persists artifacts as files in one directory.
type LocalStore struct {
	dir string
}

// NewLocalStore creates a local store rooted at dir, creating it if needed.
func NewLocalStore(dir string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	return &LocalStore{dir: dir}, nil
}

// Dir returns the store's root directory.
func (s *LocalStore) Dir() string {
	return s.dir
}

// SaveMeta implements Store.
func (s *LocalStore) SaveMeta(_ context.Context, id string, meta Meta) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal meta %s: %w", id, err)
	}
	if err := os.WriteFile(filepath.Join(s.dir, metaName(id)), data, 0o644); err != nil {
		return fmt.Errorf("write meta %s: %w", id, err)
	}
	return nil
}

// SaveImage implements Store.
func (s *LocalStore) SaveImage(_ context.Context, id, ext string, data []byte) error {
	if err := os.WriteFile(filepath.Join(s.dir, imageName(id, ext)), data, 0o644); err != nil {
		return fmt.Errorf("write image %s: %w", id, err)
	}
	return nil
}

// LoadMeta implements Store.
func (s *LocalStore) LoadMeta(_ context.Context, id string) (Meta, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, metaName(id)))
	if err != nil {
		return Meta{}, fmt.Errorf("read meta %s: %w", id, err)
	}
	var meta Meta
	if err := json.Unmarshal(data, &meta); err != nil {
		return Meta{}, fmt.Errorf("decode meta %s: %w", id, err)
	}
	return meta, nil
}

// LoadImage implements Store.
func (s *LocalStore) LoadImage(_ context.Context, id string) ([]byte, string, error) {
	matches, err := filepath.Glob(filepath.Join(s.dir, "image_"+id+".*"))
	if err != nil {
		return nil, "", fmt.Errorf("glob image %s: %w", id, err)
	}
	if len(matches) == 0 {
		return nil, "", fmt.Errorf("image %s: %w", id, os.ErrNotExist)
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		return nil, "", fmt.Errorf("read image %s: %w", id, err)
	}
	ext := strings.TrimPrefix(filepath.Ext(matches[0]), ".")
	return data, ext, nil
}

// CompletedIDs implements Store.
func (s *LocalStore) CompletedIDs(_ context.Context) (map[string]struct{}, error) {
	matches, err := filepath.Glob(filepath.Join(s.dir, "image_*"))
	if err != nil {
		return nil, fmt.Errorf("glob images: %w", err)
	}

	ids := make(map[string]struct{}, len(matches))
	for _, m := range matches {
		if id := idFromImageName(filepath.Base(m)); id != "" {
			ids[id] = struct{}{}
		}
	}
	return ids, nil
}
