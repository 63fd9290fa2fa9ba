package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
)

// MinioStore persists artifacts as objects in a MinIO or S3-compatible
// bucket, using the same naming scheme as LocalStore under a key prefix.
type MinioStore struct {
	client *minio.Client
	bucket string
	prefix string
}

// NewMinioStore creates a MinIO-backed store. prefix is prepended to all
// object keys (e.g. "nasa/").
func NewMinioStore(client *minio.Client, bucket, prefix string) *MinioStore {
	return &MinioStore{
		client: client,
		bucket: bucket,
		prefix: prefix,
	}
}

func (s *MinioStore) key(name string) string {
	return path.Join(s.prefix, name)
}

func (s *MinioStore) put(ctx context.Context, name string, data []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, s.key(name),
		bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("put object %s: %w", name, err)
	}
	return nil
}

func (s *MinioStore) get(ctx context.Context, name string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, s.key(name), minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get object %s: %w", name, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("read object %s: %w", name, err)
	}
	return data, nil
}

// SaveMeta implements Store.
func (s *MinioStore) SaveMeta(ctx context.Context, id string, meta Meta) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal meta %s: %w", id, err)
	}
	return s.put(ctx, metaName(id), data, "application/json")
}

// SaveImage implements Store.
func (s *MinioStore) SaveImage(ctx context.Context, id, ext string, data []byte) error {
	return s.put(ctx, imageName(id, ext), data, "application/octet-stream")
}

// LoadMeta implements Store.
func (s *MinioStore) LoadMeta(ctx context.Context, id string) (Meta, error) {
	data, err := s.get(ctx, metaName(id))
	if err != nil {
		return Meta{}, err
	}
	var meta Meta
	if err := json.Unmarshal(data, &meta); err != nil {
		return Meta{}, fmt.Errorf("decode meta %s: %w", id, err)
	}
	return meta, nil
}

// LoadImage implements Store.
func (s *MinioStore) LoadImage(ctx context.Context, id string) ([]byte, string, error) {
	opts := minio.ListObjectsOptions{
		Prefix:    s.key("image_" + id + "."),
		Recursive: true,
	}
	for obj := range s.client.ListObjects(ctx, s.bucket, opts) {
		if obj.Err != nil {
			return nil, "", fmt.Errorf("list image %s: %w", id, obj.Err)
		}
		data, err := s.get(ctx, path.Base(obj.Key))
		if err != nil {
			return nil, "", err
		}
		ext := strings.TrimPrefix(path.Ext(obj.Key), ".")
		return data, ext, nil
	}
	return nil, "", fmt.Errorf("image %s: not found", id)
}

// CompletedIDs implements Store.
func (s *MinioStore) CompletedIDs(ctx context.Context) (map[string]struct{}, error) {
	ids := make(map[string]struct{})

	opts := minio.ListObjectsOptions{
		Prefix:    s.key("image_"),
		Recursive: true,
	}
	for obj := range s.client.ListObjects(ctx, s.bucket, opts) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list images: %w", obj.Err)
		}
		if id := idFromImageName(path.Base(obj.Key)); id != "" {
			ids[id] = struct{}{}
		}
	}
	return ids, nil
}
