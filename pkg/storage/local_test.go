package storage

import (
	"bytes"
	"context"
	"errors"
	"os"
	"testing"
)

func TestLocalStore_SaveAndLoadMeta(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore failed: %v", err)
	}

	ctx := context.Background()
	meta := Meta{
		NasaID:      "as11-40-5874",
		Title:       "Aldrin on the Moon",
		Description: "Astronaut Buzz Aldrin walks on the lunar surface",
		Fields:      map[string]any{"center": "JSC"},
		AssetURLs:   map[string]string{"medium": "https://example.com/a~medium.jpg"},
	}

	if err := store.SaveMeta(ctx, meta.NasaID, meta); err != nil {
		t.Fatalf("SaveMeta failed: %v", err)
	}

	got, err := store.LoadMeta(ctx, meta.NasaID)
	if err != nil {
		t.Fatalf("LoadMeta failed: %v", err)
	}
	if got.NasaID != meta.NasaID || got.Title != meta.Title || got.Description != meta.Description {
		t.Errorf("LoadMeta = %+v, want %+v", got, meta)
	}
	if got.AssetURLs["medium"] != meta.AssetURLs["medium"] {
		t.Errorf("AssetURLs = %v, want %v", got.AssetURLs, meta.AssetURLs)
	}
}

func TestLocalStore_SaveAndLoadImage(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore failed: %v", err)
	}

	ctx := context.Background()
	data := []byte{0xff, 0xd8, 0xff, 0xe0}

	if err := store.SaveImage(ctx, "as11-40-5874", "jpg", data); err != nil {
		t.Fatalf("SaveImage failed: %v", err)
	}

	got, ext, err := store.LoadImage(ctx, "as11-40-5874")
	if err != nil {
		t.Fatalf("LoadImage failed: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("LoadImage data = %v, want %v", got, data)
	}
	if ext != "jpg" {
		t.Errorf("LoadImage ext = %q, want %q", ext, "jpg")
	}
}

func TestLocalStore_LoadImageMissing(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore failed: %v", err)
	}

	_, _, err = store.LoadImage(context.Background(), "missing")
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("LoadImage error = %v, want os.ErrNotExist", err)
	}
}

func TestLocalStore_CompletedIDs(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore failed: %v", err)
	}

	ctx := context.Background()

	ids, err := store.CompletedIDs(ctx)
	if err != nil {
		t.Fatalf("CompletedIDs failed: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("CompletedIDs on empty store = %v, want empty", ids)
	}

	// Meta without image must not count as completed.
	if err := store.SaveMeta(ctx, "partial", Meta{NasaID: "partial"}); err != nil {
		t.Fatalf("SaveMeta failed: %v", err)
	}
	if err := store.SaveImage(ctx, "a", "jpg", []byte("x")); err != nil {
		t.Fatalf("SaveImage failed: %v", err)
	}
	if err := store.SaveImage(ctx, "b", "png", []byte("y")); err != nil {
		t.Fatalf("SaveImage failed: %v", err)
	}

	ids, err = store.CompletedIDs(ctx)
	if err != nil {
		t.Fatalf("CompletedIDs failed: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("CompletedIDs = %v, want 2 entries", ids)
	}
	for _, want := range []string{"a", "b"} {
		if _, ok := ids[want]; !ok {
			t.Errorf("CompletedIDs missing %q", want)
		}
	}
	if _, ok := ids["partial"]; ok {
		t.Error("CompletedIDs included item with meta but no image")
	}
}

func TestIDFromImageName(t *testing.T) {
	tests := []struct {
		name     string
		expected string
	}{
		{"image_as11-40-5874.jpg", "as11-40-5874"},
		{"image_x.png", "x"},
		{"meta_x.json", ""},
		{"image_noext", ""},
	}

	for _, tt := range tests {
		if got := idFromImageName(tt.name); got != tt.expected {
			t.Errorf("idFromImageName(%q) = %q, want %q", tt.name, got, tt.expected)
		}
	}
}

func TestExtFromURL(t *testing.T) {
	tests := []struct {
		url      string
		expected string
	}{
		{"https://example.com/a~medium.jpg", "jpg"},
		{"https://example.com/a~orig.tif", "tif"},
		{"https://example.com/no-extension", "jpg"},
		{"https://example.com/trailing-dot.", "jpg"},
	}

	for _, tt := range tests {
		if got := ExtFromURL(tt.url); got != tt.expected {
			t.Errorf("ExtFromURL(%q) = %q, want %q", tt.url, got, tt.expected)
		}
	}
}
