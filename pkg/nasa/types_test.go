package nasa

import (
	"reflect"
	"testing"
)

func TestBucketAssetURLs(t *testing.T) {
	tests := []struct {
		name     string
		urls     []string
		expected map[string]string
	}{
		{
			name: "large and thumb only",
			urls: []string{
				"https://images-assets.nasa.gov/image/x/x~large.jpg",
				"https://images-assets.nasa.gov/image/x/x~thumb.jpg",
			},
			expected: map[string]string{
				"large": "https://images-assets.nasa.gov/image/x/x~large.jpg",
				"thumb": "https://images-assets.nasa.gov/image/x/x~thumb.jpg",
			},
		},
		{
			name: "all tiers",
			urls: []string{
				"x~orig.tif", "x~large.jpg", "x~medium.jpg", "x~small.jpg", "x~thumb.jpg",
			},
			expected: map[string]string{
				"orig": "x~orig.tif", "large": "x~large.jpg", "medium": "x~medium.jpg",
				"small": "x~small.jpg", "thumb": "x~thumb.jpg",
			},
		},
		{
			name:     "no recognized tier",
			urls:     []string{"x~metadata.json", "x.srt"},
			expected: map[string]string{},
		},
		{
			name:     "empty manifest",
			urls:     nil,
			expected: map[string]string{},
		},
		{
			name: "first matching URL wins a tier",
			urls: []string{"a~large.jpg", "b~large.jpg"},
			expected: map[string]string{
				"large": "a~large.jpg",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := bucketAssetURLs(tt.urls)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("bucketAssetURLs() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestRecord_DownloadURL(t *testing.T) {
	tests := []struct {
		name     string
		assets   map[string]string
		expected string
		ok       bool
	}{
		{
			name:     "medium preferred",
			assets:   map[string]string{"orig": "o", "medium": "m", "thumb": "t"},
			expected: "m",
			ok:       true,
		},
		{
			name:     "small before large",
			assets:   map[string]string{"small": "s", "large": "l"},
			expected: "s",
			ok:       true,
		},
		{
			name:     "thumb as last resort",
			assets:   map[string]string{"thumb": "t"},
			expected: "t",
			ok:       true,
		},
		{
			name:   "no assets",
			assets: map[string]string{},
			ok:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &Record{AssetURLs: tt.assets}
			url, ok := rec.DownloadURL()
			if ok != tt.ok {
				t.Fatalf("DownloadURL() ok = %v, want %v", ok, tt.ok)
			}
			if url != tt.expected {
				t.Errorf("DownloadURL() = %q, want %q", url, tt.expected)
			}
		})
	}
}

func TestSearchEntry_ID(t *testing.T) {
	entry := SearchEntry{
		Href: "https://images-api.nasa.gov/asset/as11-40-5874",
		Data: []map[string]any{{"nasa_id": "as11-40-5874", "title": "Aldrin"}},
	}
	if got := entry.ID(); got != "as11-40-5874" {
		t.Errorf("ID() = %q, want %q", got, "as11-40-5874")
	}

	empty := SearchEntry{}
	if got := empty.ID(); got != "" {
		t.Errorf("ID() on empty entry = %q, want empty", got)
	}
}

func TestRecord_TitleDescription(t *testing.T) {
	rec := &Record{Fields: map[string]any{
		"title":       "Docking test",
		"description": "Gemini docking exercise",
	}}
	if rec.Title() != "Docking test" {
		t.Errorf("Title() = %q", rec.Title())
	}
	if rec.Description() != "Gemini docking exercise" {
		t.Errorf("Description() = %q", rec.Description())
	}

	bare := &Record{Fields: map[string]any{}}
	if bare.Title() != "" || bare.Description() != "" {
		t.Error("Missing fields should yield empty strings")
	}
}
