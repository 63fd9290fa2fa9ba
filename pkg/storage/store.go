// Package storage persists harvested images and their metadata. Artifacts
// follow a fixed naming scheme, meta_<id>.json and image_<id>.<ext>, and
// the set of existing image artifacts doubles as the resume ledger for
// interrupted runs: an item whose image exists is considered done.
package storage

import (
	"context"
	"strings"

	"github.com/astroscope/nasa-harvester/pkg/label"
)

// Meta is the persisted metadata document for one harvested item.
type Meta struct {
	// NasaID is the catalog identifier of the item.
	NasaID string `json:"nasa_id"`

	// Title and Description are lifted out of Fields for the benefit of
	// the keyword filter.
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`

	// Fields holds the remaining catalog metadata verbatim.
	Fields map[string]any `json:"fields,omitempty"`

	// AssetURLs maps size tier to asset URL.
	AssetURLs map[string]string `json:"image_urls,omitempty"`

	// Labels are the classification results for the downloaded image.
	Labels []label.Label `json:"labels,omitempty"`
}

// Store persists harvest artifacts. Implementations must write each
// artifact durably before returning, since completion is judged from the
// stored artifacts alone.
type Store interface {
	// SaveMeta writes the metadata document for an item.
	SaveMeta(ctx context.Context, id string, meta Meta) error

	// SaveImage writes the image bytes for an item. Writing the image is
	// the commit point: CompletedIDs reports ids from image artifacts.
	SaveImage(ctx context.Context, id, ext string, data []byte) error

	// LoadMeta reads an item's metadata document.
	LoadMeta(ctx context.Context, id string) (Meta, error)

	// LoadImage reads an item's image bytes and extension.
	LoadImage(ctx context.Context, id string) (data []byte, ext string, err error)

	// CompletedIDs enumerates the ids of items whose image artifact
	// exists. This is the resume ledger consulted at pipeline start.
	CompletedIDs(ctx context.Context) (map[string]struct{}, error)
}

// metaName and imageName build artifact names for an item.
func metaName(id string) string {
	return "meta_" + id + ".json"
}

func imageName(id, ext string) string {
	return "image_" + id + "." + ext
}

// idFromImageName extracts the item id from an image artifact name, or ""
// if the name does not follow the scheme.
func idFromImageName(name string) string {
	rest, ok := strings.CutPrefix(name, "image_")
	if !ok {
		return ""
	}
	id, _, ok := strings.Cut(rest, ".")
	if !ok {
		return ""
	}
	return id
}

// ExtFromURL returns the file extension of an asset URL (without the
// dot), defaulting to "jpg" when the URL carries none. Only the last
// path segment is inspected, so dots in the host do not count.
func ExtFromURL(url string) string {
	name := url
	if idx := strings.LastIndex(name, "/"); idx >= 0 {
		name = name[idx+1:]
	}
	idx := strings.LastIndex(name, ".")
	if idx < 0 || idx == len(name)-1 {
		return "jpg"
	}
	return name[idx+1:]
}
