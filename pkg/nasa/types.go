package nasa

import "strings"

// AssetTiers are the recognized image size tiers, in the fixed declared
// order used when bucketing asset URLs. A tier is detected by substring
// match against the asset URL, never by inspecting content.
var AssetTiers = []string{"orig", "large", "medium", "small", "thumb"}

// DownloadPriority is the tier order used when choosing which asset to
// download: prefer mid-sized assets, fall back outward.
var DownloadPriority = []string{"medium", "small", "large", "orig", "thumb"}

// SearchEntry is a lightweight reference to one search result. It carries
// the inline metadata from the search page plus the href of the full asset
// manifest. Entries are ephemeral: they exist only between page parsing and
// detail fetch, and are never surfaced to consumers.
type SearchEntry struct {
	Href string           `json:"href"`
	Data []map[string]any `json:"data"`
}

// ID returns the entry's catalog identifier (the nasa_id field), or ""
// if the entry carries no inline metadata.
func (e SearchEntry) ID() string {
	f := e.fields()
	if f == nil {
		return ""
	}
	id, _ := f["nasa_id"].(string)
	return id
}

// fields returns the first inline metadata block, which is where the
// catalog puts the item's fields.
func (e SearchEntry) fields() map[string]any {
	if len(e.Data) == 0 {
		return nil
	}
	return e.Data[0]
}

// Record is the fully hydrated, consumer-visible unit of output: the
// entry's inline metadata merged with the size-keyed asset URL mapping.
// A Record is immutable once delivered.
type Record struct {
	// NasaID is the catalog identifier of the item.
	NasaID string

	// Fields holds the item's metadata as returned by the search page
	// (title, description, keywords, center, date_created, ...).
	Fields map[string]any

	// AssetURLs maps size tier to asset URL. Only tiers present in the
	// item's manifest appear.
	AssetURLs map[string]string
}

// Title returns the item's title field, or "".
func (r *Record) Title() string {
	s, _ := r.Fields["title"].(string)
	return s
}

// Description returns the item's description field, or "".
func (r *Record) Description() string {
	s, _ := r.Fields["description"].(string)
	return s
}

// DownloadURL picks the asset URL to download following DownloadPriority.
// Returns false if no recognized tier is present.
func (r *Record) DownloadURL() (string, bool) {
	for _, tier := range DownloadPriority {
		if url, ok := r.AssetURLs[tier]; ok {
			return url, true
		}
	}
	return "", false
}

// bucketAssetURLs buckets a manifest's asset URLs by size tier. The first
// URL containing a tier's name wins that tier; tiers with no matching URL
// are omitted.
func bucketAssetURLs(urls []string) map[string]string {
	buckets := make(map[string]string)
	for _, tier := range AssetTiers {
		for _, u := range urls {
			if strings.Contains(u, tier) {
				buckets[tier] = u
				break
			}
		}
	}
	return buckets
}

// searchPage is the decoded form of one search response.
type searchPage struct {
	total   int
	entries []SearchEntry
	next    string
}

// searchResponse mirrors the catalog's search JSON envelope.
type searchResponse struct {
	Collection struct {
		Metadata struct {
			TotalHits int `json:"total_hits"`
		} `json:"metadata"`
		Items []SearchEntry `json:"items"`
		Links []struct {
			Rel  string `json:"rel"`
			Href string `json:"href"`
		} `json:"links"`
	} `json:"collection"`
}

func (r *searchResponse) page() searchPage {
	p := searchPage{
		total:   r.Collection.Metadata.TotalHits,
		entries: r.Collection.Items,
	}
	for _, l := range r.Collection.Links {
		if l.Rel == "next" {
			p.next = l.Href
			break
		}
	}
	return p
}
