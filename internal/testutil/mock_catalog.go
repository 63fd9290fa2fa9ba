// Package testutil provides testing utilities for the harvester.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
)

// MockItem describes one catalog item served by the mock.
type MockItem struct {
	// NasaID is the item's catalog identifier.
	NasaID string

	// Fields are additional inline metadata fields (title, ...).
	Fields map[string]any

	// AssetURLs is the manifest returned for the item's detail href.
	// Entries typically embed a size tier name ("...~medium.jpg").
	AssetURLs []string

	// DetailStatus, when non-zero, overrides the detail response status.
	DetailStatus int
}

// MockCatalog is a configurable mock of the catalog API for testing. It
// serves a paginated /search endpoint with next links, per-item asset
// manifests under /asset/<id>, and the assets themselves under
// /media/<name>, and records request counts per path.
type MockCatalog struct {
	server *httptest.Server

	mu        sync.Mutex
	pages     [][]MockItem
	items     map[string]MockItem
	pageSize  int
	requests  map[string]int
	pageFails map[int]int // page index -> status to serve
}

// NewMockCatalog creates a mock catalog serving the given items split
// into pages of pageSize.
func NewMockCatalog(pageSize int, items ...MockItem) *MockCatalog {
	m := &MockCatalog{
		items:     make(map[string]MockItem, len(items)),
		pageSize:  pageSize,
		requests:  make(map[string]int),
		pageFails: make(map[int]int),
	}

	for i := 0; i < len(items); i += pageSize {
		end := i + pageSize
		if end > len(items) {
			end = len(items)
		}
		m.pages = append(m.pages, items[i:end])
	}
	if len(m.pages) == 0 {
		m.pages = [][]MockItem{{}}
	}
	for _, item := range items {
		m.items[item.NasaID] = item
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/search", m.handleSearch)
	mux.HandleFunc("/asset/", m.handleAsset)
	mux.HandleFunc("/media/", m.handleMedia)
	m.server = httptest.NewServer(m.countRequests(mux))

	return m
}

// URL returns the mock server URL.
func (m *MockCatalog) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockCatalog) Close() {
	m.server.Close()
}

// FailPage makes the given zero-based page respond with status.
func (m *MockCatalog) FailPage(page, status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pageFails[page] = status
}

// RequestCount returns the number of requests seen for a path.
func (m *MockCatalog) RequestCount(path string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests[path]
}

// TotalRequests returns the number of requests seen across all paths.
func (m *MockCatalog) TotalRequests() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.requests {
		n += c
	}
	return n
}

func (m *MockCatalog) countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		m.requests[r.URL.Path]++
		m.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (m *MockCatalog) handleSearch(w http.ResponseWriter, r *http.Request) {
	page := 0
	if p := r.URL.Query().Get("page"); p != "" {
		fmt.Sscanf(p, "%d", &page)
	}

	m.mu.Lock()
	fail, failing := m.pageFails[page]
	m.mu.Unlock()
	if failing {
		http.Error(w, "mock page failure", fail)
		return
	}

	if page >= len(m.pages) {
		http.Error(w, "no such page", http.StatusNotFound)
		return
	}

	total := 0
	for _, p := range m.pages {
		total += len(p)
	}

	items := make([]map[string]any, 0, len(m.pages[page]))
	for _, item := range m.pages[page] {
		fields := map[string]any{"nasa_id": item.NasaID}
		for k, v := range item.Fields {
			fields[k] = v
		}
		items = append(items, map[string]any{
			"href": m.server.URL + "/asset/" + item.NasaID,
			"data": []map[string]any{fields},
		})
	}

	links := []map[string]any{}
	if page+1 < len(m.pages) {
		links = append(links, map[string]any{
			"rel":  "next",
			"href": fmt.Sprintf("%s/search?page=%d", m.server.URL, page+1),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"collection": map[string]any{
			"metadata": map[string]any{"total_hits": total},
			"items":    items,
			"links":    links,
		},
	})
}

func (m *MockCatalog) handleAsset(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Path[len("/asset/"):]

	m.mu.Lock()
	item, ok := m.items[id]
	m.mu.Unlock()
	if !ok {
		http.Error(w, "no such item", http.StatusNotFound)
		return
	}
	if item.DetailStatus != 0 && item.DetailStatus != http.StatusOK {
		http.Error(w, "mock detail failure", item.DetailStatus)
		return
	}

	// Relative entries become media URLs on this server, so items can be
	// declared before the server address is known.
	urls := make([]string, len(item.AssetURLs))
	for i, u := range item.AssetURLs {
		if strings.HasPrefix(u, "http") {
			urls[i] = u
		} else {
			urls[i] = m.server.URL + "/media/" + u
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(urls)
}

func (m *MockCatalog) handleMedia(w http.ResponseWriter, r *http.Request) {
	// Deterministic fake image bytes derived from the asset name.
	name := r.URL.Path[len("/media/"):]
	w.Header().Set("Content-Type", "application/octet-stream")
	fmt.Fprintf(w, "image-bytes-%s", name)
}

// MediaURL builds a media URL on the mock server embedding a size tier.
func (m *MockCatalog) MediaURL(id, tier, ext string) string {
	return fmt.Sprintf("%s/media/%s~%s.%s", m.server.URL, id, tier, ext)
}
