// Package nasa provides a streaming client for the NASA Images API with
// rate limiting, optional response caching, and error handling.
package nasa

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/astroscope/nasa-harvester/pkg/cache"
	"github.com/astroscope/nasa-harvester/pkg/ratelimit"
)

// DefaultBaseURL is the public NASA Images API endpoint.
const DefaultBaseURL = "https://images-api.nasa.gov"

// Prometheus metrics for catalog requests.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "harvester_catalog_requests_total",
		Help: "Total catalog requests by kind and status",
	}, []string{"kind", "status"}) // kind: "page", "detail"

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "harvester_catalog_request_duration_seconds",
		Help:    "Catalog request duration in seconds by kind",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"kind"})
)

// Client is a session against the catalog API. One Client owns one HTTP
// connection pool; Open and Close are reference-counted so nested scopes
// can share the session, tearing the pool down only when the outermost
// scope exits.
type Client struct {
	mu         sync.Mutex
	refs       int
	httpClient *http.Client

	limiter *ratelimit.Limiter
	cache   *cache.Manager
	config  Config
	logger  zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// BaseURL of the catalog API (default: DefaultBaseURL).
	BaseURL string

	// Limiter gates every page and detail request. Required; share one
	// instance across everything that talks to the catalog.
	Limiter *ratelimit.Limiter

	// Cache is an optional response cache for catalog GETs.
	Cache *cache.Manager

	// UserAgent header sent with every request.
	UserAgent string

	// Timeout per HTTP request.
	Timeout time.Duration

	// Retry configuration for transient failures.
	Retry RetryConfig
}

// DefaultConfig returns a safe default configuration around the given limiter.
func DefaultConfig(limiter *ratelimit.Limiter) Config {
	return Config{
		BaseURL:   DefaultBaseURL,
		Limiter:   limiter,
		UserAgent: "nasa-harvester/0.1.0",
		Timeout:   30 * time.Second,
		Retry:     DefaultRetryConfig(),
	}
}

// New creates a new catalog client. The session starts closed; call Open
// before Search.
func New(cfg Config) (*Client, error) {
	if cfg.Limiter == nil {
		return nil, fmt.Errorf("rate limiter is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = DefaultRetryConfig()
	}

	return &Client{
		limiter: cfg.Limiter,
		cache:   cfg.Cache,
		config:  cfg,
		logger:  log.With().Str("component", "catalog-client").Logger(),
	}, nil
}

// Open acquires the session. The HTTP connection pool is created on the
// first Open; subsequent Opens only bump the reference count.
func (c *Client) Open() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.refs++
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: c.config.Timeout}
		c.logger.Debug().Msg("Session opened")
	}
}

// Close releases the session. The connection pool is torn down exactly
// once, when the last reference is released.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.refs == 0 {
		return ErrSessionClosed
	}
	c.refs--
	if c.refs == 0 {
		c.httpClient.CloseIdleConnections()
		c.httpClient = nil
		c.logger.Debug().Msg("Session closed")
	}
	return nil
}

// session returns the HTTP client, or an error if the session is closed.
func (c *Client) session() (*http.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.httpClient == nil {
		return nil, ErrSessionClosed
	}
	return c.httpClient, nil
}

// Search starts a streaming search. Query parameters are passed through to
// the catalog's search endpoint (q, center, media_type, ...). Search
// blocks only until the first page announces the total result count; the
// remaining pages and all detail fetches proceed in the background,
// feeding the returned Iterator.
func (c *Client) Search(ctx context.Context, params url.Values) (*Iterator, error) {
	if _, err := c.session(); err != nil {
		return nil, err
	}

	searchURL := c.config.BaseURL + "/search?" + params.Encode()

	it := newIterator()
	ready := make(chan error, 1)

	go c.walkPages(ctx, it, searchURL, ready)

	select {
	case err := <-ready:
		if err != nil {
			return nil, fmt.Errorf("search %q: %w", params.Encode(), err)
		}
		return it, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// get performs one rate-limited catalog GET with retries, returning the
// response body. The cache, when configured, is consulted first so hits
// consume no permit.
func (c *Client) get(ctx context.Context, kind, rawURL string) ([]byte, error) {
	httpClient, err := c.session()
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		if entry, err := c.cache.Get(ctx, cache.Key(rawURL)); err == nil {
			c.logger.Debug().Str("url", rawURL).Msg("Cache hit")
			return entry.Data, nil
		} else if err != cache.ErrCacheMiss {
			c.logger.Warn().Err(err).Str("url", rawURL).Msg("Cache get error")
		}
	}

	if err := c.limiter.Acquire(ctx); err != nil {
		return nil, err
	}

	start := time.Now()
	defer func() {
		requestDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	}()

	var body []byte
	err = retryWithBackoff(ctx, c.config.Retry, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("User-Agent", c.config.UserAgent)
		req.Header.Set("Accept", "application/json")

		resp, err := httpClient.Do(req)
		if err != nil {
			requestsTotal.WithLabelValues(kind, "network_error").Inc()
			return &APIError{Class: ErrorClassNetwork, URL: rawURL, Message: "request failed", Err: err}
		}
		defer resp.Body.Close()

		requestsTotal.WithLabelValues(kind, fmt.Sprintf("%d", resp.StatusCode)).Inc()

		if resp.StatusCode != http.StatusOK {
			c.logger.Warn().
				Str("url", rawURL).
				Int("status", resp.StatusCode).
				Msg("Catalog request error")
			return &APIError{
				StatusCode: resp.StatusCode,
				Class:      classifyStatus(resp.StatusCode),
				URL:        rawURL,
				Message:    resp.Status,
			}
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return &APIError{Class: ErrorClassNetwork, URL: rawURL, Message: "read body", Err: err}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		entry := cache.NewEntry(body, http.StatusOK)
		if err := c.cache.Set(ctx, cache.Key(rawURL), entry); err != nil {
			c.logger.Warn().Err(err).Str("url", rawURL).Msg("Failed to cache response")
		}
	}

	return body, nil
}

// fetchPage fetches and decodes one search page.
func (c *Client) fetchPage(ctx context.Context, pageURL string) (searchPage, error) {
	body, err := c.get(ctx, "page", pageURL)
	if err != nil {
		return searchPage{}, err
	}

	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return searchPage{}, fmt.Errorf("decode search page %s: %w", pageURL, err)
	}
	return resp.page(), nil
}

// fetchEntry hydrates one search entry into a Record and delivers it to
// the iterator. Exactly one record is emitted per successful call.
func (c *Client) fetchEntry(ctx context.Context, it *Iterator, entry SearchEntry) error {
	body, err := c.get(ctx, "detail", entry.Href)
	if err != nil {
		return err
	}

	var assetURLs []string
	if err := json.Unmarshal(body, &assetURLs); err != nil {
		return fmt.Errorf("decode asset manifest %s: %w", entry.Href, err)
	}

	fields := make(map[string]any, len(entry.fields()))
	for k, v := range entry.fields() {
		fields[k] = v
	}

	rec := &Record{
		NasaID:    entry.ID(),
		Fields:    fields,
		AssetURLs: bucketAssetURLs(assetURLs),
	}
	return it.emit(ctx, rec)
}
