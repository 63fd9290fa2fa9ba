// Package pipeline wires the streaming search to the downstream
// classify-and-persist stage: for every new record it downloads the
// chosen asset, runs label detection, and writes the artifacts. The
// downstream fan-out is gated by its own limiter, independent of the
// catalog's, because the two remote services carry separate rate
// contracts.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/astroscope/nasa-harvester/pkg/fanout"
	"github.com/astroscope/nasa-harvester/pkg/label"
	"github.com/astroscope/nasa-harvester/pkg/nasa"
	"github.com/astroscope/nasa-harvester/pkg/ratelimit"
	"github.com/astroscope/nasa-harvester/pkg/storage"
)

// Prometheus metrics for the harvest pipeline.
var (
	itemsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "harvester_pipeline_items_total",
		Help: "Pipeline items by outcome",
	}, []string{"outcome"}) // "persisted", "resumed", "no_asset"

	itemDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "harvester_pipeline_item_duration_seconds",
		Help:    "Time to download, classify, and persist one item",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30},
	})
)

// Config holds pipeline configuration.
type Config struct {
	// Session is the catalog client used for the streaming search.
	Session *nasa.Client

	// Limiter gates asset downloads and classification calls.
	Limiter *ratelimit.Limiter

	// Classifier labels downloaded images.
	Classifier label.Classifier

	// Store persists images and metadata, and supplies the resume ledger.
	Store storage.Store

	// DownloadTimeout bounds each asset download (default 60s). Asset
	// downloads use their own HTTP client; they hit a CDN, not the
	// catalog API, so they do not share the session's pool or limiter.
	DownloadTimeout time.Duration
}

// Pipeline runs one harvest: search, stream, classify, persist.
type Pipeline struct {
	session    *nasa.Client
	limiter    *ratelimit.Limiter
	classifier label.Classifier
	store      storage.Store
	downloader *http.Client
	logger     zerolog.Logger
}

// New creates a Pipeline.
func New(cfg Config) (*Pipeline, error) {
	if cfg.Session == nil {
		return nil, fmt.Errorf("catalog session is required")
	}
	if cfg.Limiter == nil {
		return nil, fmt.Errorf("rate limiter is required")
	}
	if cfg.Classifier == nil {
		return nil, fmt.Errorf("classifier is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cfg.DownloadTimeout <= 0 {
		cfg.DownloadTimeout = 60 * time.Second
	}

	return &Pipeline{
		session:    cfg.Session,
		limiter:    cfg.Limiter,
		classifier: cfg.Classifier,
		store:      cfg.Store,
		downloader: &http.Client{Timeout: cfg.DownloadTimeout},
		logger:     log.With().Str("component", "pipeline").Logger(),
	}, nil
}

// Run executes one harvest for the given search parameters. Items already
// present in the store are skipped, so an interrupted run can simply be
// repeated. Run returns after every spawned item task has settled; the
// first fatal error aborts the run, and whatever was already persisted
// stays valid for the next attempt.
func (p *Pipeline) Run(ctx context.Context, params url.Values) error {
	p.session.Open()
	defer p.session.Close()

	done, err := p.store.CompletedIDs(ctx)
	if err != nil {
		return fmt.Errorf("load resume ledger: %w", err)
	}
	itemsTotal.WithLabelValues("resumed").Add(float64(len(done)))

	iter, err := p.session.Search(ctx, params)
	if err != nil {
		return err
	}

	p.logger.Info().
		Int("total_hits", iter.Total()).
		Int("already_done", len(done)).
		Str("query", params.Encode()).
		Msg("Harvest started")

	driver, err := fanout.New(fanout.Config[*nasa.Record]{
		Name:    "classify",
		Limiter: p.limiter,
		Done:    done,
		Key:     func(r *nasa.Record) string { return r.NasaID },
		Work:    p.process,
	})
	if err != nil {
		return err
	}

	if err := driver.Run(ctx, recordSource(iter)); err != nil {
		return err
	}
	if err := iter.Err(); err != nil {
		return err
	}

	p.logger.Info().
		Int("processed", driver.Spawned()).
		Int("skipped", driver.Skipped()).
		Msg("Harvest complete")

	return nil
}

// recordSource adapts the search iterator to a fan-out source.
func recordSource(iter *nasa.Iterator) fanout.Source[*nasa.Record] {
	return func(ctx context.Context) (*nasa.Record, bool, error) {
		if !iter.Next(ctx) {
			// A fatal stream failure surfaces through iter.Err in
			// Run; the source just ends the fan-out.
			return nil, false, nil
		}
		return iter.Record(), true, nil
	}
}

// process handles one record: download, classify, persist. Records with
// no recognized asset tier are logged and dropped rather than aborting
// the run, since the defect is confined to that item.
func (p *Pipeline) process(ctx context.Context, rec *nasa.Record) error {
	start := time.Now()

	assetURL, ok := rec.DownloadURL()
	if !ok {
		itemsTotal.WithLabelValues("no_asset").Inc()
		p.logger.Warn().
			Str("nasa_id", rec.NasaID).
			Msg("No asset URL in any recognized tier, dropping item")
		return nil
	}

	img, err := p.download(ctx, assetURL)
	if err != nil {
		return fmt.Errorf("download %s: %w", rec.NasaID, err)
	}

	labels, err := p.classifier.DetectLabels(ctx, img)
	if err != nil {
		return fmt.Errorf("classify %s: %w", rec.NasaID, err)
	}

	meta := storage.Meta{
		NasaID:      rec.NasaID,
		Title:       rec.Title(),
		Description: rec.Description(),
		Fields:      rec.Fields,
		AssetURLs:   rec.AssetURLs,
		Labels:      labels,
	}
	if err := p.store.SaveMeta(ctx, rec.NasaID, meta); err != nil {
		return fmt.Errorf("persist meta %s: %w", rec.NasaID, err)
	}
	// The image write commits the item: it is what CompletedIDs sees.
	if err := p.store.SaveImage(ctx, rec.NasaID, storage.ExtFromURL(assetURL), img); err != nil {
		return fmt.Errorf("persist image %s: %w", rec.NasaID, err)
	}

	itemsTotal.WithLabelValues("persisted").Inc()
	itemDuration.Observe(time.Since(start).Seconds())

	p.logger.Debug().
		Str("nasa_id", rec.NasaID).
		Int("image_bytes", len(img)).
		Int("labels", len(labels)).
		Msg("Item persisted")

	return nil
}

// download fetches the asset bytes.
func (p *Pipeline) download(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := p.downloader.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.New("asset download: " + resp.Status)
	}
	return io.ReadAll(resp.Body)
}
