// Command nasa-harvester runs one harvest: it streams a NASA image
// library search, downloads the chosen asset for every hit, labels it
// with AWS Rekognition, and persists image plus metadata. Rerunning the
// command with the same store resumes where the previous run stopped.
package main

import (
	"context"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/astroscope/nasa-harvester/pkg/cache"
	"github.com/astroscope/nasa-harvester/pkg/label"
	"github.com/astroscope/nasa-harvester/pkg/logging"
	"github.com/astroscope/nasa-harvester/pkg/nasa"
	"github.com/astroscope/nasa-harvester/pkg/pipeline"
	"github.com/astroscope/nasa-harvester/pkg/ratelimit"
	"github.com/astroscope/nasa-harvester/pkg/storage"
)

func main() {
	logging.Setup(logging.Config{
		Level:  logging.LogLevel(getEnv("LOG_LEVEL", "info")),
		Pretty: getEnv("LOG_PRETTY", "false") == "true",
	})

	// Configuration from environment
	query := getEnv("NASA_QUERY", "nebula")
	userAgent := getEnv("USER_AGENT", "nasa-harvester/0.1.0")
	metricsPort := getEnv("METRICS_PORT", "9090")
	catalogRPS := getEnvFloat("CATALOG_RPS", 5)
	downstreamRPS := getEnvFloat("DOWNSTREAM_RPS", 40)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	catalogLimiter, err := ratelimit.New(ratelimit.Config{
		Name:              "catalog",
		RequestsPerSecond: catalogRPS,
		Burst:             int(catalogRPS),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create catalog limiter")
	}

	downstreamLimiter, err := ratelimit.New(ratelimit.Config{
		Name:              "downstream",
		RequestsPerSecond: downstreamRPS,
		Burst:             int(downstreamRPS),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create downstream limiter")
	}

	clientCfg := nasa.DefaultConfig(catalogLimiter)
	clientCfg.UserAgent = userAgent
	if base := os.Getenv("CATALOG_URL"); base != "" {
		clientCfg.BaseURL = base
	}
	clientCfg.Cache = setupCache(ctx)

	session, err := nasa.New(clientCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create catalog client")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load AWS configuration")
	}

	store := setupStore()

	p, err := pipeline.New(pipeline.Config{
		Session:    session,
		Limiter:    downstreamLimiter,
		Classifier: label.NewRekognitionClassifier(awsCfg),
		Store:      store,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create pipeline")
	}

	// Metrics endpoint for the duration of the run.
	go func() {
		http.Handle("/metrics", promhttp.Handler())
		addr := ":" + metricsPort
		log.Info().Str("addr", addr).Msg("Serving metrics")
		if err := http.ListenAndServe(addr, nil); err != nil {
			log.Error().Err(err).Msg("Metrics server failed")
		}
	}()

	params := url.Values{}
	params.Set("q", query)
	params.Set("media_type", "image")

	if err := p.Run(ctx, params); err != nil {
		log.Fatal().Err(err).Msg("Harvest failed")
	}
}

// setupCache connects the optional Redis response cache. An unset
// REDIS_URL disables caching; an unreachable Redis is fatal, since a
// half-working cache is worse than none.
func setupCache(ctx context.Context) *cache.Manager {
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		return nil
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr: redisURL,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal().Err(err).Str("addr", redisURL).Msg("Failed to connect to Redis")
	}
	log.Info().Str("addr", redisURL).Msg("Connected to Redis")

	ttl, _ := time.ParseDuration(getEnv("CACHE_TTL", "15m"))
	return cache.NewManager(redisClient, ttl)
}

// setupStore selects the artifact store: a MinIO bucket when
// MINIO_ENDPOINT is set, a local directory otherwise.
func setupStore() storage.Store {
	endpoint := os.Getenv("MINIO_ENDPOINT")
	if endpoint == "" {
		dir := getEnv("OUTPUT_DIR", "./data")
		store, err := storage.NewLocalStore(dir)
		if err != nil {
			log.Fatal().Err(err).Str("dir", dir).Msg("Failed to create local store")
		}
		log.Info().Str("dir", dir).Msg("Using local store")
		return store
	}

	minioClient, err := minio.New(endpoint, &minio.Options{
		Creds: credentials.NewStaticV4(
			os.Getenv("MINIO_ACCESS_KEY"),
			os.Getenv("MINIO_SECRET_KEY"),
			"",
		),
		Secure: getEnv("MINIO_USE_SSL", "false") == "true",
	})
	if err != nil {
		log.Fatal().Err(err).Str("endpoint", endpoint).Msg("Failed to create MinIO client")
	}

	bucket := getEnv("MINIO_BUCKET", "nasa-harvester")
	log.Info().Str("endpoint", endpoint).Str("bucket", bucket).Msg("Using MinIO store")
	return storage.NewMinioStore(minioClient, bucket, os.Getenv("MINIO_PREFIX"))
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		log.Fatal().Str("key", key).Str("value", value).Msg("Invalid numeric environment variable")
	}
	return f
}
