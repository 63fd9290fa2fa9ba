// Command nasa-filter runs the post-hoc filter pass: it reads harvested
// items from a source directory and copies those whose labels and text
// pass the rules into a destination directory. It never calls the
// catalog API, so it can be rerun freely while tuning rules.
package main

import (
	"context"
	"os"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/astroscope/nasa-harvester/pkg/filter"
	"github.com/astroscope/nasa-harvester/pkg/logging"
	"github.com/astroscope/nasa-harvester/pkg/storage"
)

func main() {
	logging.Setup(logging.Config{
		Level:  logging.LogLevel(getEnv("LOG_LEVEL", "info")),
		Pretty: getEnv("LOG_PRETTY", "false") == "true",
	})

	srcDir := getEnv("SOURCE_DIR", "./data")
	dstDir := getEnv("DEST_DIR", "./filtered")

	src, err := storage.NewLocalStore(srcDir)
	if err != nil {
		log.Fatal().Err(err).Str("dir", srcDir).Msg("Failed to open source store")
	}
	dst, err := storage.NewLocalStore(dstDir)
	if err != nil {
		log.Fatal().Err(err).Str("dir", dstDir).Msg("Failed to open destination store")
	}

	rules := filter.DefaultRules()
	if v := os.Getenv("CONFIDENCE"); v != "" {
		conf, err := strconv.ParseFloat(v, 64)
		if err != nil {
			log.Fatal().Str("value", v).Msg("Invalid CONFIDENCE value")
		}
		rules.Confidence = conf
	}

	kept, dropped, err := filter.Copy(context.Background(), src, dst, rules)
	if err != nil {
		log.Fatal().Err(err).Msg("Filter pass failed")
	}

	log.Info().
		Int("kept", kept).
		Int("dropped", dropped).
		Str("dest", dstDir).
		Msg("Filter pass finished")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
