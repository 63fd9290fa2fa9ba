// Package filter implements the post-hoc heuristic pass over harvested
// items: a stateless predicate on stored metadata that copies matching
// items into a second store. It never touches the catalog API.
package filter

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/astroscope/nasa-harvester/pkg/storage"
)

// Rules describe which items to keep. An item is kept when at least one
// good label exceeds the confidence threshold, no bad label does, and no
// bad keyword appears in the title or description.
type Rules struct {
	// GoodLabels are label names that qualify an item.
	GoodLabels map[string]struct{}

	// BadLabels are label names that disqualify an item.
	BadLabels map[string]struct{}

	// BadKeywords disqualify an item when found (case-insensitive) in
	// its title or description.
	BadKeywords []string

	// Confidence is the label confidence threshold in percent.
	Confidence float64
}

// DefaultRules returns the rule set tuned for open-space imagery: keep
// frames labelled as outer space, drop artwork, people, text overlays,
// lunar surface shots, and launch footage.
func DefaultRules() Rules {
	return Rules{
		GoodLabels: map[string]struct{}{
			"Outer Space": {},
		},
		BadLabels: map[string]struct{}{
			"Person": {},
			"Text":   {},
			"Art":    {},
			"Moon":   {},
		},
		BadKeywords: []string{
			"artwork",
			"artist",
			"computer-generated",
			"computer generated",
			"liftoff",
			"lifts off",
			"lift off",
			"lift-off",
			"moon",
		},
		Confidence: 30,
	}
}

// Match reports whether an item's metadata passes the rules.
func (r Rules) Match(meta storage.Meta) bool {
	var maxGood, maxBad float64
	for _, l := range meta.Labels {
		if _, ok := r.GoodLabels[l.Name]; ok && l.Confidence > maxGood {
			maxGood = l.Confidence
		}
		if _, ok := r.BadLabels[l.Name]; ok && l.Confidence > maxBad {
			maxBad = l.Confidence
		}
	}

	if maxGood <= r.Confidence {
		return false
	}
	if maxBad >= r.Confidence {
		return false
	}

	for _, text := range []string{meta.Title, meta.Description} {
		lower := strings.ToLower(text)
		for _, kw := range r.BadKeywords {
			if strings.Contains(lower, kw) {
				return false
			}
		}
	}
	return true
}

// Copy runs the filter pass: every completed item in src whose metadata
// passes the rules is copied (image and metadata) into dst. Returns the
// number of items kept and dropped.
func Copy(ctx context.Context, src, dst storage.Store, rules Rules) (kept, dropped int, err error) {
	logger := log.With().Str("component", "filter").Logger()

	ids, err := src.CompletedIDs(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("enumerate source items: %w", err)
	}

	// Stable order keeps logs and reruns comparable.
	sorted := make([]string, 0, len(ids))
	for id := range ids {
		sorted = append(sorted, id)
	}
	sort.Strings(sorted)

	for _, id := range sorted {
		meta, err := src.LoadMeta(ctx, id)
		if err != nil {
			return kept, dropped, err
		}

		if !rules.Match(meta) {
			dropped++
			logger.Debug().Str("nasa_id", id).Msg("Item dropped")
			continue
		}

		img, ext, err := src.LoadImage(ctx, id)
		if err != nil {
			return kept, dropped, err
		}
		if err := dst.SaveMeta(ctx, id, meta); err != nil {
			return kept, dropped, err
		}
		if err := dst.SaveImage(ctx, id, ext, img); err != nil {
			return kept, dropped, err
		}
		kept++
		logger.Debug().Str("nasa_id", id).Msg("Item kept")
	}

	logger.Info().
		Int("kept", kept).
		Int("dropped", dropped).
		Msg("Filter pass complete")

	return kept, dropped, nil
}
