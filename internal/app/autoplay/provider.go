// Package autoplay picks a follow-up track when the queue runs dry.
package autoplay

import (
	"context"
	"strings"

	"github.com/osa030/drum/internal/domain/track"
)

// Provider is the interface for autoplay track providers.
// Different implementations discover tracks through different strategies
// (e.g., Last.fm similarity, plain search by artist).
type Provider interface {
	// GetCandidates returns playable tracks related to seed.
	// exclude holds the keys of recently played tracks (see HistoryKey).
	GetCandidates(ctx context.Context, seed track.Track, exclude map[string]bool) ([]track.Track, error)

	// Name returns the provider type (used in config).
	Name() string
}

// Resolver resolves search queries through the media engine.
type Resolver interface {
	Resolve(ctx context.Context, query string) (*track.LoadResult, error)
}

// HistoryKey identifies a track for recently-played exclusion. Different
// encodings of the same upload share the identifier; uploads of the same song
// share title and author.
func HistoryKey(t track.Track) string {
	if t.Identifier != "" {
		return "id:" + t.Identifier
	}
	return "key:" + t.Key()
}

func titleKey(t track.Track) string {
	return "title:" + strings.ToLower(strings.TrimSpace(t.Author)) + "|" + strings.ToLower(strings.TrimSpace(t.Title))
}

// ExcludeSet builds the exclusion set for the given recently played tracks.
func ExcludeSet(recent ...track.Track) map[string]bool {
	exclude := make(map[string]bool, len(recent)*2)
	for _, t := range recent {
		exclude[HistoryKey(t)] = true
		exclude[titleKey(t)] = true
	}
	return exclude
}

// excluded reports whether t was played recently.
func excluded(exclude map[string]bool, t track.Track) bool {
	return exclude[HistoryKey(t)] || exclude[titleKey(t)]
}

// searchQuery prefixes terms with the engine search platform.
func searchQuery(platform, terms string) string {
	return platform + ":" + strings.TrimSpace(terms)
}
