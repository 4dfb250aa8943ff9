package autoplay

import (
	"context"
	"math/rand/v2"

	"github.com/cockroachdb/errors"

	"github.com/osa030/drum/internal/domain/track"
)

type SearchProviderConfig struct {
	PoolSize int `yaml:"pool_size" mapstructure:"pool_size" default:"5" validate:"gte=1"`
}

// SearchProvider searches the engine for more tracks by the seed's author.
type SearchProvider struct {
	resolver Resolver
	platform string
	config   *SearchProviderConfig
	shuffle  func(n int, swap func(i, j int))
}

// NewSearchProvider creates a new SearchProvider.
func NewSearchProvider(resolver Resolver, platform string, settings map[string]any) (*SearchProvider, error) {
	var config SearchProviderConfig
	if err := decodeSettings(settings, &config); err != nil {
		return nil, err
	}

	return &SearchProvider{
		resolver: resolver,
		platform: platform,
		config:   &config,
		shuffle:  rand.Shuffle,
	}, nil
}

// GetCandidates returns search results for the seed author in random order.
func (p *SearchProvider) GetCandidates(ctx context.Context, seed track.Track, exclude map[string]bool) ([]track.Track, error) {
	terms := seed.Author
	if terms == "" {
		terms = seed.Title
	}
	if terms == "" {
		return nil, errors.New("seed track has no author or title")
	}

	res, err := p.resolver.Resolve(ctx, searchQuery(p.platform, terms))
	if err != nil {
		return nil, errors.Wrap(err, "failed to search")
	}
	if !res.Playable() {
		return nil, nil
	}

	pool := make([]track.Track, 0, p.config.PoolSize)
	for _, t := range res.Tracks {
		if len(pool) == p.config.PoolSize {
			break
		}
		if excluded(exclude, t) {
			continue
		}
		pool = append(pool, t)
	}
	p.shuffle(len(pool), func(i, j int) {
		pool[i], pool[j] = pool[j], pool[i]
	})

	return pool, nil
}

// Name returns the provider name.
func (p *SearchProvider) Name() string {
	return "search"
}
