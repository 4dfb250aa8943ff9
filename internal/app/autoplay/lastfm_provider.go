package autoplay

import (
	"context"
	"math/rand/v2"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/drum/internal/domain/track"
	"github.com/osa030/drum/internal/infra/lastfm"
)

// LastFmClient defines the interface for Last.fm operations.
type LastFmClient interface {
	GetSimilarTracks(ctx context.Context, trackName, artistName string, limit int) ([]lastfm.SimilarTrack, error)
	GetArtistTopTracks(ctx context.Context, artistName string, limit int) ([]lastfm.SimilarTrack, error)
}

type LastFmProviderConfig struct {
	APIKey       string `yaml:"api_key" mapstructure:"api_key" validate:"required"`
	SimilarLimit int    `yaml:"similar_limit" mapstructure:"similar_limit" default:"20" validate:"gte=1,lte=100"`
	PoolSize     int    `yaml:"pool_size" mapstructure:"pool_size" default:"5" validate:"gte=1"`
	MaxResolve   int    `yaml:"max_resolve" mapstructure:"max_resolve" default:"3" validate:"gte=1"`
}

// LastFmProvider finds tracks similar to the seed on Last.fm and resolves
// them through the engine search. Falls back to the artist's top tracks when
// Last.fm knows no similar tracks.
type LastFmProvider struct {
	lastfm   LastFmClient
	resolver Resolver
	platform string
	config   *LastFmProviderConfig
	shuffle  func(n int, swap func(i, j int))
}

// NewLastFmProvider creates a new LastFmProvider.
func NewLastFmProvider(resolver Resolver, platform string, settings map[string]any) (*LastFmProvider, error) {
	var config LastFmProviderConfig
	if err := decodeSettings(settings, &config); err != nil {
		return nil, err
	}

	client, err := lastfm.New(lastfm.Config{APIKey: config.APIKey})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create last.fm client")
	}

	return newLastFmProvider(client, resolver, platform, &config), nil
}

func newLastFmProvider(client LastFmClient, resolver Resolver, platform string, config *LastFmProviderConfig) *LastFmProvider {
	return &LastFmProvider{
		lastfm:   client,
		resolver: resolver,
		platform: platform,
		config:   config,
		shuffle:  rand.Shuffle,
	}
}

// GetCandidates retrieves candidates similar to seed.
func (p *LastFmProvider) GetCandidates(ctx context.Context, seed track.Track, exclude map[string]bool) ([]track.Track, error) {
	if seed.Title == "" || seed.Author == "" {
		return nil, errors.New("seed track has no title or author")
	}

	suggestions, err := p.lastfm.GetSimilarTracks(ctx, seed.Title, seed.Author, p.config.SimilarLimit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get similar tracks")
	}
	if len(suggestions) == 0 {
		zlog.Debug().Msgf("no similar tracks, using artist top tracks: artist=%s", seed.Author)
		suggestions, err = p.lastfm.GetArtistTopTracks(ctx, seed.Author, p.config.SimilarLimit)
		if err != nil {
			return nil, errors.Wrap(err, "failed to get artist top tracks")
		}
	}

	// Pick randomly from the best matches to add variety.
	pool := suggestions
	if len(pool) > p.config.PoolSize {
		pool = pool[:p.config.PoolSize]
	}
	pool = append([]lastfm.SimilarTrack(nil), pool...)
	p.shuffle(len(pool), func(i, j int) {
		pool[i], pool[j] = pool[j], pool[i]
	})

	var result []track.Track
	attempts := 0
	for _, s := range pool {
		if attempts >= p.config.MaxResolve {
			break
		}
		candidate := track.Track{Title: s.Name, Author: s.Artist}
		if exclude[titleKey(candidate)] {
			continue
		}

		attempts++
		res, err := p.resolver.Resolve(ctx, searchQuery(p.platform, s.Name+" "+s.Artist))
		if err != nil {
			zlog.Debug().Msgf("failed to resolve suggestion: title=%s artist=%s error=%v", s.Name, s.Artist, err)
			continue
		}
		if !res.Playable() {
			continue
		}
		t := res.Tracks[0]
		if excluded(exclude, t) {
			continue
		}
		result = append(result, t)
	}

	return result, nil
}

// Name returns the provider name.
func (p *LastFmProvider) Name() string {
	return "lastfm"
}
