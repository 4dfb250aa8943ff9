package autoplay

import (
	"context"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/drum/internal/domain/track"
)

// ErrNoCandidate is returned when no provider found a track to continue with.
var ErrNoCandidate = errors.New("no autoplay candidate")

// Candidate represents a picked track with its source provider info.
type Candidate struct {
	Track       track.Track
	DisplayName string
}

// ProviderWithMetadata wraps a provider with its metadata.
type ProviderWithMetadata struct {
	Provider    Provider
	DisplayName string
}

// ProviderChain tries providers in order until one yields a track.
type ProviderChain struct {
	providers []ProviderWithMetadata
}

// NewProviderChain creates a new provider chain.
func NewProviderChain(providers []ProviderWithMetadata) *ProviderChain {
	return &ProviderChain{
		providers: providers,
	}
}

// Next returns the first playable candidate related to seed that is not in
// recent. The seed itself is always excluded.
func (c *ProviderChain) Next(ctx context.Context, seed track.Track, recent []track.Track) (Candidate, error) {
	exclude := ExcludeSet(append([]track.Track{seed}, recent...)...)

	for i, pm := range c.providers {
		if err := ctx.Err(); err != nil {
			return Candidate{}, errors.Wrap(err, "autoplay cancelled")
		}

		zlog.Debug().Msgf("trying autoplay provider: index=%d total=%d name=%s provider_type=%s",
			i+1, len(c.providers), pm.DisplayName, pm.Provider.Name())

		candidates, err := pm.Provider.GetCandidates(ctx, seed, exclude)
		if err != nil {
			zlog.Warn().Msgf("autoplay provider failed, trying next: provider=%s error=%v", pm.DisplayName, err)
			continue
		}

		for _, t := range candidates {
			if excluded(exclude, t) {
				continue
			}
			zlog.Info().Msgf("autoplay picked track: provider=%s title=%s author=%s", pm.DisplayName, t.Title, t.Author)
			return Candidate{Track: t, DisplayName: pm.DisplayName}, nil
		}

		zlog.Debug().Msgf("autoplay provider returned no candidates: provider=%s", pm.DisplayName)
	}

	return Candidate{}, errors.Wrapf(ErrNoCandidate, "seed=%s", seed.SearchTerm())
}

// Len returns the number of providers.
func (c *ProviderChain) Len() int {
	return len(c.providers)
}
