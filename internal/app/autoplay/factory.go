package autoplay

import (
	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/drum/internal/infra/config"
)

// NewProviderChainFromConfig creates a provider chain from configuration.
// platform is the engine search prefix used to resolve discovered tracks.
func NewProviderChainFromConfig(cfg config.AutoplayConfig, platform string, resolver Resolver) (*ProviderChain, error) {
	if resolver == nil {
		return nil, errors.New("resolver is required")
	}
	if len(cfg.Providers) == 0 {
		return nil, errors.New("no autoplay providers configured")
	}

	var providers []ProviderWithMetadata

	for i, pcfg := range cfg.Providers {
		var provider Provider
		var err error
		zlog.Debug().Msgf("creating autoplay provider: index=%d type=%s", i+1, pcfg.Type)
		switch pcfg.Type {
		case config.ProviderLastFm:
			provider, err = NewLastFmProvider(resolver, platform, pcfg.Settings)

		case config.ProviderSearch:
			provider, err = NewSearchProvider(resolver, platform, pcfg.Settings)

		default:
			return nil, errors.Newf("unsupported provider type: %s (provider index %d)", pcfg.Type, i)
		}

		if err != nil {
			return nil, errors.Wrapf(err, "failed to create provider (index %d, type %s)", i, pcfg.Type)
		}

		name := pcfg.DisplayName
		if name == "" {
			name = pcfg.Type
		}
		providers = append(providers, ProviderWithMetadata{
			Provider:    provider,
			DisplayName: name,
		})

		zlog.Info().Msgf("registered autoplay provider: index=%d type=%s display_name=%s", i+1, pcfg.Type, name)
	}

	return NewProviderChain(providers), nil
}

// decodeSettings decodes free-form provider settings into out, then applies
// defaults and validation.
func decodeSettings(settings map[string]any, out any) error {
	if err := mapstructure.Decode(settings, out); err != nil {
		return errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(out); err != nil {
		return errors.Wrap(err, "failed to set defaults")
	}
	if err := validator.New().Struct(out); err != nil {
		return errors.Wrap(err, "validation failed")
	}
	return nil
}
