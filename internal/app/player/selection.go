package player

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/drum/internal/app/engine"
	"github.com/osa030/drum/internal/app/filter"
	"github.com/osa030/drum/internal/app/selection"
	"github.com/osa030/drum/internal/app/session"
	"github.com/osa030/drum/internal/domain/track"
)

// Flow kinds as embedded in component identifiers.
const (
	KindSearch = "search"
	KindFilter = "filter"
)

// Search resolves query and opens a search flow over the first results.
// The caller renders the options and attaches the message to the flow.
func (s *Service) Search(ctx context.Context, inv Invocation, query string) (*selection.Flow[track.Track], error) {
	if err := s.online(); err != nil {
		return nil, err
	}
	if inv.VoiceChannelID == "" {
		return nil, errors.Wrapf(session.ErrNotInVoiceChannel, "user=%s", inv.UserID)
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	res, err := s.engine.Resolve(ctx, s.platform+":"+query)
	if err != nil {
		return nil, engine.ResolutionFailed(err, query)
	}
	if !res.Playable() {
		return nil, engine.ResolutionFailed(nil, query)
	}

	options := res.Tracks
	if len(options) > s.searchResults {
		options = options[:s.searchResults]
	}
	return s.searches.Open(inv.scope(), inv.UserID, options)
}

// ChooseSearch enqueues the option picked from a search flow.
// Only the flow owner can pick, and only once.
func (s *Service) ChooseSearch(ctx context.Context, inv Invocation, flowID string, index int) (PlayResult, error) {
	if err := s.searches.Authorize(flowID, inv.UserID); err != nil {
		return PlayResult{}, err
	}
	if err := s.online(); err != nil {
		return PlayResult{}, err
	}
	if inv.VoiceChannelID == "" {
		return PlayResult{}, errors.Wrapf(session.ErrNotInVoiceChannel, "user=%s", inv.UserID)
	}

	picked, _, err := s.searches.Resolve(flowID, inv.UserID, index)
	if err != nil {
		return PlayResult{}, err
	}
	return s.enqueue(ctx, inv, []track.Track{picked}, "")
}

// Filters opens a filter flow over the whole catalog.
func (s *Service) Filters(inv Invocation) (*selection.Flow[filter.Preset], error) {
	if _, err := s.control(inv); err != nil {
		return nil, err
	}
	return s.filters.Open(inv.scope(), inv.UserID, filter.All())
}

// ApplyFilter applies a preset by name.
func (s *Service) ApplyFilter(ctx context.Context, inv Invocation, name string) (filter.Preset, error) {
	sess, err := s.control(inv)
	if err != nil {
		return filter.Preset{}, err
	}
	preset, err := filter.Lookup(name)
	if err != nil {
		return filter.Preset{}, err
	}
	if err := sess.ApplyFilter(ctx, preset); err != nil {
		return filter.Preset{}, err
	}
	zlog.Info().Msgf("filter applied: guild=%s filter=%s", inv.GuildID, preset.Name)
	return preset, nil
}

// ChooseFilter applies the preset picked from a filter flow.
func (s *Service) ChooseFilter(ctx context.Context, inv Invocation, flowID string, index int) (filter.Preset, error) {
	if err := s.filters.Authorize(flowID, inv.UserID); err != nil {
		return filter.Preset{}, err
	}
	sess, err := s.control(inv)
	if err != nil {
		return filter.Preset{}, err
	}

	preset, _, err := s.filters.Resolve(flowID, inv.UserID, index)
	if err != nil {
		return filter.Preset{}, err
	}
	if err := sess.ApplyFilter(ctx, preset); err != nil {
		return filter.Preset{}, err
	}
	zlog.Info().Msgf("filter applied: guild=%s filter=%s", inv.GuildID, preset.Name)
	return preset, nil
}

// ClearFilter removes the active filter.
func (s *Service) ClearFilter(ctx context.Context, inv Invocation) error {
	sess, err := s.control(inv)
	if err != nil {
		return err
	}
	return sess.ClearFilter(ctx)
}
