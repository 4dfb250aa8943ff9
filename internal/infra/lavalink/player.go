package lavalink

import (
	"context"
	"encoding/json"

	"github.com/cockroachdb/errors"
	"github.com/disgoorg/disgolink/v3/disgolink"
	lv "github.com/disgoorg/disgolink/v3/lavalink"
	"github.com/disgoorg/snowflake/v2"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/drum/internal/app/engine"
	"github.com/osa030/drum/internal/domain/track"
)

// Resolve looks up a URL or a prefixed search query on the best node.
func (a *Adapter) Resolve(ctx context.Context, query string) (*track.LoadResult, error) {
	client, err := a.lavalinkClient()
	if err != nil {
		return nil, err
	}
	node := client.BestNode()
	if node == nil || node.Status() != disgolink.StatusConnected {
		return nil, errors.Wrap(engine.ErrEngineOffline, "no connected lavalink node")
	}

	var (
		result  *track.LoadResult
		loadErr error
	)
	node.LoadTracksHandler(ctx, query, disgolink.NewResultHandler(
		func(t lv.Track) {
			result = &track.LoadResult{Type: track.LoadTypeTrack, Tracks: []track.Track{toTrack(t)}}
		},
		func(p lv.Playlist) {
			result = &track.LoadResult{Type: track.LoadTypePlaylist, Tracks: toTracks(p.Tracks), PlaylistName: p.Info.Name}
		},
		func(ts []lv.Track) {
			result = &track.LoadResult{Type: track.LoadTypeSearch, Tracks: toTracks(ts)}
		},
		func() {
			result = &track.LoadResult{Type: track.LoadTypeEmpty}
		},
		func(err error) {
			loadErr = err
		},
	))

	if loadErr != nil {
		return nil, engine.ResolutionFailed(loadErr, query)
	}
	if result == nil {
		return nil, engine.ResolutionFailed(nil, query)
	}

	zlog.Debug().Msgf("resolved query: query=%s type=%s tracks=%d", query, result.Type, len(result.Tracks))
	return result, nil
}

// Play starts t on the guild player, unpaused.
func (a *Adapter) Play(ctx context.Context, guildID string, t track.Track) error {
	if t.Encoded == "" {
		return errors.Newf("track has no encoded data: %s", t.Title)
	}
	return a.update(ctx, guildID, "play", lv.WithTrack(fromTrack(t)), lv.WithPaused(false))
}

// Pause pauses or resumes the guild player.
func (a *Adapter) Pause(ctx context.Context, guildID string, paused bool) error {
	return a.update(ctx, guildID, "pause", lv.WithPaused(paused))
}

// Stop clears the current track.
func (a *Adapter) Stop(ctx context.Context, guildID string) error {
	return a.update(ctx, guildID, "stop", lv.WithNullTrack())
}

// SetVolume sets the player volume.
func (a *Adapter) SetVolume(ctx context.Context, guildID string, volume int) error {
	return a.update(ctx, guildID, "volume", lv.WithVolume(volume))
}

// SetFilter replaces the active filters with payload, a Lavalink filters object.
func (a *Adapter) SetFilter(ctx context.Context, guildID string, payload []byte) error {
	filters, err := decodeFilters(payload)
	if err != nil {
		return err
	}
	return a.update(ctx, guildID, "filter", lv.WithFilters(filters))
}

// ClearFilters removes every active filter.
func (a *Adapter) ClearFilters(ctx context.Context, guildID string) error {
	return a.update(ctx, guildID, "clear filters", lv.WithFilters(lv.Filters{}))
}

func (a *Adapter) update(ctx context.Context, guildID, op string, opts ...lv.PlayerUpdateOpt) error {
	client, err := a.lavalinkClient()
	if err != nil {
		return err
	}
	gid, err := snowflake.Parse(guildID)
	if err != nil {
		return errors.Wrapf(err, "invalid guild id %q", guildID)
	}

	player := client.ExistingPlayer(gid)
	if player == nil {
		player = client.Player(gid)
	}
	if player.Node() == nil || player.Node().Status() != disgolink.StatusConnected {
		return errors.Wrapf(engine.ErrEngineOffline, "%s: guild=%s", op, guildID)
	}

	if err := player.Update(ctx, opts...); err != nil {
		return errors.Wrapf(err, "failed to %s: guild=%s", op, guildID)
	}
	return nil
}

func decodeFilters(payload []byte) (lv.Filters, error) {
	var filters lv.Filters
	if len(payload) == 0 {
		return filters, nil
	}
	if err := json.Unmarshal(payload, &filters); err != nil {
		return lv.Filters{}, errors.Wrap(err, "failed to decode filter payload")
	}
	return filters, nil
}
