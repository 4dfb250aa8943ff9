// Package engine defines the port to the external media streaming engine.
package engine

//go:generate mockgen -package=mocks -destination=mocks/mock_engine.go github.com/osa030/drum/internal/app/engine Engine

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/osa030/drum/internal/domain/track"
)

// Errors
var (
	// ErrEngineOffline is returned when no engine node is connected.
	ErrEngineOffline = errors.New("engine offline")
	// ErrEngineUnavailable is returned when the engine client failed to initialize.
	ErrEngineUnavailable = errors.New("engine unavailable")
	// ErrResolutionFailed is returned when a lookup errored or matched nothing.
	ErrResolutionFailed = errors.New("resolution failed")
)

// Engine is the control link to the media engine.
// Loop and autoplay policy are owned by the caller; the engine only plays
// the track it is told to play.
type Engine interface {
	// Connect joins the voice channel and prepares a player for the guild.
	Connect(ctx context.Context, guildID, voiceChannelID, textChannelID string) error
	// Disconnect destroys the guild player and leaves the voice channel.
	Disconnect(ctx context.Context, guildID string) error
	// Resolve looks up a URL or a prefixed search query.
	Resolve(ctx context.Context, query string) (*track.LoadResult, error)
	// Play starts t, replacing whatever is playing.
	Play(ctx context.Context, guildID string, t track.Track) error
	// Pause pauses or resumes the guild player.
	Pause(ctx context.Context, guildID string, paused bool) error
	// Stop stops the current track; a TrackEnd event with reason stopped follows.
	Stop(ctx context.Context, guildID string) error
	// SetVolume sets the player volume (0-100).
	SetVolume(ctx context.Context, guildID string, volume int) error
	// SetFilter applies an opaque filter configuration.
	SetFilter(ctx context.Context, guildID string, payload []byte) error
	// ClearFilters removes every active filter.
	ClearFilters(ctx context.Context, guildID string) error
	// Events returns the lifecycle event stream.
	Events() <-chan Event
}

// ResolutionFailed marks err as a resolution failure while keeping its cause.
func ResolutionFailed(err error, query string) error {
	if err == nil {
		return errors.Wrapf(ErrResolutionFailed, "query=%s", query)
	}
	return errors.Mark(errors.Wrapf(err, "failed to resolve query=%s", query), ErrResolutionFailed)
}
