package discord

import (
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/osa030/drum/internal/app/engine"
	"github.com/osa030/drum/internal/app/filter"
	"github.com/osa030/drum/internal/app/player"
	"github.com/osa030/drum/internal/app/selection"
	"github.com/osa030/drum/internal/app/session"
	"github.com/osa030/drum/internal/infra/lyrics"
)

// Errors raised at the gateway itself.
var (
	errOwnerOnly   = errors.New("owner only")
	errRateLimited = errors.New("rate limited")
	errBadNumber   = errors.New("not a number")

	errUnknownComponent = errors.New("unknown component")
)

// errorMessage maps an error to the single reply the user sees.
func errorMessage(err error) string {
	switch {
	case errors.Is(err, engine.ErrEngineOffline), errors.Is(err, engine.ErrEngineUnavailable):
		return "Music features are currently unavailable. Please try again later."
	case errors.Is(err, session.ErrNotInVoiceChannel):
		return "You need to be in a voice channel!"
	case errors.Is(err, session.ErrNoActiveSession), errors.Is(err, session.ErrNothingPlaying):
		return "No music is playing!"
	case errors.Is(err, session.ErrAlreadyConnected):
		return "Already connected to a voice channel!"
	case errors.Is(err, session.ErrEmptyQueue):
		return "The queue is empty!"
	case errors.Is(err, session.ErrOutOfRange), errors.Is(err, errBadNumber):
		return "That position is not in the queue!"
	case errors.Is(err, session.ErrInvalidVolume):
		return "Volume must be a number between 0 and 100!"
	case errors.Is(err, player.ErrEmptyQuery):
		return "Please provide a song name or URL!"
	case errors.Is(err, player.ErrInvalidLoopMode):
		return "Loop mode must be one of off, track or queue!"
	case errors.Is(err, session.ErrPlaybackFailed):
		return "Could not start playback. The track may be unavailable."
	case errors.Is(err, engine.ErrResolutionFailed):
		return "No results found!"
	case errors.Is(err, filter.ErrUnknownFilter):
		return "Unknown filter! Available: " + strings.Join(filter.Names(), ", ")
	case errors.Is(err, selection.ErrNotFlowOwner):
		return "This menu is not for you!"
	case errors.Is(err, selection.ErrAlreadyResolved):
		return "A choice was already made!"
	case errors.Is(err, selection.ErrInvalidOption):
		return "That is not one of the choices!"
	case errors.Is(err, selection.ErrFlowExpired), errors.Is(err, selection.ErrFlowNotFound):
		return "This menu has expired!"
	case errors.Is(err, player.ErrLyricsDisabled), errors.Is(err, lyrics.ErrNotFound):
		return "No lyrics found!"
	case errors.Is(err, errOwnerOnly):
		return "This command is owner-only!"
	case errors.Is(err, errRateLimited):
		return "You are sending commands too fast. Try again in a moment."
	default:
		return genericError
	}
}

const genericError = "An error occurred while processing the command."

// unexpected reports whether err is a failure rather than a user error.
func unexpected(err error) bool {
	return err != nil && errorMessage(err) == genericError
}
