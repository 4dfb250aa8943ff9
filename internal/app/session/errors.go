package session

import "github.com/cockroachdb/errors"

// Errors
var (
	ErrAlreadyConnected  = errors.New("already connected")
	ErrNoActiveSession   = errors.New("no active session")
	ErrNotInVoiceChannel = errors.New("not in a voice channel")
	ErrNothingPlaying    = errors.New("nothing is playing")
	ErrEmptyQueue        = errors.New("queue is empty")
	ErrOutOfRange        = errors.New("position out of range")
	ErrInvalidVolume     = errors.New("volume must be between 0 and 100")
	ErrPlaybackFailed    = errors.New("playback failed to start")
)
