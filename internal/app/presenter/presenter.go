// Package presenter defines the port used to render playback state to chat.
package presenter

//go:generate mockgen -package=mocks -destination=mocks/mock_presenter.go github.com/osa030/drum/internal/app/presenter Presenter

import (
	"context"

	"github.com/osa030/drum/internal/domain/track"
)

// Ref points at a previously sent message. It is only used to edit that
// message later and may dangle if the message was deleted.
type Ref struct {
	ChannelID string
	MessageID string
}

// IsZero reports whether the reference points nowhere.
func (r Ref) IsZero() bool {
	return r.MessageID == ""
}

// NowPlaying is the content of a now-playing control surface.
type NowPlaying struct {
	GuildID     string
	Track       track.Track
	Paused      bool
	Loop        string
	Volume      int
	QueueLength int
	Autoplay    bool
	Filter      string
}

// Presenter renders playback state outside of a command reply.
type Presenter interface {
	// SendNowPlaying posts a now-playing message with enabled controls.
	SendNowPlaying(ctx context.Context, channelID string, np NowPlaying) (Ref, error)
	// DisableControls greys out the controls of a now-playing message.
	DisableControls(ctx context.Context, ref Ref) error
	// DetachSelection removes the choice list from a selection message.
	DetachSelection(ctx context.Context, ref Ref, notice string) error
	// SendNotice posts a plain informational message.
	SendNotice(ctx context.Context, channelID, text string) error
}
