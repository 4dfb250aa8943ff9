package discord

import (
	"context"

	"github.com/bwmarrin/discordgo"
	"github.com/cockroachdb/errors"

	"github.com/osa030/drum/internal/app/presenter"
)

// Presenter renders playback state into Discord messages.
type Presenter struct {
	session *discordgo.Session
}

var _ presenter.Presenter = (*Presenter)(nil)

// NewPresenter creates a new presenter.
func NewPresenter(session *discordgo.Session) *Presenter {
	return &Presenter{session: session}
}

// SendNowPlaying posts the now-playing embed with enabled controls.
func (p *Presenter) SendNowPlaying(ctx context.Context, channelID string, np presenter.NowPlaying) (presenter.Ref, error) {
	msg, err := p.session.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Embeds:     []*discordgo.MessageEmbed{nowPlayingEmbed(np)},
		Components: controls(np.Paused, false),
	}, discordgo.WithContext(ctx))
	if err != nil {
		return presenter.Ref{}, errors.Wrapf(err, "failed to send now playing: channel=%s", channelID)
	}
	return presenter.Ref{ChannelID: msg.ChannelID, MessageID: msg.ID}, nil
}

// DisableControls greys out the buttons of a now-playing message.
func (p *Presenter) DisableControls(ctx context.Context, ref presenter.Ref) error {
	components := controls(false, true)
	edit := discordgo.NewMessageEdit(ref.ChannelID, ref.MessageID)
	edit.Components = &components
	if _, err := p.session.ChannelMessageEditComplex(edit, discordgo.WithContext(ctx)); err != nil {
		return errors.Wrapf(err, "failed to disable controls: message=%s", ref.MessageID)
	}
	return nil
}

// DetachSelection removes the select menu of a selection message.
func (p *Presenter) DetachSelection(ctx context.Context, ref presenter.Ref, notice string) error {
	components := []discordgo.MessageComponent{}
	edit := discordgo.NewMessageEdit(ref.ChannelID, ref.MessageID)
	edit.Components = &components
	edit.Content = &notice
	if _, err := p.session.ChannelMessageEditComplex(edit, discordgo.WithContext(ctx)); err != nil {
		return errors.Wrapf(err, "failed to detach selection: message=%s", ref.MessageID)
	}
	return nil
}

// SendNotice posts an informational embed.
func (p *Presenter) SendNotice(ctx context.Context, channelID, text string) error {
	if _, err := p.session.ChannelMessageSendEmbed(channelID, infoEmbed(text), discordgo.WithContext(ctx)); err != nil {
		return errors.Wrapf(err, "failed to send notice: channel=%s", channelID)
	}
	return nil
}

// Voice joins and leaves voice channels over the gateway. Audio is handled
// by the media engine, so the bot joins deafened and never opens a voice
// connection of its own.
type Voice struct {
	session *discordgo.Session
}

// NewVoice creates a new voice joiner.
func NewVoice(session *discordgo.Session) *Voice {
	return &Voice{session: session}
}

// JoinVoice asks the gateway to move the bot into channelID.
func (v *Voice) JoinVoice(guildID, channelID string) error {
	return v.session.ChannelVoiceJoinManual(guildID, channelID, false, true)
}

// LeaveVoice asks the gateway to remove the bot from voice in guildID.
func (v *Voice) LeaveVoice(guildID string) error {
	return v.session.ChannelVoiceJoinManual(guildID, "", false, false)
}
