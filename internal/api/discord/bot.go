// Package discord is the chat gateway: it turns Discord messages and
// component interactions into player commands and renders the replies.
package discord

import (
	"context"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/drum/internal/app/notification"
	"github.com/osa030/drum/internal/app/player"
	"github.com/osa030/drum/internal/infra/config"
)

// commandTimeout bounds the handling of one message or interaction.
const commandTimeout = 30 * time.Second

// VoiceForwarder receives the bot's own voice updates.
type VoiceForwarder interface {
	OnVoiceStateUpdate(ctx context.Context, guildID, channelID, sessionID string)
	OnVoiceServerUpdate(ctx context.Context, guildID, token, endpoint string)
}

// Options represents bot dependencies.
type Options struct {
	Config  config.DiscordConfig
	Player  *player.Service
	Voice   VoiceForwarder
	OnReady func(ctx context.Context, botUserID string) // Called once, on the first ready
	Restart func()                                      // Called by the owner-only restart command
}

// Bot is the Discord gateway.
type Bot struct {
	session  *discordgo.Session
	cfg      config.DiscordConfig
	player   *player.Service
	voice    VoiceForwarder
	onReady  func(ctx context.Context, botUserID string)
	restart  func()
	throttle *throttle
	presence *presence

	ctx       context.Context
	cancel    context.CancelFunc
	readyOnce sync.Once
}

// NewSession creates a gateway session with the intents the bot needs.
func NewSession(token string) (*discordgo.Session, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create discord session")
	}
	s.Identify.Intents = discordgo.IntentGuilds |
		discordgo.IntentGuildMessages |
		discordgo.IntentGuildVoiceStates |
		discordgo.IntentMessageContent
	return s, nil
}

// New creates a bot on session and registers its handlers.
func New(session *discordgo.Session, opts Options) *Bot {
	ctx, cancel := context.WithCancel(context.Background())
	b := &Bot{
		session:  session,
		cfg:      opts.Config,
		player:   opts.Player,
		voice:    opts.Voice,
		onReady:  opts.OnReady,
		restart:  opts.Restart,
		throttle: newThrottle(opts.Config.CommandRate, opts.Config.CommandBurst),
		ctx:      ctx,
		cancel:   cancel,
	}
	b.presence = newPresence(func(text string) error {
		return b.session.UpdateListeningStatus(text)
	})

	session.AddHandler(b.handleReady)
	session.AddHandler(b.handleMessageCreate)
	session.AddHandler(b.handleInteractionCreate)
	session.AddHandler(b.handleVoiceStateUpdate)
	session.AddHandler(b.handleVoiceServerUpdate)
	return b
}

// Open connects to the gateway.
func (b *Bot) Open() error {
	if err := b.session.Open(); err != nil {
		return errors.Wrap(err, "failed to open discord session")
	}
	return nil
}

// Close disconnects from the gateway and cancels in-flight handlers.
func (b *Bot) Close() error {
	b.cancel()
	if err := b.session.Close(); err != nil {
		return errors.Wrap(err, "failed to close discord session")
	}
	return nil
}

// Presence returns the notification stream that keeps the bot status current.
func (b *Bot) Presence() notification.Stream {
	return b.presence
}

// Tag returns the bot account tag, or an empty string before ready.
func (b *Bot) Tag() string {
	if b.session.State == nil || b.session.State.User == nil {
		return ""
	}
	return b.session.State.User.String()
}

// Guilds returns the number of guilds the bot is in.
func (b *Bot) Guilds() int {
	if b.session.State == nil {
		return 0
	}
	b.session.State.RLock()
	defer b.session.State.RUnlock()
	return len(b.session.State.Guilds)
}

func (b *Bot) handleReady(s *discordgo.Session, r *discordgo.Ready) {
	zlog.Info().Msgf("discord ready: user=%s guilds=%d", r.User.String(), len(r.Guilds))

	if err := b.presence.ready(r.User.Username); err != nil {
		zlog.Warn().Msgf("failed to set presence: error=%v", err)
	}

	b.readyOnce.Do(func() {
		if b.onReady != nil {
			b.onReady(b.ctx, r.User.ID)
		}
	})
}

func (b *Bot) handleVoiceStateUpdate(s *discordgo.Session, v *discordgo.VoiceStateUpdate) {
	if s.State.User == nil || v.UserID != s.State.User.ID {
		return
	}
	b.voice.OnVoiceStateUpdate(b.ctx, v.GuildID, v.ChannelID, v.SessionID)

	// Kicked out of voice by someone else: release the session.
	if v.ChannelID == "" && v.BeforeUpdate != nil && v.BeforeUpdate.ChannelID != "" {
		ctx, cancel := context.WithTimeout(b.ctx, commandTimeout)
		defer cancel()
		if err := b.player.Leave(ctx, player.Invocation{GuildID: v.GuildID}); err == nil {
			zlog.Info().Msgf("session released after voice disconnect: guild=%s", v.GuildID)
		}
	}
}

func (b *Bot) handleVoiceServerUpdate(_ *discordgo.Session, v *discordgo.VoiceServerUpdate) {
	b.voice.OnVoiceServerUpdate(b.ctx, v.GuildID, v.Token, v.Endpoint)
}

// invocation describes a command issued by userID, including their voice channel.
func (b *Bot) invocation(guildID, channelID, userID string) player.Invocation {
	inv := player.Invocation{GuildID: guildID, ChannelID: channelID, UserID: userID}
	if vs, err := b.session.State.VoiceState(guildID, userID); err == nil && vs != nil {
		inv.VoiceChannelID = vs.ChannelID
	}
	return inv
}

// recoverHandler logs a handler panic instead of crashing the gateway and
// lets the user know through reply.
func recoverHandler(what string, reply func()) {
	r := recover()
	if r == nil {
		return
	}
	zlog.Error().Msgf("%s handler panicked: %v", what, r)
	if reply == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			zlog.Error().Msgf("%s panic reply failed: %v", what, r)
		}
	}()
	reply()
}
