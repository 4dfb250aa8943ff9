package lavalink

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/disgoorg/snowflake/v2"
	zlog "github.com/rs/zerolog/log"
)

// voiceGates lets Connect wait for the voice server update of a guild.
type voiceGates struct {
	mu      sync.Mutex
	waiters map[string]chan struct{}
}

func newVoiceGates() *voiceGates {
	return &voiceGates{waiters: make(map[string]chan struct{})}
}

// arm registers a wait for guildID and returns the channel closed on release.
func (g *voiceGates) arm(guildID string) <-chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()

	ch, ok := g.waiters[guildID]
	if !ok {
		ch = make(chan struct{})
		g.waiters[guildID] = ch
	}
	return ch
}

// release wakes the waiter of guildID, if any.
func (g *voiceGates) release(guildID string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if ch, ok := g.waiters[guildID]; ok {
		close(ch)
		delete(g.waiters, guildID)
	}
}

// disarm drops a wait that timed out.
func (g *voiceGates) disarm(guildID string, ch <-chan struct{}) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if cur, ok := g.waiters[guildID]; ok && (<-chan struct{})(cur) == ch {
		delete(g.waiters, guildID)
	}
}

// Connect joins the voice channel and waits until Lavalink has the voice
// server credentials.
func (a *Adapter) Connect(ctx context.Context, guildID, voiceChannelID, textChannelID string) error {
	client, err := a.lavalinkClient()
	if err != nil {
		return err
	}
	gid, err := snowflake.Parse(guildID)
	if err != nil {
		return errors.Wrapf(err, "invalid guild id %q", guildID)
	}

	ready := a.gates.arm(guildID)
	if err := a.voice.JoinVoice(guildID, voiceChannelID); err != nil {
		a.gates.disarm(guildID, ready)
		return errors.Wrapf(err, "failed to join voice channel %s", voiceChannelID)
	}

	waitCtx, cancel := context.WithTimeout(ctx, a.cfg.VoiceTimeout)
	defer cancel()

	select {
	case <-ready:
	case <-waitCtx.Done():
		a.gates.disarm(guildID, ready)
		if err := a.voice.LeaveVoice(guildID); err != nil {
			zlog.Warn().Msgf("failed to leave voice after connect failure: guild=%s error=%v", guildID, err)
		}
		if ctx.Err() != nil {
			return errors.Wrap(ctx.Err(), "connect cancelled")
		}
		return errors.Newf("timed out waiting for voice server: guild=%s channel=%s", guildID, voiceChannelID)
	}

	// Creates the player on the best node.
	client.Player(gid)
	zlog.Info().Msgf("voice connected: guild=%s channel=%s text=%s", guildID, voiceChannelID, textChannelID)
	return nil
}

// Disconnect destroys the player and leaves the voice channel. Both steps
// are attempted; the first failure is returned.
func (a *Adapter) Disconnect(ctx context.Context, guildID string) error {
	client, err := a.lavalinkClient()
	if err != nil {
		return err
	}
	gid, err := snowflake.Parse(guildID)
	if err != nil {
		return errors.Wrapf(err, "invalid guild id %q", guildID)
	}

	var first error
	if player := client.ExistingPlayer(gid); player != nil {
		if err := player.Destroy(ctx); err != nil {
			first = errors.Wrapf(err, "failed to destroy player: guild=%s", guildID)
		}
	}
	client.RemovePlayer(gid)

	if err := a.voice.LeaveVoice(guildID); err != nil && first == nil {
		first = errors.Wrapf(err, "failed to leave voice: guild=%s", guildID)
	}

	zlog.Info().Msgf("voice disconnected: guild=%s", guildID)
	return first
}

// OnVoiceStateUpdate forwards the bot's own voice state to Lavalink.
// An empty channelID means the bot left voice.
func (a *Adapter) OnVoiceStateUpdate(ctx context.Context, guildID, channelID, sessionID string) {
	client, err := a.lavalinkClient()
	if err != nil {
		return
	}
	gid, err := snowflake.Parse(guildID)
	if err != nil {
		return
	}

	var cid *snowflake.ID
	if channelID != "" {
		id, err := snowflake.Parse(channelID)
		if err != nil {
			return
		}
		cid = &id
	}
	client.OnVoiceStateUpdate(ctx, gid, cid, sessionID)
}

// OnVoiceServerUpdate forwards voice server credentials to Lavalink and
// releases a pending Connect.
func (a *Adapter) OnVoiceServerUpdate(ctx context.Context, guildID, token, endpoint string) {
	client, err := a.lavalinkClient()
	if err != nil {
		return
	}
	gid, err := snowflake.Parse(guildID)
	if err != nil {
		return
	}

	client.OnVoiceServerUpdate(ctx, gid, token, endpoint)
	a.gates.release(guildID)
}
