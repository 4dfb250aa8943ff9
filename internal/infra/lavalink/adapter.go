// Package lavalink implements the media engine port on a Lavalink v4 node.
package lavalink

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/disgoorg/disgolink/v3/disgolink"
	lv "github.com/disgoorg/disgolink/v3/lavalink"
	"github.com/disgoorg/snowflake/v2"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/drum/internal/app/engine"
)

const statusPollInterval = 2 * time.Second

// VoiceJoiner moves the bot in and out of voice channels through the gateway.
type VoiceJoiner interface {
	JoinVoice(guildID, channelID string) error
	LeaveVoice(guildID string) error
}

// Config represents adapter configuration.
type Config struct {
	Name         string
	Address      string
	Password     string
	Secure       bool
	EventBuffer  int
	VoiceTimeout time.Duration
}

// Adapter is an engine.Engine backed by disgolink.
// It is unusable until Init succeeds.
type Adapter struct {
	cfg    Config
	voice  VoiceJoiner
	gates  *voiceGates
	events chan engine.Event

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.RWMutex
	client  disgolink.Client
	initErr error
}

var _ engine.Engine = (*Adapter)(nil)

// New creates an adapter. The node is registered later by Init.
func New(cfg Config, voice VoiceJoiner) *Adapter {
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = 64
	}
	if cfg.VoiceTimeout <= 0 {
		cfg.VoiceTimeout = 10 * time.Second
	}
	if cfg.Name == "" {
		cfg.Name = "main"
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Adapter{
		cfg:    cfg,
		voice:  voice,
		gates:  newVoiceGates(),
		events: make(chan engine.Event, cfg.EventBuffer),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Init creates the Lavalink client for botUserID and connects the node.
// On failure the adapter stays unavailable and every call returns
// engine.ErrEngineUnavailable.
func (a *Adapter) Init(ctx context.Context, botUserID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.client != nil {
		return nil
	}

	userID, err := snowflake.Parse(botUserID)
	if err != nil {
		a.initErr = errors.Mark(errors.Wrapf(err, "invalid bot user id %q", botUserID), engine.ErrEngineUnavailable)
		return a.initErr
	}

	client := disgolink.New(userID,
		disgolink.WithListenerFunc(a.onTrackStart),
		disgolink.WithListenerFunc(a.onTrackEnd),
		disgolink.WithListenerFunc(a.onTrackException),
		disgolink.WithListenerFunc(a.onTrackStuck),
		disgolink.WithListenerFunc(a.onWebSocketClosed),
	)

	node, err := client.AddNode(ctx, disgolink.NodeConfig{
		Name:     a.cfg.Name,
		Address:  a.cfg.Address,
		Password: a.cfg.Password,
		Secure:   a.cfg.Secure,
	})
	if err != nil {
		client.Close()
		a.initErr = errors.Mark(errors.Wrapf(err, "failed to add lavalink node %s", a.cfg.Address), engine.ErrEngineUnavailable)
		a.emit(engine.Event{Type: engine.EventNodeError, Node: a.cfg.Name, Err: a.initErr})
		return a.initErr
	}

	a.client = client
	a.initErr = nil
	zlog.Info().Msgf("lavalink node added: name=%s address=%s secure=%t", a.cfg.Name, a.cfg.Address, a.cfg.Secure)

	a.wg.Add(1)
	go a.watchStatus(node)
	return nil
}

// Close stops the status watcher and closes every node connection.
func (a *Adapter) Close() {
	a.cancel()
	a.wg.Wait()

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.client != nil {
		a.client.Close()
	}
}

// Events returns the lifecycle event stream.
func (a *Adapter) Events() <-chan engine.Event {
	return a.events
}

// lavalinkClient returns the client or the reason it is unusable.
func (a *Adapter) lavalinkClient() (disgolink.Client, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.client == nil {
		if a.initErr != nil {
			return nil, a.initErr
		}
		return nil, errors.Wrap(engine.ErrEngineUnavailable, "lavalink client not initialized")
	}
	return a.client, nil
}

// watchStatus turns node status transitions into engine events.
func (a *Adapter) watchStatus(node disgolink.Node) {
	defer a.wg.Done()

	ticker := time.NewTicker(statusPollInterval)
	defer ticker.Stop()

	online := false
	check := func() {
		now := node.Status() == disgolink.StatusConnected
		if now == online {
			return
		}
		online = now
		if online {
			zlog.Info().Msgf("lavalink node connected: name=%s", a.cfg.Name)
			a.emit(engine.Event{Type: engine.EventNodeConnect, Node: a.cfg.Name})
			return
		}
		zlog.Warn().Msgf("lavalink node disconnected: name=%s status=%s", a.cfg.Name, node.Status())
		a.emit(engine.Event{Type: engine.EventNodeDisconnect, Node: a.cfg.Name})
	}

	check()
	for {
		select {
		case <-a.ctx.Done():
			return
		case <-ticker.C:
			check()
		}
	}
}

// emit blocks until the reactor takes the event or the adapter closes.
func (a *Adapter) emit(e engine.Event) {
	select {
	case a.events <- e:
	case <-a.ctx.Done():
	}
}

func (a *Adapter) onTrackStart(p disgolink.Player, e lv.TrackStartEvent) {
	t := toTrack(e.Track)
	zlog.Debug().Msgf("track started: guild=%s title=%s", p.GuildID(), t.Title)
	a.emit(engine.Event{Type: engine.EventTrackStart, GuildID: p.GuildID().String(), Track: &t})
}

func (a *Adapter) onTrackEnd(p disgolink.Player, e lv.TrackEndEvent) {
	t := toTrack(e.Track)
	zlog.Debug().Msgf("track ended: guild=%s title=%s reason=%s", p.GuildID(), t.Title, e.Reason)
	a.emit(engine.Event{
		Type:    engine.EventTrackEnd,
		GuildID: p.GuildID().String(),
		Track:   &t,
		Reason:  engine.EndReason(e.Reason),
	})
}

func (a *Adapter) onTrackException(p disgolink.Player, e lv.TrackExceptionEvent) {
	t := toTrack(e.Track)
	err := errors.Newf("track exception: %s (severity %s)", e.Exception.Message, e.Exception.Severity)
	zlog.Warn().Msgf("track exception: guild=%s title=%s error=%v", p.GuildID(), t.Title, err)
	a.emit(engine.Event{Type: engine.EventTrackException, GuildID: p.GuildID().String(), Track: &t, Err: err})
}

func (a *Adapter) onTrackStuck(p disgolink.Player, e lv.TrackStuckEvent) {
	zlog.Warn().Msgf("track stuck: guild=%s title=%s", p.GuildID(), e.Track.Info.Title)
}

func (a *Adapter) onWebSocketClosed(p disgolink.Player, e lv.WebSocketClosedEvent) {
	zlog.Warn().Msgf("voice websocket closed: guild=%s code=%d reason=%s by_remote=%t", p.GuildID(), e.Code, e.Reason, e.ByRemote)
}
