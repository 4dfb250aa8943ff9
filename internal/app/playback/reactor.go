// Package playback reacts to media engine events for every guild session.
package playback

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/drum/internal/app/autoplay"
	"github.com/osa030/drum/internal/app/engine"
	"github.com/osa030/drum/internal/app/notification"
	"github.com/osa030/drum/internal/app/presenter"
	"github.com/osa030/drum/internal/app/session"
	"github.com/osa030/drum/internal/domain/track"
)

const (
	defaultEventTimeout = 30 * time.Second
	// AutoplayRequester is the requester recorded on autoplay picks.
	AutoplayRequester = "autoplay"
)

// Autoplayer picks a follow-up track when the queue runs out.
type Autoplayer interface {
	Next(ctx context.Context, seed track.Track, recent []track.Track) (autoplay.Candidate, error)
}

// Config represents reactor configuration.
type Config struct {
	Events       <-chan engine.Event
	Store        *session.Store
	Status       *engine.Status
	Presenter    presenter.Presenter
	Notifier     *notification.Manager
	Autoplay     Autoplayer // Optional
	EventTimeout time.Duration
}

// Reactor is the single consumer of engine events. It is the only component
// that tears sessions down because playback ran out.
type Reactor struct {
	events    <-chan engine.Event
	store     *session.Store
	status    *engine.Status
	presenter presenter.Presenter
	notifier  *notification.Manager
	autoplay  Autoplayer
	timeout   time.Duration

	tracksStarted atomic.Uint64
	done          chan struct{}
}

// NewReactor creates a new reactor.
func NewReactor(cfg Config) *Reactor {
	timeout := cfg.EventTimeout
	if timeout <= 0 {
		timeout = defaultEventTimeout
	}
	return &Reactor{
		events:    cfg.Events,
		store:     cfg.Store,
		status:    cfg.Status,
		presenter: cfg.Presenter,
		notifier:  cfg.Notifier,
		autoplay:  cfg.Autoplay,
		timeout:   timeout,
		done:      make(chan struct{}),
	}
}

// Run consumes events until ctx is cancelled or the event channel closes.
func (r *Reactor) Run(ctx context.Context) {
	defer close(r.done)
	for r.loop(ctx) {
		zlog.Info().Msg("restarting playback reactor")
	}
}

// Done is closed when Run returns.
func (r *Reactor) Done() <-chan struct{} {
	return r.done
}

// TracksStarted returns the number of tracks started since boot.
func (r *Reactor) TracksStarted() uint64 {
	return r.tracksStarted.Load()
}

// loop handles events and reports whether it should be restarted after a panic.
func (r *Reactor) loop(ctx context.Context) (restart bool) {
	defer func() {
		if p := recover(); p != nil {
			zlog.Error().Msgf("playback reactor panicked: %v", p)
			restart = ctx.Err() == nil
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return false
		case event, ok := <-r.events:
			if !ok {
				return false
			}
			r.handle(ctx, event)
		}
	}
}

// handle dispatches one engine event.
func (r *Reactor) handle(parent context.Context, event engine.Event) {
	zlog.Debug().Msgf("engine event: type=%s guild=%s node=%s", event.Type, event.GuildID, event.Node)

	ctx, cancel := context.WithTimeout(parent, r.timeout)
	defer cancel()

	switch event.Type {
	case engine.EventNodeConnect:
		r.setOnline(true, event)

	case engine.EventNodeError, engine.EventNodeDisconnect:
		r.setOnline(false, event)

	case engine.EventTrackStart:
		r.onTrackStart(ctx, event)

	case engine.EventTrackEnd:
		if !event.Reason.Advances() {
			return
		}
		r.onTrackEnd(ctx, event)

	case engine.EventTrackException:
		r.onTrackException(ctx, event)

	case engine.EventQueueEnd:
		if sess, ok := r.store.Get(event.GuildID); ok {
			r.queueEnd(ctx, sess)
		}
	}
}

func (r *Reactor) setOnline(online bool, event engine.Event) {
	if !r.status.Set(online) {
		return
	}
	if online {
		zlog.Info().Msgf("engine online: node=%s", event.Node)
	} else {
		zlog.Warn().Msgf("engine offline: node=%s error=%v", event.Node, event.Err)
	}
	r.broadcast(notification.Notification{Type: notification.TypeEngineStatus, Online: online})
}

// onTrackStart posts the now-playing controls and replaces the previous ones.
func (r *Reactor) onTrackStart(ctx context.Context, event engine.Event) {
	if event.Track == nil {
		return
	}
	sess, ok := r.store.Get(event.GuildID)
	if !ok || !sess.IsCurrent(*event.Track) {
		zlog.Debug().Msgf("ignoring stale track start: guild=%s title=%s", event.GuildID, event.Track.Title)
		return
	}

	r.tracksStarted.Add(1)
	defer r.broadcast(notification.Notification{Type: notification.TypeTrackStarted, GuildID: event.GuildID, Track: event.Track})

	np, ok := sess.NowPlayingView()
	if !ok {
		return
	}
	ref, err := r.presenter.SendNowPlaying(ctx, sess.TextChannelID(), np)
	if err != nil {
		zlog.Warn().Msgf("failed to send now playing: guild=%s error=%v", event.GuildID, err)
		return
	}

	// The track may have ended or been skipped while the message was being sent.
	r.disable(ctx, sess.AttachNowPlaying(*event.Track, ref))
}

// onTrackEnd runs play-next and handles exhaustion.
func (r *Reactor) onTrackEnd(ctx context.Context, event engine.Event) {
	if event.Track == nil {
		return
	}
	sess, ok := r.store.Get(event.GuildID)
	if !ok {
		return
	}

	adv, err := sess.Advance(ctx, *event.Track)
	if adv.Stale || errors.Is(err, session.ErrNoActiveSession) {
		return
	}
	r.disable(ctx, adv.Detached)

	if err != nil {
		zlog.Warn().Msgf("failed to start next track: guild=%s error=%v", event.GuildID, err)
		r.notice(ctx, sess, "Failed to play the next track, skipping.")
		adv.Exhausted = r.restart(ctx, sess)
	}

	if !adv.Exhausted {
		return
	}
	if r.continueWithAutoplay(ctx, sess, *event.Track) {
		return
	}
	r.queueEnd(ctx, sess)
}

// restart tries the next queued tracks after a play failure and reports
// whether the queue ran out.
func (r *Reactor) restart(ctx context.Context, sess *session.Session) bool {
	started, exhausted, err := sess.Kick(ctx)
	switch {
	case errors.Is(err, session.ErrNoActiveSession):
		return false
	case err != nil:
		zlog.Warn().Msgf("failed to recover playback: guild=%s error=%v", sess.GuildID(), err)
	case started != nil:
		zlog.Info().Msgf("recovered playback: guild=%s title=%s", sess.GuildID(), started.Title)
	}
	return exhausted
}

// continueWithAutoplay enqueues an autoplay pick and reports whether playback continues.
func (r *Reactor) continueWithAutoplay(ctx context.Context, sess *session.Session, seed track.Track) bool {
	if r.autoplay == nil || !sess.Autoplay() {
		return false
	}

	snap := sess.Snapshot()
	cand, err := r.autoplay.Next(ctx, seed, snap.History)
	if err != nil {
		zlog.Info().Msgf("autoplay found nothing: guild=%s error=%v", sess.GuildID(), err)
		return false
	}

	res, err := sess.Enqueue(ctx, []track.Track{cand.Track}, AutoplayRequester)
	if err != nil {
		zlog.Warn().Msgf("failed to enqueue autoplay track: guild=%s error=%v", sess.GuildID(), err)
		return false
	}
	if res.Started == nil {
		return false
	}

	r.notice(ctx, sess, fmt.Sprintf("Autoplay: **%s** by %s (via %s)", cand.Track.Title, cand.Track.Author, cand.DisplayName))
	return true
}

func (r *Reactor) onTrackException(ctx context.Context, event engine.Event) {
	sess, ok := r.store.Get(event.GuildID)
	if !ok || event.Track == nil {
		return
	}
	zlog.Warn().Msgf("track failed: guild=%s title=%s error=%v", event.GuildID, event.Track.Title, event.Err)
	r.notice(ctx, sess, fmt.Sprintf("Error playing **%s**.", event.Track.Title))
}

// queueEnd detaches the controls, then keeps or destroys the session.
func (r *Reactor) queueEnd(ctx context.Context, sess *session.Session) {
	guildID := sess.GuildID()
	ref, keep := sess.Finish()
	r.disable(ctx, ref)
	r.broadcast(notification.Notification{Type: notification.TypeQueueEnded, GuildID: guildID})

	if keep {
		zlog.Info().Msgf("queue ended, staying connected: guild=%s", guildID)
		r.notice(ctx, sess, "Queue ended. Staying in the voice channel (24/7 mode).")
		return
	}

	zlog.Info().Msgf("queue ended, leaving: guild=%s", guildID)
	r.notice(ctx, sess, "Queue ended. Leaving voice channel.")

	td, err := r.store.Destroy(ctx, guildID)
	if err != nil {
		zlog.Warn().Msgf("failed to disconnect cleanly: guild=%s error=%v", guildID, err)
	}
	r.disable(ctx, td.NowPlaying)
	if td.Destroyed {
		r.broadcast(notification.Notification{Type: notification.TypeSessionClosed, GuildID: guildID})
	}
}

// disable greys out controls; failures are cosmetic.
func (r *Reactor) disable(ctx context.Context, ref presenter.Ref) {
	if ref.IsZero() {
		return
	}
	if err := r.presenter.DisableControls(ctx, ref); err != nil {
		zlog.Debug().Msgf("failed to disable controls: channel=%s message=%s error=%v", ref.ChannelID, ref.MessageID, err)
	}
}

func (r *Reactor) notice(ctx context.Context, sess *session.Session, text string) {
	if err := r.presenter.SendNotice(ctx, sess.TextChannelID(), text); err != nil {
		zlog.Debug().Msgf("failed to send notice: guild=%s error=%v", sess.GuildID(), err)
	}
}

func (r *Reactor) broadcast(n notification.Notification) {
	if r.notifier != nil {
		r.notifier.Broadcast(n)
	}
}
