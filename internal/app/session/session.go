// Package session provides the per-guild playback session and its store.
package session

import (
	"context"
	"math/rand/v2"
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/drum/internal/app/engine"
	"github.com/osa030/drum/internal/app/filter"
	"github.com/osa030/drum/internal/app/presenter"
	"github.com/osa030/drum/internal/domain/track"
)

const (
	// DefaultVolume is the volume of a new session.
	DefaultVolume = 100
	// historySize bounds the list of recently finished tracks.
	historySize = 20
	// MaxStartAttempts bounds how many queued tracks are tried when starting
	// from idle fails.
	MaxStartAttempts = 3
)

// Session is the playback state of one guild.
// Every exported method is one atomic transition guarded by mu.
type Session struct {
	mu sync.Mutex

	guildID        string
	voiceChannelID string
	textChannelID  string
	engine         engine.Engine

	queue         []track.Track
	current       *track.Track
	paused        bool
	loop          LoopMode
	autoplay      bool
	stay247       bool
	volume        int
	filter        *filter.Preset
	nowPlaying    presenter.Ref
	skipRequested bool
	history       []track.Track

	shuffle func(n int, swap func(i, j int))

	closing atomic.Bool // set by the first Destroy
	closed  bool        // guarded by mu
}

func newSession(guildID, voiceChannelID, textChannelID string, eng engine.Engine) *Session {
	return &Session{
		guildID:        guildID,
		voiceChannelID: voiceChannelID,
		textChannelID:  textChannelID,
		engine:         eng,
		queue:          make([]track.Track, 0),
		loop:           LoopOff,
		volume:         DefaultVolume,
		shuffle:        rand.Shuffle,
	}
}

// Snapshot is a read-only copy of the session state.
type Snapshot struct {
	GuildID        string
	VoiceChannelID string
	TextChannelID  string
	Queue          []track.Track
	Current        *track.Track
	Paused         bool
	Loop           LoopMode
	Autoplay       bool
	Stay247        bool
	Volume         int
	Filter         string
	History        []track.Track
}

// EnqueueResult describes the outcome of Enqueue.
type EnqueueResult struct {
	Added    []track.Track
	Position  int           // 1-indexed queue position of the first added track, 0 if it started
	Started   *track.Track  // Track started by this call, if any
	Failed    []track.Track // Tracks dropped because the engine refused them
	Exhausted bool          // Playback gave up; the caller applies queue-end
}

// Advance describes the outcome of a play-next transition.
type Advance struct {
	Stale     bool          // The ended track is no longer current
	Started   *track.Track  // Track now playing
	Exhausted bool          // Nothing left to play
	Detached  presenter.Ref // Now-playing surface of the ended track
}

// GuildID returns the guild the session belongs to.
func (s *Session) GuildID() string {
	return s.guildID
}

// TextChannelID returns the channel notifications are posted to.
func (s *Session) TextChannelID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.textChannelID
}

// VoiceChannelID returns the voice channel the session is connected to.
func (s *Session) VoiceChannelID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.voiceChannelID
}

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		GuildID:        s.guildID,
		VoiceChannelID: s.voiceChannelID,
		TextChannelID:  s.textChannelID,
		Queue:          append([]track.Track(nil), s.queue...),
		Paused:         s.paused,
		Loop:           s.loop,
		Autoplay:       s.autoplay,
		Stay247:        s.stay247,
		Volume:         s.volume,
		History:        append([]track.Track(nil), s.history...),
	}
	if s.current != nil {
		cur := *s.current
		snap.Current = &cur
	}
	if s.filter != nil {
		snap.Filter = s.filter.Name
	}
	return snap
}

// NowPlayingView renders the state for a now-playing surface.
func (s *Session) NowPlayingView() (presenter.NowPlaying, bool) {
	snap := s.Snapshot()
	if snap.Current == nil {
		return presenter.NowPlaying{}, false
	}
	return presenter.NowPlaying{
		GuildID:     snap.GuildID,
		Track:       *snap.Current,
		Paused:      snap.Paused,
		Loop:        snap.Loop.String(),
		Volume:      snap.Volume,
		QueueLength: len(snap.Queue),
		Autoplay:    snap.Autoplay,
		Filter:      snap.Filter,
	}, true
}

// Enqueue appends tracks owned by requesterID to the queue tail and starts
// playback when nothing is playing and the player is not paused.
func (s *Session) Enqueue(ctx context.Context, tracks []track.Track, requesterID string) (EnqueueResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return EnqueueResult{}, ErrNoActiveSession
	}
	if len(tracks) == 0 {
		return EnqueueResult{}, ErrEmptyQueue
	}

	added := make([]track.Track, 0, len(tracks))
	for _, t := range tracks {
		added = append(added, t.WithRequester(requesterID))
	}
	s.queue = append(s.queue, added...)
	result := EnqueueResult{
		Added:    added,
		Position: len(s.queue) - len(added) + 1,
	}

	if s.current == nil && !s.paused {
		start := s.startIdleLocked(ctx)
		result.Failed = start.failed
		result.Exhausted = start.exhausted
		if start.err != nil {
			return result, start.err
		}
		result.Started = start.started
		result.Position = 0
	}

	zlog.Debug().Msgf("enqueued tracks: guild=%s count=%d queue_len=%d", s.guildID, len(added), len(s.queue))
	return result, nil
}

// Advance runs play-next after ended finished. Events for a track that is
// no longer current are reported as stale and change nothing.
func (s *Session) Advance(ctx context.Context, ended track.Track) (Advance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return Advance{}, ErrNoActiveSession
	}
	if s.current == nil || s.current.Key() != ended.Key() {
		return Advance{Stale: true}, nil
	}

	adv := Advance{Detached: s.nowPlaying}
	s.nowPlaying = presenter.Ref{}

	finished := *s.current
	started, exhausted, err := s.playNextLocked(ctx, &finished)
	adv.Started = started
	adv.Exhausted = exhausted
	return adv, err
}

// playNextLocked starts the next track. finished is the track that just
// ended, or nil when starting from idle.
func (s *Session) playNextLocked(ctx context.Context, finished *track.Track) (*track.Track, bool, error) {
	if finished != nil {
		skipped := s.skipRequested
		s.skipRequested = false
		s.rememberLocked(*finished)

		if s.loop == LoopTrack && !skipped {
			return s.startLocked(ctx, *finished)
		}
		if s.loop == LoopQueue {
			s.queue = append(s.queue, *finished)
		}
	}

	if len(s.queue) == 0 {
		s.current = nil
		s.paused = false
		return nil, true, nil
	}

	next := s.queue[0]
	s.queue = s.queue[1:]
	return s.startLocked(ctx, next)
}

type idleStart struct {
	started   *track.Track
	failed    []track.Track
	exhausted bool
	err       error
}

// startIdleLocked pops queued tracks until one starts. It gives up after
// MaxStartAttempts failures or when the queue runs out; tracks it could not
// start are dropped.
func (s *Session) startIdleLocked(ctx context.Context) idleStart {
	var res idleStart
	for attempt := 0; attempt < MaxStartAttempts && len(s.queue) > 0; attempt++ {
		next := s.queue[0]
		started, _, err := s.playNextLocked(ctx, nil)
		if err == nil {
			res.started = started
			return res
		}
		zlog.Warn().Msgf("failed to start queued track: guild=%s attempt=%d error=%v", s.guildID, attempt+1, err)
		res.failed = append(res.failed, next)
		res.err = err
	}

	res.exhausted = true
	if res.err != nil {
		res.err = errors.Mark(errors.Wrapf(res.err, "%d track(s) failed to start", len(res.failed)), ErrPlaybackFailed)
	}
	return res
}

func (s *Session) startLocked(ctx context.Context, t track.Track) (*track.Track, bool, error) {
	s.current = &t
	s.paused = false
	if err := s.engine.Play(ctx, s.guildID, t); err != nil {
		s.current = nil
		return nil, false, errors.Wrapf(err, "failed to play track: guild=%s title=%s", s.guildID, t.Title)
	}
	started := t
	return &started, false, nil
}

func (s *Session) rememberLocked(t track.Track) {
	s.history = append(s.history, t)
	if len(s.history) > historySize {
		s.history = s.history[len(s.history)-historySize:]
	}
}

// IsCurrent reports whether t is the track the session is playing.
func (s *Session) IsCurrent(t track.Track) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed && s.current != nil && s.current.Key() == t.Key()
}

// Finish applies queue-end. It clears the current track, detaches the
// now-playing surface and reports whether the session stays connected.
func (s *Session) Finish() (detached presenter.Ref, keep bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	detached = s.nowPlaying
	s.nowPlaying = presenter.Ref{}
	s.current = nil
	s.paused = false
	s.skipRequested = false
	return detached, s.stay247 && !s.closed
}

// Pause pauses or resumes the current track.
func (s *Session) Pause(ctx context.Context, paused bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pauseLocked(ctx, paused)
}

// TogglePause flips the paused flag and returns the new value.
func (s *Session) TogglePause(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	target := !s.paused
	if err := s.pauseLocked(ctx, target); err != nil {
		return s.paused, err
	}
	return target, nil
}

func (s *Session) pauseLocked(ctx context.Context, paused bool) error {
	if s.closed {
		return ErrNoActiveSession
	}
	if s.current == nil {
		return ErrNothingPlaying
	}
	if s.paused == paused {
		return nil
	}
	if err := s.engine.Pause(ctx, s.guildID, paused); err != nil {
		return errors.Wrapf(err, "failed to set pause: guild=%s paused=%t", s.guildID, paused)
	}
	s.paused = paused
	return nil
}

// Skip stops the current track regardless of loop mode. The engine's
// track-end event drives play-next. The now-playing surface is detached
// and returned so the caller can disable it right away.
func (s *Session) Skip(ctx context.Context) (track.Track, presenter.Ref, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return track.Track{}, presenter.Ref{}, ErrNoActiveSession
	}
	if s.current == nil {
		return track.Track{}, presenter.Ref{}, ErrNothingPlaying
	}

	skipped := *s.current
	s.skipRequested = true
	if err := s.engine.Stop(ctx, s.guildID); err != nil {
		s.skipRequested = false
		return track.Track{}, presenter.Ref{}, errors.Wrapf(err, "failed to stop track: guild=%s", s.guildID)
	}

	ref := s.nowPlaying
	s.nowPlaying = presenter.Ref{}
	return skipped, ref, nil
}

// SetVolume sets the player volume. Values outside 0-100 are rejected.
func (s *Session) SetVolume(ctx context.Context, volume int) error {
	if volume < 0 || volume > 100 {
		return errors.Wrapf(ErrInvalidVolume, "volume=%d", volume)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrNoActiveSession
	}
	if err := s.engine.SetVolume(ctx, s.guildID, volume); err != nil {
		return errors.Wrapf(err, "failed to set volume: guild=%s", s.guildID)
	}
	s.volume = volume
	return nil
}

// Volume returns the current volume.
func (s *Session) Volume() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.volume
}

// CycleLoop advances the loop mode and returns the new mode.
func (s *Session) CycleLoop() (LoopMode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return s.loop, ErrNoActiveSession
	}
	s.loop = s.loop.Next()
	return s.loop, nil
}

// SetLoop sets the loop mode.
func (s *Session) SetLoop(mode LoopMode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrNoActiveSession
	}
	s.loop = mode
	return nil
}

// Shuffle randomly permutes the queue. The current track is not touched.
func (s *Session) Shuffle() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrNoActiveSession
	}
	if len(s.queue) == 0 {
		return ErrEmptyQueue
	}
	s.shuffle(len(s.queue), func(i, j int) {
		s.queue[i], s.queue[j] = s.queue[j], s.queue[i]
	})
	return nil
}

// Remove deletes the track at 1-indexed position.
func (s *Session) Remove(position int) (track.Track, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return track.Track{}, ErrNoActiveSession
	}
	if err := s.checkPositionLocked(position); err != nil {
		return track.Track{}, err
	}

	i := position - 1
	removed := s.queue[i]
	s.queue = append(s.queue[:i], s.queue[i+1:]...)
	return removed, nil
}

// Move takes the track at from and reinserts it at to. Both are 1-indexed.
func (s *Session) Move(from, to int) (track.Track, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return track.Track{}, ErrNoActiveSession
	}
	if err := s.checkPositionLocked(from); err != nil {
		return track.Track{}, err
	}
	if err := s.checkPositionLocked(to); err != nil {
		return track.Track{}, err
	}

	moved := s.queue[from-1]
	if from == to {
		return moved, nil
	}

	rest := append(s.queue[:from-1:from-1], s.queue[from:]...)
	out := make([]track.Track, 0, len(s.queue))
	out = append(out, rest[:to-1]...)
	out = append(out, moved)
	out = append(out, rest[to-1:]...)
	s.queue = out
	return moved, nil
}

func (s *Session) checkPositionLocked(position int) error {
	if position < 1 || position > len(s.queue) {
		return errors.Wrapf(ErrOutOfRange, "position=%d length=%d", position, len(s.queue))
	}
	return nil
}

// Clear empties the queue and returns how many tracks were removed.
func (s *Session) Clear() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrNoActiveSession
	}
	if len(s.queue) == 0 {
		return 0, ErrEmptyQueue
	}
	n := len(s.queue)
	s.queue = make([]track.Track, 0)
	return n, nil
}

// ToggleAutoplay flips autoplay and returns the new value.
func (s *Session) ToggleAutoplay() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return s.autoplay, ErrNoActiveSession
	}
	s.autoplay = !s.autoplay
	return s.autoplay, nil
}

// Autoplay reports whether autoplay is enabled.
func (s *Session) Autoplay() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.autoplay
}

// Toggle247 flips the 24/7 flag and returns the new value.
func (s *Session) Toggle247() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return s.stay247, ErrNoActiveSession
	}
	s.stay247 = !s.stay247
	return s.stay247, nil
}

// ApplyFilter replaces the active filter.
func (s *Session) ApplyFilter(ctx context.Context, preset filter.Preset) error {
	payload, err := preset.Payload()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrNoActiveSession
	}
	if err := s.engine.SetFilter(ctx, s.guildID, payload); err != nil {
		return errors.Wrapf(err, "failed to apply filter: guild=%s filter=%s", s.guildID, preset.Name)
	}
	s.filter = &preset
	return nil
}

// ClearFilter removes the active filter.
func (s *Session) ClearFilter(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrNoActiveSession
	}
	if err := s.engine.ClearFilters(ctx, s.guildID); err != nil {
		return errors.Wrapf(err, "failed to clear filters: guild=%s", s.guildID)
	}
	s.filter = nil
	return nil
}

// SetNowPlaying stores the now-playing surface and returns the one it replaces.
// A closed session rejects the reference and hands it back for disabling.
func (s *Session) SetNowPlaying(ref presenter.Ref) presenter.Ref {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ref
	}
	previous := s.nowPlaying
	s.nowPlaying = ref
	return previous
}

// AttachNowPlaying stores ref as the surface for t. When t is no longer
// current, or a skip of t is pending, ref is returned for disabling instead.
// Otherwise the displaced surface is returned.
func (s *Session) AttachNowPlaying(t track.Track, ref presenter.Ref) presenter.Ref {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.current == nil || s.current.Key() != t.Key() || s.skipRequested {
		return ref
	}
	previous := s.nowPlaying
	s.nowPlaying = ref
	return previous
}

// TakeNowPlaying clears and returns the now-playing surface.
func (s *Session) TakeNowPlaying() presenter.Ref {
	s.mu.Lock()
	defer s.mu.Unlock()

	ref := s.nowPlaying
	s.nowPlaying = presenter.Ref{}
	return ref
}

// Kick starts the queue head when the session is idle, skipping tracks the
// engine refuses. It reports whether the queue ran out.
func (s *Session) Kick(ctx context.Context) (*track.Track, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, false, ErrNoActiveSession
	}
	if s.current != nil || s.paused {
		return nil, false, nil
	}
	start := s.startIdleLocked(ctx)
	return start.started, start.exhausted, start.err
}
