package player

import (
	"context"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/drum/internal/app/engine"
	"github.com/osa030/drum/internal/app/session"
	"github.com/osa030/drum/internal/domain/track"
	"github.com/osa030/drum/internal/infra/spotify"
)

// expandWorkers bounds concurrent lookups while expanding a Spotify link.
const expandWorkers = 4

// PlayResult describes what a play request added.
type PlayResult struct {
	Added        []track.Track
	PlaylistName string
	Position     int  // 1-indexed queue position of the first track, 0 when it started
	Started      bool // The first added track started playing
	Skipped      int  // Tracks dropped because they failed to start
}

// Join connects the bot to the caller's voice channel.
func (s *Service) Join(ctx context.Context, inv Invocation) error {
	if err := s.online(); err != nil {
		return err
	}
	if inv.VoiceChannelID == "" {
		return errors.Wrapf(session.ErrNotInVoiceChannel, "user=%s", inv.UserID)
	}
	_, err := s.store.Create(ctx, inv.GuildID, inv.VoiceChannelID, inv.ChannelID)
	return err
}

// Leave disconnects the bot. It works while the engine is offline so a
// stuck session can always be released.
func (s *Service) Leave(ctx context.Context, inv Invocation) error {
	if _, ok := s.store.Get(inv.GuildID); !ok {
		return errors.Wrapf(session.ErrNoActiveSession, "guild=%s", inv.GuildID)
	}
	return s.teardown(ctx, inv.GuildID)
}

// Stop stops playback and disconnects.
func (s *Service) Stop(ctx context.Context, inv Invocation) error {
	if _, err := s.control(inv); err != nil {
		return err
	}
	return s.teardown(ctx, inv.GuildID)
}

func (s *Service) teardown(ctx context.Context, guildID string) error {
	td, err := s.store.Destroy(ctx, guildID)
	s.disable(ctx, td.NowPlaying)
	if err != nil {
		zlog.Warn().Msgf("session removed with disconnect error: guild=%s error=%v", guildID, err)
	}
	return nil
}

// Play resolves query and enqueues the result, joining the caller's voice
// channel when the guild has no session yet.
func (s *Service) Play(ctx context.Context, inv Invocation, query string) (PlayResult, error) {
	if err := s.online(); err != nil {
		return PlayResult{}, err
	}
	if inv.VoiceChannelID == "" {
		return PlayResult{}, errors.Wrapf(session.ErrNotInVoiceChannel, "user=%s", inv.UserID)
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return PlayResult{}, ErrEmptyQuery
	}

	tracks, name, err := s.resolve(ctx, query)
	if err != nil {
		return PlayResult{}, err
	}
	return s.enqueue(ctx, inv, tracks, name)
}

// enqueue adds tracks to the guild session, creating it if needed.
func (s *Service) enqueue(ctx context.Context, inv Invocation, tracks []track.Track, playlistName string) (PlayResult, error) {
	sess, err := s.ensureSession(ctx, inv)
	if err != nil {
		return PlayResult{}, err
	}

	res, err := sess.Enqueue(ctx, tracks, inv.UserID)
	if res.Exhausted {
		s.queueEnd(ctx, sess)
	}
	if err != nil {
		return PlayResult{}, err
	}
	zlog.Info().Msgf("tracks enqueued: guild=%s user=%s count=%d first=%s", inv.GuildID, inv.UserID, len(res.Added), res.Added[0].Title)
	return PlayResult{
		Added:        res.Added,
		PlaylistName: playlistName,
		Position:     res.Position,
		Started:      res.Started != nil,
		Skipped:      len(res.Failed),
	}, nil
}

// queueEnd releases a session whose playback could not start, unless 24/7
// keeps it connected.
func (s *Service) queueEnd(ctx context.Context, sess *session.Session) {
	ref, keep := sess.Finish()
	s.disable(ctx, ref)
	if keep {
		zlog.Info().Msgf("playback failed to start, staying connected: guild=%s", sess.GuildID())
		return
	}
	zlog.Info().Msgf("playback failed to start, leaving: guild=%s", sess.GuildID())
	if err := s.teardown(ctx, sess.GuildID()); err != nil {
		zlog.Warn().Msgf("failed to leave after playback failure: guild=%s error=%v", sess.GuildID(), err)
	}
}

func (s *Service) ensureSession(ctx context.Context, inv Invocation) (*session.Session, error) {
	if sess, ok := s.store.Get(inv.GuildID); ok {
		return sess, nil
	}
	sess, err := s.store.Create(ctx, inv.GuildID, inv.VoiceChannelID, inv.ChannelID)
	if errors.Is(err, session.ErrAlreadyConnected) {
		// Lost a race with a concurrent play.
		if sess, ok := s.store.Get(inv.GuildID); ok {
			return sess, nil
		}
	}
	return sess, err
}

// resolve turns a query, URL or Spotify link into tracks.
func (s *Service) resolve(ctx context.Context, query string) ([]track.Track, string, error) {
	if link, ok := spotify.ParseLink(query); ok && s.spotify != nil {
		return s.resolveSpotify(ctx, link)
	}

	res, err := s.engine.Resolve(ctx, s.searchQuery(query))
	if err != nil {
		return nil, "", engine.ResolutionFailed(err, query)
	}
	if !res.Playable() {
		return nil, "", engine.ResolutionFailed(nil, query)
	}
	return res.Selected(), res.PlaylistName, nil
}

// resolveSpotify searches the engine for every track of a Spotify link and
// keeps the matches in link order.
func (s *Service) resolveSpotify(ctx context.Context, link spotify.Link) ([]track.Track, string, error) {
	exp, err := s.spotify.Expand(ctx, link)
	if err != nil {
		return nil, "", engine.ResolutionFailed(err, link.ID)
	}

	found := make([]*track.Track, len(exp.Queries))
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < expandWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				res, err := s.engine.Resolve(ctx, s.platform+":"+exp.Queries[i])
				if err != nil || !res.Playable() {
					zlog.Debug().Msgf("spotify track not found: query=%s error=%v", exp.Queries[i], err)
					continue
				}
				t := res.Tracks[0]
				found[i] = &t
			}
		}()
	}
	for i := range exp.Queries {
		select {
		case jobs <- i:
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			break
		}
	}
	close(jobs)
	wg.Wait()

	tracks := make([]track.Track, 0, len(found))
	for _, t := range found {
		if t != nil {
			tracks = append(tracks, *t)
		}
	}
	if len(tracks) == 0 {
		return nil, "", engine.ResolutionFailed(nil, link.ID)
	}

	name := ""
	if link.Kind != spotify.KindTrack {
		name = exp.Name
	}
	return tracks, name, nil
}

// searchQuery prefixes free text with the search platform; URLs pass through.
func (s *Service) searchQuery(query string) string {
	if isURL(query) {
		return query
	}
	return s.platform + ":" + query
}

func isURL(query string) bool {
	return strings.HasPrefix(query, "http://") || strings.HasPrefix(query, "https://")
}

// Pause pauses the current track.
func (s *Service) Pause(ctx context.Context, inv Invocation) error {
	sess, err := s.control(inv)
	if err != nil {
		return err
	}
	return sess.Pause(ctx, true)
}

// Resume resumes the current track.
func (s *Service) Resume(ctx context.Context, inv Invocation) error {
	sess, err := s.control(inv)
	if err != nil {
		return err
	}
	return sess.Pause(ctx, false)
}

// TogglePause flips pause and returns whether playback is now paused.
func (s *Service) TogglePause(ctx context.Context, inv Invocation) (bool, error) {
	sess, err := s.control(inv)
	if err != nil {
		return false, err
	}
	return sess.TogglePause(ctx)
}

// Skip stops the current track and disables its controls right away.
func (s *Service) Skip(ctx context.Context, inv Invocation) (track.Track, error) {
	sess, err := s.control(inv)
	if err != nil {
		return track.Track{}, err
	}
	skipped, ref, err := sess.Skip(ctx)
	if err != nil {
		return track.Track{}, err
	}
	s.disable(ctx, ref)
	return skipped, nil
}

// Volume returns the current volume.
func (s *Service) Volume(inv Invocation) (int, error) {
	sess, err := s.active(inv)
	if err != nil {
		return 0, err
	}
	return sess.Volume(), nil
}

// SetVolume sets the volume. Values outside 0-100 are rejected.
func (s *Service) SetVolume(ctx context.Context, inv Invocation, volume int) error {
	sess, err := s.control(inv)
	if err != nil {
		return err
	}
	return sess.SetVolume(ctx, volume)
}

// Loop cycles the loop mode, or sets it when mode is given.
func (s *Service) Loop(inv Invocation, mode string) (session.LoopMode, error) {
	sess, err := s.control(inv)
	if err != nil {
		return session.LoopOff, err
	}
	if strings.TrimSpace(mode) == "" {
		return sess.CycleLoop()
	}
	m, ok := session.ParseLoopMode(mode)
	if !ok {
		return session.LoopOff, errors.Wrapf(ErrInvalidLoopMode, "mode=%s", mode)
	}
	return m, sess.SetLoop(m)
}

// Shuffle shuffles the queue.
func (s *Service) Shuffle(inv Invocation) (int, error) {
	sess, err := s.control(inv)
	if err != nil {
		return 0, err
	}
	if err := sess.Shuffle(); err != nil {
		return 0, err
	}
	return len(sess.Snapshot().Queue), nil
}

// Remove deletes the track at a 1-indexed queue position.
func (s *Service) Remove(inv Invocation, position int) (track.Track, error) {
	sess, err := s.control(inv)
	if err != nil {
		return track.Track{}, err
	}
	return sess.Remove(position)
}

// Move moves a track between 1-indexed queue positions.
func (s *Service) Move(inv Invocation, from, to int) (track.Track, error) {
	sess, err := s.control(inv)
	if err != nil {
		return track.Track{}, err
	}
	return sess.Move(from, to)
}

// Clear empties the queue.
func (s *Service) Clear(inv Invocation) (int, error) {
	sess, err := s.control(inv)
	if err != nil {
		return 0, err
	}
	return sess.Clear()
}

// Autoplay toggles autoplay.
func (s *Service) Autoplay(inv Invocation) (bool, error) {
	sess, err := s.control(inv)
	if err != nil {
		return false, err
	}
	return sess.ToggleAutoplay()
}

// Stay247 toggles 24/7 mode.
func (s *Service) Stay247(inv Invocation) (bool, error) {
	sess, err := s.control(inv)
	if err != nil {
		return false, err
	}
	return sess.Toggle247()
}
