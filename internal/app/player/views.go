package player

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/osa030/drum/internal/app/presenter"
	"github.com/osa030/drum/internal/app/session"
	"github.com/osa030/drum/internal/domain/track"
	"github.com/osa030/drum/internal/infra/lyrics"
)

// lyricsLimit keeps lyrics within a single embed description.
const lyricsLimit = 4000

// QueueView is the first page of a guild queue.
type QueueView struct {
	Current   track.Track
	Upcoming  []track.Track
	Remaining int // Tracks beyond the page
	Total     int
	Loop      session.LoopMode
	Autoplay  bool
	Stay247   bool
}

// Queue returns the current track and the first page of upcoming tracks.
func (s *Service) Queue(inv Invocation) (QueueView, error) {
	sess, err := s.active(inv)
	if err != nil {
		return QueueView{}, err
	}
	snap := sess.Snapshot()
	if snap.Current == nil {
		return QueueView{}, session.ErrNothingPlaying
	}

	page := snap.Queue
	if len(page) > s.queuePage {
		page = page[:s.queuePage]
	}
	return QueueView{
		Current:   *snap.Current,
		Upcoming:  page,
		Remaining: len(snap.Queue) - len(page),
		Total:     len(snap.Queue),
		Loop:      snap.Loop,
		Autoplay:  snap.Autoplay,
		Stay247:   snap.Stay247,
	}, nil
}

// NowPlaying returns the now-playing view of the guild.
func (s *Service) NowPlaying(inv Invocation) (presenter.NowPlaying, error) {
	sess, err := s.active(inv)
	if err != nil {
		return presenter.NowPlaying{}, err
	}
	np, ok := sess.NowPlayingView()
	if !ok {
		return presenter.NowPlaying{}, session.ErrNothingPlaying
	}
	return np, nil
}

// Lyrics looks up lyrics for query, or for the current track when query is empty.
func (s *Service) Lyrics(ctx context.Context, inv Invocation, query string) (lyrics.Result, error) {
	if s.lyrics == nil {
		return lyrics.Result{}, ErrLyricsDisabled
	}

	query = strings.TrimSpace(query)
	if query == "" {
		sess, ok := s.store.Get(inv.GuildID)
		if !ok {
			return lyrics.Result{}, errors.Wrapf(session.ErrNothingPlaying, "guild=%s", inv.GuildID)
		}
		cur := sess.Snapshot().Current
		if cur == nil {
			return lyrics.Result{}, session.ErrNothingPlaying
		}
		query = cur.SearchTerm()
	}

	res, err := s.lyrics.Best(ctx, query)
	if err != nil {
		return lyrics.Result{}, err
	}
	res.PlainLyrics = lyrics.Truncate(res.PlainLyrics, lyricsLimit)
	return res, nil
}
