// Package player implements the music commands behind the chat gateway.
package player

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/drum/internal/app/engine"
	"github.com/osa030/drum/internal/app/filter"
	"github.com/osa030/drum/internal/app/presenter"
	"github.com/osa030/drum/internal/app/selection"
	"github.com/osa030/drum/internal/app/session"
	"github.com/osa030/drum/internal/domain/track"
	"github.com/osa030/drum/internal/infra/lyrics"
	"github.com/osa030/drum/internal/infra/spotify"
)

// Errors
var (
	ErrEmptyQuery      = errors.New("query is empty")
	ErrInvalidLoopMode = errors.New("invalid loop mode")
	ErrLyricsDisabled  = errors.New("lyrics lookup is disabled")
)

const (
	defaultSearchResults = 10
	defaultSearchTimeout = 60 * time.Second
	defaultFilterTimeout = 300 * time.Second
	defaultQueuePage     = 10
	detachTimeout        = 5 * time.Second
)

// Invocation identifies who issued a command and where.
type Invocation struct {
	GuildID        string
	ChannelID      string
	UserID         string
	VoiceChannelID string // Empty when the user is not in a voice channel
}

// scope keys selection flows per guild and user.
func (inv Invocation) scope() string {
	return inv.GuildID + ":" + inv.UserID
}

// SpotifyExpander turns a Spotify link into search queries.
type SpotifyExpander interface {
	Expand(ctx context.Context, link spotify.Link) (*spotify.Expansion, error)
}

// LyricsSearcher looks up lyrics.
type LyricsSearcher interface {
	Best(ctx context.Context, query string) (lyrics.Result, error)
}

// StartCounter reports how many tracks were started since boot.
type StartCounter interface {
	TracksStarted() uint64
}

// Config represents player service configuration.
type Config struct {
	Engine    engine.Engine
	Store     *session.Store
	Status    *engine.Status
	Presenter presenter.Presenter
	Spotify   SpotifyExpander // Optional
	Lyrics    LyricsSearcher  // Optional
	Counter   StartCounter    // Optional

	SearchPlatform string
	SearchResults  int
	SearchTimeout  time.Duration
	FilterTimeout  time.Duration
	QueuePage      int
}

// Service executes music commands against guild sessions.
type Service struct {
	engine    engine.Engine
	store     *session.Store
	status    *engine.Status
	presenter presenter.Presenter
	spotify   SpotifyExpander
	lyrics    LyricsSearcher
	counter   StartCounter

	platform      string
	searchResults int
	queuePage     int

	searches *selection.Manager[track.Track]
	filters  *selection.Manager[filter.Preset]

	startedAt time.Time
}

// NewService creates a new player service.
func NewService(cfg Config) *Service {
	if cfg.SearchResults <= 0 || cfg.SearchResults > defaultSearchResults {
		cfg.SearchResults = defaultSearchResults
	}
	if cfg.SearchTimeout <= 0 {
		cfg.SearchTimeout = defaultSearchTimeout
	}
	if cfg.FilterTimeout <= 0 {
		cfg.FilterTimeout = defaultFilterTimeout
	}
	if cfg.QueuePage <= 0 {
		cfg.QueuePage = defaultQueuePage
	}
	if cfg.SearchPlatform == "" {
		cfg.SearchPlatform = "ytmsearch"
	}

	s := &Service{
		engine:        cfg.Engine,
		store:         cfg.Store,
		status:        cfg.Status,
		presenter:     cfg.Presenter,
		spotify:       cfg.Spotify,
		lyrics:        cfg.Lyrics,
		counter:       cfg.Counter,
		platform:      cfg.SearchPlatform,
		searchResults: cfg.SearchResults,
		queuePage:     cfg.QueuePage,
		startedAt:     time.Now(),
	}
	s.searches = selection.NewManager("search", cfg.SearchTimeout, detachFunc[track.Track](s, "Search"))
	s.filters = selection.NewManager("filter", cfg.FilterTimeout, detachFunc[filter.Preset](s, "Filter selection"))
	return s
}

// Close cancels every open selection.
func (s *Service) Close() {
	s.searches.Close()
	s.filters.Close()
}

// detachFunc removes the choice list of a flow that ended unresolved.
func detachFunc[T any](s *Service, label string) selection.DetachFunc[T] {
	return func(f *selection.Flow[T], outcome selection.Outcome) {
		ref := f.Ref()
		if ref.IsZero() || s.presenter == nil {
			return
		}

		var notice string
		switch outcome {
		case selection.OutcomeExpired:
			notice = "⏱️ " + label + " timed out."
		case selection.OutcomeSuperseded:
			notice = label + " replaced by a newer one."
		default:
			notice = label + " cancelled."
		}

		ctx, cancel := context.WithTimeout(context.Background(), detachTimeout)
		defer cancel()
		if err := s.presenter.DetachSelection(ctx, ref, notice); err != nil {
			zlog.Debug().Msgf("failed to detach selection: flow=%s error=%v", f.ID(), err)
		}
	}
}

// online fails fast while no engine node is connected.
func (s *Service) online() error {
	return s.status.Check()
}

// active returns the guild session for read-only commands.
func (s *Service) active(inv Invocation) (*session.Session, error) {
	if err := s.online(); err != nil {
		return nil, err
	}
	sess, ok := s.store.Get(inv.GuildID)
	if !ok {
		return nil, errors.Wrapf(session.ErrNoActiveSession, "guild=%s", inv.GuildID)
	}
	return sess, nil
}

// control returns the guild session for mutating commands. The checks run
// before any state is touched: engine, then session, then voice presence.
func (s *Service) control(inv Invocation) (*session.Session, error) {
	sess, err := s.active(inv)
	if err != nil {
		return nil, err
	}
	if inv.VoiceChannelID == "" {
		return nil, errors.Wrapf(session.ErrNotInVoiceChannel, "user=%s", inv.UserID)
	}
	return sess, nil
}

// disable greys out controls; failures are cosmetic.
func (s *Service) disable(ctx context.Context, ref presenter.Ref) {
	if ref.IsZero() || s.presenter == nil {
		return
	}
	if err := s.presenter.DisableControls(ctx, ref); err != nil {
		zlog.Debug().Msgf("failed to disable controls: channel=%s message=%s error=%v", ref.ChannelID, ref.MessageID, err)
	}
}

// Stats is a snapshot of process-wide counters.
type Stats struct {
	Uptime            time.Duration
	ActivePlayers     int
	EngineOnline      bool
	TracksStarted     uint64
	PendingSelections int
}

// Stats returns process-wide counters.
func (s *Service) Stats() Stats {
	st := Stats{
		Uptime:            time.Since(s.startedAt),
		ActivePlayers:     s.store.Len(),
		EngineOnline:      s.status.Online(),
		PendingSelections: s.searches.Pending() + s.filters.Pending(),
	}
	if s.counter != nil {
		st.TracksStarted = s.counter.TracksStarted()
	}
	return st
}

// StartedAt returns the time the service was created.
func (s *Service) StartedAt() time.Time {
	return s.startedAt
}
