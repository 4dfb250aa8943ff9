package session

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/drum/internal/app/engine"
	"github.com/osa030/drum/internal/app/presenter"
)

// Store owns every guild session. The map lock is only held for map access;
// transitions on a session hold that session's own lock.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	engine   engine.Engine
}

// NewStore creates a new session store.
func NewStore(eng engine.Engine) *Store {
	return &Store{
		sessions: make(map[string]*Session),
		engine:   eng,
	}
}

// Teardown describes the outcome of Destroy.
type Teardown struct {
	Destroyed  bool          // This call released the engine connection
	NowPlaying presenter.Ref // Now-playing surface left on the session
}

// Get returns the session for guildID.
func (s *Store) Get(guildID string) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[guildID]
	return sess, ok
}

// Create registers a new session and connects it to the engine.
// Other callers see the session immediately but block on it until the
// connect completes.
func (s *Store) Create(ctx context.Context, guildID, voiceChannelID, textChannelID string) (*Session, error) {
	s.mu.Lock()
	if _, exists := s.sessions[guildID]; exists {
		s.mu.Unlock()
		return nil, errors.Wrapf(ErrAlreadyConnected, "guild=%s", guildID)
	}
	sess := newSession(guildID, voiceChannelID, textChannelID, s.engine)
	sess.mu.Lock()
	s.sessions[guildID] = sess
	s.mu.Unlock()

	if err := s.engine.Connect(ctx, guildID, voiceChannelID, textChannelID); err != nil {
		sess.closed = true
		sess.closing.Store(true)
		sess.mu.Unlock()
		s.remove(guildID, sess)
		return nil, errors.Wrapf(err, "failed to connect: guild=%s channel=%s", guildID, voiceChannelID)
	}
	sess.mu.Unlock()

	zlog.Info().Msgf("session created: guild=%s voice=%s text=%s", guildID, voiceChannelID, textChannelID)
	return sess, nil
}

// Destroy disconnects the session from the engine and removes it.
// Concurrent and repeated calls issue a single disconnect.
func (s *Store) Destroy(ctx context.Context, guildID string) (Teardown, error) {
	sess, ok := s.Get(guildID)
	if !ok {
		return Teardown{}, nil
	}
	if !sess.closing.CompareAndSwap(false, true) {
		return Teardown{}, nil
	}

	sess.mu.Lock()
	sess.closed = true
	td := Teardown{Destroyed: true, NowPlaying: sess.nowPlaying}
	sess.nowPlaying = presenter.Ref{}
	err := s.engine.Disconnect(ctx, guildID)
	sess.mu.Unlock()

	s.remove(guildID, sess)

	if err != nil {
		zlog.Warn().Msgf("disconnect failed, session removed anyway: guild=%s error=%v", guildID, err)
		return td, errors.Wrapf(err, "failed to disconnect: guild=%s", guildID)
	}
	zlog.Info().Msgf("session destroyed: guild=%s", guildID)
	return td, nil
}

// remove deletes the entry only if it still holds sess.
func (s *Store) remove(guildID string, sess *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if current, ok := s.sessions[guildID]; ok && current == sess {
		delete(s.sessions, guildID)
	}
}

// Len returns the number of sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// GuildIDs returns the guilds that have a session.
func (s *Store) GuildIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	return ids
}

// DestroyAll tears down every session, typically on shutdown.
func (s *Store) DestroyAll(ctx context.Context) []Teardown {
	var teardowns []Teardown
	for _, id := range s.GuildIDs() {
		td, err := s.Destroy(ctx, id)
		if err != nil {
			zlog.Warn().Msgf("failed to destroy session on shutdown: guild=%s error=%v", id, err)
		}
		if td.Destroyed {
			teardowns = append(teardowns, td)
		}
	}
	return teardowns
}
