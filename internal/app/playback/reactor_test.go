package playback

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"github.com/osa030/drum/internal/app/autoplay"
	"github.com/osa030/drum/internal/app/engine"
	engmocks "github.com/osa030/drum/internal/app/engine/mocks"
	"github.com/osa030/drum/internal/app/notification"
	"github.com/osa030/drum/internal/app/presenter"
	premocks "github.com/osa030/drum/internal/app/presenter/mocks"
	"github.com/osa030/drum/internal/app/session"
	"github.com/osa030/drum/internal/domain/track"
)

const guild = "100000000000000001"

func tr(name string) track.Track {
	return track.Track{Encoded: "enc-" + name, Identifier: name, Title: name, Author: "artist"}
}

type stubAutoplay struct {
	cand autoplay.Candidate
	err  error
	seed track.Track
}

func (s *stubAutoplay) Next(_ context.Context, seed track.Track, _ []track.Track) (autoplay.Candidate, error) {
	s.seed = seed
	return s.cand, s.err
}

type recorder struct {
	mu    sync.Mutex
	types []notification.Type
}

func (r *recorder) Send(n *notification.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types = append(r.types, n.Type)
	return nil
}

func (r *recorder) seen() []notification.Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notification.Type(nil), r.types...)
}

type ReactorSuite struct {
	suite.Suite
	ctx      context.Context
	eng      *engmocks.MockEngine
	pres     *premocks.MockPresenter
	store    *session.Store
	status   *engine.Status
	notes    *recorder
	autoplay *stubAutoplay
	reactor  *Reactor
	events   chan engine.Event
	sess     *session.Session
}

func TestReactorSuite(t *testing.T) {
	suite.Run(t, new(ReactorSuite))
}

func (s *ReactorSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.ctx = context.Background()
	s.eng = engmocks.NewMockEngine(ctrl)
	s.pres = premocks.NewMockPresenter(ctrl)
	s.store = session.NewStore(s.eng)
	s.status = engine.NewStatus()
	s.notes = &recorder{}
	s.autoplay = &stubAutoplay{err: autoplay.ErrNoCandidate}
	s.events = make(chan engine.Event, 8)

	notifier := notification.NewManager()
	notifier.Subscribe(s.notes)

	s.reactor = NewReactor(Config{
		Events:    s.events,
		Store:     s.store,
		Status:    s.status,
		Presenter: s.pres,
		Notifier:  notifier,
		Autoplay:  s.autoplay,
	})

	s.eng.EXPECT().Connect(gomock.Any(), guild, "voice", "text").Return(nil)
	sess, err := s.store.Create(s.ctx, guild, "voice", "text")
	s.Require().NoError(err)
	s.sess = sess
}

// playing starts current and queues the rest.
func (s *ReactorSuite) playing(current track.Track, queue ...track.Track) {
	s.eng.EXPECT().Play(gomock.Any(), guild, current.WithRequester("user")).Return(nil)
	_, err := s.sess.Enqueue(s.ctx, append([]track.Track{current}, queue...), "user")
	s.Require().NoError(err)
}

func (s *ReactorSuite) end(t track.Track, reason engine.EndReason) {
	s.reactor.handle(s.ctx, engine.Event{Type: engine.EventTrackEnd, GuildID: guild, Track: &t, Reason: reason})
}

func (s *ReactorSuite) TestTrackStartSendsNowPlaying() {
	a := tr("a").WithRequester("user")
	s.playing(a)

	old := presenter.Ref{ChannelID: "text", MessageID: "old"}
	s.sess.SetNowPlaying(old)

	ref := presenter.Ref{ChannelID: "text", MessageID: "np"}
	s.pres.EXPECT().SendNowPlaying(gomock.Any(), "text", gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, np presenter.NowPlaying) (presenter.Ref, error) {
			s.Equal("a", np.Track.Title)
			s.Equal(100, np.Volume)
			return ref, nil
		})
	s.pres.EXPECT().DisableControls(gomock.Any(), old).Return(nil)

	s.reactor.handle(s.ctx, engine.Event{Type: engine.EventTrackStart, GuildID: guild, Track: &a})

	s.Equal(ref, s.sess.TakeNowPlaying())
	s.Equal(uint64(1), s.reactor.TracksStarted())
	s.Contains(s.notes.seen(), notification.TypeTrackStarted)
}

func (s *ReactorSuite) TestStaleTrackStartIgnored() {
	s.playing(tr("a"))
	stale := tr("zzz")

	s.reactor.handle(s.ctx, engine.Event{Type: engine.EventTrackStart, GuildID: guild, Track: &stale})
	s.Equal(uint64(0), s.reactor.TracksStarted())
}

func (s *ReactorSuite) TestSkipDuringNowPlayingSendDisablesControls() {
	a := tr("a").WithRequester("user")
	s.playing(a, tr("b"))

	ref := presenter.Ref{ChannelID: "text", MessageID: "np-a"}
	gomock.InOrder(
		s.pres.EXPECT().SendNowPlaying(gomock.Any(), "text", gomock.Any()).
			DoAndReturn(func(ctx context.Context, _ string, _ presenter.NowPlaying) (presenter.Ref, error) {
				s.eng.EXPECT().Stop(gomock.Any(), guild).Return(nil)
				_, detached, err := s.sess.Skip(ctx)
				s.Require().NoError(err)
				s.True(detached.IsZero())
				return ref, nil
			}),
		s.pres.EXPECT().DisableControls(gomock.Any(), ref).Return(nil),
	)

	s.reactor.handle(s.ctx, engine.Event{Type: engine.EventTrackStart, GuildID: guild, Track: &a})

	s.True(s.sess.TakeNowPlaying().IsZero())
}

func (s *ReactorSuite) TestTrackEndPlaysNext() {
	a, b := tr("a"), tr("b")
	s.playing(a, b)
	npRef := presenter.Ref{ChannelID: "text", MessageID: "np-a"}
	s.sess.SetNowPlaying(npRef)

	gomock.InOrder(
		s.eng.EXPECT().Play(gomock.Any(), guild, b.WithRequester("user")).Return(nil),
		s.pres.EXPECT().DisableControls(gomock.Any(), npRef).Return(nil),
	)

	s.end(a.WithRequester("user"), engine.EndReasonFinished)

	snap := s.sess.Snapshot()
	s.Require().NotNil(snap.Current)
	s.Equal("b", snap.Current.Title)
}

func (s *ReactorSuite) TestReplacedEndIgnored() {
	a := tr("a")
	s.playing(a)
	s.end(a, engine.EndReasonReplaced)
	s.NotNil(s.sess.Snapshot().Current)
}

func (s *ReactorSuite) TestQueueEndDestroysSession() {
	a := tr("a").WithRequester("user")
	s.playing(a)
	npRef := presenter.Ref{ChannelID: "text", MessageID: "np-a"}
	s.sess.SetNowPlaying(npRef)

	gomock.InOrder(
		s.pres.EXPECT().DisableControls(gomock.Any(), npRef).Return(nil),
		s.pres.EXPECT().SendNotice(gomock.Any(), "text", "Queue ended. Leaving voice channel.").Return(nil),
		s.eng.EXPECT().Disconnect(gomock.Any(), guild).Return(nil),
	)

	s.end(a, engine.EndReasonFinished)

	_, ok := s.store.Get(guild)
	s.False(ok)
	s.Contains(s.notes.seen(), notification.TypeQueueEnded)
	s.Contains(s.notes.seen(), notification.TypeSessionClosed)
}

func (s *ReactorSuite) TestQueueEndStays247() {
	a := tr("a").WithRequester("user")
	s.playing(a)
	on, err := s.sess.Toggle247()
	s.Require().NoError(err)
	s.Require().True(on)

	s.pres.EXPECT().SendNotice(gomock.Any(), "text", gomock.Any()).Return(nil)

	s.end(a, engine.EndReasonFinished)

	got, ok := s.store.Get(guild)
	s.Require().True(ok)
	s.Nil(got.Snapshot().Current)
}

func (s *ReactorSuite) TestQueueEndEvent() {
	s.pres.EXPECT().SendNotice(gomock.Any(), "text", gomock.Any()).Return(nil)
	s.eng.EXPECT().Disconnect(gomock.Any(), guild).Return(nil)

	s.reactor.handle(s.ctx, engine.Event{Type: engine.EventQueueEnd, GuildID: guild})

	_, ok := s.store.Get(guild)
	s.False(ok)
}

func (s *ReactorSuite) TestAutoplayContinues() {
	a := tr("a").WithRequester("user")
	s.playing(a)
	_, err := s.sess.ToggleAutoplay()
	s.Require().NoError(err)

	next := tr("similar")
	s.autoplay.err = nil
	s.autoplay.cand = autoplay.Candidate{Track: next, DisplayName: "Last.fm"}

	s.eng.EXPECT().Play(gomock.Any(), guild, next.WithRequester(AutoplayRequester)).Return(nil)
	s.pres.EXPECT().SendNotice(gomock.Any(), "text", gomock.Any()).Return(nil)

	s.end(a, engine.EndReasonFinished)

	s.Equal("a", s.autoplay.seed.Title)
	snap := s.sess.Snapshot()
	s.Require().NotNil(snap.Current)
	s.Equal("similar", snap.Current.Title)
	s.Equal(AutoplayRequester, snap.Current.RequesterID)
}

func (s *ReactorSuite) TestAutoplayEmptyFallsBackToQueueEnd() {
	a := tr("a").WithRequester("user")
	s.playing(a)
	_, err := s.sess.ToggleAutoplay()
	s.Require().NoError(err)

	s.pres.EXPECT().SendNotice(gomock.Any(), "text", "Queue ended. Leaving voice channel.").Return(nil)
	s.eng.EXPECT().Disconnect(gomock.Any(), guild).Return(nil)

	s.end(a, engine.EndReasonFinished)

	_, ok := s.store.Get(guild)
	s.False(ok)
}

func (s *ReactorSuite) TestPlayFailureSkipsToNextTrack() {
	a, b, c := tr("a"), tr("b"), tr("c")
	s.playing(a, b, c)

	gomock.InOrder(
		s.eng.EXPECT().Play(gomock.Any(), guild, b.WithRequester("user")).Return(errors.New("bad track")),
		s.eng.EXPECT().Play(gomock.Any(), guild, c.WithRequester("user")).Return(nil),
	)
	s.pres.EXPECT().SendNotice(gomock.Any(), "text", gomock.Any()).Return(nil)

	s.end(a.WithRequester("user"), engine.EndReasonLoadFailed)

	snap := s.sess.Snapshot()
	s.Require().NotNil(snap.Current)
	s.Equal("c", snap.Current.Title)
}

func (s *ReactorSuite) TestNodeStatus() {
	s.reactor.handle(s.ctx, engine.Event{Type: engine.EventNodeConnect, Node: "main"})
	s.True(s.status.Online())

	s.reactor.handle(s.ctx, engine.Event{Type: engine.EventNodeError, Node: "main", Err: errors.New("refused")})
	s.False(s.status.Online())

	s.reactor.handle(s.ctx, engine.Event{Type: engine.EventNodeConnect, Node: "main"})
	s.reactor.handle(s.ctx, engine.Event{Type: engine.EventNodeDisconnect, Node: "main"})
	s.False(s.status.Online())
	s.True(errors.Is(s.status.Check(), engine.ErrEngineOffline))
}

func (s *ReactorSuite) TestEventsForUnknownGuildIgnored() {
	x := tr("x")
	s.reactor.handle(s.ctx, engine.Event{Type: engine.EventTrackStart, GuildID: "other", Track: &x})
	s.reactor.handle(s.ctx, engine.Event{Type: engine.EventTrackEnd, GuildID: "other", Track: &x, Reason: engine.EndReasonFinished})
	s.reactor.handle(s.ctx, engine.Event{Type: engine.EventQueueEnd, GuildID: "other"})
}

func TestReactor_RunStopsOnClose(t *testing.T) {
	events := make(chan engine.Event, 1)
	status := engine.NewStatus()
	r := NewReactor(Config{Events: events, Status: status})

	go r.Run(context.Background())
	events <- engine.Event{Type: engine.EventNodeConnect, Node: "main"}
	close(events)

	select {
	case <-r.Done():
	case <-time.After(time.Second):
		t.Fatal("reactor did not stop")
	}
	assert.True(t, status.Online())
}

func TestReactor_RunStopsOnCancel(t *testing.T) {
	r := NewReactor(Config{Events: make(chan engine.Event), Status: engine.NewStatus()})
	ctx, cancel := context.WithCancel(context.Background())

	go r.Run(ctx)
	cancel()

	select {
	case <-r.Done():
	case <-time.After(time.Second):
		require.FailNow(t, "reactor did not stop")
	}
}
