package player

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/osa030/drum/internal/app/engine"
	engmocks "github.com/osa030/drum/internal/app/engine/mocks"
	"github.com/osa030/drum/internal/app/filter"
	"github.com/osa030/drum/internal/app/presenter"
	premocks "github.com/osa030/drum/internal/app/presenter/mocks"
	"github.com/osa030/drum/internal/app/selection"
	"github.com/osa030/drum/internal/app/session"
	"github.com/osa030/drum/internal/domain/track"
	"github.com/osa030/drum/internal/infra/lyrics"
	"github.com/osa030/drum/internal/infra/spotify"
)

const guild = "100000000000000001"

var (
	owner    = Invocation{GuildID: guild, ChannelID: "text", UserID: "u1", VoiceChannelID: "voice"}
	stranger = Invocation{GuildID: guild, ChannelID: "text", UserID: "u2", VoiceChannelID: "voice"}
	absent   = Invocation{GuildID: guild, ChannelID: "text", UserID: "u1"}
)

func tr(name string) track.Track {
	return track.Track{Encoded: "enc-" + name, Identifier: name, Title: name, Author: "artist", Duration: 3 * time.Minute}
}

func search(names ...string) *track.LoadResult {
	res := &track.LoadResult{Type: track.LoadTypeSearch}
	for _, n := range names {
		res.Tracks = append(res.Tracks, tr(n))
	}
	return res
}

type fixture struct {
	eng    *engmocks.MockEngine
	pres   *premocks.MockPresenter
	store  *session.Store
	status *engine.Status
	svc    *Service
}

func newFixture(t *testing.T, opts ...func(*Config)) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	f := &fixture{
		eng:    engmocks.NewMockEngine(ctrl),
		pres:   premocks.NewMockPresenter(ctrl),
		status: engine.NewStatus(),
	}
	f.store = session.NewStore(f.eng)
	f.status.Set(true)

	cfg := Config{
		Engine:         f.eng,
		Store:          f.store,
		Status:         f.status,
		Presenter:      f.pres,
		SearchPlatform: "ytmsearch",
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	f.svc = NewService(cfg)
	t.Cleanup(f.svc.Close)
	return f
}

// playing connects the guild and starts current with the rest queued.
func (f *fixture) playing(t *testing.T, current track.Track, queue ...track.Track) *session.Session {
	t.Helper()
	f.eng.EXPECT().Connect(gomock.Any(), guild, "voice", "text").Return(nil)
	f.eng.EXPECT().Play(gomock.Any(), guild, current.WithRequester(owner.UserID)).Return(nil)

	sess, err := f.store.Create(context.Background(), guild, "voice", "text")
	require.NoError(t, err)
	_, err = sess.Enqueue(context.Background(), append([]track.Track{current}, queue...), owner.UserID)
	require.NoError(t, err)
	return sess
}

func TestService_EngineOfflineFailsFast(t *testing.T) {
	f := newFixture(t)
	f.playing(t, tr("a"))
	f.status.Set(false)
	ctx := context.Background()

	// The mock has no further expectations: any engine call fails the test.
	_, err := f.svc.Play(ctx, owner, "song")
	assert.True(t, errors.Is(err, engine.ErrEngineOffline))
	assert.True(t, errors.Is(f.svc.Pause(ctx, owner), engine.ErrEngineOffline))
	_, err = f.svc.Skip(ctx, owner)
	assert.True(t, errors.Is(err, engine.ErrEngineOffline))
	_, err = f.svc.Search(ctx, owner, "song")
	assert.True(t, errors.Is(err, engine.ErrEngineOffline))
	assert.True(t, errors.Is(f.svc.SetVolume(ctx, owner, 50), engine.ErrEngineOffline))
}

func TestService_CheckOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.svc.Pause(ctx, absent)
	assert.True(t, errors.Is(err, session.ErrNoActiveSession), "session is checked before voice presence")

	f.playing(t, tr("a"))
	err = f.svc.Pause(ctx, absent)
	assert.True(t, errors.Is(err, session.ErrNotInVoiceChannel))
	assert.Equal(t, 1, f.store.Len())
}

func TestService_Join(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	assert.True(t, errors.Is(f.svc.Join(ctx, absent), session.ErrNotInVoiceChannel))

	f.eng.EXPECT().Connect(gomock.Any(), guild, "voice", "text").Return(nil)
	require.NoError(t, f.svc.Join(ctx, owner))
	assert.True(t, errors.Is(f.svc.Join(ctx, owner), session.ErrAlreadyConnected))
}

func TestService_PlayCreatesSession(t *testing.T) {
	f := newFixture(t)
	gomock.InOrder(
		f.eng.EXPECT().Resolve(gomock.Any(), "ytmsearch:never gonna").Return(search("a", "b"), nil),
		f.eng.EXPECT().Connect(gomock.Any(), guild, "voice", "text").Return(nil),
		f.eng.EXPECT().Play(gomock.Any(), guild, tr("a").WithRequester("u1")).Return(nil),
	)

	res, err := f.svc.Play(context.Background(), owner, "  never gonna ")
	require.NoError(t, err)
	assert.True(t, res.Started)
	assert.Equal(t, 0, res.Position)
	require.Len(t, res.Added, 1, "a search enqueues only the best match")
	assert.Equal(t, "u1", res.Added[0].RequesterID)
	assert.Equal(t, 1, f.store.Len())
}

func TestService_PlayPlaylistQueuesAll(t *testing.T) {
	f := newFixture(t)
	f.playing(t, tr("x"))

	playlist := &track.LoadResult{Type: track.LoadTypePlaylist, Tracks: []track.Track{tr("a"), tr("b"), tr("c")}, PlaylistName: "Mix"}
	f.eng.EXPECT().Resolve(gomock.Any(), "https://example.com/list").Return(playlist, nil)

	res, err := f.svc.Play(context.Background(), owner, "https://example.com/list")
	require.NoError(t, err)
	assert.False(t, res.Started)
	assert.Equal(t, 1, res.Position)
	assert.Equal(t, "Mix", res.PlaylistName)
	assert.Len(t, res.Added, 3)
}

func TestService_PlayResolutionFailure(t *testing.T) {
	tests := []struct {
		name string
		res  *track.LoadResult
		err  error
	}{
		{name: "empty", res: &track.LoadResult{Type: track.LoadTypeEmpty}},
		{name: "error", err: errors.New("node exploded")},
		{name: "nil result"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.eng.EXPECT().Resolve(gomock.Any(), "ytmsearch:nothing").Return(tt.res, tt.err)

			_, err := f.svc.Play(context.Background(), owner, "nothing")
			require.Error(t, err)
			assert.True(t, errors.Is(err, engine.ErrResolutionFailed))
			assert.Equal(t, 0, f.store.Len(), "no connection for a failed lookup")
		})
	}
}

func TestService_PlayStartFailureAppliesQueueEnd(t *testing.T) {
	tests := []struct {
		name     string
		stay247  bool
		wantLeft bool
	}{
		{name: "leaves", wantLeft: true},
		{name: "24/7 stays connected", stay247: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			f.eng.EXPECT().Connect(gomock.Any(), guild, "voice", "text").Return(nil)
			require.NoError(t, f.svc.Join(ctx, owner))
			if tt.stay247 {
				sess, _ := f.store.Get(guild)
				_, err := sess.Toggle247()
				require.NoError(t, err)
			}

			f.eng.EXPECT().Resolve(gomock.Any(), "ytmsearch:broken").Return(search("a"), nil)
			f.eng.EXPECT().Play(gomock.Any(), guild, tr("a").WithRequester("u1")).Return(errors.New("track unavailable"))
			if tt.wantLeft {
				f.eng.EXPECT().Disconnect(gomock.Any(), guild).Return(nil)
			}

			_, err := f.svc.Play(ctx, owner, "broken")
			require.Error(t, err)
			assert.True(t, errors.Is(err, session.ErrPlaybackFailed))

			sess, ok := f.store.Get(guild)
			assert.Equal(t, !tt.wantLeft, ok)
			if ok {
				snap := sess.Snapshot()
				assert.Nil(t, snap.Current)
				assert.Empty(t, snap.Queue)
			}
		})
	}
}

func TestService_PlayReportsSkippedTracks(t *testing.T) {
	f := newFixture(t)
	playlist := &track.LoadResult{Type: track.LoadTypePlaylist, Tracks: []track.Track{tr("a"), tr("b"), tr("c")}, PlaylistName: "Mix"}
	gomock.InOrder(
		f.eng.EXPECT().Resolve(gomock.Any(), "https://example.com/list").Return(playlist, nil),
		f.eng.EXPECT().Connect(gomock.Any(), guild, "voice", "text").Return(nil),
		f.eng.EXPECT().Play(gomock.Any(), guild, tr("a").WithRequester("u1")).Return(errors.New("track unavailable")),
		f.eng.EXPECT().Play(gomock.Any(), guild, tr("b").WithRequester("u1")).Return(nil),
	)

	res, err := f.svc.Play(context.Background(), owner, "https://example.com/list")
	require.NoError(t, err)
	assert.True(t, res.Started)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, 1, f.store.Len())
}

func TestService_PlayValidation(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Play(context.Background(), owner, "   ")
	assert.True(t, errors.Is(err, ErrEmptyQuery))
	_, err = f.svc.Play(context.Background(), absent, "song")
	assert.True(t, errors.Is(err, session.ErrNotInVoiceChannel))
}

type fakeExpander struct {
	exp *spotify.Expansion
	err error
}

func (e *fakeExpander) Expand(context.Context, spotify.Link) (*spotify.Expansion, error) {
	return e.exp, e.err
}

func TestService_PlaySpotifyLink(t *testing.T) {
	expander := &fakeExpander{exp: &spotify.Expansion{
		Kind:    spotify.KindPlaylist,
		Name:    "Road Trip",
		Queries: []string{"one artist", "missing artist", "three artist"},
	}}
	f := newFixture(t, func(c *Config) { c.Spotify = expander })

	f.eng.EXPECT().Resolve(gomock.Any(), "ytmsearch:one artist").Return(search("one"), nil)
	f.eng.EXPECT().Resolve(gomock.Any(), "ytmsearch:missing artist").Return(&track.LoadResult{Type: track.LoadTypeEmpty}, nil)
	f.eng.EXPECT().Resolve(gomock.Any(), "ytmsearch:three artist").Return(search("three"), nil)
	f.eng.EXPECT().Connect(gomock.Any(), guild, "voice", "text").Return(nil)
	f.eng.EXPECT().Play(gomock.Any(), guild, tr("one").WithRequester("u1")).Return(nil)

	res, err := f.svc.Play(context.Background(), owner, "https://open.spotify.com/playlist/37i9dQZF1DXcBWIGoYBM5M")
	require.NoError(t, err)
	assert.Equal(t, "Road Trip", res.PlaylistName)
	require.Len(t, res.Added, 2)
	assert.Equal(t, "one", res.Added[0].Title)
	assert.Equal(t, "three", res.Added[1].Title)
}

func TestService_PlaySpotifyWithoutClientSearchesText(t *testing.T) {
	f := newFixture(t)
	link := "https://open.spotify.com/track/4uLU6hMCjMI75M1A2tKUQC"
	f.eng.EXPECT().Resolve(gomock.Any(), link).Return(&track.LoadResult{Type: track.LoadTypeEmpty}, nil)

	_, err := f.svc.Play(context.Background(), owner, link)
	assert.True(t, errors.Is(err, engine.ErrResolutionFailed))
}

func TestService_SkipDisablesControlsSynchronously(t *testing.T) {
	f := newFixture(t)
	sess := f.playing(t, tr("a"), tr("b"))
	ref := presenter.Ref{ChannelID: "text", MessageID: "np"}
	sess.SetNowPlaying(ref)

	gomock.InOrder(
		f.eng.EXPECT().Stop(gomock.Any(), guild).Return(nil),
		f.pres.EXPECT().DisableControls(gomock.Any(), ref).Return(nil),
	)

	skipped, err := f.svc.Skip(context.Background(), owner)
	require.NoError(t, err)
	assert.Equal(t, "a", skipped.Title)
	assert.True(t, sess.TakeNowPlaying().IsZero())
}

func TestService_StopDestroysSession(t *testing.T) {
	f := newFixture(t)
	sess := f.playing(t, tr("a"))
	ref := presenter.Ref{ChannelID: "text", MessageID: "np"}
	sess.SetNowPlaying(ref)

	f.eng.EXPECT().Disconnect(gomock.Any(), guild).Return(nil)
	f.pres.EXPECT().DisableControls(gomock.Any(), ref).Return(errors.New("message deleted"))

	require.NoError(t, f.svc.Stop(context.Background(), owner), "UI failures are cosmetic")
	assert.Equal(t, 0, f.store.Len())
	assert.True(t, errors.Is(f.svc.Stop(context.Background(), owner), session.ErrNoActiveSession))
}

func TestService_LeaveWorksOffline(t *testing.T) {
	f := newFixture(t)
	f.playing(t, tr("a"))
	f.status.Set(false)
	f.eng.EXPECT().Disconnect(gomock.Any(), guild).Return(nil)

	require.NoError(t, f.svc.Leave(context.Background(), absent))
	assert.True(t, errors.Is(f.svc.Leave(context.Background(), owner), session.ErrNoActiveSession))
}

func TestService_PauseResume(t *testing.T) {
	f := newFixture(t)
	f.playing(t, tr("a"))
	ctx := context.Background()

	gomock.InOrder(
		f.eng.EXPECT().Pause(gomock.Any(), guild, true).Return(nil),
		f.eng.EXPECT().Pause(gomock.Any(), guild, false).Return(nil),
		f.eng.EXPECT().Pause(gomock.Any(), guild, true).Return(nil),
	)

	require.NoError(t, f.svc.Pause(ctx, owner))
	require.NoError(t, f.svc.Resume(ctx, owner))
	paused, err := f.svc.TogglePause(ctx, owner)
	require.NoError(t, err)
	assert.True(t, paused)
}

func TestService_Volume(t *testing.T) {
	f := newFixture(t)
	f.playing(t, tr("a"))
	ctx := context.Background()

	for _, v := range []int{-1, 101} {
		assert.True(t, errors.Is(f.svc.SetVolume(ctx, owner, v), session.ErrInvalidVolume), "volume=%d", v)
	}

	f.eng.EXPECT().SetVolume(gomock.Any(), guild, 0).Return(nil)
	require.NoError(t, f.svc.SetVolume(ctx, owner, 0))
	vol, err := f.svc.Volume(absent)
	require.NoError(t, err)
	assert.Equal(t, 0, vol)
}

func TestService_Loop(t *testing.T) {
	f := newFixture(t)
	f.playing(t, tr("a"))

	tests := []struct {
		arg     string
		want    session.LoopMode
		wantErr error
	}{
		{arg: "", want: session.LoopTrack},
		{arg: "", want: session.LoopQueue},
		{arg: "", want: session.LoopOff},
		{arg: "queue", want: session.LoopQueue},
		{arg: "OFF", want: session.LoopOff},
		{arg: "sideways", wantErr: ErrInvalidLoopMode},
	}
	for _, tt := range tests {
		got, err := f.svc.Loop(owner, tt.arg)
		if tt.wantErr != nil {
			assert.True(t, errors.Is(err, tt.wantErr))
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "arg=%q", tt.arg)
	}
}

func TestService_QueueEditing(t *testing.T) {
	f := newFixture(t)
	f.playing(t, tr("x"), tr("a"), tr("b"), tr("c"))

	moved, err := f.svc.Move(owner, 1, 3)
	require.NoError(t, err)
	assert.Equal(t, "a", moved.Title)

	view, err := f.svc.Queue(owner)
	require.NoError(t, err)
	titles := make([]string, 0, len(view.Upcoming))
	for _, up := range view.Upcoming {
		titles = append(titles, up.Title)
	}
	assert.Equal(t, []string{"b", "c", "a"}, titles)

	_, err = f.svc.Remove(owner, 4)
	assert.True(t, errors.Is(err, session.ErrOutOfRange))
	removed, err := f.svc.Remove(owner, 1)
	require.NoError(t, err)
	assert.Equal(t, "b", removed.Title)

	n, err := f.svc.Shuffle(owner)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = f.svc.Clear(owner)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	_, err = f.svc.Shuffle(owner)
	assert.True(t, errors.Is(err, session.ErrEmptyQueue))
}

func TestService_QueuePage(t *testing.T) {
	f := newFixture(t)
	queued := make([]track.Track, 0, 13)
	for i := 0; i < 13; i++ {
		queued = append(queued, tr(fmt.Sprintf("t%02d", i)))
	}
	f.playing(t, tr("now"), queued...)

	view, err := f.svc.Queue(owner)
	require.NoError(t, err)
	assert.Equal(t, "now", view.Current.Title)
	assert.Len(t, view.Upcoming, 10)
	assert.Equal(t, 3, view.Remaining)
	assert.Equal(t, 13, view.Total)
}

func TestService_Toggles(t *testing.T) {
	f := newFixture(t)
	f.playing(t, tr("a"))

	on, err := f.svc.Autoplay(owner)
	require.NoError(t, err)
	assert.True(t, on)
	on, err = f.svc.Stay247(owner)
	require.NoError(t, err)
	assert.True(t, on)

	np, err := f.svc.NowPlaying(owner)
	require.NoError(t, err)
	assert.True(t, np.Autoplay)
	assert.Equal(t, "off", np.Loop)
}

func TestService_SearchAndChoose(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	names := make([]string, 0, 15)
	for i := 0; i < 15; i++ {
		names = append(names, fmt.Sprintf("r%d", i))
	}
	f.eng.EXPECT().Resolve(gomock.Any(), "ytmsearch:lofi").Return(search(names...), nil)

	flow, err := f.svc.Search(ctx, owner, "lofi")
	require.NoError(t, err)
	assert.Len(t, flow.Options(), 10)

	_, err = f.svc.ChooseSearch(ctx, stranger, flow.ID(), 0)
	assert.True(t, errors.Is(err, selection.ErrNotFlowOwner))
	assert.Equal(t, selection.OutcomePending, flow.Outcome())

	f.eng.EXPECT().Connect(gomock.Any(), guild, "voice", "text").Return(nil)
	f.eng.EXPECT().Play(gomock.Any(), guild, tr("r2").WithRequester("u1")).Return(nil)

	res, err := f.svc.ChooseSearch(ctx, owner, flow.ID(), 2)
	require.NoError(t, err)
	assert.True(t, res.Started)

	_, err = f.svc.ChooseSearch(ctx, owner, flow.ID(), 3)
	assert.True(t, errors.Is(err, selection.ErrAlreadyResolved))
}

func TestService_SearchExpiryDetachesMenu(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.SearchTimeout = 20 * time.Millisecond })
	f.eng.EXPECT().Resolve(gomock.Any(), "ytmsearch:song").Return(search("a"), nil)

	var detached atomic.Bool
	ref := presenter.Ref{ChannelID: "text", MessageID: "menu"}
	f.pres.EXPECT().DetachSelection(gomock.Any(), ref, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ presenter.Ref, notice string) error {
			assert.True(t, strings.Contains(notice, "timed out"))
			detached.Store(true)
			return nil
		})

	flow, err := f.svc.Search(context.Background(), owner, "song")
	require.NoError(t, err)
	flow.Attach(ref)

	require.Eventually(t, detached.Load, time.Second, 5*time.Millisecond)
	_, err = f.svc.ChooseSearch(context.Background(), owner, flow.ID(), 0)
	assert.Error(t, err)
}

func TestService_Filters(t *testing.T) {
	f := newFixture(t)
	f.playing(t, tr("a"))
	ctx := context.Background()

	flow, err := f.svc.Filters(owner)
	require.NoError(t, err)
	require.Equal(t, len(filter.All()), len(flow.Options()))

	nightcore, err := filter.Lookup("nightcore")
	require.NoError(t, err)
	payload, err := nightcore.Payload()
	require.NoError(t, err)
	idx := -1
	for i, p := range flow.Options() {
		if p.Name == "nightcore" {
			idx = i
		}
	}
	require.GreaterOrEqual(t, idx, 0)

	f.eng.EXPECT().SetFilter(gomock.Any(), guild, payload).Return(nil)
	preset, err := f.svc.ChooseFilter(ctx, owner, flow.ID(), idx)
	require.NoError(t, err)
	assert.Equal(t, "nightcore", preset.Name)

	np, err := f.svc.NowPlaying(owner)
	require.NoError(t, err)
	assert.Equal(t, "nightcore", np.Filter)

	_, err = f.svc.ApplyFilter(ctx, owner, "polka")
	assert.True(t, errors.Is(err, filter.ErrUnknownFilter))

	f.eng.EXPECT().ClearFilters(gomock.Any(), guild).Return(nil)
	require.NoError(t, f.svc.ClearFilter(ctx, owner))
}

type fakeLyrics struct {
	query  string
	result lyrics.Result
	err    error
}

func (l *fakeLyrics) Best(_ context.Context, query string) (lyrics.Result, error) {
	l.query = query
	return l.result, l.err
}

func TestService_Lyrics(t *testing.T) {
	long := strings.Repeat("la ", 2000)
	lyr := &fakeLyrics{result: lyrics.Result{TrackName: "a", ArtistName: "artist", PlainLyrics: long}}
	f := newFixture(t, func(c *Config) { c.Lyrics = lyr })
	ctx := context.Background()

	_, err := f.svc.Lyrics(ctx, owner, "")
	assert.True(t, errors.Is(err, session.ErrNothingPlaying))

	f.playing(t, tr("a"))
	res, err := f.svc.Lyrics(ctx, owner, "")
	require.NoError(t, err)
	assert.Equal(t, "a artist", lyr.query)
	assert.LessOrEqual(t, len([]rune(res.PlainLyrics)), lyricsLimit)

	_, err = f.svc.Lyrics(ctx, owner, "other song")
	require.NoError(t, err)
	assert.Equal(t, "other song", lyr.query)

	disabled := newFixture(t)
	_, err = disabled.svc.Lyrics(ctx, owner, "x")
	assert.True(t, errors.Is(err, ErrLyricsDisabled))
}

type fixedCounter uint64

func (c fixedCounter) TracksStarted() uint64 { return uint64(c) }

func TestService_Stats(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.Counter = fixedCounter(7) })
	f.playing(t, tr("a"))

	st := f.svc.Stats()
	assert.Equal(t, 1, st.ActivePlayers)
	assert.True(t, st.EngineOnline)
	assert.Equal(t, uint64(7), st.TracksStarted)
	assert.GreaterOrEqual(t, st.Uptime, time.Duration(0))
}
