package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/osa030/drum/internal/app/engine/mocks"
	"github.com/osa030/drum/internal/app/presenter"
)

func newTestStore(t *testing.T) (*Store, *mocks.MockEngine) {
	t.Helper()
	ctrl := gomock.NewController(t)
	eng := mocks.NewMockEngine(ctrl)
	return NewStore(eng), eng
}

func TestStore_Create(t *testing.T) {
	store, eng := newTestStore(t)
	eng.EXPECT().Connect(gomock.Any(), testGuild, "voice", "text").Return(nil).Times(1)

	sess, err := store.Create(context.Background(), testGuild, "voice", "text")
	require.NoError(t, err)
	assert.Equal(t, testGuild, sess.GuildID())
	assert.Equal(t, "text", sess.TextChannelID())

	got, ok := store.Get(testGuild)
	require.True(t, ok)
	assert.Same(t, sess, got)
	assert.Equal(t, 1, store.Len())
}

func TestStore_CreateExistingFails(t *testing.T) {
	store, eng := newTestStore(t)
	eng.EXPECT().Connect(gomock.Any(), testGuild, gomock.Any(), gomock.Any()).Return(nil).Times(1)

	_, err := store.Create(context.Background(), testGuild, "voice", "text")
	require.NoError(t, err)

	_, err = store.Create(context.Background(), testGuild, "other", "text")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAlreadyConnected))
	assert.Equal(t, 1, store.Len())
}

func TestStore_ConcurrentCreateSingleWinner(t *testing.T) {
	store, eng := newTestStore(t)
	eng.EXPECT().Connect(gomock.Any(), testGuild, gomock.Any(), gomock.Any()).Return(nil).Times(1)

	const callers = 16
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Create(context.Background(), testGuild, "voice", "text")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t, errors.Is(err, ErrAlreadyConnected))
	}
	assert.Equal(t, 1, succeeded)
}

func TestStore_CreateConnectFailure(t *testing.T) {
	store, eng := newTestStore(t)
	gomock.InOrder(
		eng.EXPECT().Connect(gomock.Any(), testGuild, gomock.Any(), gomock.Any()).Return(errors.New("voice timeout")),
		eng.EXPECT().Connect(gomock.Any(), testGuild, gomock.Any(), gomock.Any()).Return(nil),
	)

	_, err := store.Create(context.Background(), testGuild, "voice", "text")
	require.Error(t, err)
	_, ok := store.Get(testGuild)
	assert.False(t, ok, "failed session must not stay registered")

	_, err = store.Create(context.Background(), testGuild, "voice", "text")
	require.NoError(t, err, "guild can be connected again")
}

func TestStore_DestroyIsIdempotent(t *testing.T) {
	store, eng := newTestStore(t)
	eng.EXPECT().Connect(gomock.Any(), testGuild, gomock.Any(), gomock.Any()).Return(nil)
	eng.EXPECT().Disconnect(gomock.Any(), testGuild).Return(nil).Times(1)

	sess, err := store.Create(context.Background(), testGuild, "voice", "text")
	require.NoError(t, err)
	sess.SetNowPlaying(presenter.Ref{ChannelID: "text", MessageID: "np"})

	td, err := store.Destroy(context.Background(), testGuild)
	require.NoError(t, err)
	assert.True(t, td.Destroyed)
	assert.Equal(t, "np", td.NowPlaying.MessageID)

	td, err = store.Destroy(context.Background(), testGuild)
	require.NoError(t, err)
	assert.False(t, td.Destroyed)

	_, ok := store.Get(testGuild)
	assert.False(t, ok)
	assert.True(t, errors.Is(sess.Pause(context.Background(), true), ErrNoActiveSession))
}

func TestStore_ConcurrentDestroySingleDisconnect(t *testing.T) {
	store, eng := newTestStore(t)
	eng.EXPECT().Connect(gomock.Any(), testGuild, gomock.Any(), gomock.Any()).Return(nil)
	eng.EXPECT().Disconnect(gomock.Any(), testGuild).DoAndReturn(func(context.Context, string) error {
		time.Sleep(10 * time.Millisecond)
		return nil
	}).Times(1)

	_, err := store.Create(context.Background(), testGuild, "voice", "text")
	require.NoError(t, err)

	const callers = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	destroyed := 0
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			td, err := store.Destroy(context.Background(), testGuild)
			assert.NoError(t, err)
			if td.Destroyed {
				mu.Lock()
				destroyed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, destroyed)
	assert.Equal(t, 0, store.Len())
}

func TestStore_DestroyMissingIsNoop(t *testing.T) {
	store, _ := newTestStore(t)

	td, err := store.Destroy(context.Background(), "nope")
	require.NoError(t, err)
	assert.False(t, td.Destroyed)
}

func TestStore_DestroyDisconnectErrorStillRemoves(t *testing.T) {
	store, eng := newTestStore(t)
	eng.EXPECT().Connect(gomock.Any(), testGuild, gomock.Any(), gomock.Any()).Return(nil)
	eng.EXPECT().Disconnect(gomock.Any(), testGuild).Return(errors.New("node gone"))

	_, err := store.Create(context.Background(), testGuild, "voice", "text")
	require.NoError(t, err)

	td, err := store.Destroy(context.Background(), testGuild)
	require.Error(t, err)
	assert.True(t, td.Destroyed)
	_, ok := store.Get(testGuild)
	assert.False(t, ok)
}

func TestStore_GuildsAreIndependent(t *testing.T) {
	store, eng := newTestStore(t)
	release := make(chan struct{})

	eng.EXPECT().Connect(gomock.Any(), "slow", gomock.Any(), gomock.Any()).DoAndReturn(
		func(context.Context, string, string, string) error {
			<-release
			return nil
		})
	eng.EXPECT().Connect(gomock.Any(), "fast", gomock.Any(), gomock.Any()).Return(nil)

	slowDone := make(chan error, 1)
	go func() {
		_, err := store.Create(context.Background(), "slow", "v", "t")
		slowDone <- err
	}()

	// The slow guild is registered (and locked) while connecting.
	require.Eventually(t, func() bool {
		_, ok := store.Get("slow")
		return ok
	}, time.Second, time.Millisecond)

	_, err := store.Create(context.Background(), "fast", "v", "t")
	require.NoError(t, err, "another guild is not blocked by a pending connect")

	close(release)
	require.NoError(t, <-slowDone)
	assert.Equal(t, 2, store.Len())
}

func TestStore_DestroyAll(t *testing.T) {
	store, eng := newTestStore(t)
	eng.EXPECT().Connect(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).Times(2)
	eng.EXPECT().Disconnect(gomock.Any(), gomock.Any()).Return(nil).Times(2)

	_, err := store.Create(context.Background(), "g1", "v", "t")
	require.NoError(t, err)
	_, err = store.Create(context.Background(), "g2", "v", "t")
	require.NoError(t, err)

	teardowns := store.DestroyAll(context.Background())
	assert.Len(t, teardowns, 2)
	assert.Equal(t, 0, store.Len())
}
