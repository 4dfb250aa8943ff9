package notification

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_BroadcastAssignsSequence(t *testing.T) {
	m := NewManager()

	var mu sync.Mutex
	var got []uint64
	m.Subscribe(StreamFunc(func(n *Notification) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, n.SequenceNo)
		return nil
	}))

	m.Broadcast(Notification{Type: TypeTrackStarted, GuildID: "g"})
	m.Broadcast(Notification{Type: TypeQueueEnded, GuildID: "g"})

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []uint64{1, 2}, got)
}

func TestManager_BroadcastFansOut(t *testing.T) {
	m := NewManager()

	received := make(chan Type, 2)
	for i := 0; i < 2; i++ {
		m.Subscribe(StreamFunc(func(n *Notification) error {
			received <- n.Type
			return nil
		}))
	}
	assert.Equal(t, 2, m.SubscriberCount())

	m.Broadcast(Notification{Type: TypeSessionClosed})
	require.Len(t, received, 2)
	assert.Equal(t, TypeSessionClosed, <-received)
}

func TestManager_SlowSubscriberDoesNotBlock(t *testing.T) {
	m := NewManager()
	m.sendTimeout = 20 * time.Millisecond

	release := make(chan struct{})
	defer close(release)
	m.Subscribe(StreamFunc(func(*Notification) error {
		<-release
		return nil
	}))

	start := time.Now()
	m.Broadcast(Notification{Type: TypeTrackStarted})
	assert.Less(t, time.Since(start), time.Second)
}

func TestManager_Unsubscribe(t *testing.T) {
	m := NewManager()
	id := m.Subscribe(StreamFunc(func(*Notification) error { return nil }))
	m.Unsubscribe(id)
	assert.Equal(t, 0, m.SubscriberCount())

	m.Subscribe(StreamFunc(func(*Notification) error { return nil }))
	m.Close()
	assert.Equal(t, 0, m.SubscriberCount())
}

func TestType_String(t *testing.T) {
	assert.Equal(t, "track_started", TypeTrackStarted.String())
	assert.Equal(t, "engine_status", TypeEngineStatus.String())
	assert.Equal(t, "unknown", Type(42).String())
}
