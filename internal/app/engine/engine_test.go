package engine

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
)

func TestEndReason_Advances(t *testing.T) {
	tests := []struct {
		reason   EndReason
		expected bool
	}{
		{EndReasonFinished, true},
		{EndReasonLoadFailed, true},
		{EndReasonStopped, true},
		{EndReasonReplaced, false},
		{EndReasonCleanup, false},
		{EndReason("other"), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.reason), func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.reason.Advances())
		})
	}
}

func TestStatus(t *testing.T) {
	s := NewStatus()
	assert.False(t, s.Online())
	assert.True(t, errors.Is(s.Check(), ErrEngineOffline))

	assert.True(t, s.Set(true), "offline to online is a change")
	assert.False(t, s.Set(true), "online to online is not a change")
	assert.True(t, s.Online())
	assert.NoError(t, s.Check())

	assert.True(t, s.Set(false))
	assert.False(t, s.Online())
}

func TestResolutionFailed(t *testing.T) {
	cause := errors.New("http 500")
	err := ResolutionFailed(cause, "ytmsearch:song")
	assert.True(t, errors.Is(err, ErrResolutionFailed))
	assert.True(t, errors.Is(err, cause))
	assert.Contains(t, err.Error(), "ytmsearch:song")

	err = ResolutionFailed(nil, "nothing")
	assert.True(t, errors.Is(err, ErrResolutionFailed))
}

func TestEventType_String(t *testing.T) {
	assert.Equal(t, "track_start", EventTrackStart.String())
	assert.Equal(t, "queue_end", EventQueueEnd.String())
	assert.Equal(t, "unknown", EventType(99).String())
}
