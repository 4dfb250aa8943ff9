package engine

import "github.com/osa030/drum/internal/domain/track"

// EventType represents an engine lifecycle event type.
type EventType int

const (
	EventNodeConnect    EventType = iota // Node control link established
	EventNodeError                       // Node reported an error
	EventNodeDisconnect                  // Node control link lost
	EventTrackStart                      // Track started playing
	EventTrackEnd                        // Track ended
	EventTrackException                  // Track failed while playing
	EventQueueEnd                        // Nothing left to play
)

// String returns the string representation of the event type.
func (e EventType) String() string {
	switch e {
	case EventNodeConnect:
		return "node_connect"
	case EventNodeError:
		return "node_error"
	case EventNodeDisconnect:
		return "node_disconnect"
	case EventTrackStart:
		return "track_start"
	case EventTrackEnd:
		return "track_end"
	case EventTrackException:
		return "track_exception"
	case EventQueueEnd:
		return "queue_end"
	default:
		return "unknown"
	}
}

// EndReason is the reason a track ended.
type EndReason string

const (
	EndReasonFinished   EndReason = "finished"
	EndReasonLoadFailed EndReason = "loadFailed"
	EndReasonStopped    EndReason = "stopped"
	EndReasonReplaced   EndReason = "replaced"
	EndReasonCleanup    EndReason = "cleanup"
)

// Advances reports whether the queue should move on after this end reason.
// Replaced and cleanup ends are caused by our own play or disconnect calls.
func (r EndReason) Advances() bool {
	switch r {
	case EndReasonFinished, EndReasonLoadFailed, EndReasonStopped:
		return true
	default:
		return false
	}
}

// Event represents an engine lifecycle event.
type Event struct {
	Type    EventType
	Node    string       // Node name for node events
	GuildID string       // Guild for track and queue events
	Track   *track.Track // Track for track events
	Reason  EndReason    // Set for EventTrackEnd
	Err     error        // Set for EventNodeError and EventTrackException
}
