package session

import "strings"

// LoopMode represents the repeat policy of a session.
type LoopMode int

const (
	LoopOff   LoopMode = iota // Play the queue once
	LoopTrack                 // Repeat the current track
	LoopQueue                 // Rotate finished tracks to the queue tail
)

// String returns the string representation of the loop mode.
func (m LoopMode) String() string {
	switch m {
	case LoopOff:
		return "off"
	case LoopTrack:
		return "track"
	case LoopQueue:
		return "queue"
	default:
		return "unknown"
	}
}

// Next returns the mode after m in the cycle off, track, queue.
func (m LoopMode) Next() LoopMode {
	switch m {
	case LoopOff:
		return LoopTrack
	case LoopTrack:
		return LoopQueue
	default:
		return LoopOff
	}
}

// ParseLoopMode parses a user supplied loop mode.
func ParseLoopMode(s string) (LoopMode, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "off", "none", "disable":
		return LoopOff, true
	case "track", "song", "one":
		return LoopTrack, true
	case "queue", "all":
		return LoopQueue, true
	default:
		return LoopOff, false
	}
}
