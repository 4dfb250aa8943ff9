// Package track provides the Track domain entity.
package track

import (
	"fmt"
	"strings"
	"time"
)

// Track represents a playable track resolved by the media engine.
// All fields except RequesterID are a snapshot taken at resolution time.
type Track struct {
	Encoded     string        // Engine-specific opaque track handle
	Identifier  string        // Source identifier (e.g. video ID)
	Title       string        // Track title
	Author      string        // Author or artist
	URI         string        // Source URL
	ArtworkURL  string        // Artwork URL
	SourceName  string        // Source name reported by the engine (youtube, soundcloud, ...)
	Duration    time.Duration // Track length
	IsStream    bool          // Live stream flag
	RequesterID string        // User who enqueued the track
}

// WithRequester returns a copy of the track owned by requesterID.
// A track that already has a requester keeps it.
func (t Track) WithRequester(requesterID string) Track {
	if t.RequesterID == "" {
		t.RequesterID = requesterID
	}
	return t
}

// Key identifies the track for de-duplication and stale-event checks.
func (t Track) Key() string {
	if t.Encoded != "" {
		return t.Encoded
	}
	if t.URI != "" {
		return t.URI
	}
	return t.Identifier
}

// SearchTerm returns a plain "title author" search string.
func (t Track) SearchTerm() string {
	return strings.TrimSpace(t.Title + " " + t.Author)
}

// LoadType represents the kind of result returned by a resolution.
type LoadType int

const (
	LoadTypeTrack LoadType = iota
	LoadTypePlaylist
	LoadTypeSearch
	LoadTypeEmpty
	LoadTypeError
)

// String returns the string representation of the load type.
func (t LoadType) String() string {
	switch t {
	case LoadTypeTrack:
		return "track"
	case LoadTypePlaylist:
		return "playlist"
	case LoadTypeSearch:
		return "search"
	case LoadTypeEmpty:
		return "empty"
	case LoadTypeError:
		return "error"
	default:
		return "unknown"
	}
}

// LoadResult is the outcome of resolving a query against the engine.
type LoadResult struct {
	Type         LoadType
	Tracks       []Track
	PlaylistName string // Set when Type is LoadTypePlaylist
}

// Playable reports whether the result carries at least one track.
func (r *LoadResult) Playable() bool {
	if r == nil {
		return false
	}
	if r.Type == LoadTypeEmpty || r.Type == LoadTypeError {
		return false
	}
	return len(r.Tracks) > 0
}

// Selected returns the tracks a play request enqueues: every track of a
// playlist, otherwise only the first match.
func (r *LoadResult) Selected() []Track {
	if !r.Playable() {
		return nil
	}
	if r.Type == LoadTypePlaylist {
		out := make([]Track, len(r.Tracks))
		copy(out, r.Tracks)
		return out
	}
	return []Track{r.Tracks[0]}
}

// FormatDuration renders a track length as m:ss or h:mm:ss.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	hours := total / 3600
	minutes := (total / 60) % 60
	seconds := total % 60
	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%d:%02d", minutes, seconds)
}

// FormatLength renders the length of t, or LIVE for streams.
func FormatLength(t Track) string {
	if t.IsStream {
		return "LIVE"
	}
	return FormatDuration(t.Duration)
}

// FormatUptime renders an elapsed time as "1d 2h 3m 4s", omitting zero parts.
func FormatUptime(d time.Duration) string {
	total := int64(d / time.Second)
	days := total / 86400
	hours := (total / 3600) % 24
	minutes := (total / 60) % 60
	seconds := total % 60

	var parts []string
	if days > 0 {
		parts = append(parts, fmt.Sprintf("%dd", days))
	}
	if hours > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	if minutes > 0 {
		parts = append(parts, fmt.Sprintf("%dm", minutes))
	}
	if seconds > 0 {
		parts = append(parts, fmt.Sprintf("%ds", seconds))
	}
	if len(parts) == 0 {
		return "0s"
	}
	return strings.Join(parts, " ")
}
