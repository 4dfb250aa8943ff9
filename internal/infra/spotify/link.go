package spotify

import (
	"strings"
)

// Kind is the type of entity a Spotify link points at.
type Kind string

const (
	KindTrack    Kind = "track"
	KindAlbum    Kind = "album"
	KindPlaylist Kind = "playlist"
)

// Link is a parsed Spotify link.
type Link struct {
	Kind Kind
	ID   string
}

var kinds = []Kind{KindTrack, KindAlbum, KindPlaylist}

// ParseLink recognizes open.spotify.com URLs (optionally with an intl-XX
// segment) and spotify:<kind>:<id> URIs.
func ParseLink(input string) (Link, bool) {
	input = strings.TrimSpace(input)
	for _, k := range kinds {
		if id := extractID(input, k); id != "" {
			return Link{Kind: k, ID: id}, true
		}
	}
	return Link{}, false
}

// IsLink reports whether input looks like any Spotify link.
func IsLink(input string) bool {
	input = strings.TrimSpace(input)
	return strings.HasPrefix(input, "spotify:") || strings.Contains(input, "open.spotify.com/")
}

// extractID extracts the id of kind from a Spotify URL or URI, or returns ""
// when input is not such a link.
func extractID(input string, kind Kind) string {
	// Handle Spotify URI format: spotify:<kind>:<id>
	prefix := "spotify:" + string(kind) + ":"
	if strings.HasPrefix(input, prefix) {
		return strings.TrimPrefix(input, prefix)
	}

	// Handle URL format: https://open.spotify.com/<kind>/<id> or https://open.spotify.com/intl-XX/<kind>/<id>
	segment := "/" + string(kind) + "/"
	if strings.Contains(input, "open.spotify.com") && strings.Contains(input, segment) {
		parts := strings.Split(input, segment)
		// Remove query parameters and trailing slashes
		id := strings.Split(parts[len(parts)-1], "?")[0]
		id = strings.TrimRight(id, "/")
		return id
	}

	return ""
}
