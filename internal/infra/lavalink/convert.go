package lavalink

import (
	"time"

	lv "github.com/disgoorg/disgolink/v3/lavalink"

	"github.com/osa030/drum/internal/domain/track"
)

// toTrack converts a Lavalink track into the domain track.
func toTrack(t lv.Track) track.Track {
	out := track.Track{
		Encoded:    t.Encoded,
		Identifier: t.Info.Identifier,
		Title:      t.Info.Title,
		Author:     t.Info.Author,
		SourceName: t.Info.SourceName,
		Duration:   time.Duration(t.Info.Length) * time.Millisecond,
		IsStream:   t.Info.IsStream,
	}
	if t.Info.URI != nil {
		out.URI = *t.Info.URI
	}
	if t.Info.ArtworkURL != nil {
		out.ArtworkURL = *t.Info.ArtworkURL
	}
	return out
}

func toTracks(ts []lv.Track) []track.Track {
	out := make([]track.Track, len(ts))
	for i, t := range ts {
		out[i] = toTrack(t)
	}
	return out
}

// fromTrack rebuilds the Lavalink track to play. Lavalink only needs the
// encoded form; info is filled for logging on the node side.
func fromTrack(t track.Track) lv.Track {
	out := lv.Track{
		Encoded: t.Encoded,
		Info: lv.TrackInfo{
			Identifier: t.Identifier,
			Title:      t.Title,
			Author:     t.Author,
			SourceName: t.SourceName,
			Length:     lv.Duration(t.Duration / time.Millisecond),
			IsStream:   t.IsStream,
		},
	}
	if t.URI != "" {
		uri := t.URI
		out.Info.URI = &uri
	}
	if t.ArtworkURL != "" {
		art := t.ArtworkURL
		out.Info.ArtworkURL = &art
	}
	return out
}
