// Package spotify expands Spotify links into engine search queries.
package spotify

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2/clientcredentials"
)

// ErrEmptyLink is returned when a link resolves to no tracks.
var ErrEmptyLink = errors.New("spotify link has no tracks")

// Client is a Spotify API client.
type Client struct {
	client     *spotify.Client
	market     string
	maxTracks  int
	maxRetries int
	retryDelay time.Duration
}

// Config represents Spotify client configuration.
type Config struct {
	ClientID     string
	ClientSecret string
	Market       string
	MaxTracks    int // Cap for album and playlist expansion
}

// Expansion is the result of expanding a link.
type Expansion struct {
	Kind    Kind
	Name    string   // Album or playlist name; track title for tracks
	Queries []string // "<title> <artist>" per track, in order
}

// New creates a new Spotify client using the client credentials flow.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.New("spotify credentials are required")
	}

	creds := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     spotifyauth.TokenURL,
	}

	// The HTTP client fetches and refreshes the app token on demand.
	client := spotify.New(creds.Client(ctx))

	market := cfg.Market
	if market == "" {
		market = "US"
	}
	maxTracks := cfg.MaxTracks
	if maxTracks <= 0 {
		maxTracks = 100
	}

	return &Client{
		client:     client,
		market:     market,
		maxTracks:  maxTracks,
		maxRetries: 3,
		retryDelay: time.Second,
	}, nil
}

// Expand turns a parsed link into search queries.
func (c *Client) Expand(ctx context.Context, link Link) (*Expansion, error) {
	var (
		exp *Expansion
		err error
	)
	switch link.Kind {
	case KindTrack:
		exp, err = c.expandTrack(ctx, link.ID)
	case KindAlbum:
		exp, err = c.expandAlbum(ctx, link.ID)
	case KindPlaylist:
		exp, err = c.expandPlaylist(ctx, link.ID)
	default:
		return nil, errors.Newf("unsupported spotify link kind: %s", link.Kind)
	}
	if err != nil {
		return nil, err
	}
	if len(exp.Queries) == 0 {
		return nil, errors.Wrapf(ErrEmptyLink, "%s %s", link.Kind, link.ID)
	}

	zlog.Debug().Msgf("expanded spotify link: kind=%s id=%s name=%s tracks=%d", link.Kind, link.ID, exp.Name, len(exp.Queries))
	return exp, nil
}

func (c *Client) expandTrack(ctx context.Context, id string) (*Expansion, error) {
	var result *spotify.FullTrack
	err := c.retry(ctx, func() error {
		t, err := c.client.GetTrack(ctx, spotify.ID(id), spotify.Market(c.market))
		if err != nil {
			return err
		}
		result = t
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to get track")
	}

	return &Expansion{
		Kind:    KindTrack,
		Name:    result.Name,
		Queries: []string{searchTerms(result.Name, result.Artists)},
	}, nil
}

func (c *Client) expandAlbum(ctx context.Context, id string) (*Expansion, error) {
	var album *spotify.FullAlbum
	err := c.retry(ctx, func() error {
		a, err := c.client.GetAlbum(ctx, spotify.ID(id), spotify.Market(c.market))
		if err != nil {
			return err
		}
		album = a
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to get album")
	}

	exp := &Expansion{Kind: KindAlbum, Name: album.Name}
	for _, t := range album.Tracks.Tracks {
		if len(exp.Queries) == c.maxTracks {
			break
		}
		artists := t.Artists
		if len(artists) == 0 {
			artists = album.Artists
		}
		exp.Queries = append(exp.Queries, searchTerms(t.Name, artists))
	}

	// Albums longer than the first page are paged in.
	offset := len(album.Tracks.Tracks)
	for offset < int(album.Tracks.Total) && len(exp.Queries) < c.maxTracks {
		var page *spotify.SimpleTrackPage
		err := c.retry(ctx, func() error {
			p, err := c.client.GetAlbumTracks(ctx, spotify.ID(id),
				spotify.Limit(50),
				spotify.Offset(offset),
				spotify.Market(c.market),
			)
			if err != nil {
				return err
			}
			page = p
			return nil
		})
		if err != nil {
			return nil, errors.Wrap(err, "failed to get album tracks")
		}
		if len(page.Tracks) == 0 {
			break
		}
		for _, t := range page.Tracks {
			if len(exp.Queries) == c.maxTracks {
				break
			}
			exp.Queries = append(exp.Queries, searchTerms(t.Name, t.Artists))
		}
		offset += len(page.Tracks)
	}

	return exp, nil
}

func (c *Client) expandPlaylist(ctx context.Context, id string) (*Expansion, error) {
	var playlist *spotify.FullPlaylist
	err := c.retry(ctx, func() error {
		p, err := c.client.GetPlaylist(ctx, spotify.ID(id), spotify.Fields("name"))
		if err != nil {
			return err
		}
		playlist = p
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to get playlist")
	}

	exp := &Expansion{Kind: KindPlaylist, Name: playlist.Name}
	offset := 0
	limit := 100

	for len(exp.Queries) < c.maxTracks {
		var page *spotify.PlaylistItemPage
		err := c.retry(ctx, func() error {
			p, err := c.client.GetPlaylistItems(ctx, spotify.ID(id),
				spotify.Limit(limit),
				spotify.Offset(offset),
				spotify.Market(c.market),
			)
			if err != nil {
				return err
			}
			page = p
			return nil
		})
		if err != nil {
			return nil, errors.Wrap(err, "failed to get playlist items")
		}

		for _, item := range page.Items {
			if len(exp.Queries) == c.maxTracks {
				break
			}
			// Only process tracks (exclude episodes)
			if item.Track.Track != nil && item.Track.Track.ID != "" {
				exp.Queries = append(exp.Queries, searchTerms(item.Track.Track.Name, item.Track.Track.Artists))
			}
		}

		if len(page.Items) < limit {
			break
		}
		offset += limit
	}

	return exp, nil
}

// searchTerms renders "<title> <first artist>".
func searchTerms(title string, artists []spotify.SimpleArtist) string {
	if len(artists) == 0 || artists[0].Name == "" {
		return title
	}
	return title + " " + artists[0].Name
}

// retry retries an operation with linear backoff.
func (c *Client) retry(ctx context.Context, fn func() error) error {
	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !isRetryable(err) {
			return err
		}

		if i < c.maxRetries-1 {
			select {
			case <-ctx.Done():
				return errors.Wrap(ctx.Err(), "retry cancelled")
			case <-time.After(c.retryDelay * time.Duration(i+1)):
			}
		}
	}
	return errors.Wrap(lastErr, "max retries exceeded")
}

// isRetryable checks if an error is retryable.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	// Rate limit errors and server errors are retryable
	errStr := err.Error()
	return strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "500") ||
		strings.Contains(errStr, "502") ||
		strings.Contains(errStr, "503") ||
		strings.Contains(errStr, "504")
}
