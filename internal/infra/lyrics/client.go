// Package lyrics provides a client for lrclib-compatible lyrics APIs.
package lyrics

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
)

// ErrNotFound is returned when no lyrics match the query.
var ErrNotFound = errors.New("lyrics not found")

const defaultBaseURL = "https://lrclib.net"

// Client is a lyrics API client.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
}

// Config represents lyrics client configuration.
type Config struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
}

// Result represents one lyrics match.
type Result struct {
	TrackName    string  `json:"trackName"`
	ArtistName   string  `json:"artistName"`
	AlbumName    string  `json:"albumName"`
	Duration     float64 `json:"duration"`
	Instrumental bool    `json:"instrumental"`
	PlainLyrics  string  `json:"plainLyrics"`
}

// New creates a new lyrics client.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "drum"
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		userAgent:  cfg.UserAgent,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// Search looks up lyrics by free-text query. Instrumental matches and
// matches without plain lyrics are dropped.
func (c *Client) Search(ctx context.Context, query string) ([]Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("query is required")
	}

	reqURL := c.baseURL + "/api/search?" + url.Values{"q": {query}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to send request")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, errors.Wrapf(ErrNotFound, "query=%s", query)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("lyrics API returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read response body")
	}

	var raw []Result
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, errors.Wrap(err, "failed to parse response")
	}

	results := make([]Result, 0, len(raw))
	for _, r := range raw {
		if r.Instrumental || strings.TrimSpace(r.PlainLyrics) == "" {
			continue
		}
		results = append(results, r)
	}
	if len(results) == 0 {
		return nil, errors.Wrapf(ErrNotFound, "query=%s", query)
	}

	zlog.Debug().Msgf("lyrics found: query=%s matches=%d", query, len(results))
	return results, nil
}

// Best returns the first match for query.
func (c *Client) Best(ctx context.Context, query string) (Result, error) {
	results, err := c.Search(ctx, query)
	if err != nil {
		return Result{}, err
	}
	return results[0], nil
}

// Truncate shortens lyrics to at most limit runes, marking the cut.
func Truncate(text string, limit int) string {
	const marker = "\n..."
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	if limit <= len(marker) {
		return string(runes[:limit])
	}
	return string(runes[:limit-len(marker)]) + marker
}
