package lyrics

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return New(Config{BaseURL: server.URL + "/"})
}

func TestSearch(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/search", r.URL.Path)
		assert.Equal(t, "never gonna give you up", r.URL.Query().Get("q"))
		assert.Equal(t, "drum", r.Header.Get("User-Agent"))

		fmt.Fprint(w, `[
			{"trackName": "Intro", "artistName": "Rick", "instrumental": true, "plainLyrics": ""},
			{"trackName": "Never Gonna Give You Up", "artistName": "Rick Astley", "albumName": "Whenever You Need Somebody", "duration": 213, "plainLyrics": "We're no strangers to love"}
		]`)
	})

	results, err := client.Search(context.Background(), "  never gonna give you up ")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Never Gonna Give You Up", results[0].TrackName)
	assert.Equal(t, "Rick Astley", results[0].ArtistName)
	assert.Equal(t, "Whenever You Need Somebody", results[0].AlbumName)
	assert.Equal(t, "We're no strangers to love", results[0].PlainLyrics)
}

func TestSearch_NotFound(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{name: "empty list", status: http.StatusOK, body: `[]`, wantErr: ErrNotFound},
		{name: "only instrumentals", status: http.StatusOK, body: `[{"instrumental": true}]`, wantErr: ErrNotFound},
		{name: "404", status: http.StatusNotFound, body: `{}`, wantErr: ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			})
			_, err := client.Best(context.Background(), "q")
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr))
		})
	}
}

func TestSearch_ServerError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	_, err := client.Search(context.Background(), "q")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotFound))
}

func TestSearch_EmptyQuery(t *testing.T) {
	_, err := New(Config{}).Search(context.Background(), " ")
	assert.Error(t, err)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))

	long := strings.Repeat("あ", 20)
	got := Truncate(long, 10)
	assert.Equal(t, 10, len([]rune(got)))
	assert.True(t, strings.HasSuffix(got, "\n..."))

	assert.Equal(t, "ab", Truncate("abcdef", 2))
}
