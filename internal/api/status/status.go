// Package status serves the health and statistics endpoints used by
// external monitoring.
package status

import (
	"encoding/json"
	"net/http"
	"time"

	zlog "github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/osa030/drum/internal/app/player"
)

// StatsSource reports playback counters.
type StatsSource interface {
	Stats() player.Stats
}

// BotInfo reports the gateway identity.
type BotInfo interface {
	Tag() string
	Guilds() int
}

// Handler serves the status endpoints.
type Handler struct {
	stats StatsSource
	bot   BotInfo
	mux   *http.ServeMux
}

// NewHandler creates a status handler.
func NewHandler(stats StatsSource, bot BotInfo) *Handler {
	h := &Handler{stats: stats, bot: bot, mux: http.NewServeMux()}
	h.mux.HandleFunc("GET /health", h.health)
	h.mux.HandleFunc("GET /api/stats", h.apiStats)
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

type healthResponse struct {
	Status string `json:"status"`
	Uptime int64  `json:"uptime"`
}

type statsResponse struct {
	Status        string `json:"status"`
	Bot           string `json:"bot"`
	Uptime        int64  `json:"uptime"`
	Servers       int    `json:"servers"`
	ActivePlayers int    `json:"activePlayers"`
	Lavalink      string `json:"lavalink"`
	TracksStarted uint64 `json:"tracksStarted"`
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, healthResponse{Status: "ok", Uptime: h.stats.Stats().Uptime.Milliseconds()})
}

func (h *Handler) apiStats(w http.ResponseWriter, _ *http.Request) {
	st := h.stats.Stats()
	lavalink := "disconnected"
	if st.EngineOnline {
		lavalink = "connected"
	}
	writeJSON(w, statsResponse{
		Status:        "online",
		Bot:           h.bot.Tag(),
		Uptime:        st.Uptime.Milliseconds(),
		Servers:       h.bot.Guilds(),
		ActivePlayers: st.ActivePlayers,
		Lavalink:      lavalink,
		TracksStarted: st.TracksStarted,
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zlog.Warn().Msgf("failed to write status response: error=%v", err)
	}
}

// NewServer creates an HTTP server for h with HTTP/2 cleartext support.
func NewServer(addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h2c.NewHandler(h, &http2.Server{}),
		ReadHeaderTimeout: 5 * time.Second,
	}
}
