// Package main provides the bot entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/drum/internal/api/discord"
	"github.com/osa030/drum/internal/api/status"
	"github.com/osa030/drum/internal/app/autoplay"
	"github.com/osa030/drum/internal/app/command"
	"github.com/osa030/drum/internal/app/engine"
	"github.com/osa030/drum/internal/app/filter"
	"github.com/osa030/drum/internal/app/notification"
	"github.com/osa030/drum/internal/app/playback"
	"github.com/osa030/drum/internal/app/player"
	"github.com/osa030/drum/internal/app/session"
	"github.com/osa030/drum/internal/infra/config"
	"github.com/osa030/drum/internal/infra/lavalink"
	"github.com/osa030/drum/internal/infra/logger"
	"github.com/osa030/drum/internal/infra/lyrics"
	"github.com/osa030/drum/internal/infra/spotify"
)

var (
	app        = kingpin.New("drum", "drum Discord music bot")
	configPath = app.Flag("config", "Path to config file (optional; environment variables override it)").Envar("DRUM_CONFIG").String()
	logLevel   = app.Flag("log-level", "Log level (trace, debug, info, warn, error)").Default("info").Enum("trace", "debug", "info", "warn", "error")
	logOutput  = app.Flag("log-output", "Log output (stdout, stderr, file)").Default("stdout").Enum("stdout", "stderr", "file")
	logFile    = app.Flag("log-file", "Path to log file, used with --log-output=file").String()

	listCommandsCmd = app.Command("commands", "List chat commands and their aliases and exit")
	listFiltersCmd  = app.Command("filters", "List available audio filters and exit")
)

func init() {
	app.Command("start", "Start the bot (default)").Default()
}

const shutdownTimeout = 10 * time.Second

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	cmd := kingpin.MustParse(app.Parse(os.Args[1:]))

	switch cmd {
	case listCommandsCmd.FullCommand():
		printCommands()
		return
	case listFiltersCmd.FullCommand():
		printFilters()
		return
	}

	closer, err := logger.Init(logger.Config{Output: *logOutput, Level: *logLevel, File: *logFile})
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	if closer != nil {
		defer closer.Close()
	}

	zlog.Info().Msgf("Loading config: path=%q", *configPath)
	cfg, err := config.Load(*configPath)
	if err != nil {
		zlog.Fatal().Msgf("Failed to load config: %v", err)
	}

	if err := run(cfg); err != nil {
		zlog.Error().Msgf("Bot error: %+v", err)
		os.Exit(1)
	}
}

// run wires the bot and blocks until shutdown. Using a separate function
// ensures deferred cleanup runs even when returning with an error.
func run(cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dg, err := discord.NewSession(cfg.Discord.Token)
	if err != nil {
		return err
	}

	adapter := lavalink.New(lavalink.Config{
		Name:         cfg.Lavalink.Name,
		Address:      cfg.Lavalink.Address(),
		Password:     cfg.Lavalink.Password,
		Secure:       cfg.Lavalink.Secure,
		EventBuffer:  cfg.Lavalink.EventBuffer,
		VoiceTimeout: cfg.Lavalink.VoiceTimeout,
	}, discord.NewVoice(dg))
	defer adapter.Close()

	store := session.NewStore(adapter)
	engineStatus := engine.NewStatus()
	notifier := notification.NewManager()
	defer notifier.Close()
	pres := discord.NewPresenter(dg)

	chain, err := autoplay.NewProviderChainFromConfig(cfg.Autoplay, cfg.Lavalink.SearchPlatform, adapter)
	if err != nil {
		return errors.Wrap(err, "invalid autoplay config")
	}

	reactor := playback.NewReactor(playback.Config{
		Events:    adapter.Events(),
		Store:     store,
		Status:    engineStatus,
		Presenter: pres,
		Notifier:  notifier,
		Autoplay:  chain,
	})
	go reactor.Run(ctx)

	svcCfg := player.Config{
		Engine:         adapter,
		Store:          store,
		Status:         engineStatus,
		Presenter:      pres,
		Lyrics:         lyrics.New(lyrics.Config{BaseURL: cfg.Lyrics.BaseURL, Timeout: cfg.Lyrics.Timeout}),
		Counter:        reactor,
		SearchPlatform: cfg.Lavalink.SearchPlatform,
		SearchResults:  cfg.Playback.SearchResults,
		SearchTimeout:  cfg.Playback.SearchTimeout,
		FilterTimeout:  cfg.Playback.FilterTimeout,
		QueuePage:      cfg.Playback.QueuePage,
	}
	if cfg.Spotify.Enabled() {
		client, err := spotify.New(ctx, spotify.Config{
			ClientID:     cfg.Spotify.ClientID,
			ClientSecret: cfg.Spotify.ClientSecret,
			Market:       cfg.Spotify.Market,
		})
		if err != nil {
			return errors.Wrap(err, "failed to create Spotify client")
		}
		svcCfg.Spotify = client
	} else {
		zlog.Info().Msg("Spotify credentials not configured, Spotify links fall back to text search")
	}
	svc := player.NewService(svcCfg)
	defer svc.Close()

	restartCh := make(chan struct{})
	var restartOnce sync.Once

	bot := discord.New(dg, discord.Options{
		Config: cfg.Discord,
		Player: svc,
		Voice:  adapter,
		OnReady: func(ctx context.Context, botUserID string) {
			// The engine client needs the bot user id; a failure leaves music disabled.
			if err := adapter.Init(ctx, botUserID); err != nil {
				zlog.Error().Msgf("Lavalink unavailable, music features disabled: %v", err)
			}
		},
		Restart: func() { restartOnce.Do(func() { close(restartCh) }) },
	})

	logID := notifier.Subscribe(notification.StreamFunc(func(n *notification.Notification) error {
		logNotification(n)
		return nil
	}))
	defer notifier.Unsubscribe(logID)
	presenceID := notifier.Subscribe(bot.Presence())
	defer notifier.Unsubscribe(presenceID)

	if err := bot.Open(); err != nil {
		return err
	}

	server := status.NewServer(cfg.Server.Addr, status.NewHandler(svc, bot))
	serverErrCh := make(chan error, 1)
	go func() {
		zlog.Info().Msgf("Starting status server: addr=%s", cfg.Server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case <-sigCh:
		zlog.Info().Msg("Received shutdown signal...")
	case <-restartCh:
		zlog.Info().Msg("Restart requested, shutting down...")
	case err := <-serverErrCh:
		runErr = errors.Wrap(err, "status server error")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	// Leave every voice channel before the gateway goes away.
	for _, td := range store.DestroyAll(shutdownCtx) {
		if td.NowPlaying.IsZero() {
			continue
		}
		if err := pres.DisableControls(shutdownCtx, td.NowPlaying); err != nil {
			zlog.Debug().Msgf("Failed to disable controls on shutdown: %v", err)
		}
	}
	cancel()

	if err := bot.Close(); err != nil {
		zlog.Error().Msgf("Failed to close gateway: %v", err)
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		zlog.Error().Msgf("Failed to shutdown status server: %v", err)
	}

	zlog.Info().Msg("Bot stopped")
	return runErr
}

func logNotification(n *notification.Notification) {
	switch n.Type {
	case notification.TypeTrackStarted:
		if n.Track != nil {
			zlog.Info().Msgf("Now playing: guild=%s title=%q requester=%s", n.GuildID, n.Track.Title, n.Track.RequesterID)
		}
	case notification.TypeEngineStatus:
		zlog.Info().Msgf("Lavalink status changed: online=%t", n.Online)
	default:
		zlog.Debug().Msgf("Playback notification: type=%s guild=%s seq=%d", n.Type, n.GuildID, n.SequenceNo)
	}
}

// printCommands prints the chat command table.
func printCommands() {
	fmt.Println("Commands:")
	for _, e := range command.Entries() {
		if e.Category == command.CategoryHidden {
			continue
		}
		fmt.Printf("  %-10s %-24s aliases: %s\n", e.Category, e.Usage, strings.Join(e.Aliases, ", "))
	}
}

// printFilters prints available filters.
func printFilters() {
	fmt.Println("Available Filters:")
	for _, p := range filter.All() {
		fmt.Printf("  %-12s %-14s - %s\n", p.Name, p.Label, p.Description)
	}
}
