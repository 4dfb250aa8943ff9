// Package config provides configuration loading from YAML files and the environment.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Autoplay provider types.
const (
	ProviderLastFm = "lastfm"
	ProviderSearch = "search"
)

// Config represents the application configuration.
type Config struct {
	Discord  DiscordConfig  `yaml:"discord"`
	Lavalink LavalinkConfig `yaml:"lavalink"`
	Playback PlaybackConfig `yaml:"playback"`
	Autoplay AutoplayConfig `yaml:"autoplay"`
	Spotify  SpotifyConfig  `yaml:"spotify"`
	Lyrics   LyricsConfig   `yaml:"lyrics"`
	Server   ServerConfig   `yaml:"server"`
}

// DiscordConfig represents the chat gateway configuration.
type DiscordConfig struct {
	Token             string  `yaml:"token" validate:"required"`
	OwnerID           string  `yaml:"owner_id"`
	SupportURL        string  `yaml:"support_url" default:"https://discord.gg/invite" validate:"omitempty,url"`
	VoteURL           string  `yaml:"vote_url" default:"https://top.gg/bot" validate:"omitempty,url"`
	InvitePermissions int64   `yaml:"invite_permissions" default:"36700160" validate:"gte=0"`
	CommandRate       float64 `yaml:"command_rate" default:"1" validate:"gt=0"`
	CommandBurst      int     `yaml:"command_burst" default:"3" validate:"gte=1"`
}

// LavalinkConfig represents the media engine node configuration.
type LavalinkConfig struct {
	Name           string        `yaml:"name" default:"main"`
	Host           string        `yaml:"host" default:"lavalink.jirayu.net" validate:"required"`
	Port           int           `yaml:"port" default:"13592" validate:"gte=1,lte=65535"`
	Password       string        `yaml:"password" default:"youshallnotpass"`
	Secure         bool          `yaml:"secure"`
	SearchPlatform string        `yaml:"search_platform" default:"ytmsearch" validate:"oneof=ytmsearch ytsearch scsearch"`
	EventBuffer    int           `yaml:"event_buffer" default:"64" validate:"gte=1"`
	VoiceTimeout   time.Duration `yaml:"voice_timeout" default:"10s" validate:"gt=0"`
}

// Address returns host:port of the node.
func (c LavalinkConfig) Address() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// PlaybackConfig represents playback and selection configuration.
type PlaybackConfig struct {
	SearchResults int           `yaml:"search_results" default:"10" validate:"gte=1,lte=10"`
	SearchTimeout time.Duration `yaml:"search_timeout" default:"60s" validate:"gt=0"`
	FilterTimeout time.Duration `yaml:"filter_timeout" default:"300s" validate:"gt=0"`
	QueuePage     int           `yaml:"queue_page" default:"10" validate:"gte=1,lte=25"`
}

// AutoplayConfig represents autoplay configuration.
type AutoplayConfig struct {
	Providers []ProviderConfig `yaml:"providers" validate:"dive"`
}

// ProviderConfig represents a single autoplay provider configuration.
type ProviderConfig struct {
	Type        string         `yaml:"type" validate:"required,oneof=lastfm search"`
	DisplayName string         `yaml:"display_name"`
	Settings    map[string]any `yaml:"settings"`
}

// SpotifyConfig represents Spotify API configuration.
type SpotifyConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	Market       string `yaml:"market" validate:"omitempty,len=2" default:"US"`
}

// Enabled reports whether Spotify link expansion can be used.
func (c SpotifyConfig) Enabled() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

// LyricsConfig represents lyrics lookup configuration.
type LyricsConfig struct {
	BaseURL string        `yaml:"base_url" default:"https://lrclib.net" validate:"url"`
	Timeout time.Duration `yaml:"timeout" default:"10s" validate:"gt=0"`
}

// ServerConfig represents the status server configuration.
type ServerConfig struct {
	Addr string `yaml:"addr" default:":3000"`
}

// envOverrides lists the environment variables honored on top of the file.
type envOverrides struct {
	BotToken         string `env:"BOT_TOKEN"`
	OwnerID          string `env:"OWNER_ID"`
	LavalinkHost     string `env:"LAVALINK_HOST"`
	LavalinkPort     int    `env:"LAVALINK_PORT"`
	LavalinkPassword string `env:"LAVALINK_PASSWORD"`
	LavalinkSecure   string `env:"LAVALINK_SECURE"`
	Port             int    `env:"PORT"`
	SpotifyID        string `env:"SPOTIFY_CLIENT_ID"`
	SpotifySecret    string `env:"SPOTIFY_CLIENT_SECRET"`
	LastFmAPIKey     string `env:"LASTFM_API_KEY"`
}

// Load loads configuration from an optional YAML file.
// Environment variables take precedence over file values.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(err, "failed to read config file")
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, errors.Wrap(err, "failed to parse config file")
		}
	}

	if err := cfg.overrideFromEnv(); err != nil {
		return nil, errors.Wrap(err, "failed to read environment")
	}

	if len(cfg.Autoplay.Providers) == 0 {
		cfg.Autoplay.Providers = []ProviderConfig{{Type: ProviderSearch, DisplayName: "Search"}}
	}

	// Set defaults using creasty/defaults
	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() error {
	o, err := env.ParseAs[envOverrides]()
	if err != nil {
		return err
	}

	if o.BotToken != "" {
		c.Discord.Token = o.BotToken
	}
	if o.OwnerID != "" {
		c.Discord.OwnerID = o.OwnerID
	}
	if o.LavalinkHost != "" {
		c.Lavalink.Host = o.LavalinkHost
	}
	if o.LavalinkPort != 0 {
		c.Lavalink.Port = o.LavalinkPort
	}
	if o.LavalinkPassword != "" {
		c.Lavalink.Password = o.LavalinkPassword
	}
	if o.LavalinkSecure != "" {
		secure, err := strconv.ParseBool(o.LavalinkSecure)
		if err != nil {
			return errors.Wrapf(err, "invalid LAVALINK_SECURE=%q", o.LavalinkSecure)
		}
		c.Lavalink.Secure = secure
	}
	if o.Port != 0 {
		c.Server.Addr = ":" + strconv.Itoa(o.Port)
	}
	if o.SpotifyID != "" {
		c.Spotify.ClientID = o.SpotifyID
	}
	if o.SpotifySecret != "" {
		c.Spotify.ClientSecret = o.SpotifySecret
	}
	if o.LastFmAPIKey != "" {
		c.setLastFmKey(o.LastFmAPIKey)
	}
	return nil
}

// setLastFmKey injects the key into every lastfm provider, adding one in front
// of the chain when none is configured.
func (c *Config) setLastFmKey(key string) {
	found := false
	for i := range c.Autoplay.Providers {
		p := &c.Autoplay.Providers[i]
		if p.Type != ProviderLastFm {
			continue
		}
		if p.Settings == nil {
			p.Settings = make(map[string]any)
		}
		p.Settings["api_key"] = key
		found = true
	}
	if found {
		return
	}

	lastfm := ProviderConfig{
		Type:        ProviderLastFm,
		DisplayName: "Last.fm",
		Settings:    map[string]any{"api_key": key},
	}
	if len(c.Autoplay.Providers) == 0 {
		c.Autoplay.Providers = []ProviderConfig{lastfm, {Type: ProviderSearch, DisplayName: "Search"}}
		return
	}
	c.Autoplay.Providers = append([]ProviderConfig{lastfm}, c.Autoplay.Providers...)
}

// IsOwner checks if the given user is the bot owner.
func (c *Config) IsOwner(userID string) bool {
	return c.Discord.OwnerID != "" && c.Discord.OwnerID == userID
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}
	return nil
}
