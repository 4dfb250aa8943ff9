package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/creasty/defaults"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("BOT_TOKEN", "token")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "token", cfg.Discord.Token)
	assert.Equal(t, "lavalink.jirayu.net", cfg.Lavalink.Host)
	assert.Equal(t, 13592, cfg.Lavalink.Port)
	assert.Equal(t, "youshallnotpass", cfg.Lavalink.Password)
	assert.Equal(t, "lavalink.jirayu.net:13592", cfg.Lavalink.Address())
	assert.Equal(t, "ytmsearch", cfg.Lavalink.SearchPlatform)
	assert.Equal(t, 10*time.Second, cfg.Lavalink.VoiceTimeout)
	assert.Equal(t, 10, cfg.Playback.SearchResults)
	assert.Equal(t, 60*time.Second, cfg.Playback.SearchTimeout)
	assert.Equal(t, 300*time.Second, cfg.Playback.FilterTimeout)
	assert.Equal(t, 10, cfg.Playback.QueuePage)
	assert.Equal(t, int64(36700160), cfg.Discord.InvitePermissions)
	assert.Equal(t, ":3000", cfg.Server.Addr)
	assert.False(t, cfg.Spotify.Enabled())
	require.Len(t, cfg.Autoplay.Providers, 1)
	assert.Equal(t, ProviderSearch, cfg.Autoplay.Providers[0].Type)
}

func TestLoad_FileWithEnvOverride(t *testing.T) {
	path := writeConfig(t, `
discord:
  token: file-token
  owner_id: "42"
lavalink:
  host: file-host
  port: 2333
  voice_timeout: 5s
playback:
  search_results: 5
autoplay:
  providers:
    - type: lastfm
      display_name: Last.fm
      settings:
        seed_limit: 10
    - type: search
      display_name: Search
`)
	t.Setenv("LAVALINK_HOST", "env-host")
	t.Setenv("LAVALINK_SECURE", "true")
	t.Setenv("PORT", "8080")
	t.Setenv("LASTFM_API_KEY", "lfm")
	t.Setenv("SPOTIFY_CLIENT_ID", "id")
	t.Setenv("SPOTIFY_CLIENT_SECRET", "secret")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "file-token", cfg.Discord.Token)
	assert.True(t, cfg.IsOwner("42"))
	assert.False(t, cfg.IsOwner("7"))
	assert.Equal(t, "env-host", cfg.Lavalink.Host)
	assert.Equal(t, 2333, cfg.Lavalink.Port)
	assert.True(t, cfg.Lavalink.Secure)
	assert.Equal(t, 5*time.Second, cfg.Lavalink.VoiceTimeout)
	assert.Equal(t, 5, cfg.Playback.SearchResults)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.True(t, cfg.Spotify.Enabled())

	require.Len(t, cfg.Autoplay.Providers, 2)
	assert.Equal(t, "lfm", cfg.Autoplay.Providers[0].Settings["api_key"])
	assert.Equal(t, 10, cfg.Autoplay.Providers[0].Settings["seed_limit"])
}

func TestLoad_LastFmKeyAddsProvider(t *testing.T) {
	t.Setenv("BOT_TOKEN", "token")
	t.Setenv("LASTFM_API_KEY", "lfm")

	cfg, err := Load("")
	require.NoError(t, err)

	require.Len(t, cfg.Autoplay.Providers, 2)
	assert.Equal(t, ProviderLastFm, cfg.Autoplay.Providers[0].Type)
	assert.Equal(t, ProviderSearch, cfg.Autoplay.Providers[1].Type)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		env     map[string]string
		errMsg  string
	}{
		{
			name:    "missing token",
			content: "lavalink:\n  host: x\n",
			errMsg:  "Token",
		},
		{
			name:    "invalid port",
			content: "discord:\n  token: t\nlavalink:\n  port: 70000\n",
			errMsg:  "Port",
		},
		{
			name:    "unknown provider",
			content: "discord:\n  token: t\nautoplay:\n  providers:\n    - type: radio\n",
			errMsg:  "Type",
		},
		{
			name:    "invalid secure flag",
			content: "discord:\n  token: t\n",
			env:     map[string]string{"LAVALINK_SECURE": "maybe"},
			errMsg:  "LAVALINK_SECURE",
		},
		{
			name:    "malformed yaml",
			content: "discord: [",
			errMsg:  "parse",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestConfig_Validate_SearchPlatform(t *testing.T) {
	cfg := Config{Discord: DiscordConfig{Token: "t"}}
	require.NoError(t, defaults.Set(&cfg))
	require.NoError(t, cfg.Validate())

	cfg.Lavalink.SearchPlatform = "bandcamp"
	assert.Error(t, cfg.Validate())
}
