package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
		errMsg  string
	}{
		{
			name: "valid config",
			config: Config{
				Session: SessionConfig{DefaultVolume: 50},
				Voice: VoiceConfig{
					Server:           "mumble.example.com:64738",
					RejoinBackoffSec: 5,
					ReadyTimeoutSec:  20,
				},
				Control: ControlConfig{WindowFallbackSec: 600},
			},
			wantErr: false,
		},
		{
			name: "missing voice server",
			config: Config{
				Session: SessionConfig{DefaultVolume: 50},
				Voice: VoiceConfig{
					RejoinBackoffSec: 5,
					ReadyTimeoutSec:  20,
				},
				Control: ControlConfig{WindowFallbackSec: 600},
			},
			wantErr: true,
			errMsg:  "Server",
		},
		{
			name: "volume above range",
			config: Config{
				Session: SessionConfig{DefaultVolume: 120},
				Voice: VoiceConfig{
					Server:           "mumble.example.com:64738",
					RejoinBackoffSec: 5,
					ReadyTimeoutSec:  20,
				},
				Control: ControlConfig{WindowFallbackSec: 600},
			},
			wantErr: true,
			errMsg:  "DefaultVolume",
		},
		{
			name: "invalid market length",
			config: Config{
				Session: SessionConfig{DefaultVolume: 50},
				Voice: VoiceConfig{
					Server:           "mumble.example.com:64738",
					RejoinBackoffSec: 5,
					ReadyTimeoutSec:  20,
				},
				Control: ControlConfig{WindowFallbackSec: 600},
				Spotify: SpotifyConfig{Market: "JPN"},
			},
			wantErr: true,
			errMsg:  "Market",
		},
		{
			name: "source without type",
			config: Config{
				Session: SessionConfig{DefaultVolume: 50},
				Voice: VoiceConfig{
					Server:           "mumble.example.com:64738",
					RejoinBackoffSec: 5,
					ReadyTimeoutSec:  20,
				},
				Control: ControlConfig{WindowFallbackSec: 600},
				Sources: []SourceConfig{{DisplayName: "Files"}},
			},
			wantErr: true,
			errMsg:  "Type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
voice:
  server: mumble.example.com:64738
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 50, cfg.Session.DefaultVolume)
	assert.Equal(t, 300, cfg.Session.AutoStopSec)
	assert.False(t, cfg.Session.Prune)
	assert.Equal(t, "playdeck", cfg.Voice.Username)
	assert.Equal(t, 4014, cfg.Voice.TerminalCloseCode)
	assert.Equal(t, 5, cfg.Voice.RejoinMaxAttempts)
	assert.Equal(t, 5, cfg.Voice.RejoinBackoffSec)
	assert.Equal(t, 20, cfg.Voice.ReadyTimeoutSec)
	assert.Equal(t, 600, cfg.Control.WindowFallbackSec)
	assert.Equal(t, 3, cfg.Control.PruneDelaySec)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "JP", cfg.Spotify.Market)
}

func TestLoad_EnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
voice:
  server: mumble.example.com:64738
spotify:
  client_id: file-id
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	t.Setenv("SPOTIFY_CLIENT_ID", "env-id")
	t.Setenv("VOICE_PASSWORD", "env-password")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "env-id", cfg.Spotify.ClientID)
	assert.Equal(t, "env-password", cfg.Voice.Password)
}

func TestLoad_FileMissing(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	assert.Error(t, err)
}

func TestConfig_IsDJ(t *testing.T) {
	tests := []struct {
		name     string
		names    []string
		user     string
		expected bool
	}{
		{name: "empty list allows everyone", names: nil, user: "anyone", expected: true},
		{name: "listed user", names: []string{"dj1", "dj2"}, user: "dj2", expected: true},
		{name: "unlisted user", names: []string{"dj1"}, user: "other", expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{DJ: DJConfig{DisplayNames: tt.names}}
			assert.Equal(t, tt.expected, cfg.IsDJ(tt.user))
		})
	}
}

func TestDurationAccessors(t *testing.T) {
	cfg := Config{
		Session: SessionConfig{AutoStopSec: 300},
		Control: ControlConfig{WindowFallbackSec: 600, PruneDelaySec: 3},
		Voice:   VoiceConfig{RejoinBackoffSec: 5, ReadyTimeoutSec: 20},
	}

	assert.Equal(t, "5m0s", cfg.Session.AutoStop().String())
	assert.Equal(t, "10m0s", cfg.Control.WindowFallback().String())
	assert.Equal(t, "3s", cfg.Control.PruneDelay().String())
	assert.Equal(t, "5s", cfg.Voice.RejoinBackoff().String())
	assert.Equal(t, "20s", cfg.Voice.ReadyTimeout().String())
}
