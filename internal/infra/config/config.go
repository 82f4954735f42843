// Package config provides configuration loading from YAML files.
package config

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Session SessionConfig  `yaml:"session"`
	Voice   VoiceConfig    `yaml:"voice"`
	Control ControlConfig  `yaml:"control"`
	Sources []SourceConfig `yaml:"sources" validate:"omitempty,dive"`
	DJ      DJConfig       `yaml:"dj"`
	Spotify SpotifyConfig  `yaml:"spotify"`
	Log     LogConfig      `yaml:"log"`
}

// SessionConfig represents session-related configuration.
type SessionConfig struct {
	DefaultVolume int  `yaml:"default_volume" default:"50" validate:"gte=0,lte=100"`
	Prune         bool `yaml:"prune"`
	AutoStopSec   int  `yaml:"auto_stop_sec" default:"300" validate:"gte=0"`
}

// VoiceConfig represents voice transport configuration.
type VoiceConfig struct {
	Server            string `yaml:"server" validate:"required"`
	Username          string `yaml:"username" default:"playdeck"`
	Password          string `yaml:"password"`
	Channel           string `yaml:"channel"`
	Insecure          bool   `yaml:"insecure"`
	TerminalCloseCode int    `yaml:"terminal_close_code" default:"4014"`
	RejoinMaxAttempts int    `yaml:"rejoin_max_attempts" default:"5" validate:"gte=0,lte=10"`
	RejoinBackoffSec  int    `yaml:"rejoin_backoff_sec" default:"5" validate:"gte=1"`
	ReadyTimeoutSec   int    `yaml:"ready_timeout_sec" default:"20" validate:"gte=1"`
}

// ControlConfig represents control window configuration.
type ControlConfig struct {
	WindowFallbackSec int `yaml:"window_fallback_sec" default:"600" validate:"gte=1"`
	PruneDelaySec     int `yaml:"prune_delay_sec" default:"3" validate:"gte=0"`
}

// SourceConfig represents a single queue source configuration.
type SourceConfig struct {
	Type        string         `yaml:"type" validate:"required"`
	DisplayName string         `yaml:"display_name" default:"DJ selection"`
	Settings    map[string]any `yaml:"settings"`
}

// DJConfig lists the users allowed to mutate volume and mute.
type DJConfig struct {
	DisplayNames []string `yaml:"display_names"`
}

// SpotifyConfig represents Spotify API configuration. Required only when
// a spotify source is configured; validated at client construction.
type SpotifyConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RefreshToken string `yaml:"refresh_token"`
	Market       string `yaml:"market" validate:"omitempty,len=2" default:"JP"`
}

// LogConfig represents logging configuration.
type LogConfig struct {
	Level  string `yaml:"level" default:"info"`
	Output string `yaml:"output" default:"stdout"`
	File   string `yaml:"file"`
}

// Load loads configuration from a YAML file. Environment variables take
// precedence over file values for sensitive fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	cfg.overrideFromEnv()

	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("SPOTIFY_CLIENT_ID"); v != "" {
		c.Spotify.ClientID = v
	}
	if v := os.Getenv("SPOTIFY_CLIENT_SECRET"); v != "" {
		c.Spotify.ClientSecret = v
	}
	if v := os.Getenv("SPOTIFY_REFRESH_TOKEN"); v != "" {
		c.Spotify.RefreshToken = v
	}
	if v := os.Getenv("VOICE_PASSWORD"); v != "" {
		c.Voice.Password = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}
	return nil
}

// IsDJ checks whether the given display name may mutate volume and mute.
// An empty list allows everyone.
func (c *Config) IsDJ(displayName string) bool {
	if len(c.DJ.DisplayNames) == 0 {
		return true
	}
	for _, name := range c.DJ.DisplayNames {
		if name == displayName {
			return true
		}
	}
	return false
}

// AutoStop returns the idle grace as a duration.
func (c *SessionConfig) AutoStop() time.Duration {
	return time.Duration(c.AutoStopSec) * time.Second
}

// WindowFallback returns the fallback window length as a duration.
func (c *ControlConfig) WindowFallback() time.Duration {
	return time.Duration(c.WindowFallbackSec) * time.Second
}

// PruneDelay returns the prune grace as a duration.
func (c *ControlConfig) PruneDelay() time.Duration {
	return time.Duration(c.PruneDelaySec) * time.Second
}

// RejoinBackoff returns the rejoin backoff unit as a duration.
func (c *VoiceConfig) RejoinBackoff() time.Duration {
	return time.Duration(c.RejoinBackoffSec) * time.Second
}

// ReadyTimeout returns the ready deadline as a duration.
func (c *VoiceConfig) ReadyTimeout() time.Duration {
	return time.Duration(c.ReadyTimeoutSec) * time.Second
}
