package source

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"

	"github.com/ot0ch/playdeck/internal/domain/track"
)

type PlaylistProviderConfig struct {
	PlaylistURL string `yaml:"playlist_url" mapstructure:"playlist_url" validate:"required"`
}

// PlaylistProvider seeds the queue from a Spotify playlist.
type PlaylistProvider struct {
	spotify SpotifyClient
	config  *PlaylistProviderConfig
}

// NewPlaylistProvider creates a new PlaylistProvider.
func NewPlaylistProvider(spotify SpotifyClient, settings map[string]any) (*PlaylistProvider, error) {
	if spotify == nil {
		return nil, errors.New("spotify client is required for playlist sources")
	}

	var config PlaylistProviderConfig
	if err := mapstructure.Decode(settings, &config); err != nil {
		return nil, errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(&config); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	zlog.Debug().Msgf("playlist provider config: %+v", config)
	if err := validator.New().Struct(config); err != nil {
		return nil, errors.Wrap(err, "validation failed")
	}

	return &PlaylistProvider{spotify: spotify, config: &config}, nil
}

func (p *PlaylistProvider) Name() string { return "spotify_playlist" }

// Tracks loads every playable track from the configured playlist.
func (p *PlaylistProvider) Tracks(ctx context.Context) ([]track.Track, error) {
	pl, err := p.spotify.GetPlaylist(ctx, p.config.PlaylistURL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load playlist")
	}
	zlog.Info().Msgf("playlist source loaded: name=%s tracks=%d duration=%s",
		pl.Name, len(pl.Tracks), pl.TotalDuration())
	return pl.Tracks, nil
}
