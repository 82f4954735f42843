package source

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"

	"github.com/ot0ch/playdeck/internal/domain/track"
)

type TrackProviderConfig struct {
	TrackURLs []string `yaml:"track_urls" mapstructure:"track_urls" validate:"required,min=1"`
}

// TrackProvider seeds the queue from individually listed Spotify tracks.
type TrackProvider struct {
	spotify SpotifyClient
	config  *TrackProviderConfig
}

// NewTrackProvider creates a new TrackProvider.
func NewTrackProvider(spotify SpotifyClient, settings map[string]any) (*TrackProvider, error) {
	if spotify == nil {
		return nil, errors.New("spotify client is required for track sources")
	}

	var config TrackProviderConfig
	if err := mapstructure.Decode(settings, &config); err != nil {
		return nil, errors.Wrap(err, "failed to decode settings")
	}
	zlog.Debug().Msgf("track provider config: %+v", config)
	if err := validator.New().Struct(config); err != nil {
		return nil, errors.Wrap(err, "validation failed")
	}

	return &TrackProvider{spotify: spotify, config: &config}, nil
}

func (p *TrackProvider) Name() string { return "spotify_track" }

// Tracks resolves each listed track. A single unresolvable track fails
// the whole source, so config mistakes surface at startup.
func (p *TrackProvider) Tracks(ctx context.Context) ([]track.Track, error) {
	tracks := make([]track.Track, 0, len(p.config.TrackURLs))
	for _, url := range p.config.TrackURLs {
		t, err := p.spotify.GetTrack(ctx, url)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to resolve track %s", url)
		}
		tracks = append(tracks, t)
	}
	return tracks, nil
}
