package source

import (
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/ot0ch/playdeck/internal/infra/config"
)

// NewProvidersFromConfig creates the configured seed providers. The
// spotify client may be nil when only local sources are configured.
func NewProvidersFromConfig(cfg *config.Config, spotify SpotifyClient) ([]ProviderWithMetadata, error) {
	var providers []ProviderWithMetadata

	for i, scfg := range cfg.Sources {
		var provider Provider
		var err error
		zlog.Debug().Msgf("creating source: index=%d type=%s settings=%+v", i+1, scfg.Type, scfg.Settings)
		switch scfg.Type {
		case "spotify_playlist":
			provider, err = NewPlaylistProvider(spotify, scfg.Settings)

		case "spotify_track":
			provider, err = NewTrackProvider(spotify, scfg.Settings)

		case "local":
			provider, err = NewLocalProvider(scfg.Settings)

		default:
			return nil, errors.Newf("unsupported source type: %s (source index %d)", scfg.Type, i)
		}

		if err != nil {
			return nil, errors.Wrapf(err, "failed to create source (index %d, type %s)", i, scfg.Type)
		}

		providers = append(providers, ProviderWithMetadata{
			Provider:    provider,
			DisplayName: scfg.DisplayName,
		})

		zlog.Info().Msgf("registered source: index=%d type=%s display_name=%s", i+1, scfg.Type, scfg.DisplayName)
	}

	return providers, nil
}
