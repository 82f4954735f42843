// Package source provides queue seeding strategies: each provider turns
// its configured settings into playable tracks enqueued on behalf of
// the house DJ.
package source

import (
	"context"

	"github.com/ot0ch/playdeck/internal/domain/playlist"
	"github.com/ot0ch/playdeck/internal/domain/track"
)

// Provider is the interface for queue seed providers. Different
// implementations load tracks through various strategies (playlist,
// local directory, single tracks).
type Provider interface {
	// Tracks loads the provider's tracks.
	Tracks(ctx context.Context) ([]track.Track, error)

	// Name returns the provider type name (used in config).
	Name() string
}

// SpotifyClient defines the Spotify operations providers need.
type SpotifyClient interface {
	GetTrack(ctx context.Context, trackID string) (track.Track, error)
	GetPlaylist(ctx context.Context, playlistURL string) (*playlist.Playlist, error)
}

// ProviderWithMetadata pairs a provider with its configured display
// name, used as the system requester name.
type ProviderWithMetadata struct {
	Provider    Provider
	DisplayName string
}
