// Package playlist provides the Playlist domain entity.
package playlist

import (
	"time"

	"github.com/ot0ch/playdeck/internal/domain/track"
)

// Playlist is an ordered collection of tracks used to seed a session queue.
type Playlist struct {
	ID          string        // Source playlist ID
	Name        string        // Playlist name
	Description string        // Playlist description
	URL         string        // Source URL
	Tracks      []track.Track // Tracks in the playlist
}

// TrackIDs returns all track IDs in the playlist.
func (p *Playlist) TrackIDs() []string {
	ids := make([]string, len(p.Tracks))
	for i, t := range p.Tracks {
		ids[i] = t.Meta().ID
	}
	return ids
}

// TotalDuration returns the total duration of all tracks.
func (p *Playlist) TotalDuration() time.Duration {
	var total time.Duration
	for _, t := range p.Tracks {
		total += t.Meta().Duration
	}
	return total
}
