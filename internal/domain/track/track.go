// Package track provides the Track domain entity.
package track

import (
	"context"
	"strings"
	"time"
)

// Meta holds the display metadata of a playable track.
type Meta struct {
	ID       string        // Stable track identifier
	Title    string        // Track title
	Artists  []string      // Artist names
	URL      string        // Canonical URL (empty for local files)
	ArtURL   string        // Album art URL
	Duration time.Duration // Track duration (0 if unknown)
}

// Track is a queued playable unit. It produces a playable Resource on
// demand; resource creation may fail and may take time (network fetch,
// transcoder spawn), so it takes a context.
type Track interface {
	Meta() Meta
	MakeResource(ctx context.Context) (*Resource, error)
}

// Resource is a live playable handle plus metadata. Exactly one of
// Path or StreamURL is set; player adapters decide how to feed it to
// the underlying transport.
type Resource struct {
	Meta      Meta
	Path      string // Local file path
	StreamURL string // Remote stream URL
	OpenedAt  time.Time
}

// RequesterType represents the type of requester.
type RequesterType string

const (
	RequesterTypeUser   RequesterType = "USER"
	RequesterTypeSystem RequesterType = "SYSTEM"
)

// Requester represents who enqueued the track.
type Requester struct {
	ID   string
	Name string
	Type RequesterType
}

// QueuedTrack represents a track in the playback queue.
type QueuedTrack struct {
	Track     Track
	Requester Requester
	AddedAt   time.Time
}

// File is a Track backed by a local audio file.
type File struct {
	Info Meta
	Path string
}

func (f *File) Meta() Meta { return f.Info }

func (f *File) MakeResource(ctx context.Context) (*Resource, error) {
	return &Resource{
		Meta:     f.Info,
		Path:     f.Path,
		OpenedAt: time.Now(),
	}, nil
}

// Remote is a Track backed by a remote stream URL. Resolve is consulted
// on every MakeResource call so expiring URLs can be re-fetched.
type Remote struct {
	Info    Meta
	Resolve func(ctx context.Context) (string, error)
}

func (r *Remote) Meta() Meta { return r.Info }

func (r *Remote) MakeResource(ctx context.Context) (*Resource, error) {
	url, err := r.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	return &Resource{
		Meta:      r.Info,
		StreamURL: url,
		OpenedAt:  time.Now(),
	}, nil
}

// DisplayTitle returns "Artist1, Artist2 - Title" for notifications.
func (m Meta) DisplayTitle() string {
	if len(m.Artists) == 0 {
		return m.Title
	}
	return strings.Join(m.Artists, ", ") + " - " + m.Title
}
