package source

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"

	"github.com/ot0ch/playdeck/internal/domain/track"
)

type LocalProviderConfig struct {
	Dir        string   `yaml:"dir" mapstructure:"dir" validate:"required"`
	Extensions []string `yaml:"extensions" mapstructure:"extensions" default:"[\"mp3\",\"flac\",\"ogg\",\"opus\",\"wav\",\"m4a\"]"`
}

// LocalProvider seeds the queue from audio files under a directory.
type LocalProvider struct {
	config *LocalProviderConfig
}

// NewLocalProvider creates a new LocalProvider.
func NewLocalProvider(settings map[string]any) (*LocalProvider, error) {
	var config LocalProviderConfig
	if err := mapstructure.Decode(settings, &config); err != nil {
		return nil, errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(&config); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	zlog.Debug().Msgf("local provider config: %+v", config)
	if err := validator.New().Struct(config); err != nil {
		return nil, errors.Wrap(err, "validation failed")
	}

	return &LocalProvider{config: &config}, nil
}

func (p *LocalProvider) Name() string { return "local" }

// Tracks walks the configured directory and returns one file-backed
// track per audio file, ordered by path.
func (p *LocalProvider) Tracks(ctx context.Context) ([]track.Track, error) {
	allowed := make(map[string]bool, len(p.config.Extensions))
	for _, ext := range p.config.Extensions {
		allowed["."+strings.ToLower(strings.TrimPrefix(ext, "."))] = true
	}

	var tracks []track.Track
	err := filepath.WalkDir(p.config.Dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() || !allowed[strings.ToLower(filepath.Ext(path))] {
			return nil
		}

		name := strings.TrimSuffix(d.Name(), filepath.Ext(path))
		tracks = append(tracks, &track.File{
			Info: track.Meta{
				ID:    path,
				Title: name,
			},
			Path: path,
		})
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Newf("directory does not exist: %s", p.config.Dir)
		}
		return nil, errors.Wrap(err, "failed to walk directory")
	}

	zlog.Info().Msgf("local source loaded: dir=%s files=%d", p.config.Dir, len(tracks))
	return tracks, nil
}
