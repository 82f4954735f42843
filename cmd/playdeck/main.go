// Package main provides the playdeck entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"

	"github.com/ot0ch/playdeck/internal/app/command"
	"github.com/ot0ch/playdeck/internal/app/playback"
	"github.com/ot0ch/playdeck/internal/app/session"
	"github.com/ot0ch/playdeck/internal/app/source"
	"github.com/ot0ch/playdeck/internal/app/voice"
	"github.com/ot0ch/playdeck/internal/domain/track"
	"github.com/ot0ch/playdeck/internal/infra/config"
	"github.com/ot0ch/playdeck/internal/infra/logger"
	"github.com/ot0ch/playdeck/internal/infra/mumble"
	"github.com/ot0ch/playdeck/internal/infra/spotify"
)

var (
	app        = kingpin.New("playdeck", "playdeck playback session orchestrator")
	configPath = app.Flag("config", "Path to config file").Default("config/playdeck.yaml").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stdout)").String()

	// list-commands command
	listCommandsCmd = app.Command("list-commands", "List available control commands and exit")
)

func init() {
	// start command (default) - no need to store the command
	app.Command("start", "Start the session (default)").Default()
}

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	// Parse command
	cmd := kingpin.MustParse(app.Parse(os.Args[1:]))

	// Handle list-commands command
	if cmd == listCommandsCmd.FullCommand() {
		printCommands()
		return
	}

	// Initialize logger
	loggerConfig := logger.Config{
		Output: "stdout",
		Level:  "info",
		File:   "",
	}
	// Override with command-line flags if specified
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if *logfile != "" {
		loggerConfig.Output = *logfile
		loggerConfig.File = *logfile
	}
	if err := logger.Init(loggerConfig); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}

	// Load config
	zlog.Info().Msgf("Loading config from %s", *configPath)
	cfg, err := config.Load(*configPath)
	if err != nil {
		zlog.Fatal().Msgf("Failed to load config: %v", err)
	}

	if err := run(cfg); err != nil {
		zlog.Error().Msgf("Session error: %v", err)
		os.Exit(1)
	}
}

// run executes the main session logic. Using a separate function ensures
// defer statements are executed even when returning with an error.
func run(cfg *config.Config) error {
	ctx := context.Background()

	// Create Spotify client only when credentials are configured; a
	// local-sources-only deployment runs without one.
	var resolver source.SpotifyClient
	if cfg.Spotify.ClientID != "" || cfg.Spotify.ClientSecret != "" || cfg.Spotify.RefreshToken != "" {
		spotifyClient, err := spotify.New(ctx, spotify.Config{
			ClientID:     cfg.Spotify.ClientID,
			ClientSecret: cfg.Spotify.ClientSecret,
			RefreshToken: cfg.Spotify.RefreshToken,
			Market:       cfg.Spotify.Market,
		})
		if err != nil {
			return fmt.Errorf("failed to create Spotify client: %w", err)
		}
		resolver = spotifyClient
	}

	// Create queue sources
	providers, err := source.NewProvidersFromConfig(cfg, resolver)
	if err != nil {
		return fmt.Errorf("failed to create sources: %w", err)
	}

	// Create voice transport and player
	conn := mumble.NewConnection(mumble.Config{
		Server:   cfg.Voice.Server,
		Username: cfg.Voice.Username,
		Password: cfg.Voice.Password,
		Channel:  cfg.Voice.Channel,
		Insecure: cfg.Voice.Insecure,
	})
	player := mumble.NewPlayer(conn)
	notifier := mumble.NewNotifier(conn)

	// Create session
	sess := session.New(session.Config{
		DefaultVolume:  cfg.Session.DefaultVolume,
		Prune:          cfg.Session.Prune,
		AutoStop:       cfg.Session.AutoStop(),
		WindowFallback: cfg.Control.WindowFallback(),
		PruneDelay:     cfg.Control.PruneDelay(),
	}, session.Deps{
		Player:    player,
		Channel:   notifier,
		Authorize: cfg.IsDJ,
		OnAutoStop: func() {
			zlog.Info().Msg("Session idle, leaving voice server")
			if err := conn.Destroy(); err != nil {
				zlog.Error().Msgf("Failed to destroy connection: %v", err)
			}
		},
	})

	// Create lifecycle machines
	machine := playback.NewMachine(sess)
	player.OnTransition(machine.HandleTransition)

	monitor := voice.NewMonitor(conn, sess, voice.Config{
		MaxRejoinAttempts: cfg.Voice.RejoinMaxAttempts,
		BackoffStep:       cfg.Voice.RejoinBackoff(),
		ReadyTimeout:      cfg.Voice.ReadyTimeout(),
		TerminalCloseCode: voice.CloseCode(cfg.Voice.TerminalCloseCode),
	})

	// The connection ending for good also ends the process.
	destroyed := make(chan struct{})
	var destroyedOnce sync.Once
	conn.OnTransition(func(t voice.Transition) {
		monitor.Handle(t)
		if t.To == voice.StateDestroyed {
			destroyedOnce.Do(func() { close(destroyed) })
		}
	})

	// Connect
	if err := conn.Join(); err != nil {
		return fmt.Errorf("failed to join voice server: %w", err)
	}

	// Start session
	sess.Start()

	// Seed the queue from the configured sources
	for _, p := range providers {
		tracks, err := p.Provider.Tracks(ctx)
		if err != nil {
			return fmt.Errorf("failed to load source %s: %w", p.Provider.Name(), err)
		}
		requester := track.Requester{
			Name: p.DisplayName,
			Type: track.RequesterTypeSystem,
		}
		items := make([]track.QueuedTrack, 0, len(tracks))
		now := time.Now()
		for _, t := range tracks {
			items = append(items, track.QueuedTrack{Track: t, Requester: requester, AddedAt: now})
		}
		sess.Enqueue(items...)
	}

	// Wait for shutdown signal or permanent disconnect
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		zlog.Info().Msg("Received shutdown signal...")
	case <-destroyed:
		zlog.Info().Msg("Connection destroyed, shutting down...")
	}

	// Close session first to stop playback and control windows
	sess.Close()
	monitor.Close()
	if err := conn.Destroy(); err != nil {
		zlog.Error().Msgf("Failed to destroy connection: %v", err)
	}

	zlog.Info().Msg("Session stopped")
	return nil
}

// printCommands prints available control commands.
func printCommands() {
	fmt.Println("Available Commands:")
	names := command.Names()
	sort.Strings(names)
	for _, name := range names {
		cmd, err := command.Get(name)
		if err != nil {
			continue
		}
		fmt.Printf("  %-10s - %s\n", cmd.Name(), cmd.Description())
	}
}
