package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/pflag"

	"avalon/internal/app"
	"avalon/internal/config"
	"avalon/internal/domain"
	"avalon/internal/render"
	"avalon/internal/speech"
	httpTransport "avalon/internal/transport/http"
	"avalon/internal/transport/ws"
)

func main() {
	// Load configuration
	cfg := config.Load()

	flagSet := pflag.NewFlagSet("avalon-client", pflag.ContinueOnError)
	flagSet.StringVar(&cfg.Server.BaseURL, "server", cfg.Server.BaseURL, "game server base URL")
	flagSet.StringVar(&cfg.Control.Host, "host", cfg.Control.Host, "control API host")
	flagSet.StringVarP(&cfg.Control.Port, "port", "p", cfg.Control.Port, "control API port")
	flagSet.BoolVar(&cfg.Speech.Enabled, "speech", cfg.Speech.Enabled, "speak AI players' lines")
	flagSet.StringVar(&cfg.Speech.Engine, "tts-engine", cfg.Speech.Engine, "text-to-speech command (default: detect espeak-ng, espeak or say)")
	flagSet.StringVar(&cfg.Speech.VoicesFile, "voices", cfg.Speech.VoicesFile, "YAML file of per-speaker voice profiles")
	flagSet.StringVar(&cfg.Game.ActingPlayer, "player", cfg.Game.ActingPlayer, "player to vote and chat as")
	flagSet.StringVar(&cfg.Game.RosterFile, "roster", cfg.Game.RosterFile, "YAML file with the starting roster")
	flagSet.StringVar(&cfg.Logging.Level, "log-level", cfg.Logging.Level, "debug, info, warn or error")
	flagSet.StringVar(&cfg.Logging.Format, "log-format", cfg.Logging.Format, "text or json")
	quiet := flagSet.BoolP("quiet", "q", false, "do not draw the game on the terminal")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}

	// Set up logger. Stdout belongs to the terminal renderer.
	var logger *slog.Logger
	logOpts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Logging.Level),
	}

	if cfg.Logging.Format == "json" {
		logger = slog.New(slog.NewJSONHandler(os.Stderr, logOpts))
	} else {
		logger = slog.New(slog.NewTextHandler(os.Stderr, logOpts))
	}

	slog.SetDefault(logger)

	logger.Info("starting avalon client",
		"env", cfg.Control.Env,
		"server", cfg.Server.BaseURL,
		"addr", cfg.GetAddr(),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clientID := uuid.NewString()
	client := httpTransport.NewClient(cfg.Server.BaseURL, clientID, cfg.Server.RequestTimeout, logger)

	// Speech
	synth := speech.NewExecSynthesizer(cfg.Speech.Engine)
	if !synth.Supported() {
		logger.Warn("no text-to-speech engine found, speech disabled", "engine", cfg.Speech.Engine)
	} else {
		logger.Info("text-to-speech ready", "engine", synth.Engine(), "voices", len(synth.Voices()))
	}
	language := cfg.Speech.Language
	var voices *config.VoicesFile
	if cfg.Speech.VoicesFile != "" {
		var err error
		if voices, err = config.LoadVoices(cfg.Speech.VoicesFile); err != nil {
			logger.Error("failed to load voices", "path", cfg.Speech.VoicesFile, "error", err)
			os.Exit(1)
		}
		if voices.Language != "" {
			language = voices.Language
		}
	}
	registry := speech.NewRegistry(synth, language)
	if voices != nil {
		voices.Apply(registry)
	}
	queue := speech.NewQueue(ctx, synth, registry, client, speech.QueueConfig{
		Pacing:  cfg.Speech.Pacing,
		Enabled: cfg.Speech.Enabled,
	}, logger)
	defer queue.Close()

	var roster []domain.RosterEntry
	if cfg.Game.RosterFile != "" {
		var err error
		if roster, err = config.LoadRoster(cfg.Game.RosterFile); err != nil {
			logger.Error("failed to load roster", "path", cfg.Game.RosterFile, "error", err)
			os.Exit(1)
		}
	}

	// Session and its outputs
	hub := ws.NewHub(logger)
	defer hub.Close()

	renderers := app.Renderers{hub}
	if !*quiet {
		renderers = append(renderers, render.NewTerminal(os.Stdout, render.DefaultTheme))
	}

	session := app.NewSession(app.Deps{
		Server:   client,
		Speech:   queue,
		Voices:   registry,
		Renderer: renderers,
	}, app.ControllerConfig{
		SnapshotLag:    cfg.Game.SnapshotLag,
		RequestTimeout: cfg.Server.RequestTimeout,
		Roster:         roster,
		ActingPlayer:   cfg.Game.ActingPlayer,
	}, logger)
	defer session.Close()

	// Event stream from the game server
	stream := ws.NewStream(cfg.EventsURL(), clientID, session, cfg.Server.ReconnectMin, cfg.Server.ReconnectMax, logger)
	go stream.Run(ctx)

	// Control API
	server := httpTransport.NewServer(cfg, session, queue, ws.NewHandler(hub, session, logger), logger)

	// Start server in goroutine
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down client...")
	cancel()

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	logger.Info("client stopped")
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
