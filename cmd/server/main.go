package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"infrascan/internal/backend"
	"infrascan/internal/config"
	"infrascan/internal/demo"
	"infrascan/internal/logging"
	"infrascan/internal/metrics"
	"infrascan/internal/preview"
	"infrascan/internal/session"
	"infrascan/internal/storage"
	"infrascan/internal/web"
	ws "infrascan/internal/websocket"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--version", "-v", "version":
			fmt.Printf("infrascan %s\n", Version)
			fmt.Printf("  Build time: %s\n", BuildTime)
			fmt.Printf("  Git commit: %s\n", GitCommit)
			return
		case "--help", "-h", "help":
			fmt.Println("infrascan - InfraScan demo site")
			fmt.Println()
			fmt.Println("Usage: infrascan [options]")
			fmt.Println()
			fmt.Println("Options:")
			fmt.Println("  --version, -v    Print version information")
			fmt.Println("  --help, -h       Print this help message")
			fmt.Println()
			fmt.Println("Environment variables (also read from .env):")
			fmt.Println("  ADDRESS=:8080                               HTTP listen address")
			fmt.Println("  ANALYZE_URL=http://127.0.0.1:5001/analyze   Analysis service endpoint")
			fmt.Println("  ANALYZE_TIMEOUT=2m                          Analysis request deadline, 0 disables")
			fmt.Println("  MAX_UPLOAD_BYTES=10485760                   Upload size cap")
			fmt.Println("  MAX_IMAGE_PIXELS=50000000                   Largest accepted width*height")
			fmt.Println("  PREVIEW_MAX_DIMENSION=600                   Preview thumbnail bound in pixels")
			fmt.Println("  PREVIEW_TTL=1h                              Preview lifetime")
			fmt.Println("  SESSION_IDLE_TTL=30m                        Idle session expiry")
			fmt.Println("  SESSION_SWEEP_INTERVAL=1m                   Idle session sweep period")
			fmt.Println("  SESSION_DB=file:...?mode=memory             SQLite DSN of the session index")
			fmt.Println("  LOG_LEVEL=info                              debug, info, warn, error")
			fmt.Println("  LOG_FORMAT=console                          console or json")
			return
		}
	}

	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("server error")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := logging.Setup(cfg.LogLevel, cfg.LogFormat); err != nil {
		return err
	}
	log.Info().
		Str("version", Version).
		Str("commit", GitCommit).
		Str("analyze_url", cfg.AnalyzeURL).
		Msg("starting infrascan")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := metrics.NewRegistry("infrascan")

	db, err := storage.InitDB(cfg.SessionDB)
	if err != nil {
		return fmt.Errorf("session index: %w", err)
	}
	defer db.Close()

	previews := preview.NewRegistry(preview.Options{
		TTL:          cfg.PreviewTTL,
		MaxDimension: cfg.PreviewMaxDimension,
		MaxPixels:    cfg.MaxImagePixels,
	}, reg)
	defer previews.Close()

	client, err := backend.NewFromConfig(cfg, reg)
	if err != nil {
		return fmt.Errorf("analysis client: %w", err)
	}

	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	hub := ws.NewHub()
	go hub.Run(hubCtx)

	sessions, err := session.NewManager(db, web.NewWorkspaceFactory(client, previews, hub, demo.WithMaxPixels(cfg.MaxImagePixels)), session.Options{
		IdleTTL:       cfg.SessionIdleTTL,
		SweepInterval: cfg.SessionSweepInterval,
		OnClose: func(ctx context.Context, id string) {
			previews.RevokeOwner(ctx, id)
			hub.DisconnectSession(id)
		},
	}, reg)
	if err != nil {
		return fmt.Errorf("session manager: %w", err)
	}
	go sessions.Run(ctx)

	app, err := web.New(web.Deps{
		Config:   cfg,
		Sessions: sessions,
		Previews: previews,
		Hub:      hub,
		Metrics:  reg,
	})
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("address", cfg.Address).Msg("http server listening")
		errCh <- app.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := app.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	if err := sessions.Close(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("session teardown")
	}
	stopHub()
	return nil
}
