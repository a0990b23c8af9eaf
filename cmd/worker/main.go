// Package main provides the worker service entry point.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/thebtf/feeddedup/internal/config"
	"github.com/thebtf/feeddedup/internal/embedding"
	"github.com/thebtf/feeddedup/internal/watcher"
	"github.com/thebtf/feeddedup/internal/worker"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	port := flag.Int("port", 0, "Listen port (default: FEEDDEDUP_WORKER_PORT or settings)")
	host := flag.String("host", "127.0.0.1", "Listen address")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: true})

	_ = godotenv.Load()

	if err := config.EnsureAll(); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure data directory")
	}

	cfg := config.Get()
	if *port == 0 {
		*port = config.GetWorkerPort()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	provider, err := embedding.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize embedding provider")
	}
	if closer, ok := provider.(io.Closer); ok {
		defer closer.Close()
	}

	svc := worker.NewService(Version, cfg, provider)
	if err := svc.Start(fmt.Sprintf("%s:%d", *host, *port)); err != nil {
		log.Fatal().Err(err).Msg("Failed to start worker")
	}

	settingsWatcher, err := watcher.New(config.SettingsPath(), func() {
		if err := svc.ReloadSettings(); err != nil {
			log.Error().Err(err).Msg("Failed to reload settings")
		}
	})
	if err != nil {
		log.Warn().Err(err).Msg("Failed to create settings watcher")
	} else if err := settingsWatcher.Start(); err != nil {
		log.Warn().Err(err).Msg("Failed to start settings watcher")
	} else {
		defer settingsWatcher.Stop()
	}

	<-ctx.Done()
	log.Info().Msg("Shutting down worker")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := svc.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Worker shutdown error")
	}
}
