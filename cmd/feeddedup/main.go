// Package main provides the stdio entry point: one JSON feed on stdin,
// the deduplicated feed on stdout.
package main

import (
	"context"
	"flag"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/thebtf/feeddedup/internal/config"
	"github.com/thebtf/feeddedup/internal/dedupe"
	"github.com/thebtf/feeddedup/internal/embedding"
	"github.com/thebtf/feeddedup/internal/stdio"
	"github.com/thebtf/feeddedup/pkg/client"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	threshold := flag.Float64("threshold", dedupe.DefaultThreshold, "Similarity threshold in [0,1] on the scaled cosine")
	provider := flag.String("provider", "", "Embedding provider: hashing, openai, ollama or gemini")
	seed := flag.Uint64("seed", 0, "Seed for the source shuffle (default: random)")
	configPath := flag.String("config", "", "Config file (.json, .yaml or .toml)")
	useWorker := flag.Bool("worker", false, "Forward to a running worker when one is available")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	// stdout carries the response, so log to stderr
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: true})

	_ = godotenv.Load()

	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	var (
		cfg *config.Config
		err error
	)
	if *configPath != "" {
		cfg, err = config.LoadFile(*configPath)
		if err != nil {
			log.Error().Err(err).Msg("Failed to load config")
			return stdio.ExitFailure
		}
	} else {
		// copy so flag overrides stay local
		settings := *config.Get()
		cfg = &settings
	}
	if set["threshold"] {
		cfg.Threshold = *threshold
	}
	if *provider != "" {
		cfg.Provider = *provider
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var handler stdio.Handler
	if *useWorker && !set["seed"] {
		port := cfg.WorkerPort
		if *configPath == "" {
			port = config.GetWorkerPort()
		}
		if c := client.New(port); c.IsRunning(ctx) {
			log.Debug().Int("port", port).Str("worker_version", c.Version(ctx)).Msg("Forwarding to worker")
			t := cfg.Threshold
			handler = func(ctx context.Context, payload []byte) ([]byte, error) {
				return c.Dedupe(ctx, payload, &t)
			}
		}
	}

	if handler == nil {
		p, err := embedding.New(ctx, cfg)
		if err != nil {
			log.Error().Err(err).Msg("Failed to initialize embedding provider")
			return stdio.ExitFailure
		}
		if closer, ok := p.(io.Closer); ok {
			defer closer.Close()
		}

		opts := []dedupe.Option{
			dedupe.WithThreshold(cfg.Threshold),
			dedupe.WithConcurrency(cfg.Concurrency),
		}
		if set["seed"] {
			opts = append(opts, dedupe.WithScheduler(dedupe.NewScheduler(*seed)))
		}
		handler = dedupe.New(p, opts...).DedupeJSON
	}

	log.Debug().
		Str("version", Version).
		Str("provider", cfg.Provider).
		Float64("threshold", cfg.Threshold).
		Msg("Reading feed from stdin")

	err = stdio.Run(ctx, os.Stdin, os.Stdout, handler)
	if err != nil {
		log.Error().Err(err).Msg("Deduplication failed")
	}
	return stdio.ExitCode(err)
}
