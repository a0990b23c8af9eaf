// Package worker provides the long-running HTTP deduplication service.
package worker

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/thebtf/feeddedup/internal/config"
	"github.com/thebtf/feeddedup/internal/dedupe"
	"github.com/thebtf/feeddedup/internal/embedding"
)

// MaxRequestBytes caps the size of a dedupe request body.
const MaxRequestBytes = 16 << 20

// Service serves deduplication over HTTP.
type Service struct {
	startTime time.Time
	ctx       context.Context
	provider  embedding.Provider
	config    *config.Config
	deduper   *dedupe.Deduper
	router    *chi.Mux
	server    *http.Server
	cancel    context.CancelFunc
	version   string
	threshold atomic.Uint64 // math.Float64bits
	requests  atomic.Int64
	failures  atomic.Int64
	removed   atomic.Int64
	ready     atomic.Bool
}

// NewService creates a service using provider for fingerprints.
// opts are passed to the underlying Deduper.
func NewService(version string, cfg *config.Config, provider embedding.Provider, opts ...dedupe.Option) *Service {
	ctx, cancel := context.WithCancel(context.Background())

	opts = append([]dedupe.Option{
		dedupe.WithThreshold(cfg.Threshold),
		dedupe.WithConcurrency(cfg.Concurrency),
	}, opts...)

	svc := &Service{
		version:   version,
		config:    cfg,
		provider:  provider,
		deduper:   dedupe.New(provider, opts...),
		router:    chi.NewRouter(),
		ctx:       ctx,
		cancel:    cancel,
		startTime: time.Now(),
	}
	svc.SetThreshold(svc.deduper.Threshold())
	svc.setupRoutes()
	return svc
}

// Threshold returns the threshold applied when a request does not set one.
func (s *Service) Threshold() float64 {
	return math.Float64frombits(s.threshold.Load())
}

// SetThreshold changes the default threshold for subsequent requests.
func (s *Service) SetThreshold(threshold float64) {
	s.threshold.Store(math.Float64bits(threshold))
}

// ReloadSettings re-reads the settings file and applies the new threshold.
// Other settings need a restart.
func (s *Service) ReloadSettings() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	old := s.Threshold()
	s.SetThreshold(cfg.Threshold)
	log.Info().
		Float64("old_threshold", old).
		Float64("threshold", cfg.Threshold).
		Msg("Settings reloaded")
	return nil
}

// Handler returns the HTTP handler, for embedding the service elsewhere.
func (s *Service) Handler() http.Handler {
	return s.router
}

func (s *Service) setupRoutes() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(requestID)

	s.router.Get("/api/health", s.handleHealth)
	s.router.Get("/api/ready", s.handleReady)
	s.router.Get("/api/version", s.handleVersion)
	s.router.Get("/api/stats", s.handleStats)
	s.router.Post("/api/dedupe", s.handleDedupe)
}

// Start listens on addr and serves in the background.
// It returns once the listener is bound.
func (s *Service) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}

	s.server = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return s.ctx },
	}

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Worker server stopped")
		}
	}()

	s.ready.Store(true)
	log.Info().
		Str("addr", ln.Addr().String()).
		Str("model", s.provider.Model()).
		Float64("threshold", s.Threshold()).
		Msg("Worker started")
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Service) Shutdown(ctx context.Context) error {
	s.ready.Store(false)
	defer s.cancel()
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
