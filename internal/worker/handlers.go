package worker

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/thebtf/feeddedup/internal/dedupe"
	"github.com/thebtf/feeddedup/internal/embedding"
)

type ctxKey struct{}

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

// requestID tags each request with an id, reusing the caller's when present.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, id)))
	})
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Service) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": s.version})
}

func (s *Service) handleReady(w http.ResponseWriter, _ *http.Request) {
	if !s.ready.Load() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "starting"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Service) handleVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": s.version})
}

// StatsResponse is the body of GET /api/stats.
type StatsResponse struct {
	Cache         *embedding.CacheStats `json:"cache,omitempty"`
	Version       string                `json:"version"`
	Model         string                `json:"model"`
	Uptime        string                `json:"uptime"`
	Threshold     float64               `json:"threshold"`
	Requests      int64                 `json:"requests"`
	Failures      int64                 `json:"failures"`
	ItemsRemoved  int64                 `json:"items_removed"`
	Dimensions    int                   `json:"dimensions"`
	UptimeSeconds int64                 `json:"uptime_seconds"`
}

func (s *Service) handleStats(w http.ResponseWriter, _ *http.Request) {
	uptime := time.Since(s.startTime)
	resp := StatsResponse{
		Version:       s.version,
		Model:         s.provider.Model(),
		Dimensions:    s.provider.Dimensions(),
		Threshold:     s.Threshold(),
		Requests:      s.requests.Load(),
		Failures:      s.failures.Load(),
		ItemsRemoved:  s.removed.Load(),
		Uptime:        uptime.Round(time.Second).String(),
		UptimeSeconds: int64(uptime.Seconds()),
	}
	if cp, ok := s.provider.(*embedding.CachedProvider); ok {
		stats := cp.Stats()
		resp.Cache = &stats
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleDedupe accepts a feed object and returns it with cross-source
// duplicates removed. An optional ?threshold= overrides the default.
func (s *Service) handleDedupe(w http.ResponseWriter, r *http.Request) {
	s.requests.Add(1)
	start := time.Now()
	logger := log.With().Str("request_id", requestIDFrom(r.Context())).Logger()

	threshold := s.Threshold()
	if raw := r.URL.Query().Get("threshold"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			s.failures.Add(1)
			writeError(w, http.StatusBadRequest, errors.New("threshold must be a number"))
			return
		}
		threshold = v
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxRequestBytes))
	if err != nil {
		s.failures.Add(1)
		status := http.StatusBadRequest
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		writeError(w, status, err)
		return
	}

	feed, err := dedupe.ParseFeed(body)
	if err != nil {
		s.failures.Add(1)
		logger.Debug().Err(err).Msg("Rejected malformed feed")
		writeError(w, http.StatusBadRequest, err)
		return
	}

	out, stats, err := s.deduper.Run(r.Context(), feed, threshold)
	if err != nil {
		s.failures.Add(1)
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			status = http.StatusServiceUnavailable
		case errors.Is(err, embedding.ErrUpstream):
			status = http.StatusBadGateway
		}
		logger.Error().Err(err).Int("status", status).Msg("Deduplication failed")
		writeError(w, status, err)
		return
	}
	s.removed.Add(int64(stats.Removed))

	data, err := dedupe.EncodeFeed(out)
	if err != nil {
		s.failures.Add(1)
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	logger.Info().
		Int("sources", stats.Sources).
		Int("items_in", stats.ItemsIn).
		Int("items_out", stats.ItemsOut).
		Float64("threshold", threshold).
		Dur("took", time.Since(start)).
		Msg("Deduplicated feed")

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
