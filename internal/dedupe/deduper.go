// Package dedupe removes semantically duplicate text items that appear across
// multiple named sources, keeping one occurrence per duplicate cluster.
//
// The pipeline is: fingerprint every distinct text once, run the greedy
// elimination pass over the fingerprints, project survivors back to text.
// Clusters are defined by the procedure, not by a true equivalence relation:
// thresholded cosine similarity is not transitive, so chains of borderline
// items can resolve differently depending on the visiting order.
package dedupe

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/thebtf/feeddedup/internal/embedding"
	"github.com/thebtf/feeddedup/pkg/models"
)

// DefaultThreshold is used when no threshold option is given.
const DefaultThreshold = 0.7

// DefaultConcurrency bounds parallel fingerprint calls.
const DefaultConcurrency = 4

// Deduper fingerprints feeds with a Provider and eliminates cross-source duplicates.
type Deduper struct {
	provider    embedding.Provider
	scheduler   *Scheduler
	metrics     *instruments
	threshold   float64
	concurrency int
}

// Option configures a Deduper.
type Option func(*Deduper)

// WithThreshold sets the default threshold. Values outside [0, 1] are
// accepted: above 1 nothing matches, below 0 everything matches.
func WithThreshold(threshold float64) Option {
	return func(d *Deduper) { d.threshold = threshold }
}

// WithScheduler pins the source visiting order, e.g. for reproducible runs.
func WithScheduler(s *Scheduler) Option {
	return func(d *Deduper) { d.scheduler = s }
}

// WithConcurrency bounds parallel fingerprint calls. Values below 1 mean 1.
func WithConcurrency(n int) Option {
	return func(d *Deduper) {
		if n < 1 {
			n = 1
		}
		d.concurrency = n
	}
}

// New creates a Deduper backed by provider.
func New(provider embedding.Provider, opts ...Option) *Deduper {
	d := &Deduper{
		provider:    provider,
		threshold:   DefaultThreshold,
		concurrency: DefaultConcurrency,
		metrics:     newInstruments(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.scheduler == nil {
		d.scheduler = NewRandomScheduler()
	}
	return d
}

// Threshold returns the default threshold.
func (d *Deduper) Threshold() float64 { return d.threshold }

// Dedupe removes cross-source duplicates from feed using the default threshold.
// The input is not modified. The result has exactly the input's source names,
// and each source's survivors in their original order.
func (d *Deduper) Dedupe(ctx context.Context, feed models.Feed) (models.Feed, error) {
	out, _, err := d.Run(ctx, feed, d.threshold)
	return out, err
}

// Run is Dedupe with an explicit threshold, also returning pass statistics.
// Any fingerprint failure fails the whole call; no partial result is returned.
func (d *Deduper) Run(ctx context.Context, feed models.Feed, threshold float64) (models.Feed, Stats, error) {
	start := time.Now()

	fingerprints, err := d.fingerprint(ctx, feed.DistinctTexts())
	if err != nil {
		d.metrics.record(ctx, Stats{}, err)
		return nil, Stats{}, err
	}

	coll, err := models.NewSourceCollection(feed, fingerprints)
	if err != nil {
		d.metrics.record(ctx, Stats{}, err)
		return nil, Stats{}, err
	}

	stats := Eliminate(coll, threshold, d.scheduler)
	d.metrics.record(ctx, stats, nil)

	log.Debug().
		Int("sources", stats.Sources).
		Int("items_in", stats.ItemsIn).
		Int("items_out", stats.ItemsOut).
		Int("comparisons", stats.Comparisons).
		Float64("threshold", threshold).
		Dur("took", time.Since(start)).
		Msg("Deduplication complete")

	return coll.Feed(), stats, nil
}

// DedupeJSON runs Dedupe on a JSON-encoded feed and returns the JSON result.
func (d *Deduper) DedupeJSON(ctx context.Context, payload []byte) ([]byte, error) {
	feed, err := ParseFeed(payload)
	if err != nil {
		return nil, err
	}
	out, err := d.Dedupe(ctx, feed)
	if err != nil {
		return nil, err
	}
	return EncodeFeed(out)
}

// fingerprint embeds each text exactly once and validates every vector
// against one common dimension. All calls finish before it returns.
func (d *Deduper) fingerprint(ctx context.Context, texts []string) (map[string][]float32, error) {
	vecs := make([][]float32, len(texts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.concurrency)
	for i, text := range texts {
		g.Go(func() error {
			vec, err := d.provider.Embed(gctx, text)
			if err != nil {
				if !errors.Is(err, embedding.ErrUpstream) {
					err = fmt.Errorf("%w: %w", embedding.ErrUpstream, err)
				}
				return fmt.Errorf("fingerprint %s: %w", preview(text), err)
			}
			vecs[i] = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	dim := d.provider.Dimensions()
	if dim == 0 && len(vecs) > 0 {
		dim = len(vecs[0])
	}

	fingerprints := make(map[string][]float32, len(texts))
	for i, vec := range vecs {
		if err := embedding.Validate(vec, dim); err != nil {
			return nil, fmt.Errorf("fingerprint %s: %w", preview(texts[i]), err)
		}
		fingerprints[texts[i]] = vec
	}
	return fingerprints, nil
}

// preview quotes at most the first 40 runes of text for error messages.
func preview(text string) string {
	r := []rune(text)
	if len(r) > 40 {
		return fmt.Sprintf("%q...", string(r[:40]))
	}
	return fmt.Sprintf("%q", text)
}
