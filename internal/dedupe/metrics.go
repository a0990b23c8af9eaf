package dedupe

import (
	"context"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "github.com/thebtf/feeddedup/internal/dedupe"

// instruments holds the counters recorded for every run.
type instruments struct {
	runs         metric.Int64Counter
	itemsIn      metric.Int64Counter
	itemsRemoved metric.Int64Counter
	comparisons  metric.Int64Counter
}

func newInstruments() *instruments {
	meter := otel.Meter(meterName)
	return &instruments{
		runs:         counter(meter, "feeddedup.runs", "Deduplication runs by outcome"),
		itemsIn:      counter(meter, "feeddedup.items.in", "Items received for deduplication"),
		itemsRemoved: counter(meter, "feeddedup.items.removed", "Items removed as cross-source duplicates"),
		comparisons:  counter(meter, "feeddedup.comparisons", "Pairwise similarity computations"),
	}
}

func counter(meter metric.Meter, name, desc string) metric.Int64Counter {
	c, err := meter.Int64Counter(name, metric.WithDescription(desc))
	if err != nil {
		log.Warn().Err(err).Str("instrument", name).Msg("Failed to create counter, metric disabled")
		return noop.Int64Counter{}
	}
	return c
}

func (m *instruments) record(ctx context.Context, stats Stats, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.runs.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	if err != nil {
		return
	}
	m.itemsIn.Add(ctx, int64(stats.ItemsIn))
	m.itemsRemoved.Add(ctx, int64(stats.Removed))
	m.comparisons.Add(ctx, int64(stats.Comparisons))
}
