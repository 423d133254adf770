package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/trendora/api/orders"

// OrderMetrics records order lifecycle counters and statistics latency through the global
// OpenTelemetry meter provider.
type OrderMetrics struct {
	placed        metric.Int64Counter
	transitions   metric.Int64Counter
	cacheHits     metric.Int64Counter
	statsDuration metric.Float64Histogram
}

// NewOrderMetrics registers the instruments on meter, or the global meter when nil.
func NewOrderMetrics(meter metric.Meter) (*OrderMetrics, error) {
	if meter == nil {
		meter = otel.Meter(meterName)
	}
	placed, err := meter.Int64Counter("orders.created", metric.WithDescription("Orders created from carts"))
	if err != nil {
		return nil, err
	}
	transitions, err := meter.Int64Counter("orders.status_changed", metric.WithDescription("Order status changes by target status"))
	if err != nil {
		return nil, err
	}
	cacheHits, err := meter.Int64Counter("orders.stats.cache_hits")
	if err != nil {
		return nil, err
	}
	statsDuration, err := meter.Float64Histogram("orders.stats.duration", metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}
	return &OrderMetrics{placed: placed, transitions: transitions, cacheHits: cacheHits, statsDuration: statsDuration}, nil
}

// OrderPlaced counts one placed order.
func (m *OrderMetrics) OrderPlaced(ctx context.Context, items int) {
	if m == nil {
		return
	}
	m.placed.Add(ctx, 1, metric.WithAttributes(attribute.Int("items", items)))
}

// StatusChanged counts a transition to status.
func (m *OrderMetrics) StatusChanged(ctx context.Context, from, to, actor string) {
	if m == nil {
		return
	}
	m.transitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("from", from),
		attribute.String("to", to),
		attribute.String("actor", actor),
	))
}

// StatsServed records how long serving statistics took and whether the cache answered.
func (m *OrderMetrics) StatsServed(ctx context.Context, elapsed time.Duration, cached bool) {
	if m == nil {
		return
	}
	if cached {
		m.cacheHits.Add(ctx, 1)
	}
	m.statsDuration.Record(ctx, float64(elapsed.Microseconds())/1000, metric.WithAttributes(attribute.Bool("cached", cached)))
}
