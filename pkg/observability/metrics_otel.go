package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OTelMetrics records traversals through the global OpenTelemetry meter
// provider. It is a no-op until InitOTel installs an exporter.
type OTelMetrics struct {
	traversals        metric.Int64Counter
	traversalDuration metric.Float64Histogram
	traversalNodes    metric.Int64Histogram
}

// NewOTelMetrics creates the traversal instruments
func NewOTelMetrics() (*OTelMetrics, error) {
	return NewOTelMetricsWithMeter(otel.Meter(instrumentationName))
}

// NewOTelMetricsWithMeter creates the traversal instruments on meter
func NewOTelMetricsWithMeter(meter metric.Meter) (*OTelMetrics, error) {
	m := &OTelMetrics{}
	var err error

	m.traversals, err = meter.Int64Counter(
		"lineage.traversals",
		metric.WithDescription("Total number of lineage traversals"),
		metric.WithUnit("{traversal}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create traversals counter: %w", err)
	}

	m.traversalDuration, err = meter.Float64Histogram(
		"lineage.traversal.duration",
		metric.WithDescription("Lineage traversal duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create traversal duration histogram: %w", err)
	}

	m.traversalNodes, err = meter.Int64Histogram(
		"lineage.traversal.nodes",
		metric.WithDescription("Number of entries in a traversal result"),
		metric.WithUnit("{node}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create traversal nodes histogram: %w", err)
	}

	return m, nil
}

// RecordTraversal implements TraversalRecorder
func (m *OTelMetrics) RecordTraversal(ctx context.Context, direction string, nodes int, duration time.Duration, err error) {
	attrs := metric.WithAttributes(
		attribute.String("direction", direction),
		attribute.String("status", statusLabel(err)),
	)
	m.traversals.Add(ctx, 1, attrs)
	m.traversalDuration.Record(ctx, duration.Seconds(), attrs)
	if err == nil {
		m.traversalNodes.Record(ctx, int64(nodes), attrs)
	}
}
