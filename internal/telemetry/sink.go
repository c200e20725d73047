package telemetry

import (
	"context"
	"fmt"
	"sort"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// EventsCounterName is the counter every telemetry signal increments.
const EventsCounterName = "docledger.telemetry.events"

// Signal names emitted by the document orchestrators.
const (
	DocumentsEmbedded = "documents_embedded_in_workspace"
)

// Sink records named telemetry signals. Recording never fails the caller.
type Sink struct {
	counter metric.Int64Counter
}

// NewSink creates the events counter on meter.
func NewSink(meter metric.Meter, logger *zap.Logger) *Sink {
	if logger == nil {
		logger = zap.NewNop()
	}
	counter, err := meter.Int64Counter(EventsCounterName,
		metric.WithDescription("Telemetry signals emitted by docledger operations"),
		metric.WithUnit("{event}"))
	if err != nil {
		logger.Warn("failed to create telemetry counter", zap.Error(err))
	}
	return &Sink{counter: counter}
}

// Record increments the counter once for event. Dimensions become attributes
// with their values formatted as strings.
func (s *Sink) Record(ctx context.Context, event string, dimensions map[string]any) {
	if s == nil || s.counter == nil {
		return
	}
	attrs := make([]attribute.KeyValue, 0, len(dimensions)+1)
	attrs = append(attrs, attribute.String("event", event))

	keys := make([]string, 0, len(dimensions))
	for k := range dimensions {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		attrs = append(attrs, attribute.String(k, fmt.Sprint(dimensions[k])))
	}
	s.counter.Add(ctx, 1, metric.WithAttributes(attrs...))
}
