// Package telemetry holds the OpenTelemetry instruments of the control
// loop. Instruments come from the global meter provider, which is a no-op
// until a provider is installed.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/san-kum/joydrive"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}

// Metrics groups the loop counters. A nil *Metrics records nothing, so
// components can hold one unconditionally.
type Metrics struct {
	cycles          metric.Int64Counter
	skipped         metric.Int64Counter
	failed          metric.Int64Counter
	transportErrors metric.Int64Counter
	handlerErrors   metric.Int64Counter
	events          metric.Int64Counter
	cycleDuration   metric.Float64Histogram
}

// New creates the instruments on m, or on the global meter when m is nil.
func New(m metric.Meter) (*Metrics, error) {
	if m == nil {
		m = meter()
	}
	var (
		t   Metrics
		err error
	)

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&t.cycles, "joydrive.cycles", "Control cycles run"},
		{&t.skipped, "joydrive.cycles.skipped", "Ticks dropped because a cycle overran its period"},
		{&t.failed, "joydrive.cycles.failed", "Cycles where the transport was unavailable"},
		{&t.transportErrors, "joydrive.transport.errors", "Failed channel reads"},
		{&t.handlerErrors, "joydrive.handler.errors", "Failed or panicking event subscribers"},
		{&t.events, "joydrive.events", "Control events dispatched"},
	}
	for _, c := range counters {
		*c.dst, err = m.Int64Counter(c.name, metric.WithDescription(c.desc))
		if err != nil {
			return nil, fmt.Errorf("creating %s counter: %w", c.name, err)
		}
	}

	t.cycleDuration, err = m.Float64Histogram(
		"joydrive.cycle.duration",
		metric.WithDescription("Wall time of one control cycle"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating cycle duration histogram: %w", err)
	}
	return &t, nil
}

func (t *Metrics) Cycle(ctx context.Context, d time.Duration) {
	if t == nil {
		return
	}
	t.cycles.Add(ctx, 1)
	t.cycleDuration.Record(ctx, float64(d)/float64(time.Millisecond))
}

func (t *Metrics) Skipped(ctx context.Context, n int) {
	if t == nil || n <= 0 {
		return
	}
	t.skipped.Add(ctx, int64(n))
}

func (t *Metrics) FailedCycle(ctx context.Context) {
	if t == nil {
		return
	}
	t.failed.Add(ctx, 1)
}

func (t *Metrics) TransportError(ctx context.Context, channel string) {
	if t == nil {
		return
	}
	t.transportErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("channel", channel)))
}

func (t *Metrics) HandlerError(ctx context.Context, kind string) {
	if t == nil {
		return
	}
	t.handlerErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

func (t *Metrics) Event(ctx context.Context, kind string) {
	if t == nil {
		return
	}
	t.events.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}
