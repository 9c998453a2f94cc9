package telemetry

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel/metric/noop"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	ctx := context.Background()

	m.Cycle(ctx, time.Millisecond)
	m.Skipped(ctx, 3)
	m.FailedCycle(ctx)
	m.TransportError(ctx, "CH_0")
	m.HandlerError(ctx, "forward")
	m.Event(ctx, "forward")
}

func TestNewOnNoopMeter(t *testing.T) {
	m, err := New(noop.NewMeterProvider().Meter("test"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx := context.Background()
	m.Cycle(ctx, 5*time.Millisecond)
	m.Skipped(ctx, 2)
	m.Event(ctx, "click")
}

func TestNewOnGlobalMeter(t *testing.T) {
	if _, err := New(nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
