package sampler

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/san-kum/joydrive/internal/adc"
	"github.com/san-kum/joydrive/internal/dynamo"
)

func newFake(t *testing.T) *adc.Fake {
	t.Helper()
	f := adc.NewFake()
	if err := f.Init(adc.InitOptions{}); err != nil {
		t.Fatalf("init fake: %v", err)
	}
	return f
}

func TestRegisterChannel(t *testing.T) {
	s := New(newFake(t), WithCapacity(2))

	if err := s.RegisterChannel(adc.CH0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.RegisterChannel(adc.CH0); err != nil {
		t.Errorf("re-registering should be a no-op, got %v", err)
	}
	if err := s.RegisterChannel(adc.CH1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err := s.RegisterChannel(adc.CH2)
	if !errors.Is(err, ErrSetFull) || !errors.Is(err, dynamo.ErrConfiguration) {
		t.Errorf("expected full set configuration error, got %v", err)
	}
	if got := s.Channels(); len(got) != 2 {
		t.Errorf("expected 2 channels, got %v", got)
	}
}

func TestRegisterBeforeInit(t *testing.T) {
	s := New(adc.NewFake())
	err := s.RegisterChannel(adc.CH0)
	if !errors.Is(err, ErrNotInitialized) || !errors.Is(err, dynamo.ErrConfiguration) {
		t.Errorf("expected not initialized configuration error, got %v", err)
	}
}

func TestBindAxis(t *testing.T) {
	s := New(newFake(t))

	if err := s.RegisterVx(adc.CH1); !errors.Is(err, dynamo.ErrConfiguration) {
		t.Errorf("binding an unregistered channel should fail, got %v", err)
	}
	if err := s.Freeze(); err == nil {
		t.Error("freeze should fail with unbound axes")
	}

	s.RegisterChannel(adc.CH0)
	s.RegisterChannel(adc.CH1)
	if err := s.RegisterVy(adc.CH0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.RegisterVx(adc.CH1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Freeze(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := s.RegisterVx(adc.CH0); !errors.Is(err, ErrFrozen) {
		t.Errorf("expected ErrFrozen, got %v", err)
	}
	if err := s.RegisterChannel(adc.CH3); !errors.Is(err, ErrFrozen) {
		t.Errorf("expected ErrFrozen, got %v", err)
	}
	if ch, ok := s.Binding(AxisX); !ok || ch != adc.CH1 {
		t.Errorf("expected vx bound to CH_1, got %s %v", ch, ok)
	}

	s.Thaw()
	if err := s.RegisterChannel(adc.CH3); err != nil {
		t.Errorf("register after thaw failed: %v", err)
	}
}

func TestTransportErrorHoldsValue(t *testing.T) {
	f := newFake(t)
	s := New(f)
	s.RegisterChannel(adc.CH0)
	s.RegisterChannel(adc.CH1)

	f.Set(adc.CH0, 800)
	f.Set(adc.CH1, 300)
	res := s.SampleOnce(context.Background())
	if res.Read != 2 || res.Failed != 0 {
		t.Fatalf("unexpected first pass: %+v", res)
	}

	f.FailChannel(adc.CH0, errors.New("crc mismatch"))
	f.Set(adc.CH0, 100)
	f.Set(adc.CH1, 700)
	res = s.SampleOnce(context.Background())
	if res.Read != 1 || res.Failed != 1 || res.Unavailable {
		t.Fatalf("unexpected second pass: %+v", res)
	}
	if !errors.Is(res.Errs[0], dynamo.ErrTransport) {
		t.Errorf("expected transport error, got %v", res.Errs[0])
	}

	r0, _ := s.Latest(adc.CH0)
	if r0.Raw != 800 || r0.Errors != 1 || !r0.Valid {
		t.Errorf("CH_0 should hold 800, got %+v", r0)
	}
	r1, _ := s.Latest(adc.CH1)
	if r1.Raw != 700 || r1.Errors != 0 {
		t.Errorf("CH_1 should read 700, got %+v", r1)
	}

	f.FailChannel(adc.CH0, nil)
	s.SampleOnce(context.Background())
	if r0, _ = s.Latest(adc.CH0); r0.Raw != 100 || r0.Errors != 0 {
		t.Errorf("CH_0 should recover to 100, got %+v", r0)
	}
	if s.Backoff() != DefaultPollInterval {
		t.Errorf("single channel failures must not back off, got %v", s.Backoff())
	}
}

func TestBackoff(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf).Level(zerolog.DebugLevel)

	f := newFake(t)
	s := New(f,
		WithLogger(log),
		WithPollInterval(100*time.Millisecond),
		WithMaxBackoff(time.Second),
	)
	s.RegisterChannel(adc.CH0)
	s.RegisterChannel(adc.CH1)

	f.FailAll(adc.ErrUnavailable)
	want := []time.Duration{
		200 * time.Millisecond,
		400 * time.Millisecond,
		800 * time.Millisecond,
		time.Second,
		time.Second,
	}
	for i, w := range want {
		res := s.SampleOnce(context.Background())
		if !res.Unavailable {
			t.Fatalf("pass %d: expected unavailable cycle", i)
		}
		if got := s.Backoff(); got != w {
			t.Errorf("pass %d: expected backoff %v, got %v", i, w, got)
		}
	}

	if n := strings.Count(buf.String(), `"level":"error"`); n != 1 {
		t.Errorf("outage should be reported once at error level, got %d", n)
	}

	f.FailAll(nil)
	res := s.SampleOnce(context.Background())
	if res.Unavailable || res.Read != 2 {
		t.Fatalf("expected recovered pass, got %+v", res)
	}
	if s.Backoff() != 100*time.Millisecond || s.FailedCycles() != 0 {
		t.Errorf("backoff should reset after recovery, got %v", s.Backoff())
	}
	if !strings.Contains(buf.String(), "transport recovered") {
		t.Error("recovery should be logged")
	}
}

func TestAxisReading(t *testing.T) {
	f := newFake(t)
	now := time.Unix(42, 0)
	s := New(f, WithClock(func() time.Time { return now }))
	s.RegisterChannel(adc.CH0)
	s.RegisterVy(adc.CH0)

	if _, ok := s.AxisReading(AxisX); ok {
		t.Error("unbound axis should have no reading")
	}

	f.Set(adc.CH0, 900)
	s.SampleOnce(context.Background())
	r, ok := s.AxisReading(AxisY)
	if !ok || r.Raw != 900 || !r.At.Equal(now) || r.Channel != adc.CH0 {
		t.Errorf("unexpected vy reading %+v", r)
	}
}
