// Package pipeline runs the control loop: sample, normalize, dispatch and
// poll the click switch as one cycle per tick.
package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/san-kum/joydrive/internal/adc"
	"github.com/san-kum/joydrive/internal/button"
	"github.com/san-kum/joydrive/internal/control"
	"github.com/san-kum/joydrive/internal/logging"
	"github.com/san-kum/joydrive/internal/normalize"
	"github.com/san-kum/joydrive/internal/sampler"
	"github.com/san-kum/joydrive/internal/telemetry"
)

var ErrRunning = errors.New("pipeline: loop already running")

// Frame records one control cycle.
type Frame struct {
	Cycle    uint64
	At       time.Time
	Duration time.Duration

	RawX, RawY int
	X, Y       normalize.Signal
	Button     bool
	State      control.State
	Events     []control.Event

	// Failed is set when the transport was unavailable for the whole
	// cycle; the dispatcher then saw the held values.
	Failed bool
	Errs   []error
}

// CycleObserver sees every completed cycle, inside the cycle.
type CycleObserver interface {
	OnCycle(Frame)
}

type ObserverFunc func(Frame)

func (f ObserverFunc) OnCycle(fr Frame) { f(fr) }

type Option func(*Loop)

func WithScheduler(s Scheduler) Option {
	return func(l *Loop) { l.sched = s }
}

func WithLogger(log zerolog.Logger) Option {
	return func(l *Loop) { l.log = log.With().Str("component", "loop").Logger() }
}

func WithMetrics(m *telemetry.Metrics) Option {
	return func(l *Loop) { l.metrics = m }
}

// WithCalibration sets the calibration of one axis.
func WithCalibration(axis sampler.Axis, c normalize.Calibration) Option {
	return func(l *Loop) { l.cal[axis] = c }
}

// WithButton selects the active level of the click switch.
func WithButton(activeHigh bool) Option {
	return func(l *Loop) { l.detector = button.New(activeHigh) }
}

func WithObserver(o CycleObserver) Option {
	return func(l *Loop) { l.observers = append(l.observers, o) }
}

// Loop owns the cadence of the pipeline. Cycles never overlap; a cycle
// that overruns its period drops the ticks that arrived meanwhile.
type Loop struct {
	sampler    *sampler.Sampler
	dispatcher *control.Dispatcher
	detector   *button.Detector
	cal        [2]normalize.Calibration
	sched      Scheduler
	log        zerolog.Logger
	quiet      zerolog.Logger
	metrics    *telemetry.Metrics

	cycleMu    sync.Mutex
	observers  []CycleObserver
	buttonErrs int
	cycles    atomic.Uint64
	skipped   atomic.Uint64
	failed    atomic.Uint64

	runMu  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func New(s *sampler.Sampler, d *control.Dispatcher, opts ...Option) *Loop {
	l := &Loop{
		sampler:    s,
		dispatcher: d,
		detector:   button.New(true),
		cal:        [2]normalize.Calibration{normalize.DefaultCalibration(), normalize.DefaultCalibration()},
		sched:      RealScheduler{},
		log:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.quiet = logging.Sampled(l.log)
	return l
}

func (l *Loop) RegisterChannel(ch adc.Channel) error { return l.sampler.RegisterChannel(ch) }
func (l *Loop) RegisterVx(ch adc.Channel) error      { return l.sampler.RegisterVx(ch) }
func (l *Loop) RegisterVy(ch adc.Channel) error      { return l.sampler.RegisterVy(ch) }

// Subscribe registers s for events of kind.
func (l *Loop) Subscribe(kind control.Kind, s control.Subscriber) {
	l.dispatcher.Subscribe(kind, s)
}

// AddObserver registers o for every later cycle.
func (l *Loop) AddObserver(o CycleObserver) {
	l.cycleMu.Lock()
	l.observers = append(l.observers, o)
	l.cycleMu.Unlock()
}

func (l *Loop) Dispatcher() *control.Dispatcher { return l.dispatcher }
func (l *Loop) Sampler() *sampler.Sampler       { return l.sampler }

// Cycles, Skipped and Failed count cycles run, ticks dropped by overruns
// and cycles with an unavailable transport.
func (l *Loop) Cycles() uint64  { return l.cycles.Load() }
func (l *Loop) Skipped() uint64 { return l.skipped.Load() }
func (l *Loop) Failed() uint64  { return l.failed.Load() }

// Start validates the setup and launches the loop goroutine. It fails with
// an adc.DeviceInitError when the transport is not initialized and with a
// configuration error when an axis is unbound.
func (l *Loop) Start(ctx context.Context) error {
	l.runMu.Lock()
	defer l.runMu.Unlock()

	if l.done != nil {
		return ErrRunning
	}
	if !l.sampler.Transport().Initialized() {
		return &adc.DeviceInitError{Device: "transport", Err: adc.ErrNotInitialized}
	}
	if err := l.sampler.Freeze(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.done = make(chan struct{})
	go l.run(ctx, l.done)

	l.log.Info().
		Dur("interval", l.sampler.Interval()).
		Int("channels", len(l.sampler.Channels())).
		Msg("control loop started")
	return nil
}

// Stop cancels the loop and waits for the running cycle to finish. No
// subscriber is called after Stop returns.
func (l *Loop) Stop() {
	l.runMu.Lock()
	defer l.runMu.Unlock()

	if l.done == nil {
		return
	}
	l.cancel()
	<-l.done
	l.done, l.cancel = nil, nil
	l.sampler.Thaw()
	l.log.Info().
		Uint64("cycles", l.cycles.Load()).
		Uint64("skipped", l.skipped.Load()).
		Msg("control loop stopped")
}

// Done is closed when the running loop exits. It returns nil when the
// loop is not running.
func (l *Loop) Done() <-chan struct{} {
	l.runMu.Lock()
	defer l.runMu.Unlock()
	return l.done
}

func (l *Loop) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := l.sched.NewTicker(l.sampler.Interval())
	defer ticker.Stop()

	for {
		var at time.Time
		select {
		case <-ctx.Done():
			return
		case at = <-ticker.C():
		}

		frame := l.RunOnce(ctx, at)
		if n := drain(ticker); n > 0 {
			l.skipped.Add(uint64(n))
			l.metrics.Skipped(ctx, n)
			l.log.Debug().Uint64("cycle", frame.Cycle).Dur("took", frame.Duration).Msg("cycle overran its period, tick skipped")
		}

		if !frame.Failed {
			continue
		}
		wait := l.sampler.Backoff()
		select {
		case <-ctx.Done():
			return
		case <-l.sched.After(wait):
		}
		drain(ticker)
	}
}

// drain discards ticks that arrived while a cycle ran.
func drain(t Ticker) int {
	n := 0
	for {
		select {
		case <-t.C():
			n++
		default:
			return n
		}
	}
}

// RunOnce runs one cycle at the given tick time. Cycles are serialized;
// the loop goroutine calls it on every tick.
func (l *Loop) RunOnce(ctx context.Context, at time.Time) Frame {
	l.cycleMu.Lock()
	defer l.cycleMu.Unlock()

	start := l.sched.Now()
	res := l.sampler.SampleOnce(ctx)
	frame := Frame{
		Cycle:  l.cycles.Add(1),
		At:     at,
		Failed: res.Unavailable,
		Errs:   res.Errs,
		X:      normalize.Rest,
		Y:      normalize.Rest,
	}
	if res.Unavailable {
		l.failed.Add(1)
	}

	if r, ok := l.sampler.AxisReading(sampler.AxisX); ok && r.Valid {
		frame.RawX = r.Raw
		frame.X = l.cal[sampler.AxisX].Normalize(r.Raw)
	}
	if r, ok := l.sampler.AxisReading(sampler.AxisY); ok && r.Valid {
		frame.RawY = r.Raw
		frame.Y = l.cal[sampler.AxisY].Normalize(r.Raw)
	}

	events := l.dispatcher.Step(frame.X, frame.Y, at)

	if level, err := l.sampler.ReadButton(); err != nil {
		frame.Errs = append(frame.Errs, err)
		l.buttonErrs++
		if l.buttonErrs == 1 {
			l.log.Warn().Err(err).Uint64("cycle", frame.Cycle).Msg("button read failed")
		} else {
			l.quiet.Debug().Err(err).Uint64("cycle", frame.Cycle).Int("consecutive", l.buttonErrs).Msg("button read failed")
		}
	} else {
		if l.buttonErrs > 0 {
			l.log.Info().Int("failed_reads", l.buttonErrs).Msg("button recovered")
			l.buttonErrs = 0
		}
		frame.Button = level
		if _, ok := l.detector.Poll(level, at); ok {
			events = append(events, l.dispatcher.Click(at))
		}
	}

	for _, err := range l.dispatcher.Deliver(ctx, events) {
		frame.Errs = append(frame.Errs, err)
	}

	frame.Events = events
	frame.State = l.dispatcher.State()
	frame.Duration = l.sched.Now().Sub(start)
	l.metrics.Cycle(ctx, frame.Duration)

	for _, o := range l.observers {
		o.OnCycle(frame)
	}
	return frame
}
