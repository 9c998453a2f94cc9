// Package sampler keeps the latest raw reading of each registered
// converter channel. The control loop drives it one pass at a time.
package sampler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/san-kum/joydrive/internal/adc"
	"github.com/san-kum/joydrive/internal/dynamo"
	"github.com/san-kum/joydrive/internal/logging"
	"github.com/san-kum/joydrive/internal/telemetry"
)

const (
	DefaultPollInterval = 100 * time.Millisecond
	DefaultMaxBackoff   = 2 * time.Second
)

var (
	ErrSetFull        = fmt.Errorf("%w: sampling set full", dynamo.ErrConfiguration)
	ErrNotInitialized = fmt.Errorf("%w: transport not initialized", dynamo.ErrConfiguration)
	ErrNotRegistered  = fmt.Errorf("%w: channel not registered", dynamo.ErrConfiguration)
	ErrFrozen         = fmt.Errorf("%w: sampling set is frozen while running", dynamo.ErrConfiguration)
)

// Axis is a logical joystick axis.
type Axis uint8

const (
	AxisX Axis = iota // Vx, steering
	AxisY             // Vy, acceleration
)

func (a Axis) String() string {
	if a == AxisX {
		return "vx"
	}
	return "vy"
}

// Reading is the latest value of one channel. Valid is false until the
// first successful read. Errors counts consecutive failed reads; Raw and
// At keep the last good sample meanwhile.
type Reading struct {
	Channel adc.Channel
	Raw     int
	At      time.Time
	Valid   bool
	Errors  int
}

// CycleResult summarizes one sampling pass.
type CycleResult struct {
	At          time.Time
	Read        int
	Failed      int
	Unavailable bool
	Errs        []error
}

type Option func(*Sampler)

func WithLogger(log zerolog.Logger) Option {
	return func(s *Sampler) { s.log = log.With().Str("component", "sampler").Logger() }
}

func WithPollInterval(d time.Duration) Option {
	return func(s *Sampler) { s.interval = d }
}

func WithMaxBackoff(d time.Duration) Option {
	return func(s *Sampler) { s.maxBackoff = d }
}

// WithCapacity limits the number of registered channels.
func WithCapacity(n int) Option {
	return func(s *Sampler) { s.capacity = n }
}

func WithClock(now func() time.Time) Option {
	return func(s *Sampler) { s.now = now }
}

func WithMetrics(m *telemetry.Metrics) Option {
	return func(s *Sampler) { s.metrics = m }
}

// Sampler owns the transport handle it reads through.
type Sampler struct {
	transport  adc.Transport
	log        zerolog.Logger
	quiet      zerolog.Logger
	metrics    *telemetry.Metrics
	interval   time.Duration
	maxBackoff time.Duration
	capacity   int
	now        func() time.Time

	mu       sync.Mutex
	order    []adc.Channel
	readings map[adc.Channel]*Reading
	axes     [2]adc.Channel
	bound    [2]bool
	frozen   bool
	failures int
}

func New(t adc.Transport, opts ...Option) *Sampler {
	s := &Sampler{
		transport:  t,
		log:        zerolog.Nop(),
		interval:   DefaultPollInterval,
		maxBackoff: DefaultMaxBackoff,
		capacity:   adc.NumChannels,
		now:        time.Now,
		readings:   make(map[adc.Channel]*Reading),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.quiet = logging.Sampled(s.log)
	if s.interval <= 0 {
		s.interval = DefaultPollInterval
	}
	if s.maxBackoff < s.interval {
		s.maxBackoff = s.interval
	}
	return s
}

func (s *Sampler) Transport() adc.Transport {
	return s.transport
}

func (s *Sampler) Interval() time.Duration {
	return s.interval
}

// RegisterChannel adds ch to the sampling set. Registering a channel
// twice is a no-op.
func (s *Sampler) RegisterChannel(ch adc.Channel) error {
	if !ch.Valid() {
		return dynamo.Configf("channel", "%s out of range", ch)
	}
	if !s.transport.Initialized() {
		return ErrNotInitialized
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.readings[ch]; ok {
		return nil
	}
	if s.frozen {
		return ErrFrozen
	}
	if len(s.order) >= s.capacity {
		return fmt.Errorf("%w: %d channels", ErrSetFull, s.capacity)
	}
	s.order = append(s.order, ch)
	s.readings[ch] = &Reading{Channel: ch}
	s.log.Debug().Stringer("channel", ch).Msg("channel registered")
	return nil
}

// BindAxis maps a logical axis to a registered channel.
func (s *Sampler) BindAxis(axis Axis, ch adc.Channel) error {
	if axis > AxisY {
		return dynamo.Configf("axis", "unknown axis %d", axis)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.frozen {
		return ErrFrozen
	}
	if _, ok := s.readings[ch]; !ok {
		return fmt.Errorf("bind %s to %s: %w", axis, ch, ErrNotRegistered)
	}
	s.axes[axis] = ch
	s.bound[axis] = true
	return nil
}

func (s *Sampler) RegisterVx(ch adc.Channel) error { return s.BindAxis(AxisX, ch) }
func (s *Sampler) RegisterVy(ch adc.Channel) error { return s.BindAxis(AxisY, ch) }

// Binding returns the channel bound to axis.
func (s *Sampler) Binding(axis Axis) (adc.Channel, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if axis > AxisY {
		return 0, false
	}
	return s.axes[axis], s.bound[axis]
}

// Freeze makes the channel set and axis bindings immutable. It fails when
// an axis is unbound.
func (s *Sampler) Freeze() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, axis := range []Axis{AxisX, AxisY} {
		if !s.bound[axis] {
			return dynamo.Configf("axes", "%s is not bound to a channel", axis)
		}
	}
	s.frozen = true
	return nil
}

// Thaw undoes Freeze once the loop has stopped.
func (s *Sampler) Thaw() {
	s.mu.Lock()
	s.frozen = false
	s.mu.Unlock()
}

func (s *Sampler) Channels() []adc.Channel {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]adc.Channel(nil), s.order...)
}

func (s *Sampler) Latest(ch adc.Channel) (Reading, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.readings[ch]
	if !ok {
		return Reading{}, false
	}
	return *r, true
}

// AxisReading returns the latest reading of the channel bound to axis.
func (s *Sampler) AxisReading(axis Axis) (Reading, bool) {
	ch, ok := s.Binding(axis)
	if !ok {
		return Reading{}, false
	}
	return s.Latest(ch)
}

// SampleOnce reads every registered channel once. A failed read keeps the
// channel's previous value. When every read fails because the transport is
// unavailable the pass counts as a failed cycle and Backoff grows.
func (s *Sampler) SampleOnce(ctx context.Context) CycleResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := CycleResult{At: s.now()}
	unavailable := 0
	for _, ch := range s.order {
		r := s.readings[ch]
		v, err := s.transport.ReadChannel(ch)
		if err != nil {
			r.Errors++
			res.Failed++
			res.Errs = append(res.Errs, err)
			if errors.Is(err, adc.ErrUnavailable) {
				unavailable++
			}
			s.metrics.TransportError(ctx, ch.String())
			if r.Errors == 1 {
				s.log.Warn().Err(err).Stringer("channel", ch).Msg("channel read failed, holding last value")
			} else {
				s.quiet.Debug().Err(err).Stringer("channel", ch).Int("consecutive", r.Errors).Msg("channel read failed")
			}
			continue
		}
		if r.Errors > 0 {
			s.log.Info().Stringer("channel", ch).Int("failed_reads", r.Errors).Msg("channel recovered")
		}
		r.Raw, r.At, r.Valid, r.Errors = v, res.At, true, 0
		res.Read++
	}

	if len(s.order) > 0 && unavailable == len(s.order) {
		res.Unavailable = true
		s.failures++
		s.metrics.FailedCycle(ctx)
		if s.failures == 1 {
			s.log.Error().Err(res.Errs[0]).Msg("transport unavailable, backing off")
		} else {
			s.log.Debug().Int("failed_cycles", s.failures).Dur("backoff", s.backoffLocked()).Msg("transport still unavailable")
		}
		return res
	}
	if s.failures > 0 {
		s.log.Info().Int("failed_cycles", s.failures).Msg("transport recovered")
		s.failures = 0
	}
	return res
}

// Backoff is the wait before the next pass: the poll interval, doubled per
// consecutive failed cycle, capped at the maximum backoff.
func (s *Sampler) Backoff() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backoffLocked()
}

func (s *Sampler) backoffLocked() time.Duration {
	d := s.interval
	for i := 0; i < s.failures && d < s.maxBackoff; i++ {
		d *= 2
	}
	if d > s.maxBackoff {
		d = s.maxBackoff
	}
	return d
}

// FailedCycles returns the number of consecutive failed cycles.
func (s *Sampler) FailedCycles() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failures
}

// ReadButton reads the click switch level through the transport.
func (s *Sampler) ReadButton() (bool, error) {
	return s.transport.ReadButton()
}
