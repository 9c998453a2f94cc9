package storage

import (
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/san-kum/joydrive/internal/control"
	"github.com/san-kum/joydrive/internal/physics"
	"github.com/san-kum/joydrive/internal/pipeline"
)

const defaultBatch = 50

// Tracker reports the vehicles of a physics world. *physics.World
// implements it.
type Tracker interface {
	Snapshot() []physics.VehicleState
}

// Recorder writes every cycle of a loop into a run. It is a
// pipeline.CycleObserver; frames are buffered and written in batches.
type Recorder struct {
	store   *Store
	tracker Tracker
	batch   int
	log     zerolog.Logger

	mu     sync.Mutex
	run    *Run
	buf    []FrameRecord
	closed bool
}

type RecorderOption func(*Recorder)

func WithTracker(t Tracker) RecorderOption {
	return func(r *Recorder) { r.tracker = t }
}

func WithBatch(n int) RecorderOption {
	return func(r *Recorder) {
		if n > 0 {
			r.batch = n
		}
	}
}

// NewRecorder creates the run and returns its recorder.
func NewRecorder(s *Store, name, source, preset string, opts ...RecorderOption) (*Recorder, error) {
	run, err := s.CreateRun(name, source, preset, time.Now())
	if err != nil {
		return nil, err
	}
	r := &Recorder{
		store: s,
		run:   run,
		batch: defaultBatch,
		log:   s.log.With().Uint("run", run.ID).Logger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.log.Info().Str("name", name).Msg("recording run")
	return r, nil
}

func (r *Recorder) Run() Run {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.run
}

// OnCycle buffers the frame.
func (r *Recorder) OnCycle(f pipeline.Frame) {
	rec := FrameRecord{
		Cycle:  f.Cycle,
		At:     f.At,
		RawX:   f.RawX,
		RawY:   f.RawY,
		X:      f.X.Value,
		Y:      f.Y.Value,
		Button: f.Button,
		State:  f.State.String(),
		Events: eventKinds(f.Events),
		Failed: f.Failed,
		Errors: len(f.Errs),
	}
	if r.tracker != nil {
		if vs := r.tracker.Snapshot(); len(vs) > 0 {
			v := vs[0]
			rec.PosX, rec.PosY, rec.PosZ = v.Position.X, v.Position.Y, v.Position.Z
			rec.Speed, rec.Engine, rec.Steer = v.Speed, v.Engine, v.Steer
			rec.Tracked = true
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}

	r.run.Cycles = f.Cycle
	r.run.Events += len(f.Events)
	for _, ev := range f.Events {
		if ev.Kind == control.Click {
			r.run.Clicks++
		}
	}
	if f.Failed {
		r.run.Failed++
	}

	r.buf = append(r.buf, rec)
	if len(r.buf) >= r.batch {
		r.flushLocked()
	}
}

func (r *Recorder) flushLocked() {
	if len(r.buf) == 0 {
		return
	}
	if err := r.store.AddFrames(r.run.ID, r.buf); err != nil {
		r.log.Error().Err(err).Int("frames", len(r.buf)).Msg("failed to write frames")
	}
	r.buf = r.buf[:0]
}

// Close flushes the buffer and finishes the run with the loop's skip
// count and the given session metrics.
func (r *Recorder) Close(skipped uint64, metrics map[string]float64) (Run, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return *r.run, nil
	}
	r.closed = true
	r.flushLocked()

	r.run.EndedAt = time.Now()
	r.run.Skipped = skipped
	r.run.Metrics = metrics
	if err := r.store.FinishRun(r.run); err != nil {
		return *r.run, err
	}
	r.log.Info().
		Uint64("cycles", r.run.Cycles).
		Float64("distance", r.run.Distance).
		Msg("run recorded")
	return *r.run, nil
}

func eventKinds(events []control.Event) string {
	if len(events) == 0 {
		return ""
	}
	kinds := make([]string, len(events))
	for i, ev := range events {
		kinds[i] = ev.Kind.String()
	}
	return strings.Join(kinds, ",")
}
