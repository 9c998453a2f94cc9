package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/san-kum/joydrive/internal/adc"
	"github.com/san-kum/joydrive/internal/config"
	"github.com/san-kum/joydrive/internal/control"
	"github.com/san-kum/joydrive/internal/metrics"
	"github.com/san-kum/joydrive/internal/physics"
	"github.com/san-kum/joydrive/internal/pipeline"
	"github.com/san-kum/joydrive/internal/sampler"
	"github.com/san-kum/joydrive/internal/storage"
	"github.com/san-kum/joydrive/internal/telemetry"
	"github.com/san-kum/joydrive/internal/vehicle"
)

// session is one wired control pipeline: transport, loop, vehicle and the
// observers recording it.
type session struct {
	cfg       *config.Config
	log       zerolog.Logger
	transport adc.Transport
	fake      *adc.Fake
	world     *physics.World
	vehicle   *physics.Vehicle
	adapter   *vehicle.Adapter
	loop      *pipeline.Loop
	stats     *metrics.Session

	store    *storage.Store
	recorder *storage.Recorder
	exporter *storage.Exporter

	cancel      context.CancelFunc
	physicsDone chan error
	closeOnce   sync.Once
}

func newSession(ctx context.Context, cfg *config.Config, log zerolog.Logger, source string) (*session, error) {
	s := &session{cfg: cfg, log: log}

	transport, err := cfg.Transport()
	if err != nil {
		return nil, err
	}
	if err := transport.Init(cfg.InitOptions()); err != nil {
		return nil, err
	}
	s.transport = transport
	s.fake, _ = transport.(*adc.Fake)

	if err := s.build(ctx, source); err != nil {
		s.close()
		return nil, err
	}
	return s, nil
}

func (s *session) build(ctx context.Context, source string) error {
	cfg, log := s.cfg, s.log

	tel, err := telemetry.New(nil)
	if err != nil {
		return err
	}

	smp := sampler.New(s.transport,
		sampler.WithLogger(log),
		sampler.WithPollInterval(cfg.PollInterval()),
		sampler.WithMaxBackoff(cfg.MaxBackoff()),
		sampler.WithMetrics(tel),
	)
	d, err := control.New(cfg.Control, control.WithLogger(log), control.WithMetrics(tel))
	if err != nil {
		return err
	}

	s.world = cfg.BuildWorld(log)
	if s.vehicle, err = cfg.BuildVehicle(); err != nil {
		return err
	}
	if err := s.world.AddVehicle(s.vehicle); err != nil {
		return err
	}
	s.adapter = vehicle.NewAdapter(s.vehicle, s.world, cfg.Vehicle.Params, log)
	d.SubscribeAll(s.adapter)

	s.stats = metrics.DefaultSession()
	s.loop = pipeline.New(smp, d,
		pipeline.WithLogger(log),
		pipeline.WithMetrics(tel),
		pipeline.WithCalibration(sampler.AxisX, cfg.Axes.CalX),
		pipeline.WithCalibration(sampler.AxisY, cfg.Axes.CalY),
		pipeline.WithButton(cfg.Device.ActiveHigh),
		pipeline.WithObserver(s.stats),
	)

	vx, vy := cfg.Channels()
	for _, ch := range []adc.Channel{vy, vx} {
		if err := s.loop.RegisterChannel(ch); err != nil {
			return err
		}
	}
	if err := s.loop.RegisterVx(vx); err != nil {
		return err
	}
	if err := s.loop.RegisterVy(vy); err != nil {
		return err
	}

	if cfg.Record.Enabled {
		if s.store, err = storage.Open(cfg.Record.DBPath, log); err != nil {
			return err
		}
		name := fmt.Sprintf("%s-%s", source, time.Now().Format("20060102-150405"))
		s.recorder, err = storage.NewRecorder(s.store, name, source, cfg.Vehicle.Preset, storage.WithTracker(s.world))
		if err != nil {
			return err
		}
		s.loop.AddObserver(s.recorder)
	}
	if ic := cfg.Record.Influx; ic.Enabled {
		backup := filepath.Join(filepath.Dir(cfg.Record.DBPath), "joydrive.influx.lp.gz")
		s.exporter, err = storage.NewExporter(ctx, storage.InfluxOptions{
			URL:        ic.URL,
			Token:      ic.Token,
			Org:        ic.Org,
			Bucket:     ic.Bucket,
			BackupPath: backup,
		}, log)
		if err != nil {
			return err
		}
		s.loop.AddObserver(s.exporter)
	}
	return nil
}

// start launches the physics world and the control loop.
func (s *session) start(ctx context.Context) error {
	ctx, s.cancel = context.WithCancel(ctx)
	s.physicsDone = make(chan error, 1)
	go func() { s.physicsDone <- s.world.Run(ctx, s.cfg.StepInterval()) }()

	if err := s.loop.Start(ctx); err != nil {
		return err
	}
	return nil
}

// close stops the loop and the physics world, then finishes the recording
// and releases the transport. It is safe to call more than once.
func (s *session) close() {
	s.closeOnce.Do(func() {
		if s.loop != nil {
			s.loop.Stop()
		}
		if s.cancel != nil {
			s.cancel()
		}
		if s.physicsDone != nil {
			if err := <-s.physicsDone; err != nil && !errors.Is(err, context.Canceled) {
				s.log.Error().Err(err).Msg("physics stopped")
			}
		}

		var values map[string]float64
		if s.stats != nil {
			values = s.stats.Values()
		}
		if s.recorder != nil {
			run, err := s.recorder.Close(s.loop.Skipped(), values)
			if err != nil {
				s.log.Error().Err(err).Msg("failed to finish run")
			} else {
				s.log.Info().Uint("run", run.ID).Float64("distance", run.Distance).Msg("session saved")
			}
		}
		if s.exporter != nil {
			if err := s.exporter.Close(); err != nil {
				s.log.Error().Err(err).Msg("failed to close influx export")
			}
		}
		if s.store != nil {
			s.store.Close()
		}
		if s.transport != nil {
			if err := s.transport.Close(); err != nil {
				s.log.Warn().Err(err).Msg("transport close")
			}
		}
		if s.loop != nil {
			s.log.Info().
				Uint64("cycles", s.loop.Cycles()).
				Uint64("skipped", s.loop.Skipped()).
				Uint64("failed", s.loop.Failed()).
				Interface("metrics", values).
				Msg("session summary")
		}
	})
}
