package storage

import (
	"compress/gzip"
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/rs/zerolog"

	"github.com/san-kum/joydrive/internal/pipeline"
)

const measurement = "joydrive_cycle"

type InfluxOptions struct {
	URL    string
	Token  string
	Org    string
	Bucket string

	// BackupPath receives gzipped line protocol when the server cannot
	// be reached.
	BackupPath string
}

// Exporter streams cycles to InfluxDB. It is a pipeline.CycleObserver.
type Exporter struct {
	opts   InfluxOptions
	log    zerolog.Logger
	client influxdb2.Client
	writer influxdb2_api.WriteAPI

	mu     sync.Mutex
	file   *os.File
	backup *gzip.Writer
	points int
}

// NewExporter connects to the server. When the ping fails it falls back to
// the backup file, and fails only when there is none.
func NewExporter(ctx context.Context, opts InfluxOptions, log zerolog.Logger) (*Exporter, error) {
	e := &Exporter{opts: opts, log: log.With().Str("component", "influx").Logger()}

	e.client = influxdb2.NewClientWithOptions(opts.URL, opts.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(500).
			SetFlushInterval(1000))

	running, err := e.client.Ping(ctx)
	if err == nil && running {
		e.writer = e.client.WriteAPI(opts.Org, opts.Bucket)
		go func(errorsCh <-chan error) {
			for writeErr := range errorsCh {
				e.log.Error().Err(writeErr).Str("bucket", opts.Bucket).Msg("error sending data to InfluxDB")
			}
		}(e.writer.Errors())
		e.log.Info().Str("url", opts.URL).Str("bucket", opts.Bucket).Msg("InfluxDB export enabled")
		return e, nil
	}

	e.client.Close()
	e.client = nil
	if opts.BackupPath == "" {
		if err == nil {
			err = fmt.Errorf("server not ready")
		}
		return nil, fmt.Errorf("influx %s: %w", opts.URL, err)
	}
	file, ferr := os.OpenFile(opts.BackupPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if ferr != nil {
		return nil, fmt.Errorf("influx backup: %w", ferr)
	}
	e.file = file
	e.backup = gzip.NewWriter(file)
	e.log.Warn().Err(err).Str("backup", opts.BackupPath).Msg("InfluxDB unreachable, writing to backup file")
	return e, nil
}

// Point converts a frame to a line-protocol point.
func Point(f pipeline.Frame) *influxdb2_write.Point {
	return influxdb2.NewPoint(measurement,
		map[string]string{"state": f.State.String()},
		map[string]interface{}{
			"cycle":       int64(f.Cycle),
			"raw_x":       f.RawX,
			"raw_y":       f.RawY,
			"x":           f.X.Value,
			"y":           f.Y.Value,
			"button":      f.Button,
			"events":      len(f.Events),
			"errors":      len(f.Errs),
			"failed":      f.Failed,
			"duration_ms": float64(f.Duration) / float64(time.Millisecond),
		},
		f.At)
}

func (e *Exporter) OnCycle(f pipeline.Frame) {
	p := Point(f)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.points++

	if e.writer != nil {
		e.writer.WritePoint(p)
		return
	}
	if e.backup == nil {
		return
	}
	line := influxdb2_write.PointToLineProtocol(p, time.Nanosecond)
	if _, err := e.backup.Write([]byte(line + "\n")); err != nil {
		e.log.Error().Err(err).Msg("error writing to InfluxDB backup file")
	}
}

func (e *Exporter) Points() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.points
}

// Close flushes pending points and releases the client or backup file.
func (e *Exporter) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.writer != nil {
		e.writer.Flush()
		e.client.Close()
		e.writer = nil
		return nil
	}
	if e.backup == nil {
		return nil
	}
	err := e.backup.Close()
	if cerr := e.file.Close(); err == nil {
		err = cerr
	}
	e.backup, e.file = nil, nil
	return err
}
