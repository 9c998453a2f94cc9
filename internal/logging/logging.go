// Package logging builds the zerolog logger shared by every component.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Graylog2/go-gelf/gelf"
	"github.com/rs/zerolog"
)

// Options select the sinks of the logger. Console and File may both be set;
// GELFAddr ("host:12201") adds a Graylog UDP sink.
type Options struct {
	Level    string
	Console  io.Writer
	NoColor  bool
	File     string
	GELFAddr string
}

// Logger wraps the configured zerolog.Logger with the sinks it owns.
type Logger struct {
	zerolog.Logger
	closers []io.Closer
}

// Close releases the log file and the GELF connection.
func (l *Logger) Close() error {
	var firstErr error
	for _, c := range l.closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	l.closers = nil
	return firstErr
}

func ParseLevel(s string) zerolog.Level {
	switch strings.ToUpper(s) {
	case "TRACE":
		return zerolog.TraceLevel
	case "DEBUG":
		return zerolog.DebugLevel
	case "WARN":
		return zerolog.WarnLevel
	case "ERROR":
		return zerolog.ErrorLevel
	case "DISABLED", "OFF":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// New builds a logger. With no sinks configured the logger writes to
// stderr in console format.
func New(opts Options) (*Logger, error) {
	l := &Logger{}
	var writers []io.Writer

	console := opts.Console
	if console == nil && opts.File == "" && opts.GELFAddr == "" {
		console = os.Stderr
	}
	if console != nil {
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        console,
			TimeFormat: time.RFC3339,
			NoColor:    opts.NoColor,
		})
	}

	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		l.closers = append(l.closers, f)
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        f,
			TimeFormat: time.RFC3339,
			NoColor:    true,
		})
	}

	if opts.GELFAddr != "" {
		gw, err := gelf.NewWriter(opts.GELFAddr)
		if err != nil {
			l.Close()
			return nil, fmt.Errorf("connect graylog %s: %w", opts.GELFAddr, err)
		}
		gw.Facility = "joydrive"
		if c, ok := any(gw).(io.Closer); ok {
			l.closers = append(l.closers, c)
		}
		writers = append(writers, gw)
	}

	l.Logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(ParseLevel(opts.Level)).
		With().Timestamp().Logger()
	return l, nil
}

// Sampled returns a logger that lets a burst of five entries through every
// ten seconds and one in a hundred after that. Steady-state read failures
// log through it.
func Sampled(log zerolog.Logger) zerolog.Logger {
	return log.Sample(&zerolog.BurstSampler{
		Burst:       5,
		Period:      10 * time.Second,
		NextSampler: &zerolog.BasicSampler{N: 100},
	})
}

// FilePath returns the default log file location under dir, one file per
// day.
func FilePath(dir string, now time.Time) string {
	return filepath.Join(dir, fmt.Sprintf("joydrive.%s.log", now.UTC().Format("20060102")))
}
