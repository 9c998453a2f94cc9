package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/san-kum/joydrive/internal/config"
	"github.com/san-kum/joydrive/internal/logging"
)

var (
	configFile string
	v          = config.NewViper()
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "joydrive",
		Short:         "analog joystick to vehicle control",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configFile, "config", "joydrive.yaml", "config file path (yaml)")
	pf.String("log-level", "info", "log level (trace, debug, info, warn, error)")
	pf.String("log-file", "", "also write logs to this file")
	pf.String("db", config.DefaultDBPath, "run database path")
	pf.String("preset", "", "vehicle preset (default, f1, offroad)")
	pf.Bool("record", false, "record the session into the run database")
	must(v.BindPFlag("log.level", pf.Lookup("log-level")))
	must(v.BindPFlag("log.file", pf.Lookup("log-file")))
	must(v.BindPFlag("record.db_path", pf.Lookup("db")))
	must(v.BindPFlag("vehicle.preset", pf.Lookup("preset")))
	must(v.BindPFlag("record.enabled", pf.Lookup("record")))

	rootCmd.AddCommand(
		driveCmd(),
		simCmd(),
		calibrateCmd(),
		runsCmd(),
		plotCmd(),
		configCmd(),
		scriptCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}

// loadConfig reads the config file when it exists and applies environment
// and flag overrides on top.
func loadConfig() (*config.Config, error) {
	cfg := config.DefaultConfig()
	if configFile != "" {
		loaded, err := config.Load(configFile)
		switch {
		case err == nil:
			cfg = loaded
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, err
		}
	}
	if err := config.Overlay(cfg, v); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger builds the logger of a command. A full-screen command passes
// quiet so that nothing is written to the terminal; its logs go to the
// configured file or the daily default.
func newLogger(cfg *config.Config, quiet bool) (*logging.Logger, error) {
	opts := cfg.LoggingOptions()
	if quiet {
		opts.Console = io.Discard
		if opts.File == "" {
			opts.File = logging.FilePath(".", time.Now())
		}
	}
	return logging.New(opts)
}
