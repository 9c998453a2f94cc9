package main

import (
	"fmt"
	"math"
	"time"

	"github.com/spf13/cobra"

	"github.com/san-kum/joydrive/internal/adc"
	"github.com/san-kum/joydrive/internal/config"
	"github.com/san-kum/joydrive/internal/normalize"
)

// deadbandMargin widens a measured spread into a deadband.
const deadbandMargin = 1.25

func calibrateCmd() *cobra.Command {
	var (
		samples int
		write   bool
	)
	cmd := &cobra.Command{
		Use:   "calibrate",
		Short: "measure the rest position of both axes",
		Long: `Reads the joystick while it rests untouched and reports the measured
center and jitter of each axis. With --write the calibration is stored in
the config file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runCalibrate(cfg, samples, write)
		},
	}
	cmd.Flags().IntVar(&samples, "samples", 50, "readings per axis")
	cmd.Flags().BoolVar(&write, "write", false, "save the calibration to the config file")
	return cmd
}

func runCalibrate(cfg *config.Config, n int, write bool) error {
	if n <= 0 {
		return fmt.Errorf("samples must be positive, got %d", n)
	}
	logger, err := newLogger(cfg, false)
	if err != nil {
		return err
	}
	defer logger.Close()

	t, err := cfg.Transport()
	if err != nil {
		return err
	}
	if err := t.Init(cfg.InitOptions()); err != nil {
		return err
	}
	defer t.Close()

	vx, vy := cfg.Channels()
	rawX, rawY, err := sampleRest(t, vx, vy, n, cfg.PollInterval())
	if err != nil {
		return err
	}
	logger.Info().Int("samples", n).Msg("rest readings collected")

	calX, err := calibrateAxis("vx", cfg.Axes.CalX, rawX)
	if err != nil {
		return err
	}
	calY, err := calibrateAxis("vy", cfg.Axes.CalY, rawY)
	if err != nil {
		return err
	}
	if !write {
		fmt.Println("\nrun again with --write to store the calibration")
		return nil
	}

	cfg.Axes.CalX, cfg.Axes.CalY = calX, calY
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := config.Save(configFile, cfg); err != nil {
		return err
	}
	fmt.Printf("\nsaved to %s\n", configFile)
	return nil
}

// sampleRest reads both axes n times, one pair per interval. Failed reads
// are skipped; the call fails when no pair succeeded.
func sampleRest(t adc.Transport, vx, vy adc.Channel, n int, interval time.Duration) (xs, ys []int, err error) {
	var lastErr error
	for i := 0; i < n; i++ {
		if i > 0 {
			time.Sleep(interval)
		}
		x, errX := t.ReadChannel(vx)
		y, errY := t.ReadChannel(vy)
		if errX != nil || errY != nil {
			lastErr = firstError(errX, errY)
			continue
		}
		xs = append(xs, x)
		ys = append(ys, y)
	}
	if len(xs) == 0 {
		return nil, nil, fmt.Errorf("no readings: %w", lastErr)
	}
	return xs, ys, nil
}

func calibrateAxis(name string, cal normalize.Calibration, raw []int) (normalize.Calibration, error) {
	out, err := cal.CalibrateCenter(raw)
	if err != nil {
		return cal, fmt.Errorf("%s: %w", name, err)
	}
	spread := out.Spread(raw)
	fmt.Printf("%s: center %.0f (was %.0f), jitter %.3f, deadband %.3f\n",
		name, out.Center, cal.Center, spread, out.Deadband)

	if spread >= out.Deadband {
		wider := math.Ceil(spread*deadbandMargin*100) / 100
		fmt.Printf("%s: deadband raised to %.2f\n", name, wider)
		out.Deadband = wider
	}
	return out, nil
}

func firstError(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
