package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/san-kum/joydrive/internal/config"
	"github.com/san-kum/joydrive/internal/viz"
)

func driveCmd() *cobra.Command {
	var (
		dashboard bool
		theme     string
	)
	cmd := &cobra.Command{
		Use:   "drive",
		Short: "drive the vehicle from the joystick",
		Long: `Samples the joystick through the configured transport and drives the
simulated vehicle until interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runDrive(cmd.Context(), cfg, "drive", dashboard, theme)
		},
	}
	cmd.Flags().String("transport", config.TransportSPI, "joystick transport (spi, serial, fake)")
	cmd.Flags().Int("poll-ms", config.DefaultPollMs, "sampling period in milliseconds")
	cmd.Flags().BoolVar(&dashboard, "dashboard", false, "show the terminal dashboard")
	cmd.Flags().StringVar(&theme, "theme", "cockpit", "dashboard theme")
	must(v.BindPFlag("device.transport", cmd.Flags().Lookup("transport")))
	must(v.BindPFlag("device.poll_ms", cmd.Flags().Lookup("poll-ms")))
	return cmd
}

func simCmd() *cobra.Command {
	var theme string
	cmd := &cobra.Command{
		Use:   "sim",
		Short: "drive with the keyboard standing in for the joystick",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			cfg.Device.Transport = config.TransportFake
			return runDrive(cmd.Context(), cfg, "sim", true, theme)
		},
	}
	cmd.Flags().StringVar(&theme, "theme", "cockpit", "dashboard theme")
	return cmd
}

func runDrive(parent context.Context, cfg *config.Config, source string, dashboard bool, theme string) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := newLogger(cfg, dashboard)
	if err != nil {
		return err
	}
	defer logger.Close()
	log := logger.With().Str("source", source).Logger()

	s, err := newSession(ctx, cfg, log, source)
	if err != nil {
		return err
	}
	defer s.close()

	vx, vy := cfg.Channels()
	opts := viz.Options{
		Title: fmt.Sprintf("joydrive %s", source),
		Loop:  s.loop,
		World: s.world,
		Vx:    vx,
		Vy:    vy,
		Theme: theme,
	}
	if dashboard {
		opts.Feed = viz.NewFeed(8)
		s.loop.AddObserver(opts.Feed)
		if s.fake != nil {
			opts.Fake = s.fake
			opts.Stick = viz.NewVirtualStick(cfg.Axes.CalX, cfg.Axes.CalY, cfg.Device.ActiveHigh)
			opts.Stick.Apply(s.fake, vx, vy)
		}
	}

	if err := s.start(ctx); err != nil {
		return err
	}
	log.Info().
		Str("transport", cfg.Device.Transport).
		Dur("poll", cfg.PollInterval()).
		Str("preset", cfg.Vehicle.Preset).
		Bool("record", cfg.Record.Enabled).
		Msg("driving")

	if !dashboard {
		return waitHeadless(ctx, s, log)
	}

	p := tea.NewProgram(viz.NewModel(opts), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// waitHeadless blocks until the signal context ends or the loop stops on
// its own.
func waitHeadless(ctx context.Context, s *session, log zerolog.Logger) error {
	select {
	case <-ctx.Done():
		log.Info().Msg("interrupted, shutting down")
	case <-s.loop.Done():
		log.Warn().Msg("control loop stopped")
	}
	return nil
}
