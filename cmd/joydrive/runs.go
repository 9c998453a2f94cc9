package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/san-kum/joydrive/internal/export"
	"github.com/san-kum/joydrive/internal/logging"
	"github.com/san-kum/joydrive/internal/storage"
)

func runsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "inspect recorded sessions",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list recorded runs",
		Args:  cobra.NoArgs,
		RunE: withStore(func(st *storage.Store, args []string) error {
			return listRuns(st, os.Stdout)
		}),
	}
	showCmd := &cobra.Command{
		Use:   "show [run-id]",
		Short: "show the summary of a run",
		Args:  cobra.ExactArgs(1),
		RunE: withStore(func(st *storage.Store, args []string) error {
			id, err := parseRunID(args[0])
			if err != nil {
				return err
			}
			return showRun(st, id, os.Stdout)
		}),
	}

	var output string
	exportCmd := &cobra.Command{
		Use:   "export [run-id]",
		Short: "export a run with its frames as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: withStore(func(st *storage.Store, args []string) error {
			id, err := parseRunID(args[0])
			if err != nil {
				return err
			}
			if output == "" || output == "-" {
				return st.ExportJSON(os.Stdout, id)
			}
			f, err := os.Create(output)
			if err != nil {
				return err
			}
			if err := st.ExportJSON(f, id); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Printf("exported run %d to %s\n", id, output)
			return nil
		}),
	}
	exportCmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")

	deleteCmd := &cobra.Command{
		Use:   "delete [run-id]",
		Short: "delete a run and its frames",
		Args:  cobra.ExactArgs(1),
		RunE: withStore(func(st *storage.Store, args []string) error {
			id, err := parseRunID(args[0])
			if err != nil {
				return err
			}
			if err := st.DeleteRun(id); err != nil {
				return err
			}
			fmt.Printf("deleted run %d\n", id)
			return nil
		}),
	}

	var (
		svgOut string
		dots   bool
	)
	trackCmd := &cobra.Command{
		Use:   "track [run-id]",
		Short: "draw the ground track of a run",
		Long: `Draws the vehicle's ground track in the terminal, or writes it as SVG
with --output. --dots writes the Braille rendering instead of a path.`,
		Args: cobra.ExactArgs(1),
		RunE: withStore(func(st *storage.Store, args []string) error {
			id, err := parseRunID(args[0])
			if err != nil {
				return err
			}
			return drawTrack(st, id, svgOut, dots)
		}),
	}
	trackCmd.Flags().StringVarP(&svgOut, "output", "o", "", "write svg to this file")
	trackCmd.Flags().BoolVar(&dots, "dots", false, "svg of the braille rendering")

	cmd.AddCommand(listCmd, showCmd, exportCmd, deleteCmd, trackCmd)
	return cmd
}

func plotCmd() *cobra.Command {
	var width, height int
	cmd := &cobra.Command{
		Use:   "plot [run-id]",
		Short: "plot the axes and vehicle response of a run",
		Args:  cobra.ExactArgs(1),
		RunE: withStore(func(st *storage.Store, args []string) error {
			id, err := parseRunID(args[0])
			if err != nil {
				return err
			}
			return plotRun(st, id, width, height, os.Stdout)
		}),
	}
	cmd.Flags().IntVar(&width, "width", 80, "plot width")
	cmd.Flags().IntVar(&height, "height", 10, "plot height")
	return cmd
}

// withStore opens the run database of the loaded config around fn.
func withStore(fn func(st *storage.Store, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger, err := logging.New(cfg.LoggingOptions())
		if err != nil {
			return err
		}
		defer logger.Close()

		st, err := storage.Open(cfg.Record.DBPath, logger.Logger)
		if err != nil {
			return err
		}
		defer st.Close()
		return fn(st, args)
	}
}

func parseRunID(s string) (uint, error) {
	id, err := strconv.ParseUint(s, 10, 0)
	if err != nil {
		return 0, fmt.Errorf("invalid run id %q", s)
	}
	return uint(id), nil
}

func listRuns(st *storage.Store, out io.Writer) error {
	runs, err := st.ListRuns()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(out, "no runs found")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSOURCE\tPRESET\tSTARTED\tDURATION\tCYCLES\tFAILED\tEVENTS\tDISTANCE")
	for _, run := range runs {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%d\t%d\t%d\t%.1fm\n",
			run.ID,
			run.Name,
			run.Source,
			run.Preset,
			run.StartedAt.Format("2006-01-02 15:04:05"),
			run.EndedAt.Sub(run.StartedAt).Round(time.Millisecond),
			run.Cycles,
			run.Failed,
			run.Events,
			run.Distance,
		)
	}
	return w.Flush()
}

func showRun(st *storage.Store, id uint, out io.Writer) error {
	run, err := st.LoadRun(id)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "run:      %d (%s)\n", run.ID, run.Name)
	fmt.Fprintf(out, "source:   %s\n", run.Source)
	fmt.Fprintf(out, "preset:   %s\n", run.Preset)
	fmt.Fprintf(out, "started:  %s\n", run.StartedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(out, "duration: %s\n", run.EndedAt.Sub(run.StartedAt).Round(time.Millisecond))
	fmt.Fprintf(out, "cycles:   %d (skipped %d, failed %d)\n", run.Cycles, run.Skipped, run.Failed)
	fmt.Fprintf(out, "events:   %d (clicks %d)\n", run.Events, run.Clicks)
	fmt.Fprintf(out, "distance: %.2fm\n", run.Distance)

	if len(run.Metrics) > 0 {
		names := make([]string, 0, len(run.Metrics))
		for name := range run.Metrics {
			names = append(names, name)
		}
		sort.Strings(names)
		fmt.Fprintln(out, "\nmetrics:")
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		for _, name := range names {
			fmt.Fprintf(w, "  %s\t%.4f\n", name, run.Metrics[name])
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}
	if run.Path != "" {
		fmt.Fprintf(out, "\npath: %s\n", truncate(run.Path, 120))
	}
	return nil
}

func plotRun(st *storage.Store, id uint, width, height int, out io.Writer) error {
	run, err := st.LoadRun(id)
	if err != nil {
		return err
	}
	frames, err := st.LoadFrames(id)
	if err != nil {
		return err
	}
	if len(frames) == 0 {
		return fmt.Errorf("run %d has no frames", id)
	}

	fmt.Fprintf(out, "run: %d (%s)\n", run.ID, run.Name)
	fmt.Fprintf(out, "frames: %d\n\n", len(frames))

	series := []struct {
		caption string
		value   func(storage.FrameRecord) float64
	}{
		{"vy (throttle)", func(f storage.FrameRecord) float64 { return f.Y }},
		{"vx (steering)", func(f storage.FrameRecord) float64 { return f.X }},
		{"engine force", func(f storage.FrameRecord) float64 { return f.Engine }},
		{"speed (m/s)", func(f storage.FrameRecord) float64 { return f.Speed }},
	}
	for _, s := range series {
		data := make([]float64, len(frames))
		for i, f := range frames {
			data[i] = s.value(f)
		}
		graph := asciigraph.Plot(data,
			asciigraph.Height(height),
			asciigraph.Width(width),
			asciigraph.Caption(s.caption),
		)
		fmt.Fprintln(out, graph)
		fmt.Fprintln(out)
	}
	return nil
}

const (
	trackCols = 60
	trackRows = 20
)

func drawTrack(st *storage.Store, id uint, out string, dots bool) error {
	run, err := st.LoadRun(id)
	if err != nil {
		return err
	}
	track, err := export.ParseTrack(run.Path)
	if err != nil {
		return err
	}

	var svg string
	switch {
	case out == "":
		c, err := export.TrackCanvas(track, trackCols, trackRows)
		if err != nil {
			return err
		}
		fmt.Printf("run %d, %.1fm\n%s", run.ID, run.Distance, c.String())
		return nil
	case dots:
		c, err := export.TrackCanvas(track, trackCols, trackRows)
		if err != nil {
			return err
		}
		svg = export.CanvasToSVG(c, 4, "#00ff88")
	default:
		if svg, err = export.TrackSVG(track, 800, 600, "#00ff88"); err != nil {
			return err
		}
	}
	if err := os.WriteFile(out, []byte(svg), 0644); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", out)
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
