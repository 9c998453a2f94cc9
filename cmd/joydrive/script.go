package main

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/san-kum/joydrive/internal/automation"
	"github.com/san-kum/joydrive/internal/config"
)

func scriptCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "script [scenario.yaml]",
		Short: "drive a scripted stick through the pipeline",
		Long: `Plays a YAML scenario against the fake transport cycle by cycle and
prints the events of each step. Combine with --record to store the run.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			sc, err := automation.LoadScenario(args[0])
			if err != nil {
				return err
			}
			cfg.Device.Transport = config.TransportFake

			logger, err := newLogger(cfg, false)
			if err != nil {
				return err
			}
			defer logger.Close()

			s, err := newSession(cmd.Context(), cfg, logger.Logger, "script")
			if err != nil {
				return err
			}
			defer s.close()

			vx, vy := cfg.Channels()
			r := &automation.Runner{
				Loop:       s.loop,
				Fake:       s.fake,
				Vx:         vx,
				Vy:         vy,
				CalX:       cfg.Axes.CalX,
				CalY:       cfg.Axes.CalY,
				ActiveHigh: cfg.Device.ActiveHigh,
				Interval:   cfg.PollInterval(),
				World:      s.world,
				Log:        logger.Logger,
			}
			res, err := r.Run(cmd.Context(), sc)
			if res != nil {
				printScenario(res)
			}
			return err
		},
	}
}

func printScenario(res *automation.Result) {
	fmt.Printf("scenario %s: %d cycles\n\n", res.Name, res.Cycles)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STEP\tCYCLES\tFAILED\tSTATE\tEVENTS")
	for _, st := range res.Steps {
		fmt.Fprintf(w, "%s\t%d\t%d\t%s\t%s\n", st.Label, st.Cycles, st.Failed, st.State, formatCounts(st.Events))
	}
	w.Flush()
}

func formatCounts(m map[string]int) string {
	if len(m) == 0 {
		return "-"
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%d", k, m[k])
	}
	return strings.Join(parts, " ")
}
