package main

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/joydrive/internal/config"
)

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "manage the configuration file",
	}

	var (
		preset string
		force  bool
	)
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "write a default config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(configFile); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", configFile)
			} else if err != nil && !errors.Is(err, os.ErrNotExist) {
				return err
			}
			cfg := config.DefaultConfig()
			if preset != "" {
				if err := cfg.ApplyPreset(preset); err != nil {
					return err
				}
			}
			if err := config.Save(configFile, cfg); err != nil {
				return err
			}
			fmt.Printf("wrote %s\n", configFile)
			return nil
		},
	}
	initCmd.Flags().StringVar(&preset, "with-preset", "", "start from a vehicle preset")
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "print the effective configuration",
		Long:  "Prints the configuration after the file, JOYDRIVE_* variables and flags are merged.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(os.Stdout)
			enc.SetIndent(2)
			if err := enc.Encode(cfg); err != nil {
				return err
			}
			return enc.Close()
		},
	}

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list vehicle presets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tMASS\tBASE FORCE\tBRAKE\tDESCRIPTION")
			for _, name := range config.ListPresets() {
				p := config.GetPreset(name)
				fmt.Fprintf(w, "%s\t%.0f\t%.0f\t%.0f\t%s\n", name, p.Mass, p.BaseForce, p.BrakeForce, p.Description)
			}
			return w.Flush()
		},
	}

	keysCmd := &cobra.Command{
		Use:   "keys",
		Short: "list keys settable through JOYDRIVE_* variables",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			for _, key := range config.Keys() {
				fmt.Println(key)
			}
		},
	}

	cmd.AddCommand(initCmd, showCmd, presetsCmd, keysCmd)
	return cmd
}
