package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/charlie0129/battcap/pkg/config"
)

func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "config",
		GroupID: gBasic,
		Short:   "Show the effective configuration",
		Long: `Show the effective configuration.

Values not set in the file given by --config fall back to the built-in defaults.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			conf, err := loadConfig()
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			exists := false
			if configPath != "" {
				_, err := os.Stat(configPath)
				exists = err == nil
			}
			_, _ = fmt.Fprintf(w, "Config file: %s %s\n", bold("%s", displayPath(configPath)), bool2Text(exists))
			_, _ = fmt.Fprintf(w, "  Data file: %s\n", bold("%s", conf.DataFile()))
			_, _ = fmt.Fprintf(w, "  Noise floor: %s\n", bold("%g", conf.NoiseFloor()))
			_, _ = fmt.Fprintf(w, "  Cutoff voltage: %s\n", bold("%g V", conf.CutoffVoltage()))
			_, _ = fmt.Fprintf(w, "  Seconds per hour: %s\n", bold("%g", conf.SecondsPerHour()))
			_, _ = fmt.Fprintf(w, "  Serial port: %s\n", bold("%s @ %d baud", conf.SerialPort(), conf.BaudRate()))
			_, _ = fmt.Fprintf(w, "  Read command: %s\n", bold("%s", conf.ReadCommand()))
			_, _ = fmt.Fprintf(w, "  Sample interval: %s\n", bold("%s", conf.SampleInterval()))
			_, _ = fmt.Fprintf(w, "  Listen address: %s\n", bold("%s", conf.ListenAddr()))
			return nil
		},
	}

	cmd.AddCommand(newConfigInitCommand())

	return cmd
}

func newConfigInitCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration to the --config path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if configPath == "" {
				return fmt.Errorf("--config is required")
			}
			if _, err := os.Stat(configPath); err == nil && !force {
				return fmt.Errorf("%s already exists, use --force to overwrite it", configPath)
			}

			if err := config.NewFileFromConfig(config.Defaults(), configPath).Save(); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Wrote default config to %s\n", configPath)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	return cmd
}

func displayPath(p string) string {
	if p == "" {
		return "(built-in defaults)"
	}
	return p
}
