package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/charlie0129/battcap/pkg/capacity"
	"github.com/charlie0129/battcap/pkg/client"
	"github.com/charlie0129/battcap/pkg/config"
	"github.com/charlie0129/battcap/pkg/plotdata"
)

var (
	logLevel   = "info"
	configPath = ""
)

var (
	gBasic        = "Basic:"
	gRecorder     = "Recorder:"
	commandGroups = []string{
		gBasic,
		gRecorder,
	}
)

func setupLogger() error {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		return fmt.Errorf("failed to parse log level: %v", err)
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{})
	if term.IsTerminal(int(os.Stderr.Fd())) {
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.Kitchen,
		})
	}

	return nil
}

func loadConfig() (*config.File, error) {
	conf, err := config.NewFile(configPath)
	if err != nil {
		return nil, err
	}
	logrus.WithFields(conf.LogrusFields()).Debug("config loaded")
	return conf, nil
}

// printCmdError writes a single diagnostic for err to w.
func printCmdError(w io.Writer, err error) {
	red := color.New(color.Bold, color.FgRed)
	_, _ = red.Fprint(w, "Error: ")
	_, _ = fmt.Fprintln(w, err)

	switch {
	case errors.Is(err, client.ErrRecorderNotRunning):
		_, _ = fmt.Fprintln(w, "Is the recorder running? Start it with 'battcap record --serve'.")
	case errors.Is(err, plotdata.ErrNotFound):
		_, _ = fmt.Fprintln(w, "Record a session with 'battcap record' or set dataFile in the config.")
	}
}

func main() {
	cmd := NewCommand()
	if err := cmd.Execute(); err != nil {
		printCmdError(os.Stderr, err)
		os.Exit(1)
	}
}

func NewCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "battcap",
		Short: "battcap computes battery capacity from recorded current and voltage samples",
		Long: `battcap computes battery capacity from recorded current and voltage samples.

Without a subcommand it reads the plot data file (plotdata.json by default),
detects whether it holds a charge or a discharge cycle and prints the
capacity, e.g. "2150 mAh discharging".`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return setupLogger()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			conf, err := loadConfig()
			if err != nil {
				return err
			}

			res, err := computeCapacity(conf.DataFile(), conf.Thresholds())
			if err != nil {
				return err
			}

			return printResult(cmd.OutOrStdout(), res, asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")

	globalFlags := cmd.PersistentFlags()
	globalFlags.StringVarP(&logLevel, "log-level", "l", "info", "log level (trace, debug, info, warn, error, fatal, panic)")
	globalFlags.StringVar(&configPath, "config", "", "config file path (.json, .yaml or .yml)")

	for _, i := range commandGroups {
		cmd.AddGroup(&cobra.Group{
			ID:    i,
			Title: i,
		})
	}

	cmd.AddCommand(
		NewVersionCommand(),
		NewConfigCommand(),
		NewRecordCommand(),
		NewStatusCommand(),
		NewClosePortCommand(),
	)

	return cmd
}

// computeCapacity runs the whole pipeline on the file at path.
func computeCapacity(path string, th capacity.Thresholds) (*capacity.Result, error) {
	rec, err := plotdata.Load(path)
	if err != nil {
		return nil, err
	}

	series, err := plotdata.Extract(rec)
	if err != nil {
		return nil, err
	}

	res, err := capacity.Compute(series, th)
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"integral": res.Integral,
		"retained": res.Retained,
		"samples":  res.Samples,
	}).Debug("capacity computed")

	return res, nil
}
