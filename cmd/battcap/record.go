package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/charlie0129/battcap/pkg/capacity"
	"github.com/charlie0129/battcap/pkg/config"
	"github.com/charlie0129/battcap/pkg/plotdata"
	"github.com/charlie0129/battcap/pkg/recorder"
	"github.com/charlie0129/battcap/pkg/server"
	"github.com/charlie0129/battcap/pkg/telemetry"
)

const (
	sourceSerial = "serial"
	sourceSystem = "system"
)

type recordOptions struct {
	source   string
	port     string
	baud     int
	interval time.Duration
	duration time.Duration
	serve    bool
	listen   string
}

// applyConfig fills the options not set on the command line from conf.
func (o *recordOptions) applyConfig(cmd *cobra.Command, conf config.Config) {
	f := cmd.Flags()
	if !f.Changed("port") {
		o.port = conf.SerialPort()
	}
	if !f.Changed("baud") {
		o.baud = conf.BaudRate()
	}
	if !f.Changed("interval") {
		o.interval = conf.SampleInterval()
	}
	if !f.Changed("listen") {
		o.listen = conf.ListenAddr()
	}
}

func openSource(o *recordOptions, conf config.Config) (recorder.Source, error) {
	switch o.source {
	case sourceSerial:
		return recorder.OpenSerial(o.port, o.baud, conf.ReadCommand())
	case sourceSystem:
		if o.interval <= 0 {
			return nil, fmt.Errorf("interval must be positive, got %s", o.interval)
		}
		return recorder.NewSystemSource(o.interval), nil
	default:
		return nil, fmt.Errorf("unknown source %q, must be %q or %q", o.source, sourceSerial, sourceSystem)
	}
}

func NewRecordCommand() *cobra.Command {
	o := &recordOptions{}

	cmd := &cobra.Command{
		Use:     "record",
		GroupID: gRecorder,
		Short:   "Record battery samples into the plot data file",
		Long: `Record battery samples into the plot data file.

Samples come either from the battery charger on a serial port, or from the
battery of this machine. Recording stops on Ctrl-C, after --duration, or when
the port is closed through the HTTP API (see --serve). The samples recorded so
far are then written to the data file and the capacity is logged.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			conf, err := loadConfig()
			if err != nil {
				return err
			}
			o.applyConfig(cmd, conf)

			src, err := openSource(o, conf)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			if o.duration > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, o.duration)
				defer cancel()
			}

			rec := recorder.New()

			var srv *server.Server
			if o.serve {
				srv = server.New(rec, src, conf.Thresholds())
				if _, err := srv.Start(o.listen); err != nil {
					_ = src.Close()
					return err
				}
			}

			logrus.WithField("source", o.source).Info("recording started")
			runErr := rec.Run(ctx, src, func(s telemetry.Sample) {
				logrus.WithFields(logrus.Fields{
					"vbat": s.Vbat,
					"ibat": s.Ibat,
					"vin":  s.Vin,
				}).Info("sample recorded")
				if srv != nil {
					srv.PublishSample(s)
				}
			})

			if srv != nil {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				if err := srv.Shutdown(shutdownCtx); err != nil {
					logrus.Errorf("failed to shutdown http server: %v", err)
				}
				cancel()
			}

			if err := saveRecording(rec, conf); err != nil {
				return errors.Join(runErr, err)
			}
			return runErr
		},
	}

	f := cmd.Flags()
	f.StringVar(&o.source, "source", sourceSerial, "sample source: serial or system")
	f.StringVar(&o.port, "port", "", "serial port (default from config)")
	f.IntVar(&o.baud, "baud", 0, "serial baud rate (default from config)")
	f.DurationVar(&o.interval, "interval", 0, "sampling interval of the system source (default from config)")
	f.DurationVar(&o.duration, "duration", 0, "stop after this long (0 = until interrupted)")
	f.BoolVar(&o.serve, "serve", false, "serve the recording over HTTP while recording")
	f.StringVar(&o.listen, "listen", "", "HTTP listen address (default from config)")

	return cmd
}

func saveRecording(rec *recorder.Recorder, conf config.Config) error {
	series := rec.Series()
	path := conf.DataFile()

	if err := plotdata.Save(path, series); err != nil {
		return err
	}
	logrus.WithFields(logrus.Fields{
		"path":    path,
		"samples": series.Len(),
	}).Info("plot data saved")

	res, err := capacity.Compute(series, conf.Thresholds())
	if err != nil {
		logrus.Warnf("capacity not available: %v", err)
		return nil
	}
	logrus.Infof("capacity: %s", res)
	return nil
}
