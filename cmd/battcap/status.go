package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/charlie0129/battcap/pkg/capacity"
	"github.com/charlie0129/battcap/pkg/client"
	"github.com/charlie0129/battcap/pkg/events"
)

// recorderAddr overrides the listen address from the config.
var recorderAddr = ""

func newRecorderClient() (*client.Client, error) {
	addr := recorderAddr
	if addr == "" {
		conf, err := loadConfig()
		if err != nil {
			return nil, err
		}
		addr = conf.ListenAddr()
	}
	return client.NewClient(addr), nil
}

func NewStatusCommand() *cobra.Command {
	follow := false

	cmd := &cobra.Command{
		Use:     "status",
		GroupID: gRecorder,
		Short:   "Show the state of a running recorder",
		Long:    `Show the latest sample and the running capacity of a recorder started with 'battcap record --serve'.`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := newRecorderClient()
			if err != nil {
				return err
			}

			series, err := c.GetPlotData()
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			_, _ = fmt.Fprintln(w, bold("Recording:"))
			_, _ = fmt.Fprintf(w, "  Samples: %s\n", bold("%d", series.Len()))
			if series.Len() > 0 {
				if err := printLatest(w, c, series.Labels[series.Len()-1]); err != nil {
					return err
				}
			}
			if !follow {
				return nil
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return followSamples(ctx, c, w)
		},
	}

	cmd.Flags().StringVar(&recorderAddr, "addr", "", "recorder address (default from config)")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "keep printing samples as they are recorded")

	return cmd
}

// printLatest prints the latest sample and the running capacity. duration is
// the label of the last sample.
func printLatest(w io.Writer, c *client.Client, duration float64) error {
	_, _ = fmt.Fprintf(w, "  Duration: %s\n", bold("%.0f s", duration))

	latest, err := c.GetLatestSample()
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(w, bold("Latest sample:"))
	_, _ = fmt.Fprintf(w, "  Battery voltage: %s\n", bold("%.2f V", latest.VbatVolts()))
	_, _ = fmt.Fprintf(w, "  Battery current: %s\n", bold("%d mA", latest.Ibat))
	_, _ = fmt.Fprintf(w, "  Input voltage: %s\n", bold("%d mV", latest.Vin))
	_, _ = fmt.Fprintf(w, "  CV timer: %s\n", bold("%d / %d s", latest.CVTimer, latest.MaxCVTime))

	_, _ = fmt.Fprintln(w, bold("Capacity:"))
	res, err := c.GetCapacity()
	if err != nil {
		if errors.Is(err, capacity.ErrNoValidPoints) {
			_, _ = fmt.Fprintf(w, "  %s\n", "no valid points yet")
			return nil
		}
		return err
	}
	_, _ = fmt.Fprintf(w, "  %s %s\n", bold("%.0f %s", res.Capacity, res.Unit), typeText(res.Type))
	_, _ = fmt.Fprintf(w, "  Samples used: %s\n", bold("%d of %d", res.Retained, res.Samples))
	return nil
}

// followSamples prints recorded samples until the recorder closes its port or
// the stream ends.
func followSamples(ctx context.Context, c *client.Client, w io.Writer) error {
	ch, err := c.SubscribeEvents(ctx)
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintln(w, bold("Following:"))
	for ev := range ch {
		switch ev.Name {
		case events.SampleRecorded:
			s, err := events.DecodeAs[events.SampleRecordedEvent](ev)
			if err != nil {
				logrus.Warnf("skipping sample: %v", err)
				continue
			}
			_, _ = fmt.Fprintf(w, "  %s  %s  %s\n",
				s.Time.Format("15:04:05"),
				bold("%.2f V", s.VbatVolts()),
				bold("%d mA", s.Ibat))
		case events.PortClosed:
			p, err := events.DecodeAs[events.PortClosedEvent](ev)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(w, "Port closed after %s samples\n", bold("%d", p.Samples))
			return nil
		}
	}
	return nil
}

func NewClosePortCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "close-port",
		GroupID: gRecorder,
		Short:   "Ask a running recorder to close its port and save",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := newRecorderClient()
			if err != nil {
				return err
			}

			ret, err := c.ClosePort()
			if err != nil {
				return fmt.Errorf("failed to close port: %w", err)
			}
			logrus.Debugf("recorder responded: %s", ret)
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), ret)
			return nil
		},
	}

	cmd.Flags().StringVar(&recorderAddr, "addr", "", "recorder address (default from config)")

	return cmd
}
