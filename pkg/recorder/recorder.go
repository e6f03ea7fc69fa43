// Package recorder collects telemetry samples from a Source and turns them
// into a plot data series.
//
// Recorded series use seconds since the first sample for labels, milliamps
// for ibat and volts for vbat.
package recorder

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/charlie0129/battcap/pkg/plotdata"
	"github.com/charlie0129/battcap/pkg/telemetry"
)

// ErrClosed is returned by a Source after Close has been called.
var ErrClosed = errors.New("source closed")

// Source produces telemetry samples.
type Source interface {
	// Next blocks until a sample is available. It returns ErrClosed once
	// the source has been closed and io.EOF when the source is exhausted.
	Next(ctx context.Context) (telemetry.Sample, error)
	// Close releases the source and unblocks a pending Next. It is safe to
	// call more than once.
	Close() error
	// Closed reports whether Close has been called.
	Closed() bool
}

// Recorder accumulates samples. It is safe for concurrent use.
type Recorder struct {
	mu      *sync.RWMutex
	samples []telemetry.Sample
	series  *plotdata.Series
}

func New() *Recorder {
	return &Recorder{
		mu:     &sync.RWMutex{},
		series: &plotdata.Series{},
	}
}

// Add appends s. Its label is measured from the first sample added.
func (r *Recorder) Add(s telemetry.Sample) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var label float64
	if len(r.samples) > 0 {
		label = s.Time.Sub(r.samples[0].Time).Seconds()
	}

	r.samples = append(r.samples, s)
	r.series.Append(label, float64(s.Ibat), s.VbatVolts())
}

// Len returns the number of recorded samples.
func (r *Recorder) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.samples)
}

// Samples returns a copy of all recorded samples.
func (r *Recorder) Samples() []telemetry.Sample {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]telemetry.Sample{}, r.samples...)
}

// Latest returns the most recent sample, if any.
func (r *Recorder) Latest() (telemetry.Sample, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.samples) == 0 {
		return telemetry.Sample{}, false
	}
	return r.samples[len(r.samples)-1], true
}

// Series returns a copy of the recorded plot data.
func (r *Recorder) Series() *plotdata.Series {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.series.Clone()
}

// Run reads samples from src until ctx is cancelled, src is closed or src is
// exhausted, calling onSample (if not nil) after each one is recorded. src
// is closed when Run returns.
func (r *Recorder) Run(ctx context.Context, src Source, onSample func(telemetry.Sample)) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	closeSource := func() {
		if err := src.Close(); err != nil {
			logrus.Warnf("failed to close source: %v", err)
		}
	}
	defer closeSource()

	// Close unblocks a pending Next.
	go func() {
		<-ctx.Done()
		closeSource()
	}()

	for {
		s, err := src.Next(ctx)
		if err != nil {
			if errors.Is(err, ErrClosed) || errors.Is(err, io.EOF) || ctx.Err() != nil {
				logrus.WithField("samples", r.Len()).Info("recording stopped")
				return nil
			}
			return err
		}

		r.Add(s)
		if onSample != nil {
			onSample(s)
		}
	}
}
