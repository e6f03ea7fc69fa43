package recorder

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/distatus/battery"
	pkgerrors "github.com/pkg/errors"

	"github.com/charlie0129/battcap/pkg/telemetry"
)

// SystemSource samples the host's first battery at a fixed interval.
type SystemSource struct {
	interval time.Duration
	getAll   func() ([]*battery.Battery, error)
	now      func() time.Time

	started bool
	closed  chan struct{}
	once    sync.Once
}

var _ Source = &SystemSource{}

func NewSystemSource(interval time.Duration) *SystemSource {
	return &SystemSource{
		interval: interval,
		getAll:   battery.GetAll,
		now:      time.Now,
		closed:   make(chan struct{}),
	}
}

// Next returns a sample immediately on the first call and after one interval
// on every following call.
func (s *SystemSource) Next(ctx context.Context) (telemetry.Sample, error) {
	if s.Closed() {
		return telemetry.Sample{}, ErrClosed
	}
	if s.started {
		t := time.NewTimer(s.interval)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return telemetry.Sample{}, ctx.Err()
		case <-s.closed:
			return telemetry.Sample{}, ErrClosed
		case <-t.C:
		}
	}
	s.started = true

	batteries, err := s.getAll()
	if err != nil {
		return telemetry.Sample{}, pkgerrors.Wrap(err, "failed to get battery info")
	}
	if len(batteries) == 0 || batteries[0] == nil {
		return telemetry.Sample{}, pkgerrors.New("no batteries found")
	}

	return batteryToSample(batteries[0], s.now()), nil
}

// batteryToSample converts a battery reading. ChargeRate is in mW and
// Voltage in V, so their ratio is the current in mA.
func batteryToSample(bat *battery.Battery, now time.Time) telemetry.Sample {
	rate := bat.ChargeRate
	if bat.State == battery.Discharging {
		rate = -rate
	}

	var ibat float64
	if bat.Voltage > 0 {
		ibat = rate / bat.Voltage
	}

	return telemetry.Sample{
		Time: now,
		Vbat: int(math.Round(bat.Voltage * 1000)),
		Ibat: int(math.Round(ibat)),
	}
}

func (s *SystemSource) Close() error {
	s.once.Do(func() {
		close(s.closed)
	})
	return nil
}

func (s *SystemSource) Closed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}
