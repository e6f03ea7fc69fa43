package recorder

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/distatus/battery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/charlie0129/battcap/pkg/capacity"
	"github.com/charlie0129/battcap/pkg/telemetry"
)

type fakePort struct {
	io.Reader
	written bytes.Buffer
	closed  bool
}

func (f *fakePort) Write(p []byte) (int, error) { return f.written.Write(p) }
func (f *fakePort) Close() error                { f.closed = true; return nil }

type pipePort struct {
	*io.PipeReader
}

func (p pipePort) Write(b []byte) (int, error) { return len(b), nil }

const statusLines = `uart:~$ battery_charger_misc_read 5000
Vin: 0 mV age: 1. Vbat: 20000 mV age: 1. Ibat: -1000 mA age: 1. cv_timer: 0 s age: 1. max_cv_time: 7200 s age: 1.
garbage
Vin: 0 mV age: 1. Vbat: 19500 mV age: 1. Ibat: -1000 mA age: 1. cv_timer: 0 s age: 1. max_cv_time: 7200 s age: 1.
Vin: 0 mV age: 1. Vbat: 19000 mV age: 1. Ibat: -1000 mA age: 1. cv_timer: 0 s age: 1. max_cv_time: 7200 s age: 1.
`

func fixedClock(step time.Duration) func() time.Time {
	t := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		now := t
		t = t.Add(step)
		return now
	}
}

func TestRecorder_RunLineSource(t *testing.T) {
	port := &fakePort{Reader: strings.NewReader(statusLines)}
	src, err := NewLineSource(port, telemetry.ReadCommand)
	require.NoError(t, err)
	src.now = fixedClock(1800 * time.Second)

	rec := New()
	var seen int
	err = rec.Run(context.Background(), src, func(telemetry.Sample) { seen++ })
	require.NoError(t, err)

	assert.Equal(t, "battery_charger_misc_read 5000\n", port.written.String())
	assert.True(t, port.closed)
	assert.Equal(t, 3, seen)
	assert.Equal(t, 3, rec.Len())

	s := rec.Series()
	assert.Equal(t, []float64{0, 1800, 3600}, s.Labels)
	assert.Equal(t, []float64{-1000, -1000, -1000}, s.Ibat)
	assert.InDeltaSlice(t, []float64{20, 19.5, 19}, s.Vbat, 1e-9)

	latest, ok := rec.Latest()
	require.True(t, ok)
	assert.Equal(t, 19000, latest.Vbat)

	// One hour at -1000 mA.
	res, err := capacity.Compute(s, capacity.DefaultThresholds())
	require.NoError(t, err)
	assert.Equal(t, "1000 mAh discharging", res.String())
}

func TestRecorder_RunStopsOnCancel(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	src, err := NewLineSource(pipePort{pr}, "")
	require.NoError(t, err)

	rec := New()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- rec.Run(ctx, src, func(telemetry.Sample) { cancel() })
	}()

	_, err = pw.Write([]byte("Vin: 0 mV age: 1. Vbat: 20000 mV age: 1. Ibat: 5 mA age: 1. cv_timer: 0 s age: 1. max_cv_time: 0 s age: 1.\n"))
	require.NoError(t, err)

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.True(t, src.Closed())
	assert.Equal(t, 1, rec.Len())
}

type errReader struct{}

func (errReader) Read([]byte) (int, error) { return 0, errors.New("device unplugged") }

func TestRecorder_RunReadError(t *testing.T) {
	src, err := NewLineSource(&fakePort{Reader: errReader{}}, "")
	require.NoError(t, err)

	err = New().Run(context.Background(), src, nil)
	assert.ErrorContains(t, err, "device unplugged")
}

func TestRecorder_Empty(t *testing.T) {
	rec := New()
	_, ok := rec.Latest()
	assert.False(t, ok)
	assert.Empty(t, rec.Samples())
	assert.Equal(t, 0, rec.Series().Len())
}

func TestSystemSource(t *testing.T) {
	src := NewSystemSource(time.Millisecond)
	src.now = fixedClock(time.Second)

	states := []*battery.Battery{
		{State: battery.Discharging, ChargeRate: 20000, Voltage: 20},
		{State: battery.Charging, ChargeRate: 30000, Voltage: 15},
	}
	calls := 0
	src.getAll = func() ([]*battery.Battery, error) {
		bat := states[calls%len(states)]
		calls++
		return []*battery.Battery{bat}, nil
	}

	s, err := src.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, -1000, s.Ibat)
	assert.Equal(t, 20000, s.Vbat)

	s, err = src.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2000, s.Ibat)
	assert.Equal(t, 15000, s.Vbat)

	require.NoError(t, src.Close())
	require.NoError(t, src.Close())
	_, err = src.Next(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestSystemSource_NoBattery(t *testing.T) {
	src := NewSystemSource(time.Millisecond)
	src.getAll = func() ([]*battery.Battery, error) { return nil, nil }

	_, err := src.Next(context.Background())
	assert.ErrorContains(t, err, "no batteries found")
}

func TestSystemSource_ZeroVoltage(t *testing.T) {
	s := batteryToSample(&battery.Battery{State: battery.Discharging, ChargeRate: 100}, time.Time{})
	assert.Equal(t, 0, s.Ibat)
}
