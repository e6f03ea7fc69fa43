package capacity

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/charlie0129/battcap/pkg/plotdata"
)

func TestThresholds_Classify(t *testing.T) {
	tests := []struct {
		name string
		ibat []float64
		want Type
	}{
		{
			name: "all positive",
			ibat: []float64{1, 2, 3},
			want: Charging,
		},
		{
			name: "small negative noise",
			ibat: []float64{1, -4.9, -5, 0},
			want: Charging,
		},
		{
			name: "one firm negative sample",
			ibat: []float64{100, 200, -5.1, 300},
			want: Discharging,
		},
		{
			name: "all zero",
			ibat: []float64{0, 0, 0},
			want: Charging,
		},
		{
			name: "empty",
			ibat: nil,
			want: Charging,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DefaultThresholds().Classify(tt.ibat))
		})
	}
}

func TestThresholds_Filter(t *testing.T) {
	s := &plotdata.Series{
		Labels: []float64{0, 1, 2, 3, 4, 5},
		Ibat:   []float64{5, -10, 0, -3, 7, -20},
		Vbat:   []float64{20, 19, 19, 18, 21, 17},
	}

	labels, ibat := DefaultThresholds().Filter(Charging, s)
	assert.Equal(t, []float64{0, 4}, labels)
	assert.Equal(t, []float64{5, 7}, ibat)

	// vbat must be strictly above the cutoff.
	labels, ibat = DefaultThresholds().Filter(Discharging, s)
	assert.Equal(t, []float64{1}, labels)
	assert.Equal(t, []float64{-10}, ibat)
}

func TestTrapezoid(t *testing.T) {
	tests := []struct {
		name string
		y    []float64
		x    []float64
		want float64
	}{
		{
			name: "three points",
			y:    []float64{-1, -10, -1},
			x:    []float64{0, 1, 2},
			want: -11,
		},
		{
			name: "uneven spacing",
			y:    []float64{2, 4, 4},
			x:    []float64{0, 1, 3},
			want: 3 + 8,
		},
		{
			name: "non-monotonic time is not sorted",
			y:    []float64{1, 1, 1},
			x:    []float64{0, 2, 1},
			want: 1,
		},
		{
			name: "single point",
			y:    []float64{42},
			x:    []float64{10},
			want: 0,
		},
		{
			name: "empty",
			want: 0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Trapezoid(tt.y, tt.x), 1e-9)
		})
	}
}

func TestCompute(t *testing.T) {
	tests := []struct {
		name     string
		series   plotdata.Series
		want     string
		capacity float64
	}{
		{
			name: "end to end example",
			series: plotdata.Series{
				Labels: []float64{0, 1, 2},
				Ibat:   []float64{-1, -10, -1},
				Vbat:   []float64{19, 19, 19},
			},
			want: "0 mAh discharging",
		},
		{
			name: "rectangular charge pulse",
			series: plotdata.Series{
				Labels: []float64{0, 7200},
				Ibat:   []float64{1000, 1000},
				Vbat:   []float64{12, 12},
			},
			want:     "2000 mAh charging",
			capacity: 2000,
		},
		{
			name: "rectangular discharge pulse",
			series: plotdata.Series{
				Labels: []float64{0, 3600},
				Ibat:   []float64{-2150, -2150},
				Vbat:   []float64{24, 19},
			},
			want:     "2150 mAh discharging",
			capacity: 2150,
		},
		{
			name: "negative samples ignored when charging",
			series: plotdata.Series{
				Labels: []float64{0, 1800, 3600, 5400},
				Ibat:   []float64{100, -3, 100, 0},
				Vbat:   []float64{20, 20, 20, 20},
			},
			// Kept: (0, 100) and (3600, 100).
			want:     "100 mAh charging",
			capacity: 100,
		},
		{
			name: "positive samples ignored when discharging",
			series: plotdata.Series{
				Labels: []float64{0, 3600, 7200},
				Ibat:   []float64{-500, 9000, -500},
				Vbat:   []float64{20, 20, 20},
			},
			want:     "1000 mAh discharging",
			capacity: 1000,
		},
		{
			name: "half rounds down to even",
			series: plotdata.Series{
				Labels: []float64{0, 1800},
				Ibat:   []float64{1, 1},
				Vbat:   []float64{0, 0},
			},
			want: "0 mAh charging",
		},
		{
			name: "half rounds up to even",
			series: plotdata.Series{
				Labels: []float64{0, 5400},
				Ibat:   []float64{1, 1},
				Vbat:   []float64{0, 0},
			},
			want:     "2 mAh charging",
			capacity: 2,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Compute(&tt.series, DefaultThresholds())
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.String())
			assert.Equal(t, tt.capacity, res.Capacity)
			assert.GreaterOrEqual(t, res.Capacity, 0.0)
			assert.Equal(t, tt.series.Len(), res.Samples)
		})
	}
}

func TestCompute_NoValidPoints(t *testing.T) {
	s := &plotdata.Series{
		Labels: []float64{0, 1, 2},
		Ibat:   []float64{0, 0, 0},
		Vbat:   []float64{20, 20, 20},
	}
	require.Equal(t, Charging, DefaultThresholds().Classify(s.Ibat))

	_, err := Compute(s, DefaultThresholds())
	assert.ErrorIs(t, err, ErrNoValidPoints)

	// Discharge detected, but every sample is below the cutoff voltage.
	s = &plotdata.Series{
		Labels: []float64{0, 1},
		Ibat:   []float64{-100, -100},
		Vbat:   []float64{17, 18},
	}
	_, err = Compute(s, DefaultThresholds())
	assert.ErrorIs(t, err, ErrNoValidPoints)
}

func TestCompute_BeyondIntRange(t *testing.T) {
	tests := []struct {
		name   string
		series plotdata.Series
		want   string
	}{
		{
			name: "charging",
			series: plotdata.Series{
				Labels: []float64{0, math.Ldexp(1, 80)},
				Ibat:   []float64{3600, 3600},
				Vbat:   []float64{0, 0},
			},
			// 2^80
			want: "1208925819614629174706176 mAh charging",
		},
		{
			name: "discharging",
			series: plotdata.Series{
				Labels: []float64{0, math.Ldexp(450, 64)},
				Ibat:   []float64{-8, -8},
				Vbat:   []float64{20, 20},
			},
			// 2^64
			want: "18446744073709551616 mAh discharging",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Compute(&tt.series, DefaultThresholds())
			require.NoError(t, err)
			assert.Greater(t, res.Capacity, float64(math.MaxInt64))
			assert.Equal(t, tt.want, res.String())
			assert.NotContains(t, res.String(), "-")
		})
	}
}

func TestCompute_NotFinite(t *testing.T) {
	tests := []struct {
		name   string
		series plotdata.Series
	}{
		{
			name: "integral overflows",
			series: plotdata.Series{
				Labels: []float64{0, 1e300},
				Ibat:   []float64{1e10, 1e10},
				Vbat:   []float64{0, 0},
			},
		},
		{
			name: "infinity minus infinity",
			series: plotdata.Series{
				Labels: []float64{0, 1e300, 0},
				Ibat:   []float64{1e10, 1e10, 1e10},
				Vbat:   []float64{0, 0, 0},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Compute(&tt.series, DefaultThresholds())
			assert.ErrorIs(t, err, ErrNotFinite)
			assert.Nil(t, res)
		})
	}
}

func TestCompute_LengthMismatch(t *testing.T) {
	s := &plotdata.Series{
		Labels: []float64{0, 1},
		Ibat:   []float64{1, 1, 1},
		Vbat:   []float64{20, 20},
	}
	_, err := Compute(s, DefaultThresholds())
	assert.ErrorIs(t, err, plotdata.ErrLengthMismatch)
}

func TestCompute_CustomThresholds(t *testing.T) {
	s := &plotdata.Series{
		Labels: []float64{0, 60},
		Ibat:   []float64{-2, -2},
		Vbat:   []float64{12, 12},
	}
	th := Thresholds{NoiseFloor: -1, CutoffVoltage: 10, SecondsPerHour: 60}

	res, err := Compute(s, th)
	require.NoError(t, err)
	assert.Equal(t, Discharging, res.Type)
	assert.Equal(t, 2.0, res.Capacity)
	assert.InDelta(t, -120, res.Integral, 1e-9)
}
