// Package capacity computes battery capacity from a plot data series.
//
// A session is classified as charging or discharging from its current
// samples, the samples relevant to that mode are kept, and the current is
// integrated over time with the trapezoidal rule. The integral (in
// current-unit seconds) is divided by the number of seconds in an hour and
// rounded, giving the value printed as "mAh".
package capacity

import (
	"errors"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/charlie0129/battcap/pkg/plotdata"
)

// Type is the kind of cycle a session represents.
type Type string

const (
	Charging    Type = "charging"
	Discharging Type = "discharging"
)

// Default thresholds.
const (
	// NoiseFloor is the current below which a sample counts as a firm
	// discharge. Anything at or above it may be noise around zero.
	NoiseFloor = -5.0
	// CutoffVoltage is the voltage a discharge sample must exceed to be kept.
	CutoffVoltage = 18.0
	// SecondsPerHour converts the integral from seconds to hours.
	SecondsPerHour = 3600.0
)

// Unit is the label printed after the capacity value.
const Unit = "mAh"

var (
	// ErrNoValidPoints is returned when no sample survives filtering.
	ErrNoValidPoints = errors.New("no valid points found for the selected capacity type")

	// ErrNotFinite is returned when the integral overflows or is not a number.
	ErrNotFinite = errors.New("capacity is not a finite number")
)

// Thresholds tunes classification, filtering and unit conversion.
type Thresholds struct {
	NoiseFloor     float64 `json:"noiseFloor"`
	CutoffVoltage  float64 `json:"cutoffVoltage"`
	SecondsPerHour float64 `json:"secondsPerHour"`
}

// DefaultThresholds returns the built-in thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		NoiseFloor:     NoiseFloor,
		CutoffVoltage:  CutoffVoltage,
		SecondsPerHour: SecondsPerHour,
	}
}

// Classify returns Discharging if any current sample is below the noise
// floor, and Charging otherwise.
func (t Thresholds) Classify(ibat []float64) Type {
	for _, i := range ibat {
		if i < t.NoiseFloor {
			return Discharging
		}
	}
	return Charging
}

// Keep reports whether a single sample is used for a cycle of type typ.
func (t Thresholds) Keep(typ Type, ibat, vbat float64) bool {
	if typ == Discharging {
		return ibat < 0 && vbat > t.CutoffVoltage
	}
	return ibat > 0
}

// Filter returns the labels and currents of the samples kept for typ,
// preserving their order.
func (t Thresholds) Filter(typ Type, s *plotdata.Series) (labels, ibat []float64) {
	for i := range s.Ibat {
		if t.Keep(typ, s.Ibat[i], s.Vbat[i]) {
			labels = append(labels, s.Labels[i])
			ibat = append(ibat, s.Ibat[i])
		}
	}
	return labels, ibat
}

// Trapezoid integrates y over x with the trapezoidal rule. Points are taken
// in the given order; a non-monotonic x is integrated as-is.
func Trapezoid(y, x []float64) float64 {
	n := len(y)
	if len(x) < n {
		n = len(x)
	}

	var sum float64
	for i := 1; i < n; i++ {
		sum += (x[i] - x[i-1]) * (y[i] + y[i-1]) / 2
	}
	return sum
}

// Result is the outcome of a capacity computation. Capacity is always a
// non-negative whole number. It is a float64 so that magnitudes beyond the
// range of int are still reported exactly.
type Result struct {
	Capacity float64 `json:"capacity"`
	Unit     string  `json:"unit"`
	Type     Type    `json:"type"`
	Integral float64 `json:"integral"`
	Retained int     `json:"retained"`
	Samples  int     `json:"samples"`
}

// String renders r as "<capacity> mAh <type>".
func (r *Result) String() string {
	return fmt.Sprintf("%.0f %s %s", r.Capacity, r.Unit, r.Type)
}

// Compute classifies s, filters it and integrates the kept samples.
func Compute(s *plotdata.Series, t Thresholds) (*Result, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	typ := t.Classify(s.Ibat)
	labels, ibat := t.Filter(typ, s)

	logrus.WithFields(logrus.Fields{
		"type":     typ,
		"samples":  s.Len(),
		"retained": len(ibat),
	}).Debug("samples filtered")

	if len(ibat) == 0 || len(labels) == 0 {
		return nil, ErrNoValidPoints
	}

	integral := Trapezoid(ibat, labels)

	// Exact halves round to even.
	c := math.RoundToEven(math.Abs(integral) / t.SecondsPerHour)
	if math.IsInf(c, 0) || math.IsNaN(c) {
		return nil, fmt.Errorf("%w: integral %v over %d samples", ErrNotFinite, integral, len(ibat))
	}

	return &Result{
		Capacity: c,
		Unit:     Unit,
		Type:     typ,
		Integral: integral,
		Retained: len(ibat),
		Samples:  s.Len(),
	}, nil
}
