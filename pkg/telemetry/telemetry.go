// Package telemetry parses the periodic status lines printed by the battery
// charger firmware in response to ReadCommand.
package telemetry

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ReadCommand asks the charger to print a status line every 5000 ms.
const ReadCommand = "battery_charger_misc_read 5000"

// ErrNoMatch is returned for lines that are not charger status lines.
var ErrNoMatch = errors.New("line is not a charger status line")

var lineRegexp = regexp.MustCompile(`Vin:\s*(\d+) mV age:\s*(\d+)\. Vbat:\s*(\d+) mV age:\s*(\d+)\. Ibat:\s*([-\d]+) mA age:\s*(\d+)\. cv_timer:\s*(\d+) s age:\s*(\d+)\. max_cv_time:\s*(\d+) s age:\s*(\d+)\.`)

// Sample is one charger status report. Every value comes with the age the
// firmware reports for it.
type Sample struct {
	Time time.Time `json:"time"`

	Vin          int `json:"vin"` // mV
	VinAge       int `json:"vinAge"`
	Vbat         int `json:"vbat"` // mV
	VbatAge      int `json:"vbatAge"`
	Ibat         int `json:"ibat"` // mA, negative when discharging
	IbatAge      int `json:"ibatAge"`
	CVTimer      int `json:"cvTimer"` // s
	CVTimerAge   int `json:"cvTimerAge"`
	MaxCVTime    int `json:"maxCvTime"` // s
	MaxCVTimeAge int `json:"maxCvTimeAge"`
}

// VbatVolts returns the battery voltage in volts.
func (s Sample) VbatVolts() float64 {
	return float64(s.Vbat) / 1000
}

// Parse extracts a Sample from a status line. The returned sample has a
// zero Time.
func Parse(line string) (Sample, error) {
	m := lineRegexp.FindStringSubmatch(strings.TrimSpace(line))
	if m == nil {
		return Sample{}, ErrNoMatch
	}

	var v [10]int
	for i := range v {
		n, err := strconv.Atoi(m[i+1])
		if err != nil {
			return Sample{}, fmt.Errorf("invalid value %q in status line: %w", m[i+1], err)
		}
		v[i] = n
	}

	return Sample{
		Vin:          v[0],
		VinAge:       v[1],
		Vbat:         v[2],
		VbatAge:      v[3],
		Ibat:         v[4],
		IbatAge:      v[5],
		CVTimer:      v[6],
		CVTimerAge:   v[7],
		MaxCVTime:    v[8],
		MaxCVTimeAge: v[9],
	}, nil
}
