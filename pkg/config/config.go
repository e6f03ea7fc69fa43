package config

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/charlie0129/battcap/pkg/capacity"
)

type Config interface {
	// DataFile is the plot data file read by the capacity computation and
	// written by the recorder.
	DataFile() string

	NoiseFloor() float64
	CutoffVoltage() float64
	SecondsPerHour() float64
	// Thresholds bundles the three values above.
	Thresholds() capacity.Thresholds

	SerialPort() string
	BaudRate() int
	ReadCommand() string
	SampleInterval() time.Duration
	ListenAddr() string

	LogrusFields() logrus.Fields

	// Load reads the configuration from the source.
	Load() error
	// Save saves the configuration to the source.
	Save() error
}
