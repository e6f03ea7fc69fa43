package config

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/charlie0129/battcap/pkg/capacity"
	"github.com/charlie0129/battcap/pkg/plotdata"
	"github.com/charlie0129/battcap/pkg/telemetry"
	"github.com/charlie0129/battcap/pkg/utils/ptr"
)

var (
	defaultFileConfig = &RawFileConfig{
		DataFile:       ptr.To(plotdata.DefaultFile),
		NoiseFloor:     ptr.To(capacity.NoiseFloor),
		CutoffVoltage:  ptr.To(capacity.CutoffVoltage),
		SecondsPerHour: ptr.To(capacity.SecondsPerHour),
		SerialPort:     ptr.To("/dev/ttyUSB0"),
		BaudRate:       ptr.To(115200),
		ReadCommand:    ptr.To(telemetry.ReadCommand),
		// The charger reports every 5 seconds, sample the host battery at the same pace.
		SampleInterval: ptr.To("5s"),
		ListenAddr:     ptr.To("127.0.0.1:3000"),
	}
)

var _ Config = &File{}

type File struct {
	c        *RawFileConfig
	mu       *sync.RWMutex
	filepath string
}

// NewFile loads the config at configPath. An empty path, a missing file or
// an empty file all yield the defaults.
func NewFile(configPath string) (*File, error) {
	f := &File{
		filepath: configPath,
		mu:       &sync.RWMutex{},
	}
	err := f.Load()
	if err != nil {
		return nil, err
	}

	return f, nil
}

func NewFileFromConfig(c *RawFileConfig, configPath string) *File {
	if c == nil {
		c = defaultFileConfig
	}

	f := &File{
		c:        c,
		mu:       &sync.RWMutex{},
		filepath: configPath,
	}

	return f
}

// Defaults returns a copy of the built-in configuration.
func Defaults() *RawFileConfig {
	c := *defaultFileConfig
	return &c
}

type RawFileConfig struct {
	DataFile       *string  `json:"dataFile,omitempty" yaml:"dataFile,omitempty"`
	NoiseFloor     *float64 `json:"noiseFloor,omitempty" yaml:"noiseFloor,omitempty"`
	CutoffVoltage  *float64 `json:"cutoffVoltage,omitempty" yaml:"cutoffVoltage,omitempty"`
	SecondsPerHour *float64 `json:"secondsPerHour,omitempty" yaml:"secondsPerHour,omitempty"`
	SerialPort     *string  `json:"serialPort,omitempty" yaml:"serialPort,omitempty"`
	BaudRate       *int     `json:"baudRate,omitempty" yaml:"baudRate,omitempty"`
	ReadCommand    *string  `json:"readCommand,omitempty" yaml:"readCommand,omitempty"`
	SampleInterval *string  `json:"sampleInterval,omitempty" yaml:"sampleInterval,omitempty"`
	ListenAddr     *string  `json:"listenAddr,omitempty" yaml:"listenAddr,omitempty"`
}

// valueOr returns *v, or *def when v is unset.
func valueOr[T any](v, def *T) T {
	if v != nil {
		return *v
	}
	return *def
}

func (f *File) get() *RawFileConfig {
	if f.c == nil {
		panic("config is nil")
	}
	return f.c
}

func (f *File) DataFile() string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return valueOr(f.get().DataFile, defaultFileConfig.DataFile)
}

func (f *File) NoiseFloor() float64 {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return valueOr(f.get().NoiseFloor, defaultFileConfig.NoiseFloor)
}

func (f *File) CutoffVoltage() float64 {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return valueOr(f.get().CutoffVoltage, defaultFileConfig.CutoffVoltage)
}

func (f *File) SecondsPerHour() float64 {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return valueOr(f.get().SecondsPerHour, defaultFileConfig.SecondsPerHour)
}

func (f *File) Thresholds() capacity.Thresholds {
	return capacity.Thresholds{
		NoiseFloor:     f.NoiseFloor(),
		CutoffVoltage:  f.CutoffVoltage(),
		SecondsPerHour: f.SecondsPerHour(),
	}
}

func (f *File) SerialPort() string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return valueOr(f.get().SerialPort, defaultFileConfig.SerialPort)
}

func (f *File) BaudRate() int {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return valueOr(f.get().BaudRate, defaultFileConfig.BaudRate)
}

func (f *File) ReadCommand() string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return valueOr(f.get().ReadCommand, defaultFileConfig.ReadCommand)
}

// SampleInterval is validated on Load, so a parse failure here can only come
// from a RawFileConfig built in code. The default is used in that case.
func (f *File) SampleInterval() time.Duration {
	f.mu.RLock()
	defer f.mu.RUnlock()

	d, err := time.ParseDuration(valueOr(f.get().SampleInterval, defaultFileConfig.SampleInterval))
	if err != nil || d <= 0 {
		d, _ = time.ParseDuration(*defaultFileConfig.SampleInterval)
	}
	return d
}

func (f *File) ListenAddr() string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return valueOr(f.get().ListenAddr, defaultFileConfig.ListenAddr)
}

// Raw returns the effective configuration with every field populated.
func (f *File) Raw() *RawFileConfig {
	return &RawFileConfig{
		DataFile:       ptr.To(f.DataFile()),
		NoiseFloor:     ptr.To(f.NoiseFloor()),
		CutoffVoltage:  ptr.To(f.CutoffVoltage()),
		SecondsPerHour: ptr.To(f.SecondsPerHour()),
		SerialPort:     ptr.To(f.SerialPort()),
		BaudRate:       ptr.To(f.BaudRate()),
		ReadCommand:    ptr.To(f.ReadCommand()),
		SampleInterval: ptr.To(f.SampleInterval().String()),
		ListenAddr:     ptr.To(f.ListenAddr()),
	}
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

func validate(c *RawFileConfig) error {
	if c.SampleInterval != nil {
		d, err := time.ParseDuration(*c.SampleInterval)
		if err != nil {
			return pkgerrors.Wrapf(err, "invalid sampleInterval %q", *c.SampleInterval)
		}
		if d <= 0 {
			return pkgerrors.Errorf("sampleInterval must be positive, got %s", d)
		}
	}
	if c.SecondsPerHour != nil && *c.SecondsPerHour <= 0 {
		return pkgerrors.Errorf("secondsPerHour must be positive, got %v", *c.SecondsPerHour)
	}
	if c.BaudRate != nil && *c.BaudRate <= 0 {
		return pkgerrors.Errorf("baudRate must be positive, got %d", *c.BaudRate)
	}
	return nil
}

func (f *File) Load() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.filepath == "" {
		f.c = &RawFileConfig{}
		return nil
	}

	fp, err := os.Open(f.filepath)
	if err != nil {
		if os.IsNotExist(err) {
			// If the file does not exist, return the empty config.
			// Do not make f.c a nil.
			f.c = &RawFileConfig{}
			return nil
		}
		return pkgerrors.Wrapf(err, "failed to open file %s", f.filepath)
	}
	defer func(fp *os.File) {
		err := fp.Close()
		if err != nil {
			logrus.Warnf("failed to close file %s", f.filepath)
		}
	}(fp)

	b, err := io.ReadAll(fp)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to read file %s", f.filepath)
	}

	if strings.TrimSpace(string(b)) == "" {
		f.c = &RawFileConfig{}
		return nil
	}

	conf := RawFileConfig{}
	if isYAML(f.filepath) {
		err = yaml.Unmarshal(b, &conf)
	} else {
		err = json.Unmarshal(b, &conf)
	}
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to unmarshal config from file %s", f.filepath)
	}
	if err := validate(&conf); err != nil {
		return pkgerrors.Wrapf(err, "invalid config in file %s", f.filepath)
	}
	f.c = &conf

	return nil
}

func (f *File) Save() error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.c == nil {
		return pkgerrors.New("config is nil")
	}
	if f.filepath == "" {
		return pkgerrors.New("config file path is empty")
	}

	fp, err := os.OpenFile(f.filepath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to open file %s", f.filepath)
	}
	defer func(fp *os.File) {
		err := fp.Close()
		if err != nil {
			logrus.Warnf("failed to close file %s", f.filepath)
		}
	}(fp)

	if isYAML(f.filepath) {
		enc := yaml.NewEncoder(fp)
		enc.SetIndent(2)
		err = enc.Encode(f.c)
		if err == nil {
			err = enc.Close()
		}
	} else {
		enc := json.NewEncoder(fp)
		enc.SetIndent("", "  ")
		err = enc.Encode(f.c)
	}
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to encode config to file %s", f.filepath)
	}

	return nil
}

func (f *File) LogrusFields() logrus.Fields {
	return logrus.Fields{
		"dataFile":       f.DataFile(),
		"noiseFloor":     f.NoiseFloor(),
		"cutoffVoltage":  f.CutoffVoltage(),
		"secondsPerHour": f.SecondsPerHour(),
		"serialPort":     f.SerialPort(),
		"baudRate":       f.BaudRate(),
		"sampleInterval": f.SampleInterval(),
		"listenAddr":     f.ListenAddr(),
	}
}
