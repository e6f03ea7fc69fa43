package recorder

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/tarm/serial"

	"github.com/charlie0129/battcap/pkg/telemetry"
)

// LineSource parses charger status lines from a byte stream, usually a
// serial port.
type LineSource struct {
	rw      io.ReadWriteCloser
	scanner *bufio.Scanner
	closed  atomic.Bool
	once    sync.Once
	now     func() time.Time
}

var _ Source = &LineSource{}

// OpenSerial opens a serial port and asks the charger to start reporting
// with command.
func OpenSerial(name string, baud int, command string) (*LineSource, error) {
	c := &serial.Config{Name: name, Baud: baud}
	port, err := serial.OpenPort(c)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to open serial port %s", name)
	}
	logrus.WithFields(logrus.Fields{
		"port": name,
		"baud": baud,
	}).Info("serial port opened")

	src, err := NewLineSource(port, command)
	if err != nil {
		_ = port.Close()
		return nil, err
	}
	return src, nil
}

// NewLineSource wraps rw. If command is not empty it is written to rw,
// terminated by a newline, before any line is read.
func NewLineSource(rw io.ReadWriteCloser, command string) (*LineSource, error) {
	if command != "" {
		msg := command + "\n"
		n, err := rw.Write([]byte(msg))
		if err != nil {
			return nil, pkgerrors.Wrapf(err, "failed to write %q", command)
		}
		if n != len(msg) {
			return nil, fmt.Errorf("wrote %d bytes, expected %d", n, len(msg))
		}
		logrus.Infof("message written: %s", command)
	}

	return &LineSource{
		rw:      rw,
		scanner: bufio.NewScanner(rw),
		now:     time.Now,
	}, nil
}

func (l *LineSource) Next(_ context.Context) (telemetry.Sample, error) {
	for l.scanner.Scan() {
		line := l.scanner.Text()
		logrus.Debugf("data received: %s", line)

		s, err := telemetry.Parse(line)
		if err != nil {
			if !errors.Is(err, telemetry.ErrNoMatch) {
				logrus.Warnf("skipping line: %v", err)
			}
			continue
		}
		s.Time = l.now()
		return s, nil
	}

	if l.closed.Load() {
		return telemetry.Sample{}, ErrClosed
	}
	if err := l.scanner.Err(); err != nil {
		return telemetry.Sample{}, pkgerrors.Wrap(err, "failed to read status line")
	}
	return telemetry.Sample{}, io.EOF
}

func (l *LineSource) Close() error {
	var err error
	l.once.Do(func() {
		l.closed.Store(true)
		err = l.rw.Close()
	})
	return err
}

// Closed reports whether Close has been called.
func (l *LineSource) Closed() bool {
	return l.closed.Load()
}
