package client

import "errors"

var (
	// ErrRecorderNotRunning is returned when nothing is listening on the recorder address
	ErrRecorderNotRunning = errors.New("recorder not running")

	// ErrNotFound is returned when 404 is returned from the recorder
	ErrNotFound = errors.New("404 not found")
)
