package events

import (
	"encoding/json"

	"github.com/charlie0129/battcap/pkg/telemetry"
)

// Event name constants
const (
	SampleRecorded = "sample.recorded"
	PortClosed     = "port.closed"
)

// Event is a generic SSE event from the recorder.
type Event struct {
	Name string          // SSE event name
	Data json.RawMessage // Raw JSON payload
}

// SampleRecordedEvent is the payload of sample.recorded.
type SampleRecordedEvent = telemetry.Sample

// PortClosedEvent is the payload of port.closed.
type PortClosedEvent struct {
	Samples int   `json:"samples"`
	Ts      int64 `json:"ts"`
}

// DecodeAs decodes the event payload into T, ignoring the event name. Empty
// data decodes to the zero value of T.
func DecodeAs[T any](e Event) (T, error) {
	var zero T
	if len(e.Data) == 0 {
		return zero, nil
	}
	var v T
	if err := json.Unmarshal(e.Data, &v); err != nil {
		return zero, err
	}
	return v, nil
}
