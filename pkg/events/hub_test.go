package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventHub(t *testing.T) {
	h := NewEventHub()
	a := h.Subscribe()
	b := h.Subscribe()
	require.Equal(t, 2, h.Len())

	h.Publish(PortClosed, PortClosedEvent{Samples: 3, Ts: 42})

	for _, ch := range []chan Event{a, b} {
		ev := <-ch
		assert.Equal(t, PortClosed, ev.Name)
		payload, err := DecodeAs[PortClosedEvent](ev)
		require.NoError(t, err)
		assert.Equal(t, PortClosedEvent{Samples: 3, Ts: 42}, payload)
	}

	h.Unsubscribe(a)
	h.Unsubscribe(a)
	assert.Equal(t, 1, h.Len())
	_, ok := <-a
	assert.False(t, ok)

	h.Close()
	_, ok = <-b
	assert.False(t, ok)
	_, ok = <-h.Subscribe()
	assert.False(t, ok)
}

func TestEventHub_DropsWhenFull(t *testing.T) {
	h := NewEventHub()
	ch := h.Subscribe()
	for i := 0; i < 20; i++ {
		h.Publish(SampleRecorded, SampleRecordedEvent{Ibat: i})
	}
	assert.Len(t, ch, cap(ch))
}

func TestDecodeAs_Empty(t *testing.T) {
	v, err := DecodeAs[PortClosedEvent](Event{Name: PortClosed})
	require.NoError(t, err)
	assert.Zero(t, v)
}

func TestDecodeAs_Invalid(t *testing.T) {
	_, err := DecodeAs[PortClosedEvent](Event{Name: PortClosed, Data: []byte(`{`)})
	assert.Error(t, err)
}
