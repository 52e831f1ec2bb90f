package rangefinder

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type sinkCall struct {
	index int
	value float64
}

type fakeSink struct {
	calls []sinkCall
}

func (s *fakeSink) SetRange(index int, value float64) {
	s.calls = append(s.calls, sinkCall{index, value})
}

func TestHandleReading(t *testing.T) {
	sink := &fakeSink{}
	handleReading("rangefinder/1", []byte("3.25"), 6, sink)
	handleReading("rangefinder/6", []byte(" 0.5\n"), 6, sink)

	assert.Equal(t, []sinkCall{
		{0, 3.25}, // wire indices are 1-based, slots are 0-based
		{5, 0.5},
	}, sink.calls)
}

func TestHandleReadingRejectsBadInput(t *testing.T) {
	sink := &fakeSink{}

	handleReading("rangefinder/x", []byte("1.0"), 6, sink)   // bad index
	handleReading("rangefinder/0", []byte("1.0"), 6, sink)   // below 1
	handleReading("rangefinder/7", []byte("1.0"), 6, sink)   // above count
	handleReading("rangefinder/2", []byte("close"), 6, sink) // bad payload

	assert.Empty(t, sink.calls)
}

func TestHandleReadingUnlimitedWhenCountZero(t *testing.T) {
	sink := &fakeSink{}
	handleReading("sensors/range/9", []byte("2"), 0, sink)
	assert.Equal(t, []sinkCall{{8, 2}}, sink.calls)
}
