package progress

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/alexander-akhmetov/mat/internal/event"
)

func TestTracker(t *testing.T) {
	var got []event.Event
	tr := NewTracker(3, 1, func(ev event.Event) { got = append(got, ev) })
	start := tr.started
	tr.now = func() time.Time { return start.Add(75 * time.Second) }

	tr.Begin("US-2", "Second")
	tr.Complete()
	tr.Begin("US-3", "Third")
	tr.Fail("Failed after 3 attempts")

	assert.Equal(t, "2/3 items passing, 1 failed in 1m15s", tr.Summary())

	assert.Equal(t, []event.Event{
		event.ItemStart("US-2", "Second", 1, 3),
		event.ItemPassed("US-2", 2, 3),
		event.ItemStart("US-3", "Third", 2, 3),
		event.ItemFailed("US-3", "Failed after 3 attempts", 2, 3),
	}, got)
}

func TestTracker_NilHandler(t *testing.T) {
	tr := NewTracker(1, 0, nil)
	tr.Begin("a", "A")
	tr.Complete()
	assert.Contains(t, tr.Summary(), "1/1 items passing")
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "3s", FormatDuration(3*time.Second))
	assert.Equal(t, "2m3s", FormatDuration(2*time.Minute+3*time.Second))
	assert.Equal(t, "1h0m5s", FormatDuration(time.Hour+5*time.Second))
	assert.Equal(t, "1s", FormatDuration(1400*time.Millisecond))
}
