package detector

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// step is one poll's worth of scripted page state.
type step struct {
	busy bool
	text string
}

type scriptedPage struct {
	steps []step
	polls int
	cur   step
	err   error
}

func (p *scriptedPage) Generating(_ context.Context) (bool, error) {
	if p.err != nil {
		return false, p.err
	}
	idx := p.polls
	if idx >= len(p.steps) {
		idx = len(p.steps) - 1
	}
	p.cur = p.steps[idx]
	p.polls++
	return p.cur.busy, nil
}

func (p *scriptedPage) AnswerText(_ context.Context) (string, error) {
	return p.cur.text, nil
}

// newTestDetector records every sleep interval without actually sleeping.
func newTestDetector(intervals *[]time.Duration) *Detector {
	d := New()
	d.sleep = func(ctx context.Context, dur time.Duration) error {
		if intervals != nil {
			*intervals = append(*intervals, dur)
		}
		return ctx.Err()
	}
	return d
}

func TestDetectStabilizedAnswer(t *testing.T) {
	// Indicator up for three polls, then the answer appears and holds for
	// two further identical reads.
	page := &scriptedPage{steps: []step{
		{busy: true},
		{busy: true},
		{busy: true},
		{text: "Photosynthesis converts light into chemical energy."},
		{text: "Photosynthesis converts light into chemical energy."},
		{text: "Photosynthesis converts light into chemical energy."},
	}}

	d := newTestDetector(nil)
	answer, err := d.Detect(context.Background(), page, "")
	require.NoError(t, err)
	assert.Equal(t, "Photosynthesis converts light into chemical energy.", answer)

	// First sighting plus two confirming reads: no early return on the
	// first stable read alone.
	assert.Equal(t, 6, page.polls)
}

func TestDetectWaitsOutStreaming(t *testing.T) {
	page := &scriptedPage{steps: []step{
		{text: "The mitochondria"},
		{text: "The mitochondria is the powerhouse"},
		{text: "The mitochondria is the powerhouse of the cell."},
		{text: "The mitochondria is the powerhouse of the cell."},
		{text: "The mitochondria is the powerhouse of the cell."},
	}}

	var intervals []time.Duration
	d := newTestDetector(&intervals)

	answer, err := d.Detect(context.Background(), page, "")
	require.NoError(t, err)
	assert.Equal(t, "The mitochondria is the powerhouse of the cell.", answer)

	// Every new fragment snaps the poll interval back to Start.
	for i := 1; i < 4; i++ {
		assert.Equal(t, d.Start, intervals[i], "interval after new content at poll %d", i)
	}
}

func TestDetectIgnoresPreviousAnswer(t *testing.T) {
	page := &scriptedPage{steps: []step{{text: "stale answer from last turn"}}}

	d := newTestDetector(nil)
	d.Timeout = 20 * time.Millisecond

	_, err := d.Detect(context.Background(), page, "stale answer from last turn")

	var timeout *TimeoutError
	require.ErrorAs(t, err, &timeout)
	assert.Equal(t, d.Timeout, timeout.After)
}

func TestDetectBackoffSchedule(t *testing.T) {
	t.Run("busy growth capped at max", func(t *testing.T) {
		page := &scriptedPage{steps: []step{{busy: true}}}

		var intervals []time.Duration
		d := newTestDetector(&intervals)
		d.Timeout = 20 * time.Millisecond

		_, err := d.Detect(context.Background(), page, "")
		var timeout *TimeoutError
		require.ErrorAs(t, err, &timeout)

		require.Greater(t, len(intervals), 3)
		assert.Equal(t, d.Start, intervals[0])
		for i := 1; i < len(intervals); i++ {
			assert.GreaterOrEqual(t, intervals[i], intervals[i-1], "interval must never shrink while busy")
			assert.LessOrEqual(t, intervals[i], d.Max)
		}
	})

	t.Run("idle growth slower than busy growth", func(t *testing.T) {
		busyPage := &scriptedPage{steps: []step{{busy: true}}}
		idlePage := &scriptedPage{steps: []step{{}}}

		var busyIntervals, idleIntervals []time.Duration

		db := newTestDetector(&busyIntervals)
		db.Timeout = 10 * time.Millisecond
		_, _ = db.Detect(context.Background(), busyPage, "")

		di := newTestDetector(&idleIntervals)
		di.Timeout = 10 * time.Millisecond
		_, _ = di.Detect(context.Background(), idlePage, "")

		require.Greater(t, len(busyIntervals), 2)
		require.Greater(t, len(idleIntervals), 2)
		assert.Greater(t, busyIntervals[2], idleIntervals[2])
	})
}

func TestDetectContextCancellation(t *testing.T) {
	page := &scriptedPage{steps: []step{{busy: true}}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := newTestDetector(nil)
	_, err := d.Detect(ctx, page, "")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDetectPageErrorPropagates(t *testing.T) {
	pageErr := errors.New("target closed")
	page := &scriptedPage{err: pageErr}

	d := newTestDetector(nil)
	_, err := d.Detect(context.Background(), page, "")
	assert.ErrorIs(t, err, pageErr)
}
