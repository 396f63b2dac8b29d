// Package detector decides when the remote notebook UI has finished
// generating an answer. The UI streams text with no explicit completion
// event, so the detector polls adaptively and treats two further identical
// reads of a new answer as "generation settled".
package detector

import (
	"context"
	"fmt"
	"time"
)

// Page is the slice of a live browser page the detector needs. A real
// session satisfies it; tests script it.
type Page interface {
	// Generating reports whether the "still generating" indicator is visible.
	Generating(ctx context.Context) (bool, error)

	// AnswerText returns the text of the most recent answer container, or ""
	// when no answer is present yet.
	AnswerText(ctx context.Context) (string, error)
}

// TimeoutError means no stable answer appeared within the deadline.
type TimeoutError struct {
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("no stable answer within %s", e.After)
}

// Defaults for the polling schedule.
const (
	DefaultStart       = 100 * time.Millisecond
	DefaultMax         = time.Second
	DefaultGrowBusy    = 1.3
	DefaultGrowIdle    = 1.2
	DefaultStableReads = 2
	DefaultTimeout     = 120 * time.Second
)

// Detector polls a Page until the answer stabilizes.
//
// The schedule reacts to what the page is doing: while the generating
// indicator is up the interval grows gently (the answer check is skipped
// entirely, it would be wasted work); the moment new answer text appears the
// interval snaps back to Start because more text is probably coming; when
// nothing at all is happening the interval backs off a little slower than in
// the generating case.
type Detector struct {
	Start       time.Duration
	Max         time.Duration
	GrowBusy    float64
	GrowIdle    float64
	StableReads int
	Timeout     time.Duration

	// sleep is a test seam; nil means a context-aware time.Sleep.
	sleep func(ctx context.Context, d time.Duration) error
}

// New returns a detector with the default schedule.
func New() *Detector {
	return &Detector{
		Start:       DefaultStart,
		Max:         DefaultMax,
		GrowBusy:    DefaultGrowBusy,
		GrowIdle:    DefaultGrowIdle,
		StableReads: DefaultStableReads,
		Timeout:     DefaultTimeout,
	}
}

// Detect polls until the newest answer differs from previous and is observed
// unchanged StableReads times in a row, then returns it. It fails with
// *TimeoutError when the deadline passes first.
func (d *Detector) Detect(ctx context.Context, page Page, previous string) (string, error) {
	sleep := d.sleep
	if sleep == nil {
		sleep = sleepCtx
	}

	interval := d.Start
	deadline := time.Now().Add(d.Timeout)
	candidate := ""
	stable := 0

	for {
		if time.Now().After(deadline) {
			return "", &TimeoutError{After: d.Timeout}
		}
		if err := sleep(ctx, interval); err != nil {
			return "", err
		}

		busy, err := page.Generating(ctx)
		if err != nil {
			return "", fmt.Errorf("check generating indicator: %w", err)
		}
		if busy {
			// Fast path: while the UI says it is working there is nothing to
			// read, only wait.
			interval = d.grow(interval, d.GrowBusy)
			continue
		}

		text, err := page.AnswerText(ctx)
		if err != nil {
			return "", fmt.Errorf("read answer: %w", err)
		}

		if text == "" || text == previous {
			interval = d.grow(interval, d.GrowIdle)
			continue
		}

		if text == candidate {
			stable++
			if stable >= d.StableReads {
				return text, nil
			}
			continue
		}

		// New content: remember it and poll fast, more is likely coming.
		candidate = text
		stable = 0
		interval = d.Start
	}
}

func (d *Detector) grow(interval time.Duration, factor float64) time.Duration {
	grown := time.Duration(float64(interval) * factor)
	if grown > d.Max {
		return d.Max
	}
	return grown
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
