// Package perftimer times bulk loads and derives the next batch size from
// how long the previous one took.
package perftimer

import (
	"fmt"
	"time"
)

// Ceiling is the largest threshold NextThreshold will grow past.
const Ceiling = 100000

// DefaultTarget is the wanted duration of one flush.
const DefaultTarget = time.Second

// TimerStateError reports Start on a running timer or Stop on a stopped one.
type TimerStateError struct {
	Running bool
}

func (e *TimerStateError) Error() string {
	if e.Running {
		return "perftimer: timer is running; call Stop first"
	}
	return "perftimer: timer is not running; call Start first"
}

// Timer measures one lap at a time. It is not safe for concurrent use.
type Timer struct {
	now     func() time.Time
	started time.Time
	running bool
	lap     time.Duration
	hasLap  bool
}

// NewTimer returns a Timer reading time from now (time.Now when nil).
func NewTimer(now func() time.Time) *Timer {
	if now == nil {
		now = time.Now
	}
	return &Timer{now: now}
}

// Start opens a lap.
func (t *Timer) Start() error {
	if t.running {
		return &TimerStateError{Running: true}
	}
	t.started = t.now()
	t.running = true
	return nil
}

// Stop closes the open lap and returns its duration.
func (t *Timer) Stop() (time.Duration, error) {
	if !t.running {
		return 0, &TimerStateError{Running: false}
	}
	t.lap = t.now().Sub(t.started)
	t.hasLap = true
	t.running = false
	return t.lap, nil
}

// Lap returns the last completed lap.
func (t *Timer) Lap() (time.Duration, bool) { return t.lap, t.hasLap }

// Running reports whether a lap is open.
func (t *Timer) Running() bool { return t.running }

// BatchTimer adjusts a batch-size threshold so each flush takes about
// Target. Shortfalls beyond a third of the target shrink the threshold;
// surpluses of three quarters or more grow it.
type BatchTimer struct {
	*Timer
	threshold int
	target    time.Duration
}

// NewBatchTimer returns a BatchTimer starting at threshold. A non-positive
// target selects DefaultTarget.
func NewBatchTimer(threshold int, target time.Duration, now func() time.Time) *BatchTimer {
	if target <= 0 {
		target = DefaultTarget
	}
	return &BatchTimer{Timer: NewTimer(now), threshold: threshold, target: target}
}

// Threshold returns the current batch size.
func (b *BatchTimer) Threshold() int { return b.threshold }

// Target returns the wanted flush duration.
func (b *BatchTimer) Target() time.Duration { return b.target }

// NextThreshold applies one correction based on the last lap and returns the
// new threshold. Without a completed lap the threshold is unchanged.
func (b *BatchTimer) NextThreshold() int {
	lap, ok := b.Lap()
	if !ok {
		return b.threshold
	}
	target := b.target.Seconds()
	diff := target - lap.Seconds()

	correction := 0
	if diff < -0.33*target {
		switch {
		case b.threshold >= 10000:
			correction = -1000
		case b.threshold >= 1000:
			correction = -100
		case b.threshold > 10:
			correction = 10
		}
	}
	if diff >= 0.75*target && b.threshold < Ceiling {
		switch {
		case b.threshold >= 1000:
			correction = 1000
		case b.threshold >= 100:
			correction = 100
		case b.threshold >= 10:
			correction = 10
		}
	}
	b.threshold += correction
	return b.threshold
}

func (b *BatchTimer) String() string {
	return fmt.Sprintf("threshold=%d target=%s", b.threshold, b.target)
}
