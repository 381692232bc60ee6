package scheduler

import "time"

type (
	// Clock reports the current time. Refresh due times are computed from
	// it, so tests can substitute a fixed clock
	Clock func() time.Time

	// Timer wakes the scheduler loop when the earliest task comes due
	Timer interface {
		Channel() <-chan time.Time
		Reset(delay time.Duration) bool
		Stop() bool
	}

	// TimerConstructor creates the loop's Timer
	TimerConstructor func(delay time.Duration) Timer

	wallTimer struct {
		*time.Timer
	}
)

// NewTimer returns a Timer backed by the runtime's timers
func NewTimer(delay time.Duration) Timer {
	return wallTimer{Timer: time.NewTimer(delay)}
}

// FixedClock returns a Clock that always reports at
func FixedClock(at time.Time) Clock {
	return func() time.Time { return at }
}

func (t wallTimer) Channel() <-chan time.Time {
	return t.C
}
