package util

import "time"

type Clock interface {
	After(d time.Duration) <-chan time.Time
	Now() time.Time
}

type RealClock struct{}

func (RealClock) After(d time.Duration) <-chan time.Time { return time.After(d) }
func (RealClock) Now() time.Time                         { return time.Now() }

// ManualClock is a test clock advanced by hand.
type ManualClock struct {
	T time.Time
}

func (m *ManualClock) Now() time.Time { return m.T }

func (m *ManualClock) Advance(d time.Duration) { m.T = m.T.Add(d) }

// After fires immediately once the clock has been advanced past d from the
// current reading; manual tests should prefer Advance plus polling.
func (m *ManualClock) After(d time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	ch <- m.T.Add(d)
	return ch
}
