// Package timewindow checks the elapsed time between two server-stamped
// instants. Client clocks never reach this package.
package timewindow

import (
	"time"

	"cleanproof/backend/model"
)

// Guard is an allowed [Min, Max] window. A zero Min disables the lower bound.
type Guard struct {
	Min time.Duration
	Max time.Duration
}

func NewGuard(min, max time.Duration) Guard {
	return Guard{Min: min, Max: max}
}

// Elapsed returns the minutes between start and now, never negative.
func Elapsed(start, now time.Time) float64 {
	d := now.Sub(start)
	if d < 0 {
		d = 0
	}
	return d.Minutes()
}

// Check returns the elapsed minutes and a TimeWindowExceeded error when they
// fall outside the window.
func (g Guard) Check(start, now time.Time) (float64, error) {
	elapsed := Elapsed(start, now)
	d := now.Sub(start)
	if d > g.Max || (g.Min > 0 && d < g.Min) {
		return elapsed, model.TimeWindowExceeded(elapsed, g.Min.Minutes(), g.Max.Minutes())
	}
	return elapsed, nil
}
