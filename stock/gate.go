package stock

import "time"

// Gate is the wall-clock window in which a scrape may run. The upstream
// page refreshes on five-minute boundaries and settles about thirty
// seconds later.
type Gate struct {
	// StepMinutes: minute-of-hour must be a multiple of it.
	StepMinutes int
	// FromSecond and ToSecond bound second-of-minute, inclusive.
	FromSecond int
	ToSecond   int
}

// DefaultGate opens at :x0:30 and :x5:30 for six seconds.
func DefaultGate() Gate {
	return Gate{StepMinutes: 5, FromSecond: 30, ToSecond: 35}
}

// IsPermitted reports whether now, taken in UTC, falls inside the window.
func (g Gate) IsPermitted(now time.Time) bool {
	step := g.StepMinutes
	if step <= 0 {
		step = 1
	}
	now = now.UTC()
	sec := now.Second()
	return now.Minute()%step == 0 && sec >= g.FromSecond && sec <= g.ToSecond
}

// Next returns the first window opening strictly after now.
func (g Gate) Next(now time.Time) time.Time {
	step := g.StepMinutes
	if step <= 0 {
		step = 1
	}
	now = now.UTC()
	t := now.Truncate(time.Minute)
	for {
		if t.Minute()%step == 0 {
			open := t.Add(time.Duration(g.FromSecond) * time.Second)
			if open.After(now) {
				return open
			}
		}
		t = t.Add(time.Minute)
	}
}
