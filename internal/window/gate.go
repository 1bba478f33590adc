package window

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TimeOfDay is an offset from local midnight
type TimeOfDay time.Duration

// ParseTimeOfDay parses "HH:MM" or "HH:MM:SS"
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid time of day %q: expected HH:MM or HH:MM:SS", s)
	}

	limits := []int{23, 59, 59}
	values := make([]int, 3)
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil || v < 0 || v > limits[i] {
			return 0, fmt.Errorf("invalid time of day %q", s)
		}
		values[i] = v
	}

	d := time.Duration(values[0])*time.Hour +
		time.Duration(values[1])*time.Minute +
		time.Duration(values[2])*time.Second
	return TimeOfDay(d), nil
}

// Of returns the time of day of t in t's own location
func Of(t time.Time) TimeOfDay {
	h, m, s := t.Clock()
	d := time.Duration(h)*time.Hour +
		time.Duration(m)*time.Minute +
		time.Duration(s)*time.Second +
		time.Duration(t.Nanosecond())
	return TimeOfDay(d)
}

func (t TimeOfDay) String() string {
	d := time.Duration(t)
	h := d / time.Hour
	m := (d % time.Hour) / time.Minute
	s := (d % time.Minute) / time.Second
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// Gate is a daily time window evaluated in a fixed time zone.
// Both boundaries are treated as closed: the gate is open only strictly
// between From and To.
type Gate struct {
	from     TimeOfDay
	to       TimeOfDay
	location *time.Location
}

// NewGate creates a gate for the window (from, to) in loc.
// Overnight windows (from >= to) are rejected.
func NewGate(from, to TimeOfDay, loc *time.Location) (*Gate, error) {
	if loc == nil {
		return nil, fmt.Errorf("location cannot be nil")
	}
	if from >= to {
		return nil, fmt.Errorf("window start %s must be before end %s", from, to)
	}
	return &Gate{from: from, to: to, location: loc}, nil
}

// IsOpen reports whether now falls strictly inside the window.
func (g *Gate) IsOpen(now time.Time) bool {
	tod := Of(now.In(g.location))
	return g.from < tod && tod < g.to
}

// Local converts now into the gate's time zone.
func (g *Gate) Local(now time.Time) time.Time {
	return now.In(g.location)
}

// From returns the opening time of day.
func (g *Gate) From() TimeOfDay { return g.from }

// To returns the closing time of day.
func (g *Gate) To() TimeOfDay { return g.to }

// Location returns the time zone the window is evaluated in.
func (g *Gate) Location() *time.Location { return g.location }

// String formats the gate as "from-to zone", e.g. "05:55:00-19:00:00 Europe/Berlin".
func (g *Gate) String() string {
	return fmt.Sprintf("%s-%s %s", g.from, g.to, g.location)
}
