package simulator

import (
	"fmt"
	"time"
)

// Hours defines a trading session window in a named timezone.
// Weekends are always closed.
type Hours struct {
	Start    string `yaml:"start"`    // "09:30"
	End      string `yaml:"end"`      // "16:00"
	Timezone string `yaml:"timezone"` // IANA name, e.g. "America/New_York"
}

// DefaultHours returns the regular US equity session.
func DefaultHours() Hours {
	return Hours{
		Start:    "09:30",
		End:      "16:00",
		Timezone: "America/New_York",
	}
}

// Calendar answers market-open questions for a session window. Construct
// once per run; LoadLocation is not cheap enough to call per bar.
type Calendar struct {
	loc        *time.Location
	startHour  int
	startMin   int
	endHour    int
	endMin     int
}

// NewCalendar parses the session window and loads its timezone.
func NewCalendar(hours Hours) (*Calendar, error) {
	loc, err := time.LoadLocation(hours.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", hours.Timezone, err)
	}

	startHour, startMin, err := parseClock(hours.Start)
	if err != nil {
		return nil, fmt.Errorf("parse session start: %w", err)
	}

	endHour, endMin, err := parseClock(hours.End)
	if err != nil {
		return nil, fmt.Errorf("parse session end: %w", err)
	}

	return &Calendar{
		loc:       loc,
		startHour: startHour,
		startMin:  startMin,
		endHour:   endHour,
		endMin:    endMin,
	}, nil
}

// IsMarketOpen reports whether the market is open at the given instant:
// a weekday within the configured session window, evaluated in the
// session timezone.
func (c *Calendar) IsMarketOpen(t time.Time) bool {
	local := t.In(c.loc)

	switch local.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}

	minutes := local.Hour()*60 + local.Minute()
	start := c.startHour*60 + c.startMin
	end := c.endHour*60 + c.endMin

	return minutes >= start && minutes < end
}

// parseClock parses "HH:MM" into hour and minute components.
func parseClock(s string) (int, int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid clock time %q: %w", s, err)
	}
	return t.Hour(), t.Minute(), nil
}
