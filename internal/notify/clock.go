package notify

import (
	"time"

	"github.com/pkg/errors"
	"github.com/talkincode/toughmeeting/internal/domain"
)

// DefaultTolerance the symmetric slack around the reminder target minute.
const DefaultTolerance = time.Minute

// Clock computes date and time windows in the business timezone.
type Clock struct {
	loc *time.Location
	now func() time.Time
}

// NewClock returns a clock in loc. A nil now uses time.Now.
func NewClock(loc *time.Location, now func() time.Time) *Clock {
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &Clock{loc: loc, now: now}
}

func (c *Clock) Location() *time.Location {
	return c.loc
}

// Now returns the current instant in the business timezone.
func (c *Clock) Now() time.Time {
	return c.now().In(c.loc)
}

// Today returns the business calendar date of now.
func (c *Clock) Today(now time.Time) string {
	return now.In(c.loc).Format(domain.DateLayout)
}

// TimeOfDay returns the business HH:MM of now.
func (c *Clock) TimeOfDay(now time.Time) string {
	return now.In(c.loc).Format(domain.ClockLayout)
}

// At resolves a meeting date and time of day to an instant.
func (c *Clock) At(date, clock string) (time.Time, error) {
	t, err := time.ParseInLocation(domain.DateLayout+" "+domain.ClockLayout, date+" "+clock, c.loc)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "resolve %s %s", date, clock)
	}
	return t, nil
}

// WithinLeadWindow reports whether now, at minute granularity, falls in
// [start-lead-tolerance, start-lead+tolerance], bounds included.
func (c *Clock) WithinLeadWindow(now time.Time, date, start string, lead, tolerance time.Duration) (bool, error) {
	startAt, err := c.At(date, start)
	if err != nil {
		return false, err
	}
	target := startAt.Add(-lead)
	n := minute(now)
	return !n.Before(target.Add(-tolerance)) && !n.After(target.Add(tolerance)), nil
}

// HasEnded reports whether the meeting end instant is strictly before now.
func (c *Clock) HasEnded(date, end string, now time.Time) (bool, error) {
	endAt, err := c.At(date, end)
	if err != nil {
		return false, err
	}
	return endAt.Before(now), nil
}

// LeadWindowDates lists the meeting dates that can have a start time inside
// the lead window of now. Near midnight this includes the next day.
func (c *Clock) LeadWindowDates(now time.Time, lead, tolerance time.Duration) []string {
	dates := []string{c.Today(now.Add(lead - tolerance))}
	if last := c.Today(now.Add(lead + tolerance)); last != dates[0] {
		dates = append(dates, last)
	}
	return dates
}

func minute(t time.Time) time.Time {
	return t.Truncate(time.Minute)
}
