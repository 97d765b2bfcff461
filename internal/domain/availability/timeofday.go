package availability

import (
	"fmt"
	"strings"
	"time"
)

// TimeOfDay is a wall-clock time expressed as minutes since local midnight.
// All slot arithmetic is done on these integers so that time zone and DST
// transitions never shift a slot.
type TimeOfDay int

// EndOfDay is the exclusive upper bound for a window ("24:00").
const EndOfDay TimeOfDay = 24 * 60

// Accepted layouts, canonical first. The 12-hour forms exist because older
// appointment rows stored times like "10:00 AM".
var timeLayouts = []string{"15:04", "15:04:05", "3:04 PM", "3:04PM", "03:04 PM"}

// ParseTimeOfDay parses "HH:MM" (and a few legacy layouts) into minutes since midnight.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	s = strings.TrimSpace(s)
	if s == "24:00" {
		return EndOfDay, nil
	}
	for _, layout := range timeLayouts {
		t, err := time.Parse(layout, strings.ToUpper(s))
		if err == nil {
			return TimeOfDay(t.Hour()*60 + t.Minute()), nil
		}
	}
	return 0, fmt.Errorf("invalid time of day %q: expected HH:MM", s)
}

// TimeOf returns the local wall-clock minute of t.
func TimeOf(t time.Time) TimeOfDay {
	return TimeOfDay(t.Hour()*60 + t.Minute())
}

// Add returns t shifted by the given number of minutes.
func (t TimeOfDay) Add(minutes int) TimeOfDay {
	return t + TimeOfDay(minutes)
}

// Valid reports whether t lies within [00:00, 24:00].
func (t TimeOfDay) Valid() bool {
	return t >= 0 && t <= EndOfDay
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

func (t TimeOfDay) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *TimeOfDay) UnmarshalText(data []byte) error {
	parsed, err := ParseTimeOfDay(string(data))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// TimeRange is a half-open interval [StartTime, EndTime) within a day.
type TimeRange struct {
	StartTime TimeOfDay `json:"start_time"`
	EndTime   TimeOfDay `json:"end_time"`
}

// Overlaps reports whether the half-open ranges [start, end) and r intersect.
func (r TimeRange) Overlaps(start, end TimeOfDay) bool {
	return start < r.EndTime && r.StartTime < end
}

// Contains reports whether t lies in [StartTime, EndTime).
func (r TimeRange) Contains(t TimeOfDay) bool {
	return t >= r.StartTime && t < r.EndTime
}
