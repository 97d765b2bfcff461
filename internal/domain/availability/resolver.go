package availability

import (
	"cloud.google.com/go/civil"
)

// Mode classifies a queried date.
type Mode string

const (
	ModeWorking        Mode = "working"
	ModeHoliday        Mode = "holiday"
	ModeVacation       Mode = "vacation"
	ModeBlockedFull    Mode = "blocked-full"
	ModeBlockedPartial Mode = "blocked-partial"
	ModeNonWorking     Mode = "non-working"
	ModeOutOfHorizon   Mode = "out-of-horizon"
)

// HasSlots reports whether slots are generated for the mode.
func (m Mode) HasSlots() bool {
	return m == ModeWorking || m == ModeBlockedPartial
}

// DayMode is the outcome of resolving a day. Reason carries the holiday
// reason, vacation message or block reason; Windows and Exclusions are only
// set for working and blocked-partial days.
type DayMode struct {
	Mode       Mode
	Reason     string
	Windows    []WorkWindow
	Exclusions []TimeRange
}

// ResolveDayMode applies the rule sources to date in fixed precedence:
// vacation, holiday, full-day block, weekly non-working day, then the weekly
// windows narrowed by partial blocks. A doctor without a weekly schedule has
// no working days.
func ResolveDayMode(rules *RuleSet, date civil.Date) DayMode {
	if rules == nil {
		return DayMode{Mode: ModeNonWorking}
	}

	for i := range rules.Vacations {
		v := &rules.Vacations[i]
		if v.IsActive && v.Covers(date) {
			return DayMode{Mode: ModeVacation, Reason: v.Message}
		}
	}

	for i := range rules.Holidays {
		h := &rules.Holidays[i]
		if h.Matches(date) {
			return DayMode{Mode: ModeHoliday, Reason: h.Reason}
		}
	}

	var exclusions []TimeRange
	for _, b := range rules.BlockedDates {
		if b.Date != date {
			continue
		}
		if b.IsFullDay {
			return DayMode{Mode: ModeBlockedFull, Reason: b.Reason}
		}
		exclusions = append(exclusions, b.BlockedWindows...)
	}

	if rules.Weekly == nil {
		return DayMode{Mode: ModeNonWorking}
	}
	day := rules.Weekly.Day(date)
	if !day.IsWorking {
		return DayMode{Mode: ModeNonWorking}
	}

	if len(exclusions) > 0 {
		return DayMode{Mode: ModeBlockedPartial, Windows: day.Windows, Exclusions: exclusions}
	}
	return DayMode{Mode: ModeWorking, Windows: day.Windows}
}
