package availability

import (
	"testing"
	"time"
)

// weekdayRules is a Mon-Fri 09:00-17:00, 30-minute schedule.
func weekdayRules() *RuleSet {
	ws := &WeeklySchedule{}
	for d := time.Monday; d <= time.Friday; d++ {
		ws.Days[d] = DaySchedule{IsWorking: true, Windows: []WorkWindow{window("09:00", "17:00", 30, 0)}}
	}
	return &RuleSet{Weekly: ws}
}

func TestResolveDayMode_Working(t *testing.T) {
	got := ResolveDayMode(weekdayRules(), date("2026-10-21"))
	if got.Mode != ModeWorking {
		t.Fatalf("expected working, got %s", got.Mode)
	}
	if len(got.Windows) != 1 || len(got.Exclusions) != 0 {
		t.Errorf("unexpected windows/exclusions: %+v", got)
	}
}

func TestResolveDayMode_NonWorkingWeekday(t *testing.T) {
	// 2026-10-18 is a Sunday.
	if got := ResolveDayMode(weekdayRules(), date("2026-10-18")); got.Mode != ModeNonWorking {
		t.Errorf("expected non-working, got %s", got.Mode)
	}
}

func TestResolveDayMode_NoSchedule(t *testing.T) {
	if got := ResolveDayMode(&RuleSet{}, date("2026-10-21")); got.Mode != ModeNonWorking {
		t.Errorf("expected non-working without a weekly schedule, got %s", got.Mode)
	}
	if got := ResolveDayMode(nil, date("2026-10-21")); got.Mode != ModeNonWorking {
		t.Errorf("expected non-working for nil rules, got %s", got.Mode)
	}
}

func TestResolveDayMode_VacationWinsEverything(t *testing.T) {
	rules := weekdayRules()
	rules.Vacations = []VacationPeriod{{IsActive: true, StartDate: date("2026-10-19"), EndDate: date("2026-10-23"), Message: "Conference"}}
	rules.Holidays = []Holiday{{Date: date("2026-10-21"), Reason: "Festival"}}
	rules.BlockedDates = []BlockedDate{{Date: date("2026-10-21"), IsFullDay: true}}

	for _, d := range []string{"2026-10-19", "2026-10-21", "2026-10-23"} {
		got := ResolveDayMode(rules, date(d))
		if got.Mode != ModeVacation {
			t.Errorf("%s: expected vacation, got %s", d, got.Mode)
		}
		if got.Reason != "Conference" {
			t.Errorf("%s: expected vacation message, got %q", d, got.Reason)
		}
	}
	if got := ResolveDayMode(rules, date("2026-10-24")); got.Mode == ModeVacation {
		t.Error("day after vacation end must not be vacation")
	}
}

func TestResolveDayMode_InactiveVacationIgnored(t *testing.T) {
	rules := weekdayRules()
	rules.Vacations = []VacationPeriod{{IsActive: false, StartDate: date("2026-10-19"), EndDate: date("2026-10-23")}}
	if got := ResolveDayMode(rules, date("2026-10-21")); got.Mode != ModeWorking {
		t.Errorf("expected working, got %s", got.Mode)
	}
}

func TestResolveDayMode_HolidayBeatsBlock(t *testing.T) {
	rules := weekdayRules()
	rules.Holidays = []Holiday{{Date: date("2026-10-21"), Reason: "Festival"}}
	rules.BlockedDates = []BlockedDate{{Date: date("2026-10-21"), IsFullDay: true, Reason: "Audit"}}

	got := ResolveDayMode(rules, date("2026-10-21"))
	if got.Mode != ModeHoliday || got.Reason != "Festival" {
		t.Errorf("expected holiday Festival, got %s %q", got.Mode, got.Reason)
	}
}

func TestResolveDayMode_RecurringHoliday(t *testing.T) {
	rules := weekdayRules()
	rules.Holidays = []Holiday{{Date: date("2024-01-26"), IsRecurring: true, Reason: "Republic Day"}}

	for _, d := range []string{"2025-01-26", "2030-01-26"} {
		if got := ResolveDayMode(rules, date(d)); got.Mode != ModeHoliday {
			t.Errorf("%s: expected holiday, got %s", d, got.Mode)
		}
	}
	if got := ResolveDayMode(rules, date("2024-01-27")); got.Mode == ModeHoliday {
		t.Error("2024-01-27 must not be a holiday")
	}
}

func TestResolveDayMode_FullBlockBeatsPartial(t *testing.T) {
	rules := weekdayRules()
	rules.BlockedDates = []BlockedDate{
		{Date: date("2026-10-21"), BlockedWindows: []TimeRange{{StartTime: mustTime("12:00"), EndTime: mustTime("13:00")}}},
		{Date: date("2026-10-21"), IsFullDay: true, Reason: "Training"},
	}
	got := ResolveDayMode(rules, date("2026-10-21"))
	if got.Mode != ModeBlockedFull || got.Reason != "Training" {
		t.Errorf("expected blocked-full Training, got %s %q", got.Mode, got.Reason)
	}
}

func TestResolveDayMode_FullBlockOnNonWorkingDay(t *testing.T) {
	rules := weekdayRules()
	rules.BlockedDates = []BlockedDate{{Date: date("2026-10-18"), IsFullDay: true}}
	if got := ResolveDayMode(rules, date("2026-10-18")); got.Mode != ModeBlockedFull {
		t.Errorf("full block ranks above the weekly rule, got %s", got.Mode)
	}
}

func TestResolveDayMode_PartialBlocksUnion(t *testing.T) {
	rules := weekdayRules()
	rules.BlockedDates = []BlockedDate{
		{Date: date("2026-10-21"), BlockedWindows: []TimeRange{{StartTime: mustTime("12:00"), EndTime: mustTime("13:00")}}},
		{Date: date("2026-10-21"), BlockedWindows: []TimeRange{{StartTime: mustTime("15:00"), EndTime: mustTime("15:30")}}},
		{Date: date("2026-10-22"), BlockedWindows: []TimeRange{{StartTime: mustTime("09:00"), EndTime: mustTime("10:00")}}},
	}
	got := ResolveDayMode(rules, date("2026-10-21"))
	if got.Mode != ModeBlockedPartial {
		t.Fatalf("expected blocked-partial, got %s", got.Mode)
	}
	if len(got.Exclusions) != 2 {
		t.Errorf("expected 2 exclusions from the same date, got %d", len(got.Exclusions))
	}
}

func TestResolveDayMode_PartialBlockOnNonWorkingDay(t *testing.T) {
	rules := weekdayRules()
	rules.BlockedDates = []BlockedDate{{Date: date("2026-10-18"), BlockedWindows: []TimeRange{{StartTime: mustTime("12:00"), EndTime: mustTime("13:00")}}}}
	if got := ResolveDayMode(rules, date("2026-10-18")); got.Mode != ModeNonWorking {
		t.Errorf("expected non-working, got %s", got.Mode)
	}
}
