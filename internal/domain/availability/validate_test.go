package availability

import (
	"errors"
	"math"
	"strings"
	"testing"
)

func window(start, end string, dur, buffer int) WorkWindow {
	return WorkWindow{StartTime: mustTime(start), EndTime: mustTime(end), SlotDurationMinutes: dur, BufferMinutes: buffer}
}

func TestValidateDaySchedule(t *testing.T) {
	tests := []struct {
		name    string
		day     DaySchedule
		wantErr string
	}{
		{"non-working ignores windows", DaySchedule{Windows: []WorkWindow{window("10:00", "09:00", 0, 0)}}, ""},
		{"valid split day", DaySchedule{IsWorking: true, Windows: []WorkWindow{
			window("14:00", "18:00", 30, 0), window("09:00", "13:00", 15, 5),
		}}, ""},
		{"adjacent windows", DaySchedule{IsWorking: true, Windows: []WorkWindow{
			window("09:00", "12:00", 30, 0), window("12:00", "15:00", 30, 0),
		}}, ""},
		{"end of day", DaySchedule{IsWorking: true, Windows: []WorkWindow{window("20:00", "24:00", 60, 0)}}, ""},
		{"start after end", DaySchedule{IsWorking: true, Windows: []WorkWindow{window("13:00", "09:00", 15, 0)}}, "must be before"},
		{"empty window", DaySchedule{IsWorking: true, Windows: []WorkWindow{window("09:00", "09:00", 15, 0)}}, "must be before"},
		{"zero duration", DaySchedule{IsWorking: true, Windows: []WorkWindow{window("09:00", "13:00", 0, 0)}}, "slot_duration_minutes"},
		{"negative buffer", DaySchedule{IsWorking: true, Windows: []WorkWindow{window("09:00", "13:00", 15, -5)}}, "buffer_minutes"},
		{"duration longer than window", DaySchedule{IsWorking: true, Windows: []WorkWindow{window("09:00", "09:20", 30, 0)}}, "does not fit"},
		{"huge duration", DaySchedule{IsWorking: true, Windows: []WorkWindow{window("09:00", "17:00", math.MaxInt, 0)}}, "slot_duration_minutes"},
		{"buffer longer than a day", DaySchedule{IsWorking: true, Windows: []WorkWindow{window("09:00", "17:00", 30, 1441)}}, "buffer_minutes"},
		{"huge buffer", DaySchedule{IsWorking: true, Windows: []WorkWindow{window("09:00", "17:00", 30, math.MaxInt)}}, "buffer_minutes"},
		{"whole-window slot with day-long buffer", DaySchedule{IsWorking: true, Windows: []WorkWindow{window("09:00", "17:00", 480, 1440)}}, ""},
		{"overlap", DaySchedule{IsWorking: true, Windows: []WorkWindow{
			window("09:00", "12:00", 30, 0), window("11:30", "14:00", 30, 0),
		}}, "overlaps"},
		{"negative capacity", DaySchedule{IsWorking: true, Windows: []WorkWindow{
			{StartTime: mustTime("09:00"), EndTime: mustTime("10:00"), SlotDurationMinutes: 15, CapacityPerSlot: -1},
		}}, "capacity_per_slot"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDaySchedule("days.monday", tt.day)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected *ValidationError, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %q", tt.wantErr, err.Error())
			}
			if !strings.HasPrefix(verr.Field, "days.monday") {
				t.Errorf("expected field under days.monday, got %q", verr.Field)
			}
		})
	}
}

func TestValidateWeekDays_NamesDay(t *testing.T) {
	var days WeekDays
	days[5] = DaySchedule{IsWorking: true, Windows: []WorkWindow{window("09:00", "08:00", 15, 0)}}
	err := ValidateWeekDays(days)
	if err == nil || !strings.Contains(err.Error(), "days.friday") {
		t.Errorf("expected friday to be named, got %v", err)
	}
}

func TestValidateBlockedDate(t *testing.T) {
	full := &BlockedDate{Date: date("2026-11-02"), IsFullDay: true}
	if err := ValidateBlockedDate(full); err != nil {
		t.Errorf("unexpected error for full-day block: %v", err)
	}

	partial := &BlockedDate{Date: date("2026-11-02"), BlockedWindows: []TimeRange{{StartTime: mustTime("12:00"), EndTime: mustTime("13:00")}}}
	if err := ValidateBlockedDate(partial); err != nil {
		t.Errorf("unexpected error for partial block: %v", err)
	}

	for name, b := range map[string]*BlockedDate{
		"missing date":    {IsFullDay: true},
		"no windows":      {Date: date("2026-11-02")},
		"inverted window": {Date: date("2026-11-02"), BlockedWindows: []TimeRange{{StartTime: mustTime("13:00"), EndTime: mustTime("12:00")}}},
		"window past 24h": {Date: date("2026-11-02"), BlockedWindows: []TimeRange{{StartTime: mustTime("23:00"), EndTime: EndOfDay + 30}}},
	} {
		if err := ValidateBlockedDate(b); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestValidateVacation(t *testing.T) {
	ok := &VacationPeriod{StartDate: date("2026-12-20"), EndDate: date("2026-12-20")}
	if err := ValidateVacation(ok); err != nil {
		t.Errorf("single-day vacation should be valid: %v", err)
	}
	bad := &VacationPeriod{StartDate: date("2026-12-20"), EndDate: date("2026-12-19")}
	var verr *ValidationError
	if err := ValidateVacation(bad); !errors.As(err, &verr) {
		t.Errorf("expected validation error for inverted range, got %v", err)
	}
}

func TestValidateHoliday(t *testing.T) {
	existing := []Holiday{
		{Date: date("2026-08-15")},
		{Date: date("2024-01-26"), IsRecurring: true},
	}
	if err := ValidateHoliday(&Holiday{Date: date("2026-08-15")}, existing); !errors.Is(err, ErrDuplicateHoliday) {
		t.Errorf("expected ErrDuplicateHoliday, got %v", err)
	}
	if err := ValidateHoliday(&Holiday{Date: date("2026-01-26")}, existing); err != nil {
		t.Errorf("a one-off on a recurring date is allowed: %v", err)
	}
	if err := ValidateHoliday(&Holiday{Date: date("2026-08-15"), IsRecurring: true}, existing); err != nil {
		t.Errorf("recurring entries are not unique-checked: %v", err)
	}
	if err := ValidateHoliday(&Holiday{}, existing); err == nil {
		t.Error("expected error for missing date")
	}
}
