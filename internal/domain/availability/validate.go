package availability

import (
	"errors"
	"fmt"
	"sort"
)

var (
	ErrDoctorNotFound      = errors.New("doctor not found")
	ErrScheduleNotFound    = errors.New("weekly schedule not found")
	ErrBlockedDateNotFound = errors.New("blocked date not found")
	ErrHolidayNotFound     = errors.New("holiday not found")
	ErrDuplicateHoliday    = errors.New("a holiday already exists on this date")
	ErrInvalidDate         = errors.New("invalid calendar date")
	ErrRangeTooLarge       = errors.New("date range too large")
)

// ValidationError reports a rule that violates a configuration invariant.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// ValidateDaySchedule checks window bounds, slot parameters and that no two
// windows of the day overlap.
func ValidateDaySchedule(field string, day DaySchedule) error {
	if !day.IsWorking {
		return nil
	}
	for i, w := range day.Windows {
		f := fmt.Sprintf("%s.windows[%d]", field, i)
		if !w.StartTime.Valid() || !w.EndTime.Valid() {
			return invalid(f, "times must be between 00:00 and 24:00")
		}
		if w.StartTime >= w.EndTime {
			return invalid(f, "start_time %s must be before end_time %s", w.StartTime, w.EndTime)
		}
		if w.SlotDurationMinutes <= 0 {
			return invalid(f, "slot_duration_minutes must be positive")
		}
		if w.SlotDurationMinutes > int(w.EndTime-w.StartTime) {
			return invalid(f, "slot_duration_minutes %d does not fit in %s-%s", w.SlotDurationMinutes, w.StartTime, w.EndTime)
		}
		if w.BufferMinutes < 0 {
			return invalid(f, "buffer_minutes must not be negative")
		}
		if w.BufferMinutes > int(EndOfDay) {
			return invalid(f, "buffer_minutes must not exceed %d", int(EndOfDay))
		}
		if w.CapacityPerSlot < 0 {
			return invalid(f, "capacity_per_slot must not be negative")
		}
	}

	sorted := make([]WorkWindow, len(day.Windows))
	copy(sorted, day.Windows)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].StartTime < sorted[j].StartTime })
	for i := 1; i < len(sorted); i++ {
		if sorted[i].StartTime < sorted[i-1].EndTime {
			return invalid(field+".windows", "window %s-%s overlaps %s-%s",
				sorted[i].StartTime, sorted[i].EndTime, sorted[i-1].StartTime, sorted[i-1].EndTime)
		}
	}
	return nil
}

// ValidateWeekDays validates every day of a weekly template.
func ValidateWeekDays(days WeekDays) error {
	for i, day := range days {
		if err := ValidateDaySchedule(weekdayField(i), day); err != nil {
			return err
		}
	}
	return nil
}

// ValidateBlockedDate checks that a partial block names at least one valid window.
func ValidateBlockedDate(b *BlockedDate) error {
	if !b.Date.IsValid() {
		return invalid("date", "a valid date is required")
	}
	if b.IsFullDay {
		return nil
	}
	if len(b.BlockedWindows) == 0 {
		return invalid("blocked_windows", "a partial block needs at least one window")
	}
	for i, r := range b.BlockedWindows {
		f := fmt.Sprintf("blocked_windows[%d]", i)
		if !r.StartTime.Valid() || !r.EndTime.Valid() {
			return invalid(f, "times must be between 00:00 and 24:00")
		}
		if r.StartTime >= r.EndTime {
			return invalid(f, "start_time %s must be before end_time %s", r.StartTime, r.EndTime)
		}
	}
	return nil
}

// ValidateVacation rejects missing or inverted ranges.
func ValidateVacation(v *VacationPeriod) error {
	if !v.StartDate.IsValid() {
		return invalid("start_date", "a valid date is required")
	}
	if !v.EndDate.IsValid() {
		return invalid("end_date", "a valid date is required")
	}
	if v.StartDate.After(v.EndDate) {
		return invalid("end_date", "end_date %s is before start_date %s", v.EndDate, v.StartDate)
	}
	return nil
}

// ValidateHoliday checks the date and that it does not duplicate a one-off
// holiday already on file.
func ValidateHoliday(h *Holiday, existing []Holiday) error {
	if !h.Date.IsValid() {
		return invalid("date", "a valid date is required")
	}
	if h.IsRecurring {
		return nil
	}
	for _, e := range existing {
		if !e.IsRecurring && e.Date == h.Date {
			return ErrDuplicateHoliday
		}
	}
	return nil
}

func weekdayField(i int) string {
	return "days." + lowerWeekday(i)
}
