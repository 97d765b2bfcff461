package availability

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
)

// Doctor is the subset of a practitioner profile the engine needs: which local
// calendar the doctor works in and how far ahead patients may book.
type Doctor struct {
	ID          uuid.UUID `db:"id" json:"id"`
	DisplayName string    `db:"display_name" json:"display_name"`
	Timezone    string    `db:"timezone" json:"timezone"`
	// AdvanceBookingDays of 0 means unset: the deployment default applies.
	// Same-day-only booking is not expressible per doctor.
	AdvanceBookingDays int       `db:"advance_booking_days" json:"advance_booking_days"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time `db:"updated_at" json:"updated_at"`
}

// Location resolves the doctor's IANA time zone, falling back to fallback when unset.
func (d *Doctor) Location(fallback *time.Location) (*time.Location, error) {
	if d.Timezone == "" {
		return fallback, nil
	}
	loc, err := time.LoadLocation(d.Timezone)
	if err != nil {
		return fallback, fmt.Errorf("doctor %s: load timezone %q: %w", d.ID, d.Timezone, err)
	}
	return loc, nil
}

// WorkWindow is a contiguous span of working time on a weekday together with
// the parameters used to cut it into slots.
type WorkWindow struct {
	StartTime           TimeOfDay `json:"start_time"`
	EndTime             TimeOfDay `json:"end_time"`
	SlotDurationMinutes int       `json:"slot_duration_minutes"`
	BufferMinutes       int       `json:"buffer_minutes"`
	CapacityPerSlot     int       `json:"capacity_per_slot,omitempty"`
}

// Capacity returns the per-slot capacity, defaulting to one patient.
func (w WorkWindow) Capacity() int {
	if w.CapacityPerSlot <= 0 {
		return 1
	}
	return w.CapacityPerSlot
}

// DaySchedule is the atomic unit of weekly schedule updates.
type DaySchedule struct {
	IsWorking bool         `json:"is_working"`
	Windows   []WorkWindow `json:"windows"`
}

// WeekDays holds one DaySchedule per time.Weekday (Sunday = 0). It encodes as
// an object keyed by lowercase weekday name.
type WeekDays [7]DaySchedule

func (w WeekDays) MarshalJSON() ([]byte, error) {
	out := make(map[string]DaySchedule, 7)
	for i, day := range w {
		if day.Windows == nil {
			day.Windows = []WorkWindow{}
		}
		out[lowerWeekday(i)] = day
	}
	return json.Marshal(out)
}

func (w *WeekDays) UnmarshalJSON(data []byte) error {
	var in map[string]DaySchedule
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	var days WeekDays
	seen := make(map[time.Weekday]string, len(in))
	for name, day := range in {
		wd, err := ParseWeekday(name)
		if err != nil {
			return err
		}
		if prev, ok := seen[wd]; ok {
			return &ValidationError{Field: "days", Message: fmt.Sprintf("%q and %q both name %s", prev, name, wd)}
		}
		seen[wd] = name
		days[wd] = day
	}
	*w = days
	return nil
}

// WeeklySchedule is a doctor's recurring working template.
type WeeklySchedule struct {
	DoctorID  uuid.UUID `json:"doctor_id"`
	Days      WeekDays  `json:"days"`
	VersionID int       `json:"version_id"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Day returns the schedule for the weekday of date.
func (ws *WeeklySchedule) Day(date civil.Date) DaySchedule {
	return ws.Days[weekdayOf(date)]
}

// BlockedDate carves an exception out of an otherwise working day. Several
// entries may exist for one date; their effects are unioned.
type BlockedDate struct {
	ID             uuid.UUID   `json:"id"`
	DoctorID       uuid.UUID   `json:"doctor_id"`
	Date           civil.Date  `json:"date"`
	IsFullDay      bool        `json:"is_full_day"`
	BlockedWindows []TimeRange `json:"blocked_windows"`
	Reason         string      `json:"reason,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
}

// VacationPeriod is an inclusive date range during which the doctor is away.
type VacationPeriod struct {
	ID        uuid.UUID  `json:"id"`
	DoctorID  uuid.UUID  `json:"doctor_id"`
	IsActive  bool       `json:"is_active"`
	StartDate civil.Date `json:"start_date"`
	EndDate   civil.Date `json:"end_date"`
	Message   string     `json:"message,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// Covers reports whether date lies in [StartDate, EndDate]. An inverted range
// covers nothing.
func (v *VacationPeriod) Covers(date civil.Date) bool {
	if v.StartDate.After(v.EndDate) {
		return false
	}
	return !date.Before(v.StartDate) && !date.After(v.EndDate)
}

// Holiday is a day off, either on one calendar date or on the same month/day
// every year.
type Holiday struct {
	ID            uuid.UUID  `json:"id"`
	DoctorID      uuid.UUID  `json:"doctor_id"`
	Date          civil.Date `json:"date"`
	Reason        string     `json:"reason,omitempty"`
	IsRecurring   bool       `json:"is_recurring"`
	RecurringYear *int       `json:"recurring_year,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// Matches reports whether the holiday falls on date.
func (h *Holiday) Matches(date civil.Date) bool {
	if h.IsRecurring {
		return h.Date.Month == date.Month && h.Date.Day == date.Day
	}
	return h.Date == date
}

// AppointmentStatus is the lifecycle state of a booking.
type AppointmentStatus string

const (
	StatusPending    AppointmentStatus = "pending"
	StatusConfirmed  AppointmentStatus = "confirmed"
	StatusInProgress AppointmentStatus = "in-progress"
	StatusCompleted  AppointmentStatus = "completed"
	StatusCancelled  AppointmentStatus = "cancelled"
	StatusNoShow     AppointmentStatus = "no-show"
)

var validAppointmentStatuses = map[AppointmentStatus]bool{
	StatusPending: true, StatusConfirmed: true, StatusInProgress: true,
	StatusCompleted: true, StatusCancelled: true, StatusNoShow: true,
}

// Valid reports whether s is a known status.
func (s AppointmentStatus) Valid() bool { return validAppointmentStatuses[s] }

// Occupying reports whether an appointment in this state consumes slot capacity.
func (s AppointmentStatus) Occupying() bool {
	return s == StatusPending || s == StatusConfirmed || s == StatusInProgress
}

// Appointment is a booking as stored by the booking flow. Time keeps the raw
// stored string because legacy rows are not always aligned to slot starts.
type Appointment struct {
	ID        uuid.UUID         `json:"id"`
	DoctorID  uuid.UUID         `json:"doctor_id"`
	PatientID uuid.UUID         `json:"patient_id"`
	Date      civil.Date        `json:"date"`
	Time      string            `json:"time"`
	Status    AppointmentStatus `json:"status"`
	Reason    string            `json:"reason,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// RuleSet is every rule source configured for one doctor.
type RuleSet struct {
	DoctorID     uuid.UUID        `json:"doctor_id"`
	Weekly       *WeeklySchedule  `json:"weekly_schedule"`
	BlockedDates []BlockedDate    `json:"blocked_dates"`
	Vacations    []VacationPeriod `json:"vacations"`
	Holidays     []Holiday        `json:"holidays"`
}

// ParseWeekday accepts full or three-letter English names, case-insensitive,
// or a number 0-6 with Sunday as 0.
func ParseWeekday(s string) (time.Weekday, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if n, err := strconv.Atoi(s); err == nil {
		if n < 0 || n > 6 {
			return 0, fmt.Errorf("invalid weekday %q", s)
		}
		return time.Weekday(n), nil
	}
	for d := time.Sunday; d <= time.Saturday; d++ {
		name := strings.ToLower(d.String())
		if s == name || s == name[:3] {
			return d, nil
		}
	}
	return 0, fmt.Errorf("invalid weekday %q", s)
}

func lowerWeekday(i int) string {
	return strings.ToLower(time.Weekday(i).String())
}

func weekdayOf(date civil.Date) time.Weekday {
	return date.In(time.UTC).Weekday()
}
