package availability

import (
	"fmt"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
)

// Availability is the resolved answer for one doctor and date.
type Availability struct {
	DoctorID uuid.UUID          `json:"doctor_id"`
	Date     civil.Date         `json:"date"`
	Mode     Mode               `json:"mode"`
	Message  string             `json:"message,omitempty"`
	Slots    []SlotAvailability `json:"slots"`
}

// Resolve classifies date against rules and, for working days, generates the
// slots and overlays appts. It has no side effects; the second return holds
// occupying appointments whose time could not be parsed.
func Resolve(rules *RuleSet, date civil.Date, appts []Appointment) (Availability, []Appointment) {
	day := ResolveDayMode(rules, date)
	out := Availability{
		Date:    date,
		Mode:    day.Mode,
		Message: modeMessage(day, date),
		Slots:   []SlotAvailability{},
	}
	if rules != nil {
		out.DoctorID = rules.DoctorID
	}
	if !day.Mode.HasSlots() {
		return out, nil
	}

	raw := GenerateSlots(day.Windows)
	if day.Mode == ModeBlockedPartial {
		raw = ExcludeBlocked(raw, day.Exclusions)
	}
	slots, unplaced := Annotate(raw, appts)
	out.Slots = slots
	return out, unplaced
}

// OutOfHorizon builds the result for a date rejected by CheckHorizon.
func OutOfHorizon(doctorID uuid.UUID, date civil.Date, h Horizon) Availability {
	return Availability{
		DoctorID: doctorID,
		Date:     date,
		Mode:     ModeOutOfHorizon,
		Message:  h.Reason,
		Slots:    []SlotAvailability{},
	}
}

func modeMessage(day DayMode, date civil.Date) string {
	switch day.Mode {
	case ModeVacation:
		return orDefault(day.Reason, "Doctor is on vacation")
	case ModeHoliday:
		return orDefault(day.Reason, "Doctor is not available on this holiday")
	case ModeBlockedFull:
		return orDefault(day.Reason, "Doctor is not available on this date")
	case ModeNonWorking:
		return fmt.Sprintf("Doctor does not work on %ss", weekdayOf(date))
	}
	return ""
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
