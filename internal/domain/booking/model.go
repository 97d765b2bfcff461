package booking

import (
	"errors"
	"fmt"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"

	"github.com/ehr/availability/internal/domain/availability"
)

var (
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrSlotUnavailable     = errors.New("requested slot is not available")
	ErrInvalidTransition   = errors.New("invalid status transition")
)

// Request asks for one slot of one doctor on one date.
type Request struct {
	DoctorID  uuid.UUID  `json:"doctor_id"`
	PatientID uuid.UUID  `json:"patient_id"`
	Date      civil.Date `json:"date"`
	Time      string     `json:"time"`
	Reason    string     `json:"reason,omitempty"`
}

// UnavailableError explains why a requested slot was refused. It unwraps to
// ErrSlotUnavailable.
type UnavailableError struct {
	Mode    availability.Mode
	Message string
}

func (e *UnavailableError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s (%s)", ErrSlotUnavailable, e.Mode)
	}
	return fmt.Sprintf("%s: %s", ErrSlotUnavailable, e.Message)
}

func (e *UnavailableError) Unwrap() error { return ErrSlotUnavailable }

var transitions = map[availability.AppointmentStatus][]availability.AppointmentStatus{
	availability.StatusPending:    {availability.StatusConfirmed, availability.StatusCancelled},
	availability.StatusConfirmed:  {availability.StatusInProgress, availability.StatusCancelled, availability.StatusNoShow},
	availability.StatusInProgress: {availability.StatusCompleted},
}

// CanTransition reports whether an appointment may move from one status to
// another. Completed, cancelled and no-show are terminal.
func CanTransition(from, to availability.AppointmentStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
