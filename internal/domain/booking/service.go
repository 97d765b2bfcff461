package booking

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ehr/availability/internal/domain/availability"
	"github.com/ehr/availability/internal/platform/metrics"
)

// Resolver answers availability for one doctor and date.
type Resolver interface {
	ResolveAvailability(ctx context.Context, doctorID uuid.UUID, date civil.Date) (*availability.Availability, error)
}

type Service struct {
	appts    AppointmentRepository
	resolver Resolver
	locker   Locker

	logger  zerolog.Logger
	metrics *metrics.Metrics
}

func NewService(appts AppointmentRepository, resolver Resolver, locker Locker) *Service {
	return &Service{appts: appts, resolver: resolver, locker: locker, logger: zerolog.Nop()}
}

func (s *Service) SetLogger(l zerolog.Logger)    { s.logger = l }
func (s *Service) SetMetrics(m *metrics.Metrics) { s.metrics = m }

func invalid(field, msg string) error {
	return &availability.ValidationError{Field: field, Message: msg}
}

// Book creates a pending appointment for req. The slot is checked against a
// fresh resolution taken under the doctor/date lock, so two requests can
// never both claim the last unit of capacity.
func (s *Service) Book(ctx context.Context, req Request) (*availability.Appointment, error) {
	if req.DoctorID == uuid.Nil {
		return nil, invalid("doctor_id", "doctor_id is required")
	}
	if req.PatientID == uuid.Nil {
		return nil, invalid("patient_id", "patient_id is required")
	}
	if !req.Date.IsValid() {
		return nil, availability.ErrInvalidDate
	}
	at, err := availability.ParseTimeOfDay(req.Time)
	if err != nil {
		return nil, invalid("time", err.Error())
	}

	var appt *availability.Appointment
	err = s.locker.WithSlotLock(ctx, req.DoctorID, req.Date, func(ctx context.Context) error {
		avail, err := s.resolver.ResolveAvailability(ctx, req.DoctorID, req.Date)
		if err != nil {
			return err
		}
		if err := checkSlot(avail, at); err != nil {
			return err
		}
		a := &availability.Appointment{
			DoctorID:  req.DoctorID,
			PatientID: req.PatientID,
			Date:      req.Date,
			Time:      at.String(),
			Status:    availability.StatusPending,
			Reason:    req.Reason,
		}
		if err := s.appts.Create(ctx, a); err != nil {
			return fmt.Errorf("create appointment: %w", err)
		}
		appt = a
		return nil
	})

	switch {
	case err == nil:
		s.metrics.ObserveBooking(string(availability.StatusPending))
		s.logger.Info().
			Str("appointment_id", appt.ID.String()).
			Str("doctor_id", appt.DoctorID.String()).
			Str("date", appt.Date.String()).
			Str("time", appt.Time).
			Msg("appointment booked")
		return appt, nil
	case errors.Is(err, ErrSlotUnavailable):
		s.metrics.ObserveBooking("rejected")
	default:
		s.metrics.ObserveBooking("error")
	}
	return nil, err
}

func checkSlot(avail *availability.Availability, at availability.TimeOfDay) error {
	if !avail.Mode.HasSlots() {
		return &UnavailableError{Mode: avail.Mode, Message: avail.Message}
	}
	for _, slot := range avail.Slots {
		if slot.Time != at {
			continue
		}
		if slot.Bookable {
			return nil
		}
		if slot.CapacityRemaining == 0 {
			return &UnavailableError{Mode: avail.Mode, Message: fmt.Sprintf("slot at %s is fully booked", at)}
		}
		return &UnavailableError{Mode: avail.Mode, Message: fmt.Sprintf("slot at %s has already started", at)}
	}
	return &UnavailableError{Mode: avail.Mode, Message: fmt.Sprintf("no slot starts at %s", at)}
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*availability.Appointment, error) {
	return s.appts.GetByID(ctx, id)
}

func (s *Service) ListByDoctorDate(ctx context.Context, doctorID uuid.UUID, date civil.Date) ([]availability.Appointment, error) {
	if !date.IsValid() {
		return nil, availability.ErrInvalidDate
	}
	return s.appts.ListByDoctorDate(ctx, doctorID, date)
}

// UpdateStatus moves an appointment along its lifecycle. The change runs
// under the same lock as booking so a cancellation and a new booking for the
// freed capacity are ordered.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, to availability.AppointmentStatus) (*availability.Appointment, error) {
	if !to.Valid() {
		return nil, invalid("status", fmt.Sprintf("unknown status %q", to))
	}
	current, err := s.appts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	var updated *availability.Appointment
	err = s.locker.WithSlotLock(ctx, current.DoctorID, current.Date, func(ctx context.Context) error {
		a, err := s.appts.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if !CanTransition(a.Status, to) {
			return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, a.Status, to)
		}
		updated, err = s.appts.UpdateStatus(ctx, id, to)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveBooking(string(to))
	s.logger.Info().
		Str("appointment_id", id.String()).
		Str("status", string(to)).
		Msg("appointment status changed")
	return updated, nil
}
