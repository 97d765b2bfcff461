package booking

import (
	"context"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"

	"github.com/ehr/availability/internal/domain/availability"
)

// AppointmentRepository stores bookings. It also serves the read side the
// availability overlay consumes.
type AppointmentRepository interface {
	availability.AppointmentReader
	Create(ctx context.Context, a *availability.Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*availability.Appointment, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status availability.AppointmentStatus) (*availability.Appointment, error)
}

// Locker serializes bookings for one doctor and date. fn receives a context
// that carries the lock's transaction, so reads and the insert made through
// it see one consistent state.
type Locker interface {
	WithSlotLock(ctx context.Context, doctorID uuid.UUID, date civil.Date, fn func(ctx context.Context) error) error
}
