package availability

import (
	"context"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
)

type DoctorRepository interface {
	Create(ctx context.Context, d *Doctor) error
	GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	Update(ctx context.Context, d *Doctor) error
	List(ctx context.Context, limit, offset int) ([]*Doctor, int, error)
}

// ScheduleRepository stores one weekly template per doctor. Update performs a
// locked read-modify-write: fn receives the current schedule (an empty one if
// none exists yet) and the result is saved with a bumped version.
type ScheduleRepository interface {
	GetByDoctor(ctx context.Context, doctorID uuid.UUID) (*WeeklySchedule, error)
	Update(ctx context.Context, doctorID uuid.UUID, fn func(*WeeklySchedule) error) (*WeeklySchedule, error)
}

type BlockedDateRepository interface {
	Create(ctx context.Context, b *BlockedDate) error
	Delete(ctx context.Context, doctorID, id uuid.UUID) error
	ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]BlockedDate, error)
	ListByDoctorRange(ctx context.Context, doctorID uuid.UUID, from, to civil.Date) ([]BlockedDate, error)
}

type VacationRepository interface {
	ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]VacationPeriod, error)
	// SetActive deactivates the doctor's other periods and stores v as the active one.
	SetActive(ctx context.Context, v *VacationPeriod) error
	// Deactivate clears the active period and reports how many rows changed.
	Deactivate(ctx context.Context, doctorID uuid.UUID) (int64, error)
}

type HolidayRepository interface {
	Create(ctx context.Context, h *Holiday) error
	Delete(ctx context.Context, doctorID, id uuid.UUID) error
	ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]Holiday, error)
}

// AppointmentReader is the read-only view of bookings used by the overlay.
type AppointmentReader interface {
	ListByDoctorDate(ctx context.Context, doctorID uuid.UUID, date civil.Date) ([]Appointment, error)
	ListByDoctorRange(ctx context.Context, doctorID uuid.UUID, from, to civil.Date) ([]Appointment, error)
}
