package booking

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ehr/availability/internal/domain/availability"
	"github.com/ehr/availability/internal/platform/db"
)

type appointmentRepoPG struct{ db db.DB }

func NewAppointmentRepoPG(pool db.DB) AppointmentRepository { return &appointmentRepoPG{db: pool} }

func (r *appointmentRepoPG) conn(ctx context.Context) db.Querier { return db.Conn(ctx, r.db) }

const apptCols = `id, doctor_id, patient_id, date, time, status, reason, created_at, updated_at`

func scanAppointment(row pgx.Row) (*availability.Appointment, error) {
	var (
		a    availability.Appointment
		date time.Time
	)
	err := row.Scan(&a.ID, &a.DoctorID, &a.PatientID, &date, &a.Time, &a.Status, &a.Reason, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAppointmentNotFound
	}
	if err != nil {
		return nil, err
	}
	a.Date = civil.DateOf(date)
	return &a, nil
}

func (r *appointmentRepoPG) Create(ctx context.Context, a *availability.Appointment) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO appointments (id, doctor_id, patient_id, date, time, status, reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`,
		a.ID, a.DoctorID, a.PatientID, a.Date.In(time.UTC), a.Time, a.Status, a.Reason,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
}

func (r *appointmentRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*availability.Appointment, error) {
	return scanAppointment(r.conn(ctx).QueryRow(ctx, `SELECT `+apptCols+` FROM appointments WHERE id = $1`, id))
}

func (r *appointmentRepoPG) UpdateStatus(ctx context.Context, id uuid.UUID, status availability.AppointmentStatus) (*availability.Appointment, error) {
	return scanAppointment(r.conn(ctx).QueryRow(ctx, `
		UPDATE appointments SET status = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING `+apptCols, id, status))
}

func (r *appointmentRepoPG) list(ctx context.Context, query string, args ...interface{}) ([]availability.Appointment, error) {
	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []availability.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *a)
	}
	return items, rows.Err()
}

func (r *appointmentRepoPG) ListByDoctorDate(ctx context.Context, doctorID uuid.UUID, date civil.Date) ([]availability.Appointment, error) {
	return r.list(ctx, `SELECT `+apptCols+` FROM appointments
		WHERE doctor_id = $1 AND date = $2 ORDER BY time, created_at`,
		doctorID, date.In(time.UTC))
}

func (r *appointmentRepoPG) ListByDoctorRange(ctx context.Context, doctorID uuid.UUID, from, to civil.Date) ([]availability.Appointment, error) {
	return r.list(ctx, `SELECT `+apptCols+` FROM appointments
		WHERE doctor_id = $1 AND date BETWEEN $2 AND $3 ORDER BY date, time, created_at`,
		doctorID, from.In(time.UTC), to.In(time.UTC))
}

// pgLocker takes a transaction-scoped advisory lock per doctor and date.
type pgLocker struct{ db db.DB }

func NewPGLocker(pool db.DB) Locker { return &pgLocker{db: pool} }

func slotLockKey(doctorID uuid.UUID, date civil.Date) string {
	return "booking:" + doctorID.String() + ":" + date.String()
}

func (l *pgLocker) WithSlotLock(ctx context.Context, doctorID uuid.UUID, date civil.Date, fn func(ctx context.Context) error) error {
	return db.RunInTx(ctx, l.db, func(ctx context.Context) error {
		if _, err := db.Conn(ctx, l.db).Exec(ctx,
			`SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, slotLockKey(doctorID, date)); err != nil {
			return err
		}
		return fn(ctx)
	})
}
