package availability

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ehr/availability/internal/platform/db"
)

const pgUniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

func dateArg(d civil.Date) time.Time { return d.In(time.UTC) }

// =========== Doctor Repository ===========

type doctorRepoPG struct{ db db.DB }

func NewDoctorRepoPG(pool db.DB) DoctorRepository { return &doctorRepoPG{db: pool} }

func (r *doctorRepoPG) conn(ctx context.Context) db.Querier { return db.Conn(ctx, r.db) }

const doctorCols = `id, display_name, timezone, advance_booking_days, created_at, updated_at`

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	err := row.Scan(&d.ID, &d.DisplayName, &d.Timezone, &d.AdvanceBookingDays, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrDoctorNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *doctorRepoPG) Create(ctx context.Context, d *Doctor) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO doctors (id, display_name, timezone, advance_booking_days)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at`,
		d.ID, d.DisplayName, d.Timezone, d.AdvanceBookingDays,
	).Scan(&d.CreatedAt, &d.UpdatedAt)
}

func (r *doctorRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	return scanDoctor(r.conn(ctx).QueryRow(ctx, `SELECT `+doctorCols+` FROM doctors WHERE id = $1`, id))
}

func (r *doctorRepoPG) Update(ctx context.Context, d *Doctor) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE doctors SET display_name = $2, timezone = $3, advance_booking_days = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING created_at, updated_at`,
		d.ID, d.DisplayName, d.Timezone, d.AdvanceBookingDays,
	).Scan(&d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrDoctorNotFound
	}
	return err
}

func (r *doctorRepoPG) List(ctx context.Context, limit, offset int) ([]*Doctor, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM doctors`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+doctorCols+` FROM doctors ORDER BY display_name, id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Doctor
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, d)
	}
	return items, total, rows.Err()
}

// =========== Weekly Schedule Repository ===========

type scheduleRepoPG struct{ db db.DB }

func NewScheduleRepoPG(pool db.DB) ScheduleRepository { return &scheduleRepoPG{db: pool} }

func (r *scheduleRepoPG) conn(ctx context.Context) db.Querier { return db.Conn(ctx, r.db) }

func scanSchedule(doctorID uuid.UUID, row pgx.Row) (*WeeklySchedule, error) {
	ws := WeeklySchedule{DoctorID: doctorID}
	var days []byte
	if err := row.Scan(&days, &ws.VersionID, &ws.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrScheduleNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(days, &ws.Days); err != nil {
		return nil, fmt.Errorf("decode weekly schedule for doctor %s: %w", doctorID, err)
	}
	return &ws, nil
}

func (r *scheduleRepoPG) GetByDoctor(ctx context.Context, doctorID uuid.UUID) (*WeeklySchedule, error) {
	return scanSchedule(doctorID, r.conn(ctx).QueryRow(ctx,
		`SELECT days, version_id, updated_at FROM weekly_schedules WHERE doctor_id = $1`, doctorID))
}

func (r *scheduleRepoPG) Update(ctx context.Context, doctorID uuid.UUID, fn func(*WeeklySchedule) error) (*WeeklySchedule, error) {
	var out *WeeklySchedule
	err := db.RunInTx(ctx, r.db, func(ctx context.Context) error {
		ws, err := scanSchedule(doctorID, r.conn(ctx).QueryRow(ctx,
			`SELECT days, version_id, updated_at FROM weekly_schedules WHERE doctor_id = $1 FOR UPDATE`, doctorID))
		if errors.Is(err, ErrScheduleNotFound) {
			ws, err = &WeeklySchedule{DoctorID: doctorID}, nil
		}
		if err != nil {
			return err
		}

		if err := fn(ws); err != nil {
			return err
		}
		days, err := json.Marshal(ws.Days)
		if err != nil {
			return fmt.Errorf("encode weekly schedule: %w", err)
		}

		if err := r.conn(ctx).QueryRow(ctx, `
			INSERT INTO weekly_schedules (doctor_id, days, version_id)
			VALUES ($1, $2, 1)
			ON CONFLICT (doctor_id) DO UPDATE
				SET days = EXCLUDED.days, version_id = weekly_schedules.version_id + 1, updated_at = NOW()
			RETURNING version_id, updated_at`,
			doctorID, days,
		).Scan(&ws.VersionID, &ws.UpdatedAt); err != nil {
			return err
		}
		out = ws
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// =========== Blocked Date Repository ===========

type blockedDateRepoPG struct{ db db.DB }

func NewBlockedDateRepoPG(pool db.DB) BlockedDateRepository { return &blockedDateRepoPG{db: pool} }

func (r *blockedDateRepoPG) conn(ctx context.Context) db.Querier { return db.Conn(ctx, r.db) }

const blockedCols = `id, doctor_id, date, is_full_day, blocked_windows, reason, created_at`

func scanBlockedDate(row pgx.Row) (BlockedDate, error) {
	var (
		b       BlockedDate
		date    time.Time
		windows []byte
	)
	if err := row.Scan(&b.ID, &b.DoctorID, &date, &b.IsFullDay, &windows, &b.Reason, &b.CreatedAt); err != nil {
		return b, err
	}
	b.Date = civil.DateOf(date)
	if len(windows) > 0 {
		if err := json.Unmarshal(windows, &b.BlockedWindows); err != nil {
			return b, fmt.Errorf("decode blocked windows for %s: %w", b.ID, err)
		}
	}
	return b, nil
}

func (r *blockedDateRepoPG) Create(ctx context.Context, b *BlockedDate) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	windows := b.BlockedWindows
	if windows == nil {
		windows = []TimeRange{}
	}
	raw, err := json.Marshal(windows)
	if err != nil {
		return fmt.Errorf("encode blocked windows: %w", err)
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO blocked_dates (id, doctor_id, date, is_full_day, blocked_windows, reason)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`,
		b.ID, b.DoctorID, dateArg(b.Date), b.IsFullDay, raw, b.Reason,
	).Scan(&b.CreatedAt)
}

func (r *blockedDateRepoPG) Delete(ctx context.Context, doctorID, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM blocked_dates WHERE id = $1 AND doctor_id = $2`, id, doctorID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrBlockedDateNotFound
	}
	return nil
}

func (r *blockedDateRepoPG) list(ctx context.Context, query string, args ...interface{}) ([]BlockedDate, error) {
	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []BlockedDate
	for rows.Next() {
		b, err := scanBlockedDate(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, b)
	}
	return items, rows.Err()
}

func (r *blockedDateRepoPG) ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]BlockedDate, error) {
	return r.list(ctx, `SELECT `+blockedCols+` FROM blocked_dates WHERE doctor_id = $1 ORDER BY date, created_at`, doctorID)
}

func (r *blockedDateRepoPG) ListByDoctorRange(ctx context.Context, doctorID uuid.UUID, from, to civil.Date) ([]BlockedDate, error) {
	return r.list(ctx, `SELECT `+blockedCols+` FROM blocked_dates
		WHERE doctor_id = $1 AND date BETWEEN $2 AND $3 ORDER BY date, created_at`,
		doctorID, dateArg(from), dateArg(to))
}

// =========== Vacation Repository ===========

type vacationRepoPG struct{ db db.DB }

func NewVacationRepoPG(pool db.DB) VacationRepository { return &vacationRepoPG{db: pool} }

func (r *vacationRepoPG) conn(ctx context.Context) db.Querier { return db.Conn(ctx, r.db) }

func (r *vacationRepoPG) ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]VacationPeriod, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, doctor_id, is_active, start_date, end_date, message, created_at
		FROM vacation_periods WHERE doctor_id = $1
		ORDER BY is_active DESC, start_date DESC`, doctorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []VacationPeriod
	for rows.Next() {
		var (
			v          VacationPeriod
			start, end time.Time
		)
		if err := rows.Scan(&v.ID, &v.DoctorID, &v.IsActive, &start, &end, &v.Message, &v.CreatedAt); err != nil {
			return nil, err
		}
		v.StartDate, v.EndDate = civil.DateOf(start), civil.DateOf(end)
		items = append(items, v)
	}
	return items, rows.Err()
}

func (r *vacationRepoPG) SetActive(ctx context.Context, v *VacationPeriod) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	v.IsActive = true
	return db.RunInTx(ctx, r.db, func(ctx context.Context) error {
		if _, err := r.conn(ctx).Exec(ctx,
			`UPDATE vacation_periods SET is_active = FALSE WHERE doctor_id = $1 AND is_active`, v.DoctorID); err != nil {
			return err
		}
		return r.conn(ctx).QueryRow(ctx, `
			INSERT INTO vacation_periods (id, doctor_id, is_active, start_date, end_date, message)
			VALUES ($1, $2, TRUE, $3, $4, $5)
			RETURNING created_at`,
			v.ID, v.DoctorID, dateArg(v.StartDate), dateArg(v.EndDate), v.Message,
		).Scan(&v.CreatedAt)
	})
}

func (r *vacationRepoPG) Deactivate(ctx context.Context, doctorID uuid.UUID) (int64, error) {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE vacation_periods SET is_active = FALSE WHERE doctor_id = $1 AND is_active`, doctorID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// =========== Holiday Repository ===========

type holidayRepoPG struct{ db db.DB }

func NewHolidayRepoPG(pool db.DB) HolidayRepository { return &holidayRepoPG{db: pool} }

func (r *holidayRepoPG) conn(ctx context.Context) db.Querier { return db.Conn(ctx, r.db) }

func (r *holidayRepoPG) Create(ctx context.Context, h *Holiday) error {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO holidays (id, doctor_id, date, reason, is_recurring, recurring_year)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`,
		h.ID, h.DoctorID, dateArg(h.Date), h.Reason, h.IsRecurring, h.RecurringYear,
	).Scan(&h.CreatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicateHoliday
	}
	return err
}

func (r *holidayRepoPG) Delete(ctx context.Context, doctorID, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM holidays WHERE id = $1 AND doctor_id = $2`, id, doctorID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrHolidayNotFound
	}
	return nil
}

func (r *holidayRepoPG) ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]Holiday, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, doctor_id, date, reason, is_recurring, recurring_year, created_at
		FROM holidays WHERE doctor_id = $1 ORDER BY date`, doctorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Holiday
	for rows.Next() {
		var (
			h    Holiday
			date time.Time
		)
		if err := rows.Scan(&h.ID, &h.DoctorID, &date, &h.Reason, &h.IsRecurring, &h.RecurringYear, &h.CreatedAt); err != nil {
			return nil, err
		}
		h.Date = civil.DateOf(date)
		items = append(items, h)
	}
	return items, rows.Err()
}
