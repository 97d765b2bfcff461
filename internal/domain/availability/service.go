package availability

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ehr/availability/internal/platform/metrics"
)

// Repositories groups the stores the service reads rules and bookings from.
type Repositories struct {
	Doctors      DoctorRepository
	Schedules    ScheduleRepository
	BlockedDates BlockedDateRepository
	Vacations    VacationRepository
	Holidays     HolidayRepository
	Appointments AppointmentReader
}

// Options carries deployment defaults. Zero values fall back to 30 advance
// days, UTC and a 31-day range limit.
type Options struct {
	DefaultAdvanceDays int
	DefaultLocation    *time.Location
	MaxRangeDays       int
}

type Service struct {
	doctors      DoctorRepository
	schedules    ScheduleRepository
	blocked      BlockedDateRepository
	vacations    VacationRepository
	holidays     HolidayRepository
	appointments AppointmentReader

	opts    Options
	now     func() time.Time
	logger  zerolog.Logger
	metrics *metrics.Metrics
}

func NewService(repos Repositories, opts Options) *Service {
	if opts.DefaultAdvanceDays <= 0 {
		opts.DefaultAdvanceDays = 30
	}
	if opts.DefaultLocation == nil {
		opts.DefaultLocation = time.UTC
	}
	if opts.MaxRangeDays <= 0 {
		opts.MaxRangeDays = 31
	}
	return &Service{
		doctors:      repos.Doctors,
		schedules:    repos.Schedules,
		blocked:      repos.BlockedDates,
		vacations:    repos.Vacations,
		holidays:     repos.Holidays,
		appointments: repos.Appointments,
		opts:         opts,
		now:          time.Now,
		logger:       zerolog.Nop(),
	}
}

func (s *Service) SetClock(now func() time.Time) { s.now = now }
func (s *Service) SetLogger(l zerolog.Logger)    { s.logger = l }
func (s *Service) SetMetrics(m *metrics.Metrics) { s.metrics = m }

// -- Doctors --

func validateDoctor(d *Doctor) error {
	d.DisplayName = strings.TrimSpace(d.DisplayName)
	if d.DisplayName == "" {
		return invalid("display_name", "display_name is required")
	}
	if d.Timezone != "" {
		if _, err := time.LoadLocation(d.Timezone); err != nil {
			return invalid("timezone", "unknown time zone %q", d.Timezone)
		}
	}
	if d.AdvanceBookingDays < 0 {
		return invalid("advance_booking_days", "advance_booking_days must not be negative")
	}
	return nil
}

func (s *Service) CreateDoctor(ctx context.Context, d *Doctor) error {
	if err := validateDoctor(d); err != nil {
		return err
	}
	return s.doctors.Create(ctx, d)
}

func (s *Service) GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	return s.doctors.GetByID(ctx, id)
}

func (s *Service) UpdateDoctor(ctx context.Context, d *Doctor) error {
	if err := validateDoctor(d); err != nil {
		return err
	}
	return s.doctors.Update(ctx, d)
}

func (s *Service) ListDoctors(ctx context.Context, limit, offset int) ([]*Doctor, int, error) {
	return s.doctors.List(ctx, limit, offset)
}

// -- Resolution --

// calendar returns the doctor's current local time and booking horizon.
func (s *Service) calendar(d *Doctor) (time.Time, int) {
	loc, err := d.Location(s.opts.DefaultLocation)
	if err != nil {
		s.logger.Warn().Err(err).Str("doctor_id", d.ID.String()).Msg("falling back to default time zone")
	}
	advance := d.AdvanceBookingDays
	if advance <= 0 {
		advance = s.opts.DefaultAdvanceDays
	}
	return s.now().In(loc), advance
}

// ResolveAvailability answers which slots doctorID offers on date. Only a
// missing doctor, an invalid date or a storage failure produce an error;
// every scheduling outcome, out-of-horizon included, is a normal result.
func (s *Service) ResolveAvailability(ctx context.Context, doctorID uuid.UUID, date civil.Date) (*Availability, error) {
	if !date.IsValid() {
		return nil, ErrInvalidDate
	}
	started := time.Now()

	doctor, err := s.doctors.GetByID(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	now, advance := s.calendar(doctor)
	today := civil.DateOf(now)

	if h := CheckHorizon(date, today, advance); !h.Queryable {
		out := OutOfHorizon(doctorID, date, h)
		s.observe(&out, started)
		return &out, nil
	}

	rules, err := s.loadRules(ctx, doctorID, date, date)
	if err != nil {
		return nil, err
	}

	var appts []Appointment
	if ResolveDayMode(rules, date).Mode.HasSlots() {
		appts, err = s.appointments.ListByDoctorDate(ctx, doctorID, date)
		if err != nil {
			return nil, fmt.Errorf("list appointments: %w", err)
		}
	}

	out := s.resolveDay(rules, date, appts, now)
	s.observe(&out, started)
	return &out, nil
}

// ResolveRange resolves every date in [from, to] with one rule and booking
// load. Dates outside the horizon come back as out-of-horizon entries.
func (s *Service) ResolveRange(ctx context.Context, doctorID uuid.UUID, from, to civil.Date) ([]Availability, error) {
	if !from.IsValid() || !to.IsValid() {
		return nil, ErrInvalidDate
	}
	if to.Before(from) {
		return nil, invalid("to", "to %s is before from %s", to, from)
	}
	if to.DaysSince(from)+1 > s.opts.MaxRangeDays {
		return nil, fmt.Errorf("%w: at most %d days", ErrRangeTooLarge, s.opts.MaxRangeDays)
	}
	started := time.Now()

	doctor, err := s.doctors.GetByID(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	now, advance := s.calendar(doctor)
	today := civil.DateOf(now)

	rules, err := s.loadRules(ctx, doctorID, from, to)
	if err != nil {
		return nil, err
	}
	appts, err := s.appointments.ListByDoctorRange(ctx, doctorID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	byDate := make(map[civil.Date][]Appointment)
	for _, a := range appts {
		byDate[a.Date] = append(byDate[a.Date], a)
	}

	out := make([]Availability, 0, to.DaysSince(from)+1)
	for d := from; !d.After(to); d = d.AddDays(1) {
		var day Availability
		if h := CheckHorizon(d, today, advance); !h.Queryable {
			day = OutOfHorizon(doctorID, d, h)
		} else {
			day = s.resolveDay(rules, d, byDate[d], now)
		}
		s.observe(&day, started)
		out = append(out, day)
	}
	return out, nil
}

func (s *Service) resolveDay(rules *RuleSet, date civil.Date, appts []Appointment, now time.Time) Availability {
	out, unplaced := Resolve(rules, date, appts)
	for _, a := range unplaced {
		s.logger.Warn().
			Str("appointment_id", a.ID.String()).
			Str("doctor_id", a.DoctorID.String()).
			Str("time", a.Time).
			Msg("appointment time not recognised; not counted against any slot")
	}
	if date == civil.DateOf(now) {
		markElapsed(out.Slots, TimeOf(now))
	}
	return out
}

// markElapsed makes slots that already started unbookable. Capacity is left
// as computed.
func markElapsed(slots []SlotAvailability, now TimeOfDay) {
	for i := range slots {
		if slots[i].Time < now {
			slots[i].Bookable = false
		}
	}
}

func (s *Service) observe(a *Availability, started time.Time) {
	s.metrics.ObserveResolution(string(a.Mode), time.Since(started))
	s.logger.Debug().
		Str("doctor_id", a.DoctorID.String()).
		Str("date", a.Date.String()).
		Str("mode", string(a.Mode)).
		Int("slots", len(a.Slots)).
		Msg("availability resolved")
}

// loadRules fetches the rule sources relevant to [from, to]; zero dates load
// every blocked date. A doctor without a weekly schedule gets a nil Weekly,
// which resolves as non-working.
func (s *Service) loadRules(ctx context.Context, doctorID uuid.UUID, from, to civil.Date) (*RuleSet, error) {
	rules := &RuleSet{DoctorID: doctorID}

	ws, err := s.schedules.GetByDoctor(ctx, doctorID)
	switch {
	case err == nil:
		rules.Weekly = ws
	case errors.Is(err, ErrScheduleNotFound):
	default:
		return nil, fmt.Errorf("load weekly schedule: %w", err)
	}

	if from.IsValid() {
		rules.BlockedDates, err = s.blocked.ListByDoctorRange(ctx, doctorID, from, to)
	} else {
		rules.BlockedDates, err = s.blocked.ListByDoctor(ctx, doctorID)
	}
	if err != nil {
		return nil, fmt.Errorf("load blocked dates: %w", err)
	}
	if rules.Vacations, err = s.vacations.ListByDoctor(ctx, doctorID); err != nil {
		return nil, fmt.Errorf("load vacations: %w", err)
	}
	if rules.Holidays, err = s.holidays.ListByDoctor(ctx, doctorID); err != nil {
		return nil, fmt.Errorf("load holidays: %w", err)
	}
	return rules, nil
}

// GetRules returns every rule configured for the doctor, including inactive
// vacations and past blocked dates.
func (s *Service) GetRules(ctx context.Context, doctorID uuid.UUID) (*RuleSet, error) {
	if _, err := s.doctors.GetByID(ctx, doctorID); err != nil {
		return nil, err
	}
	return s.loadRules(ctx, doctorID, civil.Date{}, civil.Date{})
}

// -- Rule mutations --

// mutate runs one validated rule change for an existing doctor and returns
// the rule set as stored afterwards.
func (s *Service) mutate(ctx context.Context, op string, doctorID uuid.UUID, fn func() error) (*RuleSet, error) {
	err := func() error {
		if _, err := s.doctors.GetByID(ctx, doctorID); err != nil {
			return err
		}
		return fn()
	}()
	s.metrics.ObserveMutation(op, err)
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("doctor_id", doctorID.String()).Str("operation", op).Msg("availability rules changed")
	return s.GetRules(ctx, doctorID)
}

func sortWindows(day *DaySchedule) {
	sort.SliceStable(day.Windows, func(i, j int) bool { return day.Windows[i].StartTime < day.Windows[j].StartTime })
}

// SetWeeklyWindow replaces one weekday's schedule. The day's window list is
// replaced as a whole; other days are untouched.
func (s *Service) SetWeeklyWindow(ctx context.Context, doctorID uuid.UUID, weekday time.Weekday, day DaySchedule) (*RuleSet, error) {
	if weekday < time.Sunday || weekday > time.Saturday {
		return nil, invalid("weekday", "weekday must be between 0 and 6")
	}
	if err := ValidateDaySchedule(weekdayField(int(weekday)), day); err != nil {
		s.metrics.ObserveMutation("set_weekly_window", err)
		return nil, err
	}
	sortWindows(&day)
	return s.mutate(ctx, "set_weekly_window", doctorID, func() error {
		_, err := s.schedules.Update(ctx, doctorID, func(ws *WeeklySchedule) error {
			ws.Days[weekday] = day
			return nil
		})
		return err
	})
}

// SetWeeklySchedule replaces all seven days at once.
func (s *Service) SetWeeklySchedule(ctx context.Context, doctorID uuid.UUID, days WeekDays) (*RuleSet, error) {
	if err := ValidateWeekDays(days); err != nil {
		s.metrics.ObserveMutation("set_weekly_schedule", err)
		return nil, err
	}
	for i := range days {
		sortWindows(&days[i])
	}
	return s.mutate(ctx, "set_weekly_schedule", doctorID, func() error {
		_, err := s.schedules.Update(ctx, doctorID, func(ws *WeeklySchedule) error {
			ws.Days = days
			return nil
		})
		return err
	})
}

// ImportFlatSchedule converts a legacy one-window-per-day schedule and stores
// it as the doctor's weekly schedule.
func (s *Service) ImportFlatSchedule(ctx context.Context, doctorID uuid.UUID, flat []FlatDay) (*RuleSet, error) {
	days, err := FromFlatDays(flat)
	if err != nil {
		s.metrics.ObserveMutation("import_flat_schedule", err)
		return nil, err
	}
	return s.SetWeeklySchedule(ctx, doctorID, days)
}

func (s *Service) AddBlockedDate(ctx context.Context, b *BlockedDate) (*RuleSet, error) {
	if err := ValidateBlockedDate(b); err != nil {
		s.metrics.ObserveMutation("add_blocked_date", err)
		return nil, err
	}
	if b.IsFullDay {
		b.BlockedWindows = nil
	}
	return s.mutate(ctx, "add_blocked_date", b.DoctorID, func() error {
		return s.blocked.Create(ctx, b)
	})
}

func (s *Service) RemoveBlockedDate(ctx context.Context, doctorID, id uuid.UUID) (*RuleSet, error) {
	return s.mutate(ctx, "remove_blocked_date", doctorID, func() error {
		return s.blocked.Delete(ctx, doctorID, id)
	})
}

// SetVacation makes v the doctor's only active vacation. Earlier periods are
// kept as inactive history.
func (s *Service) SetVacation(ctx context.Context, v *VacationPeriod) (*RuleSet, error) {
	if err := ValidateVacation(v); err != nil {
		s.metrics.ObserveMutation("set_vacation", err)
		return nil, err
	}
	return s.mutate(ctx, "set_vacation", v.DoctorID, func() error {
		return s.vacations.SetActive(ctx, v)
	})
}

func (s *Service) ClearVacation(ctx context.Context, doctorID uuid.UUID) (*RuleSet, error) {
	return s.mutate(ctx, "clear_vacation", doctorID, func() error {
		_, err := s.vacations.Deactivate(ctx, doctorID)
		return err
	})
}

// AddHoliday stores a one-off or yearly holiday. For recurring holidays the
// year of Date is kept as RecurringYear, the first year observed; it does not
// limit matching.
func (s *Service) AddHoliday(ctx context.Context, h *Holiday) (*RuleSet, error) {
	if h.IsRecurring {
		if h.RecurringYear == nil && h.Date.IsValid() {
			year := h.Date.Year
			h.RecurringYear = &year
		}
	} else {
		h.RecurringYear = nil
	}
	return s.mutate(ctx, "add_holiday", h.DoctorID, func() error {
		existing, err := s.holidays.ListByDoctor(ctx, h.DoctorID)
		if err != nil {
			return fmt.Errorf("load holidays: %w", err)
		}
		if err := ValidateHoliday(h, existing); err != nil {
			return err
		}
		return s.holidays.Create(ctx, h)
	})
}

func (s *Service) RemoveHoliday(ctx context.Context, doctorID, id uuid.UUID) (*RuleSet, error) {
	return s.mutate(ctx, "remove_holiday", doctorID, func() error {
		return s.holidays.Delete(ctx, doctorID, id)
	})
}
