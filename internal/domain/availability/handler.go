package availability

import (
	"errors"
	"net/http"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ehr/availability/internal/platform/auth"
	"github.com/ehr/availability/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	// Availability and doctor profiles are readable by patients as well.
	publicRead := api.Group("", auth.RequireRole(auth.RoleAdmin, auth.RolePhysician, auth.RoleRegistrar, auth.RolePatient))
	publicRead.GET("/doctors/:id", h.GetDoctor)
	publicRead.GET("/doctors/:id/availability", h.GetAvailability)
	publicRead.GET("/doctors/:id/availability/range", h.GetAvailabilityRange)

	staff := api.Group("", auth.RequireRole(auth.RoleAdmin, auth.RolePhysician, auth.RoleRegistrar))
	staff.GET("/doctors", h.ListDoctors)
	staff.GET("/doctors/:id/rules", h.GetRules)
	staff.PUT("/doctors/:id/schedule", h.SetWeeklySchedule)
	staff.PUT("/doctors/:id/schedule/:weekday", h.SetWeeklyWindow)
	staff.POST("/doctors/:id/schedule/import", h.ImportFlatSchedule)
	staff.POST("/doctors/:id/blocked-dates", h.AddBlockedDate)
	staff.DELETE("/doctors/:id/blocked-dates/:blockID", h.RemoveBlockedDate)
	staff.PUT("/doctors/:id/vacation", h.SetVacation)
	staff.DELETE("/doctors/:id/vacation", h.ClearVacation)
	staff.POST("/doctors/:id/holidays", h.AddHoliday)
	staff.DELETE("/doctors/:id/holidays/:holidayID", h.RemoveHoliday)

	admin := api.Group("", auth.RequireRole(auth.RoleAdmin, auth.RoleRegistrar))
	admin.POST("/doctors", h.CreateDoctor)
	admin.PUT("/doctors/:id", h.UpdateDoctor)
}

// HTTPError maps service errors onto status codes.
func HTTPError(err error) *echo.HTTPError {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		return echo.NewHTTPError(http.StatusBadRequest, verr.Error())
	case errors.Is(err, ErrInvalidDate), errors.Is(err, ErrRangeTooLarge):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrDoctorNotFound), errors.Is(err, ErrBlockedDateNotFound), errors.Is(err, ErrHolidayNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrDuplicateHoliday):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, "internal error").SetInternal(err)
}

func pathUUID(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}

func queryDate(c echo.Context, name string) (civil.Date, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return civil.Date{}, echo.NewHTTPError(http.StatusBadRequest, name+" is required")
	}
	d, err := civil.ParseDate(raw)
	if err != nil || !d.IsValid() {
		return civil.Date{}, echo.NewHTTPError(http.StatusBadRequest, name+" must be a calendar date (YYYY-MM-DD)")
	}
	return d, nil
}

// -- Doctors --

func (h *Handler) CreateDoctor(c echo.Context) error {
	var d Doctor
	if err := c.Bind(&d); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	d.ID = uuid.Nil
	if err := h.svc.CreateDoctor(c.Request().Context(), &d); err != nil {
		return HTTPError(err)
	}
	return c.JSON(http.StatusCreated, d)
}

func (h *Handler) GetDoctor(c echo.Context) error {
	id, err := pathUUID(c, "id")
	if err != nil {
		return err
	}
	d, err := h.svc.GetDoctor(c.Request().Context(), id)
	if err != nil {
		return HTTPError(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) UpdateDoctor(c echo.Context) error {
	id, err := pathUUID(c, "id")
	if err != nil {
		return err
	}
	var d Doctor
	if err := c.Bind(&d); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	d.ID = id
	if err := h.svc.UpdateDoctor(c.Request().Context(), &d); err != nil {
		return HTTPError(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) ListDoctors(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListDoctors(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return HTTPError(err)
	}
	resp := pagination.NewResponse(items, total, pg.Limit, pg.Offset)
	resp.Links = pg.Links(c.Request().URL.Path, total)
	return c.JSON(http.StatusOK, resp)
}

// -- Availability --

func (h *Handler) GetAvailability(c echo.Context) error {
	id, err := pathUUID(c, "id")
	if err != nil {
		return err
	}
	date, err := queryDate(c, "date")
	if err != nil {
		return err
	}
	out, err := h.svc.ResolveAvailability(c.Request().Context(), id, date)
	if err != nil {
		return HTTPError(err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) GetAvailabilityRange(c echo.Context) error {
	id, err := pathUUID(c, "id")
	if err != nil {
		return err
	}
	from, err := queryDate(c, "from")
	if err != nil {
		return err
	}
	to, err := queryDate(c, "to")
	if err != nil {
		return err
	}
	days, err := h.svc.ResolveRange(c.Request().Context(), id, from, to)
	if err != nil {
		return HTTPError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"doctor_id": id, "days": days})
}

// -- Rules --

func (h *Handler) GetRules(c echo.Context) error {
	id, err := pathUUID(c, "id")
	if err != nil {
		return err
	}
	rules, err := h.svc.GetRules(c.Request().Context(), id)
	if err != nil {
		return HTTPError(err)
	}
	return c.JSON(http.StatusOK, rules)
}

type weeklyScheduleRequest struct {
	Days WeekDays `json:"days"`
}

func (h *Handler) SetWeeklySchedule(c echo.Context) error {
	id, err := pathUUID(c, "id")
	if err != nil {
		return err
	}
	var req weeklyScheduleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	rules, err := h.svc.SetWeeklySchedule(c.Request().Context(), id, req.Days)
	if err != nil {
		return HTTPError(err)
	}
	return c.JSON(http.StatusOK, rules)
}

func (h *Handler) SetWeeklyWindow(c echo.Context) error {
	id, err := pathUUID(c, "id")
	if err != nil {
		return err
	}
	wd, err := ParseWeekday(c.Param("weekday"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	var day DaySchedule
	if err := c.Bind(&day); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	rules, err := h.svc.SetWeeklyWindow(c.Request().Context(), id, wd, day)
	if err != nil {
		return HTTPError(err)
	}
	return c.JSON(http.StatusOK, rules)
}

type flatImportRequest struct {
	Days []FlatDay `json:"days"`
}

func (h *Handler) ImportFlatSchedule(c echo.Context) error {
	id, err := pathUUID(c, "id")
	if err != nil {
		return err
	}
	var req flatImportRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	rules, err := h.svc.ImportFlatSchedule(c.Request().Context(), id, req.Days)
	if err != nil {
		return HTTPError(err)
	}
	return c.JSON(http.StatusOK, rules)
}

func (h *Handler) AddBlockedDate(c echo.Context) error {
	id, err := pathUUID(c, "id")
	if err != nil {
		return err
	}
	var b BlockedDate
	if err := c.Bind(&b); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	b.ID, b.DoctorID = uuid.Nil, id
	rules, err := h.svc.AddBlockedDate(c.Request().Context(), &b)
	if err != nil {
		return HTTPError(err)
	}
	return c.JSON(http.StatusCreated, rules)
}

func (h *Handler) RemoveBlockedDate(c echo.Context) error {
	id, err := pathUUID(c, "id")
	if err != nil {
		return err
	}
	blockID, err := pathUUID(c, "blockID")
	if err != nil {
		return err
	}
	rules, err := h.svc.RemoveBlockedDate(c.Request().Context(), id, blockID)
	if err != nil {
		return HTTPError(err)
	}
	return c.JSON(http.StatusOK, rules)
}

func (h *Handler) SetVacation(c echo.Context) error {
	id, err := pathUUID(c, "id")
	if err != nil {
		return err
	}
	var v VacationPeriod
	if err := c.Bind(&v); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	v.ID, v.DoctorID = uuid.Nil, id
	rules, err := h.svc.SetVacation(c.Request().Context(), &v)
	if err != nil {
		return HTTPError(err)
	}
	return c.JSON(http.StatusOK, rules)
}

func (h *Handler) ClearVacation(c echo.Context) error {
	id, err := pathUUID(c, "id")
	if err != nil {
		return err
	}
	rules, err := h.svc.ClearVacation(c.Request().Context(), id)
	if err != nil {
		return HTTPError(err)
	}
	return c.JSON(http.StatusOK, rules)
}

func (h *Handler) AddHoliday(c echo.Context) error {
	id, err := pathUUID(c, "id")
	if err != nil {
		return err
	}
	var hol Holiday
	if err := c.Bind(&hol); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	hol.ID, hol.DoctorID = uuid.Nil, id
	rules, err := h.svc.AddHoliday(c.Request().Context(), &hol)
	if err != nil {
		return HTTPError(err)
	}
	return c.JSON(http.StatusCreated, rules)
}

func (h *Handler) RemoveHoliday(c echo.Context) error {
	id, err := pathUUID(c, "id")
	if err != nil {
		return err
	}
	holidayID, err := pathUUID(c, "holidayID")
	if err != nil {
		return err
	}
	rules, err := h.svc.RemoveHoliday(c.Request().Context(), id, holidayID)
	if err != nil {
		return HTTPError(err)
	}
	return c.JSON(http.StatusOK, rules)
}
