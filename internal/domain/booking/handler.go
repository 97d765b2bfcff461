package booking

import (
	"errors"
	"net/http"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ehr/availability/internal/domain/availability"
	"github.com/ehr/availability/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	anyone := api.Group("", auth.RequireRole(auth.RoleAdmin, auth.RolePhysician, auth.RoleRegistrar, auth.RolePatient))
	anyone.POST("/appointments", h.Book)
	anyone.GET("/appointments/:id", h.Get)
	anyone.POST("/appointments/:id/status", h.UpdateStatus)

	staff := api.Group("", auth.RequireRole(auth.RoleAdmin, auth.RolePhysician, auth.RoleRegistrar))
	staff.GET("/doctors/:id/appointments", h.ListByDoctorDate)
}

func httpError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, ErrSlotUnavailable), errors.Is(err, ErrInvalidTransition):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrAppointmentNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return availability.HTTPError(err)
}

func isStaff(c echo.Context) bool {
	roles := auth.RolesFromContext(c.Request().Context())
	return auth.HasRole(roles, auth.RolePhysician) || auth.HasRole(roles, auth.RoleRegistrar)
}

// callerPatientID is the patient a patient-role caller acts as.
func callerPatientID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(auth.UserIDFromContext(c.Request().Context()))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusForbidden, "caller is not linked to a patient")
	}
	return id, nil
}

func (h *Handler) Book(c echo.Context) error {
	var req Request
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if !isStaff(c) {
		self, err := callerPatientID(c)
		if err != nil {
			return err
		}
		if req.PatientID == uuid.Nil {
			req.PatientID = self
		}
		if req.PatientID != self {
			return echo.NewHTTPError(http.StatusForbidden, "patients may only book for themselves")
		}
	}
	appt, err := h.svc.Book(c.Request().Context(), req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, appt)
}

// load fetches an appointment and hides other patients' bookings from
// patient-role callers.
func (h *Handler) load(c echo.Context) (*availability.Appointment, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	appt, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return nil, httpError(err)
	}
	if !isStaff(c) {
		self, err := callerPatientID(c)
		if err != nil {
			return nil, err
		}
		if appt.PatientID != self {
			return nil, httpError(ErrAppointmentNotFound)
		}
	}
	return appt, nil
}

func (h *Handler) Get(c echo.Context) error {
	appt, err := h.load(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, appt)
}

type statusRequest struct {
	Status availability.AppointmentStatus `json:"status"`
}

func (h *Handler) UpdateStatus(c echo.Context) error {
	appt, err := h.load(c)
	if err != nil {
		return err
	}
	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if !isStaff(c) && req.Status != availability.StatusCancelled {
		return echo.NewHTTPError(http.StatusForbidden, "patients may only cancel appointments")
	}
	updated, err := h.svc.UpdateStatus(c.Request().Context(), appt.ID, req.Status)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, updated)
}

func (h *Handler) ListByDoctorDate(c echo.Context) error {
	doctorID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	date, err := civil.ParseDate(c.QueryParam("date"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "date must be a calendar date (YYYY-MM-DD)")
	}
	items, err := h.svc.ListByDoctorDate(c.Request().Context(), doctorID, date)
	if err != nil {
		return httpError(err)
	}
	if items == nil {
		items = []availability.Appointment{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"doctor_id": doctorID, "date": date, "appointments": items})
}
