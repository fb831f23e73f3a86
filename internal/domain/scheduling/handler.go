package scheduling

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/visitmgr/visitmgr/internal/platform/auth"
	apperrors "github.com/visitmgr/visitmgr/pkg/errors"
	"github.com/visitmgr/visitmgr/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	visits := api.Group("/visits")
	visits.GET("", h.ListVisits, auth.RequireAuthenticated())
	visits.GET("/:id", h.GetVisit, auth.RequireAuthenticated())
	visits.POST("", h.CreateVisit, auth.RequireReceptionistOrAdmin())
	visits.PUT("/:id", h.UpdateVisit, auth.RequireReceptionistOrAdmin())
	visits.DELETE("/:id", h.DeleteVisit, auth.RequireAdmin())

	api.GET("/feeschedule", h.ListFeeSchedule, auth.RequireAuthenticated())
}

// visitRequest is the create/update body. visitDate accepts RFC 3339 or a
// bare date; visitTime (HH:MM[:SS]) overrides the time of day when given.
type visitRequest struct {
	VisitID       int    `json:"visitID"`
	VisitType     string `json:"visitType"`
	VisitTypeID   *int   `json:"visitTypeID"`
	VisitDuration int    `json:"visitDuration"`
	VisitDate     string `json:"visitDate"`
	VisitTime     string `json:"visitTime"`
	PatientID     int    `json:"patientID"`
	DoctorID      int    `json:"doctorID"`
	Status        Status `json:"status"`
}

var dateLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02T15:04", "2006-01-02"}

func parseVisitDate(date, clock string) (time.Time, error) {
	date = strings.TrimSpace(date)
	if date == "" {
		return time.Time{}, nil
	}
	var (
		t   time.Time
		err error
	)
	for _, layout := range dateLayouts {
		if t, err = time.ParseInLocation(layout, date, time.UTC); err == nil {
			break
		}
	}
	if err != nil {
		return time.Time{}, apperrors.NewInvalidInputError("visitDate must be a date or RFC 3339 timestamp")
	}

	clock = strings.TrimSpace(clock)
	if clock == "" {
		return t, nil
	}
	var tod time.Time
	for _, layout := range []string{"15:04:05", "15:04"} {
		if tod, err = time.Parse(layout, clock); err == nil {
			break
		}
	}
	if err != nil {
		return time.Time{}, apperrors.NewInvalidInputError("visitTime must be HH:MM or HH:MM:SS")
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, tod.Hour(), tod.Minute(), tod.Second(), 0, t.Location()), nil
}

func (r *visitRequest) toVisit() (*Visit, error) {
	date, err := parseVisitDate(r.VisitDate, r.VisitTime)
	if err != nil {
		return nil, err
	}
	return &Visit{
		VisitID:       r.VisitID,
		VisitType:     r.VisitType,
		VisitTypeID:   r.VisitTypeID,
		VisitDuration: r.VisitDuration,
		VisitDate:     date,
		PatientID:     r.PatientID,
		DoctorID:      r.DoctorID,
		Status:        r.Status,
	}, nil
}

func bindVisit(c echo.Context) (*Visit, error) {
	var req visitRequest
	if err := c.Bind(&req); err != nil {
		return nil, err
	}
	return req.toVisit()
}

func pathID(c echo.Context, name string) (int, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 32)
	if err != nil || id <= 0 {
		return 0, apperrors.NewInvalidInputError("invalid " + name)
	}
	return int(id), nil
}

func (h *Handler) CreateVisit(c echo.Context) error {
	v, err := bindVisit(c)
	if err != nil {
		return err
	}
	if err := h.svc.CreateVisit(c.Request().Context(), v); err != nil {
		return err
	}
	c.Response().Header().Set(echo.HeaderLocation, "/api/v1/visits/"+strconv.Itoa(v.VisitID))
	return c.JSON(http.StatusCreated, map[string]int{"id": v.VisitID})
}

func (h *Handler) GetVisit(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	v, err := h.svc.GetVisit(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) ListVisits(c echo.Context) error {
	pg := pagination.FromContext(c)

	var f VisitFilter
	if s := c.QueryParam("status"); s != "" {
		st, err := ParseStatus(s)
		if err != nil {
			return err
		}
		f.Status = st
	}
	for name, dst := range map[string]*int{"patient_id": &f.PatientID, "doctor_id": &f.DoctorID} {
		if raw := c.QueryParam(name); raw != "" {
			n, err := strconv.ParseInt(raw, 10, 32)
			if err != nil || n <= 0 {
				return apperrors.NewInvalidInputError("invalid " + name)
			}
			*dst = int(n)
		}
	}
	for name, dst := range map[string]**time.Time{"from": &f.From, "to": &f.To} {
		if raw := c.QueryParam(name); raw != "" {
			t, err := parseVisitDate(raw, "")
			if err != nil {
				return apperrors.NewInvalidInputError("invalid " + name)
			}
			*dst = &t
		}
	}

	items, total, err := h.svc.ListVisits(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg).WithLinks(c.Request().URL.Path, c.QueryParams()))
}

func (h *Handler) UpdateVisit(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	v, err := bindVisit(c)
	if err != nil {
		return err
	}
	if err := h.svc.UpdateVisit(c.Request().Context(), id, v); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) DeleteVisit(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.DeleteVisit(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListFeeSchedule(c echo.Context) error {
	items, err := h.svc.ListFeeSchedule(c.Request().Context())
	if err != nil {
		return err
	}
	if items == nil {
		items = []*FeeSchedule{}
	}
	return c.JSON(http.StatusOK, items)
}
