package notes

import (
	"net/http"
	"strconv"

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
	g := api.Group("/visitnotes")
	g.GET("", h.ListNotes, auth.RequireAuthenticated())
	g.GET("/:id", h.GetNote, auth.RequireAuthenticated())
	g.GET("/byVisit/:visitId", h.GetNoteByVisit, auth.RequireAuthenticated())
	g.POST("", h.CreateNote, auth.RequireReceptionistOrAdmin())
	g.PUT("/:id", h.UpdateNote, auth.RequireReceptionistOrAdmin())
	g.DELETE("/:id", h.DeleteNote, auth.RequireAdmin())
}

type createRequest struct {
	VisitID    int    `json:"visitID"`
	VisitNotes string `json:"visitNotes"`
	RuleID     int    `json:"ruleID"`
}

type updateRequest struct {
	NotesID    int    `json:"notesID"`
	VisitNotes string `json:"visitNotes"`
	RuleID     int    `json:"ruleID"`
}

func pathID(c echo.Context, name string) (int, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 32)
	if err != nil || id <= 0 {
		return 0, apperrors.NewInvalidInputError("invalid " + name)
	}
	return int(id), nil
}

func (h *Handler) CreateNote(c echo.Context) error {
	var req createRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	n := &VisitNote{VisitID: req.VisitID, VisitNotes: req.VisitNotes, RuleID: req.RuleID}
	if err := h.svc.CreateNote(c.Request().Context(), n); err != nil {
		return err
	}
	c.Response().Header().Set(echo.HeaderLocation, "/api/v1/visitnotes/"+strconv.Itoa(n.NotesID))
	return c.JSON(http.StatusCreated, map[string]int{"id": n.NotesID})
}

func (h *Handler) GetNote(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	n, err := h.svc.GetNote(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, n)
}

func (h *Handler) GetNoteByVisit(c echo.Context) error {
	visitID, err := pathID(c, "visitId")
	if err != nil {
		return err
	}
	n, err := h.svc.GetNoteByVisit(c.Request().Context(), visitID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, n)
}

func (h *Handler) ListNotes(c echo.Context) error {
	pg := pagination.FromContext(c)

	var f Filter
	if raw := c.QueryParam("finalized"); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return apperrors.NewInvalidInputError("invalid finalized")
		}
		f.Finalized = &b
	}
	if raw := c.QueryParam("visit_id"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 32)
		if err != nil || n <= 0 {
			return apperrors.NewInvalidInputError("invalid visit_id")
		}
		f.VisitID = int(n)
	}

	items, total, err := h.svc.ListNotes(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg).WithLinks(c.Request().URL.Path, c.QueryParams()))
}

func (h *Handler) UpdateNote(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req updateRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	n := &VisitNote{NotesID: req.NotesID, VisitNotes: req.VisitNotes, RuleID: req.RuleID}
	if err := h.svc.UpdateNote(c.Request().Context(), id, n); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) DeleteNote(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.DeleteNote(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
