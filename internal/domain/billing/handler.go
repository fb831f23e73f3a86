package billing

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

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
	admin := auth.RequireAdmin()
	rules := api.Group("/rules")
	rules.GET("", h.ListRules, admin)
	rules.GET("/:id", h.GetRule, admin)
	rules.POST("", h.CreateRule, admin)
	rules.PUT("/:id", h.UpdateRule, admin)
	rules.DELETE("/:id", h.DeleteRule, admin)

	bills := api.Group("/billing")
	bills.POST("", h.CreateBilling, auth.RequireReceptionistOrAdmin())
	bills.GET("/:id", h.GetBilling, auth.RequireAuthenticated())
	bills.GET("/byNote/:notesId", h.GetBillingByNote, auth.RequireAuthenticated())
}

type ruleRequest struct {
	ID        int             `json:"id"`
	RuleName  string          `json:"ruleName"`
	RulePrice decimal.Decimal `json:"rulePrice"`
}

// createBillingRequest omits overrideTotal (or sends null) to bill at the
// rule price.
type createBillingRequest struct {
	NotesID       int              `json:"notesID"`
	OverrideTotal *decimal.Decimal `json:"overrideTotal"`
}

func pathID(c echo.Context, name string) (int, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 32)
	if err != nil || id <= 0 {
		return 0, apperrors.NewInvalidInputError("invalid " + name)
	}
	return int(id), nil
}

// -- Rules --

func (h *Handler) CreateRule(c echo.Context) error {
	var req ruleRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	r := &Rule{RuleName: req.RuleName, RulePrice: req.RulePrice}
	if err := h.svc.CreateRule(c.Request().Context(), r); err != nil {
		return err
	}
	c.Response().Header().Set(echo.HeaderLocation, "/api/v1/rules/"+strconv.Itoa(r.ID))
	return c.JSON(http.StatusCreated, map[string]int{"id": r.ID})
}

func (h *Handler) GetRule(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	r, err := h.svc.GetRule(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, r)
}

func (h *Handler) ListRules(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListRules(c.Request().Context(), c.QueryParam("name"), pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg).WithLinks(c.Request().URL.Path, c.QueryParams()))
}

func (h *Handler) UpdateRule(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req ruleRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	r := &Rule{ID: req.ID, RuleName: req.RuleName, RulePrice: req.RulePrice}
	if err := h.svc.UpdateRule(c.Request().Context(), id, r); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) DeleteRule(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.DeleteRule(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Billing --

func (h *Handler) CreateBilling(c echo.Context) error {
	var req createBillingRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	b, err := h.svc.CreateBillingForNote(c.Request().Context(), req.NotesID, req.OverrideTotal)
	if err != nil {
		return err
	}
	c.Response().Header().Set(echo.HeaderLocation, "/api/v1/billing/"+strconv.Itoa(b.BillingID))
	return c.JSON(http.StatusCreated, map[string]int{"id": b.BillingID})
}

func (h *Handler) GetBilling(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	b, err := h.svc.GetBilling(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, b)
}

func (h *Handler) GetBillingByNote(c echo.Context) error {
	notesID, err := pathID(c, "notesId")
	if err != nil {
		return err
	}
	b, err := h.svc.GetBillingByNote(c.Request().Context(), notesID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, b)
}
