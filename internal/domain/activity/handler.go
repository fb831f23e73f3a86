package activity

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/visitmgr/visitmgr/internal/platform/auth"
	"github.com/visitmgr/visitmgr/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/logger", auth.RequireAdmin())
	g.GET("/ping", h.Ping)
	g.GET("/activity", h.ListActivity)
}

func (h *Handler) Ping(c echo.Context) error {
	return c.JSON(http.StatusOK, h.svc.Ping())
}

func (h *Handler) ListActivity(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.List(c.Request().Context(), c.QueryParam("actor"), pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg).WithLinks(c.Request().URL.Path, c.QueryParams()))
}
