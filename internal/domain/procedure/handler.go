package procedure

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/wardflow/wardflow/internal/platform/auth"
	"github.com/wardflow/wardflow/internal/platform/httperr"
	"github.com/wardflow/wardflow/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type transitionRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("", auth.RequireRole("physician", "nurse", "scheduler"))
	read.GET("/activities", h.List)
	read.GET("/activities/:id", h.Get)
	read.GET("/activities/:id/status-history", h.StatusHistory)

	write := api.Group("", auth.RequireRole("physician", "nurse"))
	write.POST("/activities", h.Create)
	write.POST("/activities/:id/begin", h.Begin)
	write.POST("/activities/:id/complete", h.Complete)
	write.POST("/activities/:id/cancel", h.Cancel)
}

func (h *Handler) Create(c echo.Context) error {
	var a Activity
	if err := c.Bind(&a); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	actor := auth.Actor(c.Request().Context())
	if err := h.svc.Create(c.Request().Context(), &a, actor); err != nil {
		return httperr.FromService(c, err)
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	a, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "activity not found")
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)

	if patientID := c.QueryParam("patient_id"); patientID != "" {
		pid, err := uuid.Parse(patientID)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
		}
		acts, total, err := h.svc.ListByPatient(c.Request().Context(), pid, pg.Limit, pg.Offset)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		return c.JSON(http.StatusOK, pagination.NewResponse(acts, total, pg.Limit, pg.Offset))
	}

	acts, total, err := h.svc.List(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(acts, total, pg.Limit, pg.Offset))
}

func (h *Handler) StatusHistory(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	entries, err := h.svc.StatusHistory(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "activity not found")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"data": entries})
}

func (h *Handler) Begin(c echo.Context) error    { return h.runTransition(c, h.svc.Begin) }
func (h *Handler) Complete(c echo.Context) error { return h.runTransition(c, h.svc.Complete) }
func (h *Handler) Cancel(c echo.Context) error   { return h.runTransition(c, h.svc.Cancel) }

func (h *Handler) runTransition(c echo.Context, fn func(ctx context.Context, id uuid.UUID, actor, reason string) (*Activity, error)) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req transitionRequest
	if err := c.Bind(&req); err != nil && err != echo.ErrUnsupportedMediaType {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	actor := auth.Actor(c.Request().Context())
	a, err := fn(c.Request().Context(), id, actor, req.Reason)
	if err != nil {
		return httperr.FromService(c, err)
	}
	return c.JSON(http.StatusOK, a)
}
