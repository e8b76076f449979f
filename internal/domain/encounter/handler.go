package encounter

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

// transitionRequest is the body accepted by all lifecycle endpoints.
type transitionRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("", auth.RequireRole("physician", "nurse", "registrar"))
	read.GET("/encounters", h.List)
	read.GET("/encounters/:id", h.Get)
	read.GET("/encounters/:id/status-history", h.StatusHistory)

	write := api.Group("", auth.RequireRole("physician", "nurse", "registrar"))
	write.POST("/encounters", h.Create)
	write.POST("/encounters/:id/arrive", h.Arrive)
	write.POST("/encounters/:id/triage", h.Triage)
	write.POST("/encounters/:id/begin", h.Begin)
	write.POST("/encounters/:id/finish", h.Finish)
	write.POST("/encounters/:id/cancel", h.Cancel)
}

func (h *Handler) Create(c echo.Context) error {
	var enc Encounter
	if err := c.Bind(&enc); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	actor := auth.Actor(c.Request().Context())
	if err := h.svc.Create(c.Request().Context(), &enc, actor); err != nil {
		return httperr.FromService(c, err)
	}
	return c.JSON(http.StatusCreated, enc)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	enc, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "encounter not found")
	}
	return c.JSON(http.StatusOK, enc)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)

	if patientID := c.QueryParam("patient_id"); patientID != "" {
		pid, err := uuid.Parse(patientID)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
		}
		encs, total, err := h.svc.ListByPatient(c.Request().Context(), pid, pg.Limit, pg.Offset)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		return c.JSON(http.StatusOK, pagination.NewResponse(encs, total, pg.Limit, pg.Offset))
	}

	encs, total, err := h.svc.List(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(encs, total, pg.Limit, pg.Offset))
}

func (h *Handler) StatusHistory(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	entries, err := h.svc.StatusHistory(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "encounter not found")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"data": entries})
}

func (h *Handler) Arrive(c echo.Context) error { return h.runTransition(c, h.svc.Arrive) }
func (h *Handler) Triage(c echo.Context) error { return h.runTransition(c, h.svc.Triage) }
func (h *Handler) Begin(c echo.Context) error  { return h.runTransition(c, h.svc.Begin) }
func (h *Handler) Finish(c echo.Context) error { return h.runTransition(c, h.svc.Finish) }
func (h *Handler) Cancel(c echo.Context) error { return h.runTransition(c, h.svc.Cancel) }

func (h *Handler) runTransition(c echo.Context, fn func(ctx context.Context, id uuid.UUID, actor, reason string) (*Encounter, error)) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req transitionRequest
	if err := c.Bind(&req); err != nil && err != echo.ErrUnsupportedMediaType {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	actor := auth.Actor(c.Request().Context())
	enc, err := fn(c.Request().Context(), id, actor, req.Reason)
	if err != nil {
		return httperr.FromService(c, err)
	}
	return c.JSON(http.StatusOK, enc)
}
