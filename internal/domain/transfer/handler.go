package transfer

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
	read := api.Group("", auth.RequireRole("physician", "nurse", "registrar"))
	read.GET("/transfers", h.List)
	read.GET("/transfers/:id", h.Get)
	read.GET("/transfers/:id/status-history", h.StatusHistory)

	write := api.Group("", auth.RequireRole("physician", "nurse"))
	write.POST("/transfers", h.Create)
	write.POST("/transfers/:id/submit", h.SubmitForApproval)
	write.POST("/transfers/:id/approve", h.Approve)
	write.POST("/transfers/:id/accept", h.Accept)
	write.POST("/transfers/:id/reject", h.Reject)
	write.POST("/transfers/:id/depart", h.Depart)
	write.POST("/transfers/:id/complete", h.Complete)
	write.POST("/transfers/:id/cancel", h.Cancel)
}

func (h *Handler) Create(c echo.Context) error {
	var tr Transfer
	if err := c.Bind(&tr); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	actor := auth.Actor(c.Request().Context())
	if err := h.svc.Create(c.Request().Context(), &tr, actor); err != nil {
		return httperr.FromService(c, err)
	}
	return c.JSON(http.StatusCreated, tr)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	tr, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "transfer not found")
	}
	return c.JSON(http.StatusOK, tr)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)

	if patientID := c.QueryParam("patient_id"); patientID != "" {
		pid, err := uuid.Parse(patientID)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
		}
		trs, total, err := h.svc.ListByPatient(c.Request().Context(), pid, pg.Limit, pg.Offset)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		return c.JSON(http.StatusOK, pagination.NewResponse(trs, total, pg.Limit, pg.Offset))
	}

	trs, total, err := h.svc.List(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(trs, total, pg.Limit, pg.Offset))
}

func (h *Handler) StatusHistory(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	entries, err := h.svc.StatusHistory(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "transfer not found")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"data": entries})
}

func (h *Handler) SubmitForApproval(c echo.Context) error { return h.runTransition(c, h.svc.SubmitForApproval) }
func (h *Handler) Approve(c echo.Context) error           { return h.runTransition(c, h.svc.Approve) }
func (h *Handler) Accept(c echo.Context) error            { return h.runTransition(c, h.svc.Accept) }
func (h *Handler) Reject(c echo.Context) error            { return h.runTransition(c, h.svc.Reject) }
func (h *Handler) Depart(c echo.Context) error            { return h.runTransition(c, h.svc.Depart) }
func (h *Handler) Complete(c echo.Context) error          { return h.runTransition(c, h.svc.Complete) }
func (h *Handler) Cancel(c echo.Context) error            { return h.runTransition(c, h.svc.Cancel) }

func (h *Handler) runTransition(c echo.Context, fn func(ctx context.Context, id uuid.UUID, actor, reason string) (*Transfer, error)) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req transitionRequest
	if err := c.Bind(&req); err != nil && err != echo.ErrUnsupportedMediaType {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	actor := auth.Actor(c.Request().Context())
	tr, err := fn(c.Request().Context(), id, actor, req.Reason)
	if err != nil {
		return httperr.FromService(c, err)
	}
	return c.JSON(http.StatusOK, tr)
}
