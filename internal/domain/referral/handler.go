package referral

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
	read.GET("/referrals", h.List)
	read.GET("/referrals/:id", h.Get)
	read.GET("/referrals/:id/status-history", h.StatusHistory)

	write := api.Group("", auth.RequireRole("physician", "registrar"))
	write.POST("/referrals", h.Create)
	write.POST("/referrals/:id/submit", h.SubmitForSignature)
	write.POST("/referrals/:id/send", h.Send)
	write.POST("/referrals/:id/accept", h.Accept)
	write.POST("/referrals/:id/reject", h.Reject)
	write.POST("/referrals/:id/transfer", h.MarkPatientTransferred)
	write.POST("/referrals/:id/complete", h.Complete)
	write.POST("/referrals/:id/cancel", h.Cancel)

	// Signing is restricted to physicians.
	sign := api.Group("", auth.RequireRole("physician"))
	sign.POST("/referrals/:id/sign", h.Sign)
}

func (h *Handler) Create(c echo.Context) error {
	var l Letter
	if err := c.Bind(&l); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	actor := auth.Actor(c.Request().Context())
	if err := h.svc.Create(c.Request().Context(), &l, actor); err != nil {
		return httperr.FromService(c, err)
	}
	return c.JSON(http.StatusCreated, l)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	l, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "referral letter not found")
	}
	return c.JSON(http.StatusOK, l)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)

	if patientID := c.QueryParam("patient_id"); patientID != "" {
		pid, err := uuid.Parse(patientID)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
		}
		letters, total, err := h.svc.ListByPatient(c.Request().Context(), pid, pg.Limit, pg.Offset)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		return c.JSON(http.StatusOK, pagination.NewResponse(letters, total, pg.Limit, pg.Offset))
	}

	letters, total, err := h.svc.List(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(letters, total, pg.Limit, pg.Offset))
}

func (h *Handler) StatusHistory(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	entries, err := h.svc.StatusHistory(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "referral letter not found")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"data": entries})
}

func (h *Handler) SubmitForSignature(c echo.Context) error { return h.runTransition(c, h.svc.SubmitForSignature) }
func (h *Handler) Sign(c echo.Context) error               { return h.runTransition(c, h.svc.Sign) }
func (h *Handler) Send(c echo.Context) error               { return h.runTransition(c, h.svc.Send) }
func (h *Handler) Accept(c echo.Context) error             { return h.runTransition(c, h.svc.Accept) }
func (h *Handler) Reject(c echo.Context) error             { return h.runTransition(c, h.svc.Reject) }
func (h *Handler) MarkPatientTransferred(c echo.Context) error {
	return h.runTransition(c, h.svc.MarkPatientTransferred)
}
func (h *Handler) Complete(c echo.Context) error { return h.runTransition(c, h.svc.Complete) }
func (h *Handler) Cancel(c echo.Context) error   { return h.runTransition(c, h.svc.Cancel) }

func (h *Handler) runTransition(c echo.Context, fn func(ctx context.Context, id uuid.UUID, actor, reason string) (*Letter, error)) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req transitionRequest
	if err := c.Bind(&req); err != nil && err != echo.ErrUnsupportedMediaType {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	actor := auth.Actor(c.Request().Context())
	l, err := fn(c.Request().Context(), id, actor, req.Reason)
	if err != nil {
		return httperr.FromService(c, err)
	}
	return c.JSON(http.StatusOK, l)
}
