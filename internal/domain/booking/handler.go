package booking

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/wardflow/wardflow/internal/platform/auth"
	"github.com/wardflow/wardflow/internal/platform/httperr"
	"github.com/wardflow/wardflow/pkg/pagination"
)

type Handler struct {
	co *Coordinator

	conflictCounter func(rule string)
}

func NewHandler(co *Coordinator) *Handler {
	return &Handler{co: co}
}

// SetConflictCounter installs a per-rule counter invoked whenever a booking
// request is denied by the calendar.
func (h *Handler) SetConflictCounter(fn func(rule string)) {
	h.conflictCounter = fn
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	sched := api.Group("", auth.RequireRole("physician", "nurse", "scheduler"))
	sched.POST("/activities/:id/schedule", h.Schedule)
	sched.POST("/activities/:id/reschedule", h.Reschedule)
	sched.POST("/activities/:id/release", h.Release)
	sched.GET("/resources/:id/bookings", h.ListByResource)
}

type slotRequest struct {
	ResourceID uuid.UUID  `json:"resource_id"`
	Start      time.Time  `json:"scheduled_start"`
	End        *time.Time `json:"scheduled_end"`
}

type releaseRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) Schedule(c echo.Context) error {
	return h.book(c, h.co.Schedule)
}

func (h *Handler) Reschedule(c echo.Context) error {
	return h.book(c, h.co.Reschedule)
}

func (h *Handler) book(c echo.Context, fn func(ctx context.Context, activityID, resourceID uuid.UUID, start time.Time, end *time.Time, actor string) (*Booking, error)) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req slotRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.ResourceID == uuid.Nil {
		return echo.NewHTTPError(http.StatusBadRequest, "resource_id is required")
	}
	actor := auth.Actor(c.Request().Context())
	b, err := fn(c.Request().Context(), id, req.ResourceID, req.Start, req.End, actor)
	if err != nil {
		return h.mapError(c, err)
	}
	return c.JSON(http.StatusCreated, b)
}

func (h *Handler) Release(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req releaseRequest
	if err := c.Bind(&req); err != nil && err != echo.ErrUnsupportedMediaType {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	actor := auth.Actor(c.Request().Context())
	a, err := h.co.Release(c.Request().Context(), id, actor, req.Reason)
	if err != nil {
		return h.mapError(c, err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) ListByResource(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	pg := pagination.FromContext(c)
	bookings, total, err := h.co.ListByResource(c.Request().Context(), id, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(bookings, total, pg.Limit, pg.Offset))
}

func (h *Handler) mapError(c echo.Context, err error) error {
	var conflict *ConflictError
	if errors.As(err, &conflict) {
		if h.conflictCounter != nil {
			for _, cf := range conflict.Conflicts {
				h.conflictCounter(cf.Rule)
			}
		}
		return c.JSON(http.StatusConflict, map[string]interface{}{
			"error": map[string]interface{}{
				"code":        "booking-conflict",
				"resource_id": conflict.ResourceID,
				"conflicts":   conflict.Conflicts,
			},
		})
	}
	var unusable *ResourceUnusableError
	if errors.As(err, &unusable) {
		return c.JSON(http.StatusUnprocessableEntity, map[string]interface{}{
			"error": map[string]interface{}{
				"code":        "resource-unusable",
				"resource_id": unusable.ResourceID,
				"reason":      unusable.Reason,
			},
		})
	}
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return httperr.FromService(c, err)
}
