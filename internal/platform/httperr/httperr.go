// Package httperr maps domain errors onto HTTP responses so every handler
// reports denied transitions the same way.
package httperr

import (
	"errors"
	"net/http"

	"github.com/jackc/pgx/v5"
	"github.com/labstack/echo/v4"

	"github.com/wardflow/wardflow/internal/platform/db"
	"github.com/wardflow/wardflow/internal/workflow"
)

// RejectionPayload is the body returned for a denied status transition.
type RejectionPayload struct {
	Code         workflow.Code    `json:"code"`
	Kind         workflow.Kind    `json:"kind"`
	From         workflow.State   `json:"from"`
	To           workflow.State   `json:"to"`
	Allowed      []workflow.State `json:"allowed,omitempty"`
	Message      string           `json:"message"`
	MessageLocal string           `json:"message_local"`
}

// FromService converts a service error into the HTTP response the client
// sees: 409 with a structured body for workflow rejections, 409 for lost
// concurrent updates, 404 for missing rows, 400 for everything else.
func FromService(c echo.Context, err error) error {
	var rej *workflow.Rejection
	if errors.As(err, &rej) {
		return c.JSON(http.StatusConflict, map[string]interface{}{
			"error": RejectionPayload{
				Code:         rej.Code,
				Kind:         rej.Kind,
				From:         rej.From,
				To:           rej.To,
				Allowed:      rej.Allowed,
				Message:      rej.Message,
				MessageLocal: rej.MessageLocal,
			},
		})
	}
	if errors.Is(err, db.ErrStaleRow) {
		return echo.NewHTTPError(http.StatusConflict, "entity was modified concurrently, retry")
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return echo.NewHTTPError(http.StatusNotFound, "resource not found")
	}
	return echo.NewHTTPError(http.StatusBadRequest, err.Error())
}
