package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/wardflow/wardflow/internal/platform/auth"
)

// AuditEntry captures who touched which clinical record, when, and how.
type AuditEntry struct {
	UserID     string
	UserRoles  []string
	EntityType string
	EntityID   string
	Action     string // read, create, update, transition
	IPAddress  string
	Path       string
	Method     string
	Timestamp  time.Time
	RequestID  string
	StatusCode int
}

// AuditRecorder persists audit entries. Tests provide a mock implementation.
type AuditRecorder interface {
	RecordAccess(entry AuditEntry) error
}

// AuditRecorderFunc is a function adapter for AuditRecorder.
type AuditRecorderFunc func(entry AuditEntry) error

func (f AuditRecorderFunc) RecordAccess(entry AuditEntry) error {
	return f(entry)
}

// transitionVerbs are the trailing path segments that change an entity's
// status rather than its data.
var transitionVerbs = map[string]bool{
	"arrive": true, "triage": true, "begin": true, "finish": true,
	"submit": true, "approve": true, "accept": true, "reject": true,
	"depart": true, "complete": true, "cancel": true,
	"sign": true, "send": true, "transferred": true,
	"schedule": true, "reschedule": true, "release": true,
}

// Audit returns middleware that logs every access to clinical records under
// /api/v1. Status transitions are tagged separately from plain writes so the
// audit trail distinguishes lifecycle changes from data edits.
//
// If no AuditRecorder is provided, entries go to structured logging only.
func Audit(logger zerolog.Logger, recorders ...AuditRecorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			path := req.URL.Path

			if !strings.HasPrefix(path, "/api/v1/") {
				return next(c)
			}

			// Run the handler first so the response status is known.
			err := next(c)

			entry := AuditEntry{
				Timestamp:  time.Now().UTC(),
				Path:       path,
				Method:     req.Method,
				IPAddress:  c.RealIP(),
				StatusCode: c.Response().Status,
			}

			ctx := req.Context()
			entry.UserID = auth.UserIDFromContext(ctx)
			entry.UserRoles = auth.RolesFromContext(ctx)

			if rid, ok := c.Get("request_id").(string); ok {
				entry.RequestID = rid
			}

			entry.EntityType, entry.EntityID, entry.Action = classifyRequest(req.Method, path)

			if len(recorders) > 0 && recorders[0] != nil {
				if recErr := recorders[0].RecordAccess(entry); recErr != nil {
					logger.Error().Err(recErr).
						Str("request_id", entry.RequestID).
						Msg("failed to record audit entry")
				}
			}

			logger.Info().
				Str("type", "clinical_audit").
				Str("request_id", entry.RequestID).
				Str("user_id", entry.UserID).
				Strs("user_roles", entry.UserRoles).
				Str("entity_type", entry.EntityType).
				Str("entity_id", entry.EntityID).
				Str("action", entry.Action).
				Str("method", entry.Method).
				Str("path", entry.Path).
				Str("remote_ip", entry.IPAddress).
				Int("status", entry.StatusCode).
				Msg("record_access")

			return err
		}
	}
}

// classifyRequest parses an /api/v1 path into entity type, entity ID, and an
// audit action.
//
// Supported patterns:
//   - /api/v1/encounters                -> encounters, read/create
//   - /api/v1/encounters/<id>           -> encounters, read/update
//   - /api/v1/encounters/<id>/arrive    -> encounters, transition
func classifyRequest(method, path string) (entityType, entityID, action string) {
	segments := strings.Split(strings.TrimPrefix(path, "/api/v1/"), "/")
	if len(segments) == 0 || segments[0] == "" {
		return "unknown", "", methodToAction(method)
	}
	entityType = segments[0]
	if len(segments) > 1 {
		entityID = segments[1]
	}
	if len(segments) > 2 && method == http.MethodPost && transitionVerbs[segments[2]] {
		return entityType, entityID, "transition"
	}
	return entityType, entityID, methodToAction(method)
}

func methodToAction(method string) string {
	switch method {
	case http.MethodGet, http.MethodHead:
		return "read"
	case http.MethodPost:
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	default:
		return "read"
	}
}
