package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func contextWithRoles(roles []string) echo.Context {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(context.WithValue(req.Context(), UserRolesKey, roles))
	return e.NewContext(req, httptest.NewRecorder())
}

func okHandler(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func TestRequireRole_Allowed(t *testing.T) {
	c := contextWithRoles([]string{"nurse"})
	if err := RequireRole("physician", "nurse")(okHandler)(c); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}

func TestRequireRole_Denied(t *testing.T) {
	c := contextWithRoles([]string{"billing"})
	err := RequireRole("physician", "nurse")(okHandler)(c)
	if err == nil {
		t.Fatal("expected error for unauthorized role")
	}
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", httpErr.Code)
	}
}

func TestRequireRole_AdminBypass(t *testing.T) {
	c := contextWithRoles([]string{"admin"})
	if err := RequireRole("physician")(okHandler)(c); err != nil {
		t.Error("admin should bypass role checks")
	}
}

func TestActor_FallsBackToSystem(t *testing.T) {
	if got := Actor(context.Background()); got != "system" {
		t.Errorf("expected system, got %s", got)
	}
	ctx := context.WithValue(context.Background(), UserIDKey, "dr-7")
	if got := Actor(ctx); got != "dr-7" {
		t.Errorf("expected dr-7, got %s", got)
	}
}
