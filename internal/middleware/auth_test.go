package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/duolog/duolog-server/internal/config"
)

func adminTestRouter(adminKey string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{HTTPAuth: config.HTTPAuthConfig{AdminAPIKey: adminKey}}
	router := gin.New()
	router.Use(AdminKeyAuth(cfg))
	router.POST("/api/admin/reset-user-usage", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	router.GET("/api/email-usage", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return router
}

func TestAdminKeyAuthDeniesWithoutKey(t *testing.T) {
	router := adminTestRouter("admin-secret")

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodPost, "/api/admin/reset-user-usage", nil)
	router.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", recorder.Code)
	}
}

func TestAdminKeyAuthAcceptsKey(t *testing.T) {
	router := adminTestRouter("admin-secret")

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodPost, "/api/admin/reset-user-usage", nil)
	request.Header.Set("X-API-Key", "admin-secret")
	router.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
}

func TestAdminKeyAuthBearerHeader(t *testing.T) {
	router := adminTestRouter("admin-secret")

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodPost, "/api/admin/reset-user-usage", nil)
	request.Header.Set("Authorization", "Bearer admin-secret")
	router.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
}

func TestAdminKeyAuthUnconfiguredDeniesAdmin(t *testing.T) {
	router := adminTestRouter("")

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodPost, "/api/admin/reset-user-usage", nil)
	request.Header.Set("X-API-Key", "anything")
	router.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 when no admin key is configured, got %d", recorder.Code)
	}
}

func TestAdminKeyAuthSkipsNonAdminPaths(t *testing.T) {
	router := adminTestRouter("admin-secret")

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodGet, "/api/email-usage", nil)
	router.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected non-admin path to pass, got %d", recorder.Code)
	}
}
