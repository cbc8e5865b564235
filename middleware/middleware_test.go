package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"fleetrent/config"
	"fleetrent/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func init() {
	gin.SetMode(gin.TestMode)
	config.AppConfig.JWTSecret = "test-secret"
}

func newRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	handlers = append(handlers, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"userID": c.GetString(ContextUserID), "role": c.GetString(ContextRole)})
	})
	r.GET("/x", handlers...)
	return r
}

func doGet(r http.Handler, header map[string]string) int {
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Code
}

func bearer(t *testing.T, role string) map[string]string {
	t.Helper()
	token, err := utils.GenerateToken("user-1", role, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	return map[string]string{"Authorization": "Bearer " + token}
}

func TestJWTAuthMiddleware(t *testing.T) {
	r := newRouter(JWTAuthMiddleware())

	if got := doGet(r, nil); got != http.StatusUnauthorized {
		t.Errorf("no header: status %d, want 401", got)
	}
	if got := doGet(r, map[string]string{"Authorization": "Bearer not-a-jwt"}); got != http.StatusUnauthorized {
		t.Errorf("garbage token: status %d, want 401", got)
	}
	if got := doGet(r, bearer(t, RoleCustomer)); got != http.StatusOK {
		t.Errorf("valid token: status %d, want 200", got)
	}
}

func TestRequireRole(t *testing.T) {
	r := newRouter(JWTAuthMiddleware(), RequireRole(RoleAdmin, RoleStaff))

	if got := doGet(r, bearer(t, RoleCustomer)); got != http.StatusForbidden {
		t.Errorf("customer: status %d, want 403", got)
	}
	if got := doGet(r, bearer(t, RoleStaff)); got != http.StatusOK {
		t.Errorf("staff: status %d, want 200", got)
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	r := newRouter(RateLimitMiddleware(2))
	client := map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1"}

	for i := 0; i < 2; i++ {
		if got := doGet(r, client); got != http.StatusOK {
			t.Fatalf("request %d: status %d, want 200", i, got)
		}
	}
	if got := doGet(r, client); got != http.StatusTooManyRequests {
		t.Errorf("third request: status %d, want 429", got)
	}
	if got := doGet(r, map[string]string{"X-Forwarded-For": "198.51.100.1"}); got != http.StatusOK {
		t.Errorf("other client: status %d, want 200", got)
	}
}

func TestRequestLoggerAttachesScopedLogger(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	r := gin.New()
	r.GET("/x", RequestLogger(zap.New(core)), func(c *gin.Context) {
		l, ok := c.Get(ContextLogger)
		if !ok {
			t.Error("no logger in context")
			c.Status(http.StatusInternalServerError)
			return
		}
		l.(*zap.Logger).Info("inside handler")
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("X-Request-ID", "req-42")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if got := w.Header().Get("X-Request-ID"); got != "req-42" {
		t.Errorf("X-Request-ID = %q, want req-42", got)
	}
	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("log entries = %d, want 2", len(entries))
	}
	for _, e := range entries {
		if got := e.ContextMap()["requestID"]; got != "req-42" {
			t.Errorf("%q requestID = %v, want req-42", e.Message, got)
		}
	}
	if got := entries[1].ContextMap()["status"]; got != int64(http.StatusNoContent) {
		t.Errorf("logged status = %v, want 204", got)
	}
}
