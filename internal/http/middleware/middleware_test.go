package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

func newEngine(adminKey string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID(), Logger(zerolog.Nop()), Metrics())
	r.GET("/open", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(RequestIDHeader)) })
	admin := r.Group("/admin", AdminKey(adminKey))
	admin.POST("/process", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	return r
}

func TestRequestID(t *testing.T) {
	r := newEngine("")

	req, _ := http.NewRequest(http.MethodGet, "/open", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	rid := w.Header().Get(RequestIDHeader)
	if len(rid) < 10 || w.Body.String() != rid {
		t.Fatalf("expected generated request id, got header %q body %q", rid, w.Body.String())
	}

	req, _ = http.NewRequest(http.MethodGet, "/open", nil)
	req.Header.Set(RequestIDHeader, "req_given")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Header().Get(RequestIDHeader) != "req_given" {
		t.Fatalf("incoming request id must be kept, got %q", w.Header().Get(RequestIDHeader))
	}
}

func TestAdminKey(t *testing.T) {
	r := newEngine("secret")

	req, _ := http.NewRequest(http.MethodPost, "/admin/process", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without key, got %d", w.Code)
	}

	req, _ = http.NewRequest(http.MethodPost, "/admin/process", nil)
	req.Header.Set("X-Admin-Key", "secret")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204 with key, got %d", w.Code)
	}

	open := newEngine("")
	req, _ = http.NewRequest(http.MethodPost, "/admin/process", nil)
	w = httptest.NewRecorder()
	open.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("empty admin key disables the check, got %d", w.Code)
	}
}
