package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestMetrics_PassesRequestThrough(t *testing.T) {
	r := gin.New()
	r.Use(Metrics())
	r.GET("/contacts", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/contacts", nil))
	if w.Code != http.StatusOK || w.Body.String() != "ok" {
		t.Fatalf("middleware must not alter the response: %d %s", w.Code, w.Body.String())
	}
}

func TestMetrics_UnmatchedRouteUsesRawPath(t *testing.T) {
	r := gin.New()
	r.Use(Metrics())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("want 404, got %d", w.Code)
	}
}

func TestObserveImport(t *testing.T) {
	// Counter updates must not panic for any outcome combination.
	ObserveImport(3, 2, false)
	ObserveImport(0, 0, false)
	ObserveImport(0, 0, true)
}
