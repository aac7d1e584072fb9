package httpapi

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-contacts-backend/internal/config"
	"github.com/tbourn/go-contacts-backend/internal/domain"
	"github.com/tbourn/go-contacts-backend/internal/http/handlers"
)

// --- test DB helper (pure-Go sqlite, no CGO) ---
func newRouterDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:routerdb_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&domain.Contact{}, &domain.Idempotency{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func routerConfig() config.Config {
	return config.Config{
		APIBasePath:    "/api/v1",
		RateRPS:        1000,
		RateBurst:      1000,
		IdempotencyTTL: time.Hour,
		Import:         config.ImportConfig{Timeout: 5 * time.Second},
	}
}

func serve(r *gin.Engine, method, path string, body []byte, hdr map[string]string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRegisterRoutes_HealthMetricsAndFallbacks(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterRoutes(r, newRouterDB(t), routerConfig())

	if w := serve(r, http.MethodGet, "/health", nil, nil); w.Code != http.StatusOK {
		t.Fatalf("health: %d", w.Code)
	}
	if w := serve(r, http.MethodGet, "/metrics", nil, nil); w.Code != http.StatusOK {
		t.Fatalf("metrics: %d", w.Code)
	}
	if w := serve(r, http.MethodGet, "/nope", nil, nil); w.Code != http.StatusNotFound {
		t.Fatalf("unknown route: want 404, got %d", w.Code)
	}
	// Known route, wrong verb.
	if w := serve(r, http.MethodPatch, "/api/v1/contacts", nil, nil); w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("wrong verb: want 405, got %d", w.Code)
	}
}

func TestRegisterRoutes_RequestIDAndSecurityHeaders(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterRoutes(r, newRouterDB(t), routerConfig())

	w := serve(r, http.MethodGet, "/health", nil, nil)
	if w.Header().Get("X-Request-ID") == "" {
		t.Fatal("missing X-Request-ID")
	}
	if w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatal("missing security headers")
	}
}

func TestRegisterRoutes_CORSPreflight(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterRoutes(r, newRouterDB(t), routerConfig())

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/contacts", nil)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent && w.Code != http.StatusOK {
		t.Fatalf("preflight: %d", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Fatal("missing CORS allow-origin")
	}
}

func TestRegisterRoutes_CORSRestrictedOrigins(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	cfg := routerConfig()
	cfg.CORS.AllowedOrigins = []string{"https://allowed.example"}
	RegisterRoutes(r, newRouterDB(t), cfg)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("unlisted origin must not be allowed, got %q", got)
	}
}

func TestRegisterRoutes_ContactJourney(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	coord := RegisterRoutes(r, newRouterDB(t), routerConfig())
	if err := coord.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	// Create.
	body, _ := json.Marshal(map[string]string{"name": "Router Anna", "phone": "0901"})
	w := serve(r, http.MethodPost, "/api/v1/contacts", body, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", w.Code, w.Body.String())
	}
	var created domain.Contact
	_ = json.Unmarshal(w.Body.Bytes(), &created)

	// List through the full middleware stack.
	w = serve(r, http.MethodGet, "/api/v1/contacts", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list: %d", w.Code)
	}
	var list handlers.ListContactsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if list.Total != 1 {
		t.Fatalf("want 1 contact, got %d", list.Total)
	}

	// Toggle favorite, then delete.
	w = serve(r, http.MethodPut, fmt.Sprintf("/api/v1/contacts/%d/favorite", created.ID), nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("toggle: %d %s", w.Code, w.Body.String())
	}
	w = serve(r, http.MethodDelete, fmt.Sprintf("/api/v1/contacts/%d", created.ID), nil, nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete: %d", w.Code)
	}
}

func TestRegisterRoutes_GzipResponses(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	coord := RegisterRoutes(r, newRouterDB(t), routerConfig())
	_ = coord.Refresh(context.Background())

	w := serve(r, http.MethodGet, "/api/v1/contacts", nil, map[string]string{"Accept-Encoding": "gzip"})
	if w.Code != http.StatusOK {
		t.Fatalf("list: %d", w.Code)
	}
	if w.Header().Get("Content-Encoding") != "gzip" {
		t.Fatalf("want gzip response, got %q", w.Header().Get("Content-Encoding"))
	}
	zr, err := gzip.NewReader(w.Body)
	if err != nil {
		t.Fatalf("gzip reader: %v", err)
	}
	defer zr.Close()
	if _, err := io.ReadAll(zr); err != nil {
		t.Fatalf("decompress: %v", err)
	}
}

func TestRegisterRoutes_RateLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	cfg := routerConfig()
	cfg.RateRPS = 0
	cfg.RateBurst = 1
	RegisterRoutes(r, newRouterDB(t), cfg)

	if w := serve(r, http.MethodGet, "/health", nil, nil); w.Code != http.StatusOK {
		t.Fatalf("first request: %d", w.Code)
	}
	if w := serve(r, http.MethodGet, "/health", nil, nil); w.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: want 429, got %d", w.Code)
	}
}

func TestGroupWithPrefix_RootVariants(t *testing.T) {
	gin.SetMode(gin.TestMode)
	for _, prefix := range []string{"", "/"} {
		r := gin.New()
		g := groupWithPrefix(r, prefix)
		g.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

		w := serve(r, http.MethodGet, "/ping", nil, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("prefix %q: %d", prefix, w.Code)
		}
	}
}
