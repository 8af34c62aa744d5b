package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-followup-backend/internal/auth"
	"github.com/tbourn/go-followup-backend/internal/config"
	"github.com/tbourn/go-followup-backend/internal/http/middleware"
	"github.com/tbourn/go-followup-backend/internal/repo"
)

const testSecret = "router-test-secret"

// --- test DB helper (pure-Go sqlite, no CGO) ---
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "router.db") + "?_pragma=foreign_keys(1)"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func testConfig() config.Config {
	return config.Config{
		Server:         config.ServerConfig{BasePath: "/api"},
		Auth:           config.AuthConfig{JWTSecret: testSecret},
		FollowUp:       config.FollowUpConfig{RecentCommunications: 5},
		RateLimit:      config.RateLimitConfig{RPS: 100, Burst: 50},
		IdempotencyTTL: time.Hour,
		OTEL:           config.OTELConfig{ServiceName: "test-svc"},
	}
}

func newRouter(t *testing.T, cfg config.Config) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	db := newTestDB(t)
	RegisterRoutes(r, db, NewServices(db, cfg), cfg)
	return r, db
}

func token(t *testing.T, userID, role string) string {
	t.Helper()
	tok, err := auth.Issue(testSecret, "ext_"+userID, userID, role, userID+"@example.com", time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return "Bearer " + tok
}

func call(r http.Handler, method, path, body, authz string, hdr ...string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != "" {
		rd = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func dataID(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var env struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil || env.Data.ID == "" {
		t.Fatalf("no id in %s (%v)", w.Body.String(), err)
	}
	return env.Data.ID
}

func TestRegisterRoutes_CORSAllowAll_Health_Metrics_Fallbacks(t *testing.T) {
	r, _ := newRouter(t, testConfig())

	// /health works
	w := call(r, http.MethodGet, "/health", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	var env map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil || env["success"] != true {
		t.Fatalf("health envelope: %s", w.Body.String())
	}
	// CORS (AllowAllOrigins) → header "*"
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("AllowAllOrigins expected '*', got %q", got)
	}

	// /metrics is wired
	w = call(r, http.MethodGet, "/metrics", "", "")
	if w.Code != http.StatusOK || w.Body.Len() == 0 {
		t.Fatalf("GET /metrics bad: code=%d len=%d", w.Code, w.Body.Len())
	}

	// NoRoute → 404
	if w = call(r, http.MethodGet, "/nope", "", ""); w.Code != http.StatusNotFound {
		t.Fatalf("GET /nope expected 404, got %d", w.Code)
	}

	// NoMethod → 405 (POST /health)
	if w = call(r, http.MethodPost, "/health", "", ""); w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST /health expected 405, got %d", w.Code)
	}
}

func TestRegisterRoutes_Readiness(t *testing.T) {
	r, db := newRouter(t, testConfig())

	if w := call(r, http.MethodGet, "/ready", "", ""); w.Code != http.StatusOK {
		t.Fatalf("GET /ready = %d %s", w.Code, w.Body.String())
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db.DB: %v", err)
	}
	_ = sqlDB.Close()

	w := call(r, http.MethodGet, "/ready", "", "")
	if w.Code != http.StatusServiceUnavailable || !strings.Contains(w.Body.String(), "service_unavailable") {
		t.Fatalf("GET /ready after close = %d %s", w.Code, w.Body.String())
	}
}

func TestRegisterRoutes_CORSWithOrigins_HeaderEcho(t *testing.T) {
	cfg := testConfig()
	cfg.CORS = config.CORSConfig{AllowedOrigins: []string{"http://example.com"}}
	r, _ := newRouter(t, cfg)

	w := call(r, http.MethodGet, "/health", "", "", "Origin", "http://example.com")
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://example.com" {
		t.Fatalf("expected ACAO echo, got %q", got)
	}
}

func TestRegisterRoutes_AuthAndRoles(t *testing.T) {
	r, _ := newRouter(t, testConfig())

	w := call(r, http.MethodGet, "/api/companies", "", "")
	if w.Code != http.StatusUnauthorized || w.Header().Get("WWW-Authenticate") == "" {
		t.Fatalf("anonymous -> %d", w.Code)
	}
	if w = call(r, http.MethodGet, "/api/companies", "", "Bearer garbage"); w.Code != http.StatusUnauthorized {
		t.Fatalf("bad token -> %d", w.Code)
	}
	if w = call(r, http.MethodGet, "/api/companies", "", token(t, "u1", auth.RoleUser)); w.Code != http.StatusOK {
		t.Fatalf("user list -> %d", w.Code)
	}

	body := `{"name":"Acme","emails":["a@acme.io"]}`
	if w = call(r, http.MethodPost, "/api/companies", body, token(t, "u1", auth.RoleUser)); w.Code != http.StatusForbidden {
		t.Fatalf("user create -> %d", w.Code)
	}
	if w = call(r, http.MethodPost, "/api/companies", body, token(t, "a1", auth.RoleAdmin)); w.Code != http.StatusCreated {
		t.Fatalf("admin create -> %d body=%s", w.Code, w.Body.String())
	}
	if w = call(r, http.MethodGet, "/api/users/user", "", token(t, "u1", auth.RoleUser)); w.Code != http.StatusForbidden {
		t.Fatalf("user lists users -> %d", w.Code)
	}

	// webhook route is outside bearer auth; without a secret it is not configured
	if w = call(r, http.MethodPost, "/webhooks/identity", `{}`, ""); w.Code != http.StatusInternalServerError {
		t.Fatalf("webhook without secret -> %d", w.Code)
	}
}

func TestRegisterRoutes_EndToEndFollowUp(t *testing.T) {
	r, db := newRouter(t, testConfig())
	admin := token(t, "a1", auth.RoleAdmin)
	user := token(t, "u1", auth.RoleUser)

	w := call(r, http.MethodPost, "/api/companies", `{"name":"Acme","emails":["a@acme.io"],"communication_periodicity":"weekly"}`, admin)
	companyID := dataID(t, w)
	w = call(r, http.MethodPost, "/api/communication-methods", `{"name":"LinkedIn Post"}`, admin)
	first := dataID(t, w)
	w = call(r, http.MethodPost, "/api/communication-methods", `{"name":"Email"}`, admin)
	if w.Code != http.StatusCreated {
		t.Fatalf("second method -> %d", w.Code)
	}

	// no communication yet: next is the first method
	w = call(r, http.MethodGet, "/api/companies/"+companyID+"/schedule", "", user)
	if w.Code != http.StatusOK {
		t.Fatalf("schedule -> %d body=%s", w.Code, w.Body.String())
	}

	path := "/api/companies/" + companyID + "/communications"
	body := `{"method_id":"` + first + `"}`
	w = call(r, http.MethodPost, path, body, user, middleware.HeaderIdempotencyKey, "retry-1")
	if w.Code != http.StatusCreated {
		t.Fatalf("record -> %d body=%s", w.Code, w.Body.String())
	}
	logID := dataID(t, w)

	// the idempotency lookup callback now finds the record
	if rec, err := repo.GetIdempotency(context.Background(), db, "u1", companyID, "retry-1", time.Now().UTC()); err != nil || rec.ResourceID != logID {
		t.Fatalf("idempotency record: %+v %v", rec, err)
	}
	w = call(r, http.MethodPost, path, body, user, middleware.HeaderIdempotencyKey, "retry-1")
	if w.Code != http.StatusOK || w.Header().Get("Idempotency-Replayed") != "true" || dataID(t, w) != logID {
		t.Fatalf("replay -> %d %s", w.Code, w.Body.String())
	}

	// another user with the same key records a new entry
	w = call(r, http.MethodPost, path, body, token(t, "u2", auth.RoleUser), middleware.HeaderIdempotencyKey, "retry-1")
	if w.Code != http.StatusCreated || dataID(t, w) == logID {
		t.Fatalf("other user -> %d", w.Code)
	}

	var sched struct {
		Data struct {
			Next struct {
				Method struct {
					Name string `json:"name"`
				} `json:"method"`
			} `json:"nextScheduledCommunication"`
			Last []json.RawMessage `json:"lastFiveCommunications"`
		} `json:"data"`
	}
	w = call(r, http.MethodGet, "/api/companies/"+companyID+"/schedule", "", user)
	if err := json.Unmarshal(w.Body.Bytes(), &sched); err != nil {
		t.Fatalf("json: %v", err)
	}
	if sched.Data.Next.Method.Name != "Email" || len(sched.Data.Last) != 2 {
		t.Fatalf("unexpected schedule: %s", w.Body.String())
	}
}

func Test_limitBody_Middleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	// tiny cap to trigger MaxBytesReader
	r.Use(limitBody(10))
	r.POST("/echo", func(c *gin.Context) {
		_, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.String(http.StatusRequestEntityTooLarge, "too big")
			return
		}
		c.String(http.StatusOK, "ok")
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/echo", bytes.NewBufferString("0123456789AB")) // 12 bytes
	r.ServeHTTP(w, req)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413 from limitBody, got %d", w.Code)
	}
}

func Test_groupWithPrefix(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	// "/" and "" should mount at root
	root1 := groupWithPrefix(r, "/")
	root1.GET("/one", func(c *gin.Context) { c.String(http.StatusOK, "one") })
	root2 := groupWithPrefix(r, "")
	root2.GET("/two", func(c *gin.Context) { c.String(http.StatusOK, "two") })

	// non-root prefix
	api := groupWithPrefix(r, "/api")
	api.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	for path, want := range map[string]string{"/one": "one", "/two": "two", "/api/ping": "pong"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK || rec.Body.String() != want {
			t.Fatalf("GET %s got %d %q", path, rec.Code, rec.Body.String())
		}
	}
}

// Smoke test that a request traverses idempotency + ratelimit + otel + security headers pipeline.
func TestPipeline_Smoke(t *testing.T) {
	cfg := testConfig()
	cfg.Security = config.SecurityConfig{EnableHSTS: true, HSTSMaxAge: time.Hour}
	r, _ := newRouter(t, cfg)

	w := call(r, http.MethodGet, "/health", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("pipeline GET /health = %d", w.Code)
	}
	// RequestID header should be present (from RequestID middleware)
	if rid := w.Header().Get("X-Request-ID"); rid == "" {
		t.Fatalf("expected X-Request-ID header to be set")
	}
	if w.Header().Get("X-Frame-Options") != "DENY" || w.Header().Get("Cache-Control") != "private, no-cache" {
		t.Fatalf("security headers missing: %v", w.Header())
	}
	if w.Header().Get("Strict-Transport-Security") != "" {
		t.Fatalf("HSTS must not be sent over plain HTTP")
	}
	w = call(r, http.MethodGet, "/health", "", "", "X-Forwarded-Proto", "https")
	if got := w.Header().Get("Strict-Transport-Security"); got != "max-age=3600; includeSubDomains" {
		t.Fatalf("HSTS = %q", got)
	}
}

func TestRegisterRoutes_RateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit.RPS, cfg.RateLimit.Burst = 0, 1
	r, _ := newRouter(t, cfg)
	tok := token(t, "u1", auth.RoleUser)

	w := call(r, http.MethodGet, "/api/communication-methods", "", tok)
	if w.Code != http.StatusOK || w.Header().Get("X-RateLimit-Limit") != "1" {
		t.Fatalf("first -> %d limit=%q", w.Code, w.Header().Get("X-RateLimit-Limit"))
	}
	w = call(r, http.MethodGet, "/api/communication-methods", "", tok)
	if w.Code != http.StatusTooManyRequests || w.Header().Get("Retry-After") == "" {
		t.Fatalf("second -> %d retry=%q", w.Code, w.Header().Get("Retry-After"))
	}

	// another user has its own bucket; probes are never charged
	if w = call(r, http.MethodGet, "/api/communication-methods", "", token(t, "u2", auth.RoleUser)); w.Code != http.StatusOK {
		t.Fatalf("other user -> %d", w.Code)
	}
	for i := 0; i < 3; i++ {
		if w = call(r, http.MethodGet, "/health", "", ""); w.Code != http.StatusOK {
			t.Fatalf("health %d -> %d", i, w.Code)
		}
	}
}

func TestRegisterRoutes_IdempotencyLookup_ClosedDB(t *testing.T) {
	cfg := testConfig()
	r, db := newRouter(t, cfg)

	// force queries to fail by closing the underlying connection
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db.DB(): %v", err)
	}
	_ = sqlDB.Close()

	// lookup errors must not block the request; the handler then fails on its own
	w := call(r, http.MethodGet, "/api/companies/x/communications", "", token(t, "u1", auth.RoleUser),
		middleware.HeaderIdempotencyKey, "force-error")
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 from the handler, got %d", w.Code)
	}
}
