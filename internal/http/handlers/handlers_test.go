package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-followup-backend/internal/domain"
	"github.com/tbourn/go-followup-backend/internal/repo"
	"github.com/tbourn/go-followup-backend/internal/services"
)

// ---------- test DB + repo shim ----------

func newHandlerDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "handlers_test.db") + "?_pragma=foreign_keys(1)"
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
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// Minimal shim implementing services.CompanyRepo using repo package (like router.go)
type testCompanyRepo struct{}

func (testCompanyRepo) CreateCompany(ctx context.Context, db *gorm.DB, c *domain.Company) error {
	return repo.CreateCompany(ctx, db, c)
}

func (testCompanyRepo) GetCompany(ctx context.Context, db *gorm.DB, id string) (*domain.Company, error) {
	return repo.GetCompany(ctx, db, id)
}

func (testCompanyRepo) UpdateCompany(ctx context.Context, db *gorm.DB, id string, fields map[string]any) error {
	return repo.UpdateCompany(ctx, db, id, fields)
}

func (testCompanyRepo) DeleteCompany(ctx context.Context, db *gorm.DB, id string) error {
	return repo.DeleteCompany(ctx, db, id)
}

func (testCompanyRepo) CountCompanies(ctx context.Context, db *gorm.DB) (int64, error) {
	return repo.CountCompanies(ctx, db)
}

func (testCompanyRepo) ListCompaniesPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.Company, error) {
	return repo.ListCompaniesPage(ctx, db, offset, limit)
}

func (testCompanyRepo) SearchCompanies(ctx context.Context, db *gorm.DB, query string, limit int) ([]domain.Company, error) {
	return repo.SearchCompanies(ctx, db, query, limit)
}

// realDeps wires every service against db the same way the router does.
func realDeps(db *gorm.DB, now time.Time) Deps {
	sched := &services.ScheduleService{DB: db, Now: func() time.Time { return now }}
	return Deps{
		Companies:      services.NewCompanyService(db, testCompanyRepo{}),
		Methods:        &services.MethodService{DB: db},
		Communications: &services.CommunicationService{DB: db},
		Schedule:       sched,
		Notifications:  &services.NotificationService{DB: db, Schedule: sched},
		Users:          &services.UserService{DB: db},
		CompanyStats: func(ctx context.Context) (int64, *time.Time, error) {
			return repo.CompaniesStats(ctx, db)
		},
		MethodStats: func(ctx context.Context) (int64, *time.Time, error) {
			return repo.MethodsStats(ctx, db)
		},
	}
}

// ---------- request helpers ----------

// asUser stands in for the auth middleware.
func asUser(uid string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if uid != "" {
			c.Set("userID", uid)
		}
		c.Next()
	}
}

func doJSON(r http.Handler, method, path, body string, hdr ...string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != "" {
		rd = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// decodeData unmarshals the success envelope's data into out.
func decodeData(t *testing.T, w *httptest.ResponseRecorder, out any) {
	t.Helper()
	var env struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("json: %v body=%s", err, w.Body.String())
	}
	if !env.Success {
		t.Fatalf("expected success envelope, got %s", w.Body.String())
	}
	if out != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			t.Fatalf("data json: %v", err)
		}
	}
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var er ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &er); err != nil {
		t.Fatalf("json: %v body=%s", err, w.Body.String())
	}
	if er.Success {
		t.Fatalf("error envelope must have success=false")
	}
	return er
}

// ---------- helpers-only tests ----------

func Test_userID_and_clampPagination(t *testing.T) {
	gin.SetMode(gin.TestMode)

	rc := gin.CreateTestContextOnly(httptest.NewRecorder(), gin.New())
	if got := userID(rc); got != "" {
		t.Fatalf("anonymous userID = %q", got)
	}
	rc.Set("userID", "u1")
	if got := userID(rc); got != "u1" {
		t.Fatalf("ctx userID = %q", got)
	}

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", "/?page=-5&page_size=9999", nil)
	p, ps := clampPagination(c)
	if p != 1 || ps != 100 {
		t.Fatalf("clamp bounds got p=%d ps=%d", p, ps)
	}
	c, _ = gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", "/?page=&page_size=0", nil)
	p, ps = clampPagination(c)
	if p != 1 || ps != 1 {
		t.Fatalf("clamp defaults got p=%d ps=%d", p, ps)
	}
}

func Test_newPagination(t *testing.T) {
	p := newPagination(1, 2, 3)
	if p.TotalPages != 2 || !p.HasNext {
		t.Fatalf("page 1: %+v", p)
	}
	p = newPagination(2, 2, 3)
	if p.HasNext {
		t.Fatalf("page 2 should be last: %+v", p)
	}
	p = newPagination(1, 20, 0)
	if p.TotalPages != 0 || p.HasNext {
		t.Fatalf("empty: %+v", p)
	}
}

func Test_checkETag(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ts := time.Unix(1700000000, 5)
	stats := func(context.Context) (int64, *time.Time, error) { return 3, &ts, nil }
	want := `W/"things:3:1700000000000000005"`

	r := gin.New()
	r.GET("/things", func(c *gin.Context) {
		if checkETag(c, stats, "things") {
			return
		}
		ok(c, http.StatusOK, []string{})
	})

	w := doJSON(r, http.MethodGet, "/things", "")
	if w.Code != http.StatusOK || w.Header().Get("ETag") != want {
		t.Fatalf("first: code=%d etag=%q", w.Code, w.Header().Get("ETag"))
	}
	w = doJSON(r, http.MethodGet, "/things", "", "If-None-Match", want)
	if w.Code != http.StatusNotModified {
		t.Fatalf("match: code=%d", w.Code)
	}

	// stats failure skips the ETag
	broken := func(context.Context) (int64, *time.Time, error) { return 0, nil, errors.New("db down") }
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", "/", nil)
	if checkETag(c, broken, "things") || c.Writer.Header().Get("ETag") != "" {
		t.Fatalf("stats error should skip etag")
	}
	if checkETag(c, nil, "things") {
		t.Fatalf("nil stats should skip etag")
	}
}

func Test_failService_Mapping(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		err  error
		code int
		want string
	}{
		{services.ErrCompanyNotFound, http.StatusNotFound, ErrCodeNotFound},
		{services.ErrMethodNotFound, http.StatusNotFound, ErrCodeNotFound},
		{services.ErrInvalidPeriodicity, http.StatusBadRequest, ErrCodeValidation},
		{services.ErrInvalidDirection, http.StatusBadRequest, ErrCodeValidation},
		{services.ErrSequenceTaken, http.StatusConflict, ErrCodeConflict},
		{services.ErrCannotMove, http.StatusConflict, ErrCodeConflict},
		{services.ErrMissingPerformer, http.StatusUnauthorized, ErrCodeUnauthorized},
		{errors.New("boom"), http.StatusInternalServerError, ErrCodeListFailed},
	}
	for _, tc := range cases {
		r := gin.New()
		r.GET("/", func(c *gin.Context) { failService(c, tc.err, ErrCodeListFailed) })
		w := doJSON(r, http.MethodGet, "/", "")
		if w.Code != tc.code {
			t.Fatalf("%v: status=%d want %d", tc.err, w.Code, tc.code)
		}
		if er := decodeError(t, w); er.Code != tc.want {
			t.Fatalf("%v: code=%q want %q", tc.err, er.Code, tc.want)
		}
	}
}
