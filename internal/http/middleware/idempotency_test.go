package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type lookupCall struct {
	user, scope, key string
	now              time.Time
}

// recordingLookup answers from hits and records every call.
type recordingLookup struct {
	hits  map[string]bool // key -> stored
	err   error
	calls []lookupCall
}

func (l *recordingLookup) fn(_ context.Context, user, scope, key string, now time.Time) (bool, error) {
	l.calls = append(l.calls, lookupCall{user, scope, key, now})
	return l.hits[key], l.err
}

type idemSeen struct {
	key    string
	hasKey bool
	replay bool
	bypass bool
}

func idemRouter(opts IdempotencyOptions, lookup IdempotencyLookup, uid string, seen *idemSeen) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if uid != "" {
			c.Set(ctxKeyUserID, uid)
		}
		c.Next()
	})
	r.Use(IdempotencyValidator(opts, lookup))
	h := func(c *gin.Context) {
		seen.key, seen.hasKey = GetIdempotencyKey(c)
		seen.replay = IsReplay(c)
		seen.bypass = IsRateBypass(c)
		c.Status(http.StatusCreated)
	}
	r.POST("/companies/:id/communications", h)
	r.GET("/companies/:id/communications", h)
	r.PUT("/companies/:id", h)
	return r
}

func sendIdem(r http.Handler, method, path, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if key != "" {
		req.Header.Set(HeaderIdempotencyKey, key)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestIdempotencyValidator_KeyValidation(t *testing.T) {
	cases := []struct {
		name    string
		opts    IdempotencyOptions
		key     string
		wantOK  bool
		wantKey string
	}{
		{"uuid", IdempotencyOptions{}, "3f0c6a1e-7f55-4b8e-9d1a-2b7f7c0e9a11", true, "3f0c6a1e-7f55-4b8e-9d1a-2b7f7c0e9a11"},
		{"trimmed", IdempotencyOptions{}, "  retry:42  ", true, "retry:42"},
		{"space inside", IdempotencyOptions{}, "bad key", false, ""},
		{"slash", IdempotencyOptions{}, "a/b", false, ""},
		{"too long", IdempotencyOptions{MaxLen: 5}, "abcdef", false, ""},
		{"at limit", IdempotencyOptions{MaxLen: 5}, "abcde", true, "abcde"},
		{"custom pattern", IdempotencyOptions{Pattern: regexp.MustCompile(`^[0-9]+$`)}, "12a", false, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var seen idemSeen
			r := idemRouter(tc.opts, nil, "", &seen)
			w := sendIdem(r, http.MethodPost, "/companies/c1/communications", tc.key)

			if !tc.wantOK {
				if w.Code != http.StatusBadRequest {
					t.Fatalf("status = %d; want 400", w.Code)
				}
				var body struct {
					Error struct{ Code string } `json:"error"`
				}
				_ = json.Unmarshal(w.Body.Bytes(), &body)
				if body.Error.Code != "bad_idempotency_key" {
					t.Fatalf("body = %s", w.Body.String())
				}
				return
			}
			if w.Code != http.StatusCreated || !seen.hasKey || seen.key != tc.wantKey {
				t.Fatalf("status=%d seen=%+v", w.Code, seen)
			}
		})
	}
}

func TestIdempotencyValidator_OnlyConfiguredMethods(t *testing.T) {
	var seen idemSeen
	r := idemRouter(IdempotencyOptions{}, nil, "u1", &seen)

	// reads ignore even a malformed key
	if w := sendIdem(r, http.MethodGet, "/companies/c1/communications", "bad key"); w.Code != http.StatusCreated || seen.hasKey {
		t.Fatalf("GET -> %d %+v", w.Code, seen)
	}
	if w := sendIdem(r, http.MethodPut, "/companies/c1", "k-1"); w.Code != http.StatusCreated || seen.hasKey {
		t.Fatalf("PUT with default methods -> %d %+v", w.Code, seen)
	}

	r = idemRouter(IdempotencyOptions{Methods: []string{"post", "put"}}, nil, "u1", &seen)
	if w := sendIdem(r, http.MethodPut, "/companies/c1", "k-1"); w.Code != http.StatusCreated || seen.key != "k-1" {
		t.Fatalf("PUT when enabled -> %d %+v", w.Code, seen)
	}
}

func TestIdempotencyValidator_LookupHitAndMiss(t *testing.T) {
	fixed := time.Date(2025, 6, 20, 9, 30, 0, 0, time.FixedZone("CEST", 2*3600))
	lk := &recordingLookup{hits: map[string]bool{"seen-before": true}}
	var seen idemSeen
	r := idemRouter(IdempotencyOptions{Now: func() time.Time { return fixed }}, lk.fn, "u1", &seen)

	sendIdem(r, http.MethodPost, "/companies/c1/communications", "fresh")
	if seen.replay || seen.bypass {
		t.Fatalf("miss marked as replay: %+v", seen)
	}

	sendIdem(r, http.MethodPost, "/companies/c9/communications", "seen-before")
	if !seen.replay || !seen.bypass {
		t.Fatalf("hit not marked: %+v", seen)
	}

	if len(lk.calls) != 2 {
		t.Fatalf("calls = %+v", lk.calls)
	}
	got := lk.calls[1]
	if got.user != "u1" || got.scope != "c9" || got.key != "seen-before" {
		t.Fatalf("lookup args = %+v", got)
	}
	if got.now.Location() != time.UTC || !got.now.Equal(fixed) {
		t.Fatalf("lookup time = %v; want %v in UTC", got.now, fixed)
	}
}

func TestIdempotencyValidator_AnonymousSkipsLookup(t *testing.T) {
	lk := &recordingLookup{hits: map[string]bool{"k": true}}
	var seen idemSeen
	r := idemRouter(IdempotencyOptions{}, lk.fn, "", &seen)

	sendIdem(r, http.MethodPost, "/companies/c1/communications", "k")
	if len(lk.calls) != 0 || seen.replay || seen.key != "k" {
		t.Fatalf("calls=%d seen=%+v", len(lk.calls), seen)
	}
}

func TestIdempotencyValidator_LookupErrorProceedsAsNew(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Logger
	t.Cleanup(func() { log.Logger = prev })
	log.Logger = zerolog.New(&buf)

	lk := &recordingLookup{hits: map[string]bool{"k": true}, err: errBoom}
	var seen idemSeen
	r := idemRouter(IdempotencyOptions{}, lk.fn, "u1", &seen)

	w := sendIdem(r, http.MethodPost, "/companies/c1/communications", "k")
	if w.Code != http.StatusCreated || seen.replay || seen.bypass {
		t.Fatalf("status=%d seen=%+v", w.Code, seen)
	}
	if !strings.Contains(buf.String(), "idempotency lookup failed") || !strings.Contains(buf.String(), "boom") {
		t.Fatalf("warning not logged: %s", buf.String())
	}
}

func TestIdempotencyHelpers_Defaults(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	if k, ok := GetIdempotencyKey(c); ok || k != "" {
		t.Fatalf("key = %q %v", k, ok)
	}
	if IsReplay(c) || IsRateBypass(c) {
		t.Fatal("flags set on a fresh context")
	}
	c.Set(ctxKeyIdemKey, 123)
	if _, ok := GetIdempotencyKey(c); ok {
		t.Fatal("non-string key accepted")
	}
}
