// Package httpapi assembles the Gin engine: the middleware chain, the
// service graph and the follow-up API routes.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	_ "github.com/tbourn/go-followup-backend/docs"
	"github.com/tbourn/go-followup-backend/internal/config"
	"github.com/tbourn/go-followup-backend/internal/http/handlers"
	"github.com/tbourn/go-followup-backend/internal/http/middleware"
	"github.com/tbourn/go-followup-backend/internal/repo"
	"github.com/tbourn/go-followup-backend/internal/webhook"
)

const webhookPath = "/webhooks/identity"

// RegisterRoutes installs the middleware chain, the probe and docs endpoints,
// the identity webhook and the API under cfg.Server.BasePath.
//
// Order of the chain:
//  1. otelgin span
//  2. request id
//  3. access log (request-scoped logger)
//  4. panic recovery
//  5. 1 MiB body cap, gzip
//  6. Prometheus
//  7. Identify: parse the bearer token; groups decide whether it is required
//  8. Idempotency-Key check, which may flag a replay
//  9. rate limiter, skipped for replays
//  10. CORS, security headers
func RegisterRoutes(r *gin.Engine, db *gorm.DB, svc Services, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	r.Use(
		otelgin.Middleware(cfg.OTEL.ServiceName),
		middleware.RequestID(),
		middleware.AccessLog(middleware.AccessLogOptions{
			MaskHeaders: []string{"Svix-Signature", "Webhook-Signature"},
			SkipPaths:   []string{"/health", "/ready", "/metrics"},
		}),
		middleware.Recovery(),
		limitBody(1<<20),
		gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})),
		middleware.Metrics(middleware.MetricsOptions{SkipPaths: []string{"/metrics"}}),
	)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.Use(
		middleware.Identify(cfg.Auth.JWTSecret),
		middleware.IdempotencyValidator(middleware.IdempotencyOptions{}, idempotencyLookup(db)),
	)
	rl := middleware.NewRateLimiter(middleware.RateLimitOptions{
		RPS:    cfg.RateLimit.RPS,
		Burst:  cfg.RateLimit.Burst,
		Exempt: exemptFromRateLimit,
	})
	r.Use(rl.Handler())

	r.Use(corsHandlers(cfg.CORS)...)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		CacheControl: true,
		DocsPrefix:   "/swagger/",
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.GET("/health", func(c *gin.Context) {
		handlers.OK(c, http.StatusOK, gin.H{"status": "ok", "time": time.Now().UTC()}, "healthy")
	})
	r.GET("/ready", readiness(db))

	if cfg.Server.Swagger {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	var verifier handlers.WebhookVerifier
	if v, err := webhook.NewVerifier(cfg.Auth.WebhookSecret); err == nil {
		verifier = v
	}
	h := handlers.New(handlers.Deps{
		Companies:      svc.Companies,
		Methods:        svc.Methods,
		Communications: svc.Communications,
		Schedule:       svc.Schedule,
		Notifications:  svc.Notifications,
		Users:          svc.Users,
		Verifier:       verifier,
		CompanyStats: func(ctx context.Context) (int64, *time.Time, error) {
			return repo.CompaniesStats(ctx, db)
		},
		MethodStats: func(ctx context.Context) (int64, *time.Time, error) {
			return repo.MethodsStats(ctx, db)
		},
	})

	// Identity-provider webhooks authenticate by signature, not bearer token.
	r.POST(webhookPath, h.IdentityWebhook)

	// Public API
	api := groupWithPrefix(r, cfg.Server.BasePath)
	api.Use(middleware.RequireAuth())
	admin := api.Group("", middleware.RequireAdmin())
	{
		// Companies
		api.GET("/companies", h.ListCompanies)
		api.GET("/companies/search", h.SearchCompanies)
		api.GET("/companies/:id", h.GetCompany)
		admin.POST("/companies", h.CreateCompany)
		admin.PATCH("/companies/:id", h.UpdateCompany)
		admin.DELETE("/companies/:id", h.DeleteCompany)

		// Communication methods
		api.GET("/communication-methods", h.ListMethods)
		admin.POST("/communication-methods", h.CreateMethod)
		admin.PUT("/communication-methods/:id", h.UpdateMethod)
		admin.DELETE("/communication-methods/:id", h.DeleteMethod)
		admin.PUT("/communication-methods/:id/move", h.MoveMethod)

		// Communication log
		api.GET("/companies/:id/communications", h.ListCommunications)
		api.POST("/companies/:id/communications", h.PostCommunication)

		// Schedule
		api.GET("/companies/:id/schedule", h.GetCompanySchedule)
		api.GET("/schedule/companies", h.ListSchedules)
		api.GET("/schedule/notifications", h.GetFollowUps)

		// Notifications
		api.GET("/notifications", h.ListNotifications)
		api.PATCH("/notifications/:id/read", h.MarkNotificationRead)

		// Users
		admin.GET("/users/:role", h.ListUsersByRole)
	}
}

// exemptFromRateLimit skips probes, scrapes and identity-provider deliveries.
func exemptFromRateLimit(c *gin.Context) bool {
	switch c.Request.URL.Path {
	case "/health", "/ready", "/metrics", webhookPath:
		return true
	}
	return false
}

// readiness answers 503 while the database cannot be reached.
func readiness(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(ctx)
		}
		if err != nil {
			middleware.LoggerFrom(c).Warn().Err(err).Msg("readiness: database unreachable")
			handlers.Fail(c, http.StatusServiceUnavailable, handlers.ErrCodeUnavailable, "database unavailable")
			return
		}
		handlers.OK(c, http.StatusOK, gin.H{"status": "ready"}, "ready")
	}
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}

// idempotencyLookup reports whether a live replay record exists. A missing
// record is a miss, not an error.
func idempotencyLookup(db *gorm.DB) middleware.IdempotencyLookup {
	return func(ctx context.Context, userID, scope, key string, now time.Time) (bool, error) {
		_, err := repo.GetIdempotency(ctx, db, userID, scope, key, now)
		switch {
		case err == nil:
			return true, nil
		case errors.Is(err, repo.ErrNotFound):
			return false, nil
		default:
			return false, err
		}
	}
}
