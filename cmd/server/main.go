// Command server runs the follow-up API.
//
//	@title						Follow-up API
//	@version					1.0
//	@description				Tracks companies, the communications made with them and when each one is next due.
//	@BasePath					/api
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Type "Bearer" followed by a space and the JWT.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/tbourn/go-followup-backend/internal/config"
	httpapi "github.com/tbourn/go-followup-backend/internal/http"
	"github.com/tbourn/go-followup-backend/internal/jobs"
	"github.com/tbourn/go-followup-backend/internal/observability"
	"github.com/tbourn/go-followup-backend/internal/repo"
	"github.com/tbourn/go-followup-backend/internal/sysutil"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ver := sysutil.FirstNonEmpty(os.Getenv("APP_VERSION"), version)
	logger := sysutil.NewLogger(sysutil.LoggerOptions{
		Level:   cfg.Log.Level,
		Pretty:  cfg.Log.Pretty,
		Service: cfg.OTEL.ServiceName,
		Version: ver,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.Setup(ctx, cfg.OTEL, ver)
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			logger.Warn().Err(err).Msg("tracing shutdown")
		}
	}()

	db, err := repo.Open(repo.Options{
		Driver:          cfg.DB.Driver,
		Path:            cfg.DB.Path,
		DSN:             cfg.DB.URL,
		MaxOpenConns:    cfg.DB.MaxOpenConns,
		ConnMaxLifetime: cfg.DB.ConnMaxLifetime,
		Tracing:         cfg.OTEL.Enabled,
	})
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}
	if err := repo.AutoMigrate(db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	svc := httpapi.NewServices(db, cfg)

	sweeper, err := jobs.New(svc.Notifications, func(ctx context.Context, now time.Time) (int64, error) {
		return repo.PurgeExpiredIdempotency(ctx, db, now)
	}, jobs.Options{
		Spec:    cfg.FollowUp.SweepSpec,
		Timeout: cfg.FollowUp.SweepTimeout,
		Logger:  logger,
	})
	if err != nil {
		return fmt.Errorf("sweep job: %w", err)
	}
	sweeper.Start()

	gin.SetMode(cfg.Server.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, db, svc, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
		MaxHeaderBytes:    cfg.Server.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		logEvent(logger.Info(), cfg).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	}

	sctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		logger.Error().Err(err).Msg("http server shutdown")
	}
	if err := sweeper.Stop(sctx); err != nil {
		logger.Warn().Err(err).Msg("sweep job did not stop in time")
	}
	logger.Info().Msg("server stopped")
	return nil
}

func logEvent(e *zerolog.Event, cfg config.Config) *zerolog.Event {
	return e.
		Str("port", cfg.Server.Port).
		Str("db_driver", cfg.DB.Driver).
		Str("base_path", cfg.Server.BasePath).
		Bool("swagger", cfg.Server.Swagger).
		Bool("tracing", cfg.OTEL.Enabled).
		Str("sweep", cfg.FollowUp.SweepSpec)
}
