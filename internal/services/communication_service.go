// Package services – CommunicationService
//
// This file implements CommunicationService, which records completed outreach
// against a company and lists a company's communication history.
//
// Recording supports safe retries: when the caller supplies an idempotency
// key, the first successful result for (user, company, key) is stored and
// later requests with the same key return that entry instead of writing a
// new one.
//
// Observability: public methods are OpenTelemetry-instrumented; spans carry
// the company and user identifiers.
package services

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-followup-backend/internal/domain"
	"github.com/tbourn/go-followup-backend/internal/repo"
	"github.com/tbourn/go-followup-backend/internal/utils"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// DefaultIdempotencyTTL is how long a recorded idempotency key is honoured.
const DefaultIdempotencyTTL = 24 * time.Hour

// RecordInput describes a completed communication.
type RecordInput struct {
	UserID         string
	CompanyID      string
	MethodID       string
	Notes          *string
	IdempotencyKey string
}

// CommunicationService records and lists communication log entries.
type CommunicationService struct {
	DB *gorm.DB

	// IdempotencyTTL bounds how long replay records are kept; zero means
	// DefaultIdempotencyTTL.
	IdempotencyTTL time.Duration
}

// Record validates in and appends a log entry. The boolean result reports
// whether the entry is a replay of an earlier request with the same key.
func (s *CommunicationService) Record(ctx context.Context, in RecordInput) (*domain.CommunicationLog, bool, error) {
	tr := otel.Tracer("services/CommunicationService")
	ctx, span := tr.Start(ctx, "Record",
		trace.WithAttributes(
			attribute.String("company.id", in.CompanyID),
			attribute.String("user.id", in.UserID),
		),
	)
	defer span.End()

	if strings.TrimSpace(in.UserID) == "" {
		return nil, false, ErrMissingPerformer
	}
	key := strings.TrimSpace(in.IdempotencyKey)

	if key != "" {
		if prev, err := s.replay(ctx, in.UserID, in.CompanyID, key); err == nil {
			span.SetAttributes(attribute.Bool("idempotency.replayed", true))
			return prev, true, nil
		}
	}

	if _, err := repo.GetCompany(ctx, s.DB, in.CompanyID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, ErrCompanyNotFound
		}
		return nil, false, err
	}
	if _, err := repo.GetMethod(ctx, s.DB, in.MethodID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, ErrMethodNotFound
		}
		return nil, false, err
	}

	var notes *string
	if in.Notes != nil {
		v := strings.TrimSpace(*in.Notes)
		notes = &v
	}

	var out *domain.CommunicationLog
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		l, err := repo.CreateLog(tx, in.CompanyID, in.MethodID, in.UserID, notes)
		if err != nil {
			return err
		}
		out = l
		if key == "" {
			return nil
		}
		_, err = repo.CreateIdempotency(ctx, tx, in.UserID, in.CompanyID, key, l.ID, http.StatusCreated, s.ttl())
		return err
	})
	if errors.Is(err, repo.ErrDuplicate) {
		// a concurrent request with the same key won; hand back its entry
		if prev, rerr := s.replay(ctx, in.UserID, in.CompanyID, key); rerr == nil {
			return prev, true, nil
		}
	}
	if err != nil {
		return nil, false, err
	}
	return out, false, nil
}

// ListPage returns a company's log entries, newest first, and the total count.
func (s *CommunicationService) ListPage(ctx context.Context, companyID string, page, pageSize int) ([]domain.CommunicationLog, int64, error) {
	tr := otel.Tracer("services/CommunicationService")
	ctx, span := tr.Start(ctx, "ListPage",
		trace.WithAttributes(
			attribute.String("company.id", companyID),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = utils.DefaultPageSize
	}
	if _, err := repo.GetCompany(ctx, s.DB, companyID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, 0, ErrCompanyNotFound
		}
		return nil, 0, err
	}

	db := s.DB.WithContext(ctx)
	total, err := repo.CountLogs(db, companyID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.CommunicationLog{}, 0, nil
	}
	items, err := repo.ListLogsPage(db, companyID, utils.Offset(page, pageSize), pageSize)
	return items, total, err
}

func (s *CommunicationService) replay(ctx context.Context, userID, companyID, key string) (*domain.CommunicationLog, error) {
	rec, err := repo.GetIdempotency(ctx, s.DB, userID, companyID, key, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	return repo.GetLog(s.DB.WithContext(ctx), rec.ResourceID)
}

func (s *CommunicationService) ttl() time.Duration {
	if s.IdempotencyTTL > 0 {
		return s.IdempotencyTTL
	}
	return DefaultIdempotencyTTL
}
