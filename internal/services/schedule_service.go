// Package services – ScheduleService
//
// This file implements ScheduleService, which joins persisted data (companies,
// their most recent communications, and the method list) with the pure
// follow-up rules in package followup to produce a schedule per company.
package services

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-followup-backend/internal/domain"
	"github.com/tbourn/go-followup-backend/internal/followup"
	"github.com/tbourn/go-followup-backend/internal/repo"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// DefaultRecentCommunications is how many log entries a schedule carries.
const DefaultRecentCommunications = 5

// ScheduledCommunication is the suggested next outreach for a company.
type ScheduledCommunication struct {
	Method domain.CommunicationMethod `json:"method"`
	Date   time.Time                  `json:"date"`
}

// CompanySchedule is a company together with its derived follow-up state.
type CompanySchedule struct {
	Company                    domain.Company            `json:"company"`
	LastCommunications         []domain.CommunicationLog `json:"lastFiveCommunications"`
	IsOverdue                  bool                      `json:"isOverdue"`
	IsDueToday                 bool                      `json:"isDueToday"`
	NextScheduledCommunication ScheduledCommunication    `json:"nextScheduledCommunication"`
}

// FollowUps partitions companies that need attention.
type FollowUps struct {
	Overdue  []CompanySchedule `json:"overdue"`
	DueToday []CompanySchedule `json:"dueToday"`
}

// ScheduleService computes follow-up schedules.
type ScheduleService struct {
	DB *gorm.DB

	// Recent is the number of log entries loaded per company; zero means
	// DefaultRecentCommunications.
	Recent int

	// Now returns the evaluation instant; nil means time.Now.
	Now func() time.Time
}

// ForCompany returns the schedule of one company.
func (s *ScheduleService) ForCompany(ctx context.Context, companyID string) (*CompanySchedule, error) {
	tr := otel.Tracer("services/ScheduleService")
	ctx, span := tr.Start(ctx, "ForCompany",
		trace.WithAttributes(attribute.String("company.id", companyID)),
	)
	defer span.End()

	c, err := repo.GetCompany(ctx, s.DB, companyID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCompanyNotFound
		}
		return nil, err
	}
	methods, err := repo.ListMethods(ctx, s.DB)
	if err != nil {
		return nil, err
	}
	sc, err := s.evaluate(ctx, *c, methods, s.now())
	if err != nil {
		return nil, err
	}
	return &sc, nil
}

// ForAll returns the schedule of every company, newest company first.
func (s *ScheduleService) ForAll(ctx context.Context) ([]CompanySchedule, error) {
	tr := otel.Tracer("services/ScheduleService")
	ctx, span := tr.Start(ctx, "ForAll")
	defer span.End()

	companies, err := repo.ListCompanies(ctx, s.DB)
	if err != nil {
		return nil, err
	}
	methods, err := repo.ListMethods(ctx, s.DB)
	if err != nil {
		return nil, err
	}

	now := s.now()
	out := make([]CompanySchedule, 0, len(companies))
	for _, c := range companies {
		sc, err := s.evaluate(ctx, c, methods, now)
		if err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	span.SetAttributes(attribute.Int("companies", len(out)))
	return out, nil
}

// FollowUps returns the companies that are overdue and those due today.
// Both lists are non-nil.
func (s *ScheduleService) FollowUps(ctx context.Context) (*FollowUps, error) {
	all, err := s.ForAll(ctx)
	if err != nil {
		return nil, err
	}
	out := &FollowUps{Overdue: []CompanySchedule{}, DueToday: []CompanySchedule{}}
	for _, sc := range all {
		switch {
		case sc.IsOverdue:
			out.Overdue = append(out.Overdue, sc)
		case sc.IsDueToday:
			out.DueToday = append(out.DueToday, sc)
		}
	}
	return out, nil
}

func (s *ScheduleService) evaluate(ctx context.Context, c domain.Company, methods []domain.CommunicationMethod, now time.Time) (CompanySchedule, error) {
	logs, err := repo.ListRecentLogs(s.DB.WithContext(ctx), c.ID, s.recent())
	if err != nil {
		return CompanySchedule{}, err
	}
	if logs == nil {
		logs = []domain.CommunicationLog{}
	}

	var last *followup.LastCommunication
	if len(logs) > 0 {
		last = &followup.LastCommunication{MethodID: logs[0].MethodID, CreatedAt: logs[0].CreatedAt}
	}
	st, err := followup.Evaluate(last, methods, c.Periodicity, now)
	if err != nil {
		return CompanySchedule{}, err
	}
	return CompanySchedule{
		Company:            c,
		LastCommunications: logs,
		IsOverdue:          st.IsOverdue,
		IsDueToday:         st.IsDueToday,
		NextScheduledCommunication: ScheduledCommunication{
			Method: st.Next.Method,
			Date:   st.Next.Date,
		},
	}, nil
}

func (s *ScheduleService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *ScheduleService) recent() int {
	if s.Recent > 0 {
		return s.Recent
	}
	return DefaultRecentCommunications
}
