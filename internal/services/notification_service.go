// Package services – NotificationService
//
// This file implements NotificationService. A sweep walks every company that
// is overdue or due today and notifies the user who performed the company's
// last communication. Each (user, company, kind, due date) is notified at
// most once, so sweeps can run as often as needed.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-followup-backend/internal/domain"
	"github.com/tbourn/go-followup-backend/internal/followup"
	"github.com/tbourn/go-followup-backend/internal/repo"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// SweepResult summarizes one sweep.
type SweepResult struct {
	Overdue  int
	DueToday int
	Created  int
}

// NotificationService raises and serves follow-up notifications.
type NotificationService struct {
	DB       *gorm.DB
	Schedule *ScheduleService

	// Locale drives message casing; the zero value means English.
	Locale language.Tag

	// ListLimit caps List results; 0 means unlimited.
	ListLimit int
}

// Sweep creates notifications for every company needing follow-up.
func (s *NotificationService) Sweep(ctx context.Context) (SweepResult, error) {
	tr := otel.Tracer("services/NotificationService")
	ctx, span := tr.Start(ctx, "Sweep")
	defer span.End()

	var res SweepResult
	due, err := s.Schedule.FollowUps(ctx)
	if err != nil {
		return res, err
	}
	res.Overdue, res.DueToday = len(due.Overdue), len(due.DueToday)

	for _, group := range []struct {
		kind  domain.NotificationKind
		items []CompanySchedule
	}{
		{domain.NotificationOverdue, due.Overdue},
		{domain.NotificationDueToday, due.DueToday},
	} {
		for _, sc := range group.items {
			n, err := s.build(group.kind, sc)
			if err != nil {
				return res, err
			}
			if n == nil {
				continue
			}
			created, err := repo.CreateNotificationIfAbsent(ctx, s.DB, n)
			if err != nil {
				return res, fmt.Errorf("notify company %s: %w", sc.Company.ID, err)
			}
			if created {
				res.Created++
			}
		}
	}

	span.SetAttributes(
		attribute.Int("companies.overdue", res.Overdue),
		attribute.Int("companies.due_today", res.DueToday),
		attribute.Int("notifications.created", res.Created),
	)
	return res, nil
}

// List returns a user's notifications, unread first.
func (s *NotificationService) List(ctx context.Context, userID string) ([]domain.Notification, error) {
	out, err := repo.ListNotificationsForUser(ctx, s.DB, userID, s.ListLimit)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []domain.Notification{}
	}
	return out, nil
}

// MarkRead marks a notification owned by userID as read.
func (s *NotificationService) MarkRead(ctx context.Context, id, userID string) error {
	err := repo.MarkNotificationRead(ctx, s.DB, id, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotificationNotFound
	}
	return err
}

// build returns nil for a company without any communication, since there is
// nobody to notify.
func (s *NotificationService) build(kind domain.NotificationKind, sc CompanySchedule) (*domain.Notification, error) {
	if len(sc.LastCommunications) == 0 {
		return nil, nil
	}
	last := sc.LastCommunications[0]
	threshold, err := followup.ThresholdDays(sc.Company.Periodicity)
	if err != nil {
		return nil, err
	}
	dueDate := last.CreatedAt.UTC().AddDate(0, 0, threshold).Truncate(24 * time.Hour)

	return &domain.Notification{
		UserID:    last.PerformedBy,
		CompanyID: sc.Company.ID,
		Kind:      kind,
		Message:   s.message(kind, sc, dueDate),
		DueDate:   dueDate,
	}, nil
}

func (s *NotificationService) message(kind domain.NotificationKind, sc CompanySchedule, dueDate time.Time) string {
	tag := s.Locale
	if tag == language.Und {
		tag = language.English
	}
	caser := cases.Title(tag)

	label := "follow-up due today"
	if kind == domain.NotificationOverdue {
		label = "overdue follow-up"
	}
	msg := fmt.Sprintf("%s: %s was due on %s", caser.String(label), sc.Company.Name, dueDate.Format("2006-01-02"))
	if next := sc.NextScheduledCommunication.Method.Name; next != "" {
		msg += fmt.Sprintf(" (next: %s)", next)
	}
	return msg
}
