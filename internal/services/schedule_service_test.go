package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tbourn/go-followup-backend/internal/domain"
	"github.com/tbourn/go-followup-backend/internal/followup"
)

func fixedNow(t time.Time) func() time.Time { return func() time.Time { return t } }

func TestScheduleService_ForCompany_WeeklyEightDaysAgo(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Date(2025, 5, 20, 12, 0, 0, 0, time.UTC)

	co := seedCompany(t, db, "acme", domain.Weekly)
	ms := seedServiceMethods(t, &MethodService{DB: db}, "Email", "Call")
	last := now.AddDate(0, 0, -8)
	seedLog(t, db, co.ID, ms[0].ID, "u1", last.AddDate(0, 0, -20))
	seedLog(t, db, co.ID, ms[0].ID, "u1", last)

	s := &ScheduleService{DB: db, Now: fixedNow(now)}
	sc, err := s.ForCompany(ctx, co.ID)
	if err != nil {
		t.Fatalf("ForCompany: %v", err)
	}
	if !sc.IsOverdue || sc.IsDueToday {
		t.Fatalf("overdue=%v dueToday=%v; want true,false", sc.IsOverdue, sc.IsDueToday)
	}
	next := sc.NextScheduledCommunication
	if next.Method.Name != "Call" || !next.Date.Equal(last.AddDate(0, 0, 7)) {
		t.Fatalf("next = %s at %v", next.Method.Name, next.Date)
	}
	if len(sc.LastCommunications) != 2 || sc.Company.ID != co.ID {
		t.Fatalf("unexpected schedule: %+v", sc)
	}
}

func TestScheduleService_ForCompany_NoCommunication(t *testing.T) {
	db := newTestDB(t)
	now := time.Date(2025, 5, 20, 12, 0, 0, 0, time.UTC)
	co := seedCompany(t, db, "acme", domain.Monthly)
	seedServiceMethods(t, &MethodService{DB: db}, "LinkedIn Post", "Email")

	s := &ScheduleService{DB: db, Now: fixedNow(now)}
	sc, err := s.ForCompany(context.Background(), co.ID)
	if err != nil {
		t.Fatalf("ForCompany: %v", err)
	}
	if sc.IsOverdue || sc.IsDueToday {
		t.Fatalf("never-contacted company flagged: %+v", sc)
	}
	if sc.NextScheduledCommunication.Method.Name != "LinkedIn Post" || !sc.NextScheduledCommunication.Date.Equal(now) {
		t.Fatalf("next = %+v", sc.NextScheduledCommunication)
	}
	if sc.LastCommunications == nil {
		t.Fatalf("LastCommunications should be an empty slice")
	}
}

func TestScheduleService_ForCompany_Errors(t *testing.T) {
	db := newTestDB(t)
	co := seedCompany(t, db, "acme", domain.Monthly)
	s := &ScheduleService{DB: db}

	if _, err := s.ForCompany(context.Background(), "missing"); !errors.Is(err, ErrCompanyNotFound) {
		t.Fatalf("missing: got %v", err)
	}
	if _, err := s.ForCompany(context.Background(), co.ID); !errors.Is(err, followup.ErrNoCommunicationMethods) {
		t.Fatalf("no methods: got %v", err)
	}
}

func TestScheduleService_RecentLimit(t *testing.T) {
	db := newTestDB(t)
	now := time.Date(2025, 5, 20, 12, 0, 0, 0, time.UTC)
	co := seedCompany(t, db, "acme", domain.Yearly)
	ms := seedServiceMethods(t, &MethodService{DB: db}, "Email")
	for i := 0; i < 8; i++ {
		seedLog(t, db, co.ID, ms[0].ID, "u1", now.AddDate(0, 0, -i-1))
	}

	sc, err := (&ScheduleService{DB: db, Now: fixedNow(now)}).ForCompany(context.Background(), co.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(sc.LastCommunications) != DefaultRecentCommunications {
		t.Fatalf("recent = %d; want %d", len(sc.LastCommunications), DefaultRecentCommunications)
	}

	sc, _ = (&ScheduleService{DB: db, Now: fixedNow(now), Recent: 3}).ForCompany(context.Background(), co.ID)
	if len(sc.LastCommunications) != 3 {
		t.Fatalf("recent = %d; want 3", len(sc.LastCommunications))
	}
}

func TestScheduleService_FollowUps_Partition(t *testing.T) {
	db := newTestDB(t)
	now := time.Date(2025, 5, 20, 12, 0, 0, 0, time.UTC)
	ms := seedServiceMethods(t, &MethodService{DB: db}, "Email")

	overdue := seedCompany(t, db, "overdue", domain.Weekly)
	seedLog(t, db, overdue.ID, ms[0].ID, "u1", now.AddDate(0, 0, -9))
	dueToday := seedCompany(t, db, "duetoday", domain.Biweekly)
	seedLog(t, db, dueToday.ID, ms[0].ID, "u1", now.AddDate(0, 0, -14))
	fine := seedCompany(t, db, "fine", domain.Quarterly)
	seedLog(t, db, fine.ID, ms[0].ID, "u1", now.AddDate(0, 0, -10))
	seedCompany(t, db, "never", domain.Weekly)

	s := &ScheduleService{DB: db, Now: fixedNow(now)}
	all, err := s.ForAll(context.Background())
	if err != nil || len(all) != 4 {
		t.Fatalf("ForAll = %d, %v", len(all), err)
	}

	got, err := s.FollowUps(context.Background())
	if err != nil {
		t.Fatalf("FollowUps: %v", err)
	}
	if len(got.Overdue) != 1 || got.Overdue[0].Company.ID != overdue.ID {
		t.Fatalf("overdue = %+v", got.Overdue)
	}
	if len(got.DueToday) != 1 || got.DueToday[0].Company.ID != dueToday.ID {
		t.Fatalf("due today = %+v", got.DueToday)
	}
}
