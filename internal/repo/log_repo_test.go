package repo

import (
	"testing"
	"time"

	"github.com/tbourn/go-followup-backend/internal/domain"
)

func TestCreateLog_Error_NoTable(t *testing.T) {
	db := newTestDB(t, false)
	if _, err := CreateLog(db, "c1", "m1", "u1", nil); err == nil {
		t.Fatalf("expected error creating log without table, got %v", err)
	}
}

func TestCreateLog_BlankNotesStoredAsNull(t *testing.T) {
	db := newTestDB(t, true)
	if err := db.Create(&domain.Company{ID: "c1", Name: "Acme", Periodicity: domain.Monthly}).Error; err != nil {
		t.Fatalf("seed company: %v", err)
	}

	blank := "   "
	l, err := CreateLog(db, "c1", "m1", "u1", &blank)
	if err != nil {
		t.Fatalf("CreateLog: %v", err)
	}
	got, err := GetLog(db, l.ID)
	if err != nil {
		t.Fatalf("GetLog: %v", err)
	}
	if got.Notes != nil {
		t.Fatalf("expected NULL notes, got %q", *got.Notes)
	}
	if got.CompanyID != "c1" || got.MethodID != "m1" || got.PerformedBy != "u1" {
		t.Fatalf("unexpected log: %+v", got)
	}
	if time.Since(got.CreatedAt) > time.Minute {
		t.Fatalf("CreatedAt not set to now: %v", got.CreatedAt)
	}
}

func TestListRecentLogs_NewestFirstAndLimited(t *testing.T) {
	db := newTestDB(t, true)
	for _, id := range []string{"c1", "c2"} {
		if err := db.Create(&domain.Company{ID: id, Name: id, Periodicity: domain.Monthly}).Error; err != nil {
			t.Fatalf("seed company: %v", err)
		}
	}

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 7; i++ {
		l := &domain.CommunicationLog{
			ID:          string(rune('a' + i)),
			CompanyID:   "c1",
			MethodID:    "m",
			PerformedBy: "u1",
			CreatedAt:   base.AddDate(0, 0, i),
		}
		if err := db.Create(l).Error; err != nil {
			t.Fatalf("seed log: %v", err)
		}
	}
	if err := db.Create(&domain.CommunicationLog{ID: "z", CompanyID: "c2", MethodID: "m", PerformedBy: "u1", CreatedAt: base.AddDate(1, 0, 0)}).Error; err != nil {
		t.Fatalf("seed other: %v", err)
	}

	recent, err := ListRecentLogs(db, "c1", 5)
	if err != nil {
		t.Fatalf("ListRecentLogs: %v", err)
	}
	if len(recent) != 5 || recent[0].ID != "g" || recent[4].ID != "c" {
		t.Fatalf("unexpected recent logs: %+v", recent)
	}

	total, err := CountLogs(db, "c1")
	if err != nil || total != 7 {
		t.Fatalf("CountLogs = %d, %v", total, err)
	}
	page, err := ListLogsPage(db, "c1", 5, 5)
	if err != nil || len(page) != 2 || page[0].ID != "b" || page[1].ID != "a" {
		t.Fatalf("ListLogsPage = %+v, %v", page, err)
	}
}

func TestCountLogs_Error_NoTable(t *testing.T) {
	db := newTestDB(t, false)
	if _, err := CountLogs(db, "c1"); err == nil {
		t.Fatalf("expected error when table is missing")
	}
}
