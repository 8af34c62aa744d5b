package services

import (
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-followup-backend/internal/domain"
	"github.com/tbourn/go-followup-backend/internal/repo"
)

// newTestDB opens a migrated, file-backed SQLite database for service tests.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "services_test.db") + "?_pragma=foreign_keys(1)"
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

func seedCompany(t *testing.T, db *gorm.DB, name string, p domain.Periodicity) *domain.Company {
	t.Helper()
	c := &domain.Company{
		ID:          uuid.NewString(),
		Name:        name,
		Emails:      datatypes.JSONSlice[string]{"hello@" + name + ".io"},
		Periodicity: p,
	}
	if err := db.Create(c).Error; err != nil {
		t.Fatalf("seed company %s: %v", name, err)
	}
	return c
}

func seedLog(t *testing.T, db *gorm.DB, companyID, methodID, userID string, at time.Time) *domain.CommunicationLog {
	t.Helper()
	l := &domain.CommunicationLog{
		ID:          uuid.NewString(),
		CompanyID:   companyID,
		MethodID:    methodID,
		PerformedBy: userID,
		CreatedAt:   at,
	}
	if err := db.Create(l).Error; err != nil {
		t.Fatalf("seed log: %v", err)
	}
	return l
}

func intp(v int) *int    { return &v }
func boolp(v bool) *bool { return &v }

func methodNames(ms []domain.CommunicationMethod) []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.Name
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
