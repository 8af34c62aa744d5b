// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// CommunicationLog model. Log entries are append-only; there is no update.
package repo

import (
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-followup-backend/internal/domain"
	"github.com/tbourn/go-followup-backend/internal/ids"
)

// CreateLog inserts a new log entry. Empty or whitespace-only notes are
// stored as NULL.
func CreateLog(db *gorm.DB, companyID, methodID, performedBy string, notes *string) (*domain.CommunicationLog, error) {
	if notes != nil && strings.TrimSpace(*notes) == "" {
		notes = nil
	}
	l := &domain.CommunicationLog{
		ID:          ids.New(),
		CompanyID:   companyID,
		MethodID:    methodID,
		PerformedBy: performedBy,
		Notes:       notes,
		CreatedAt:   time.Now().UTC(),
	}
	return l, db.Create(l).Error
}

// GetLog fetches a log entry by ID.
func GetLog(db *gorm.DB, id string) (*domain.CommunicationLog, error) {
	var l domain.CommunicationLog
	if err := db.Where("id = ?", id).First(&l).Error; err != nil {
		return nil, err
	}
	return &l, nil
}

// ListRecentLogs returns up to limit entries for a company, newest first
// (CreatedAt DESC, ID DESC for a deterministic tie-break).
func ListRecentLogs(db *gorm.DB, companyID string, limit int) ([]domain.CommunicationLog, error) {
	var out []domain.CommunicationLog
	q := db.Where("company_id = ?", companyID).Order("created_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

// CountLogs uses a raw COUNT so a missing table surfaces as an error.
func CountLogs(db *gorm.DB, companyID string) (int64, error) {
	var total int64
	err := db.Raw("SELECT COUNT(*) FROM communication_logs WHERE company_id = ?", companyID).Scan(&total).Error
	return total, err
}

// ListLogsPage returns a paginated slice ordered newest first.
func ListLogsPage(db *gorm.DB, companyID string, offset, limit int) ([]domain.CommunicationLog, error) {
	var out []domain.CommunicationLog
	err := db.
		Where("company_id = ?", companyID).
		Order("created_at DESC, id DESC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}
