// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Company
// model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a company is not found (or is soft-deleted), functions return
//     gorm.ErrRecordNotFound (also exported here as ErrNotFound).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
//
// Usage:
//
//	co, err := repo.GetCompany(ctx, db, id)
//	if errors.Is(err, repo.ErrNotFound) {
//	    // handle missing
//	} else if err != nil {
//	    // handle DB failure
//	}
package repo

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-followup-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// CreateCompany inserts c. A UUID is assigned when c.ID is empty and the
// timestamps are set to UTC now.
func CreateCompany(ctx context.Context, db *gorm.DB, c *domain.Company) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now
	return db.WithContext(ctx).Create(c).Error
}

// GetCompany fetches a single live company by ID.
func GetCompany(ctx context.Context, db *gorm.DB, id string) (*domain.Company, error) {
	var c domain.Company
	if err := db.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// ListCompanies returns every live company, newest first.
func ListCompanies(ctx context.Context, db *gorm.DB) ([]domain.Company, error) {
	var out []domain.Company
	err := db.WithContext(ctx).
		Order("created_at desc").
		Find(&out).Error
	return out, err
}

// CountCompanies returns the number of live companies.
func CountCompanies(ctx context.Context, db *gorm.DB) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Model(&domain.Company{}).Count(&total).Error
	return total, err
}

// ListCompaniesPage returns a page of companies, newest first. Use
// CountCompanies for pagination metadata.
func ListCompaniesPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.Company, error) {
	var out []domain.Company
	err := db.WithContext(ctx).
		Order("created_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// UpdateCompany applies a partial update given as column -> value. It returns
// ErrNotFound if no live row matched.
func UpdateCompany(ctx context.Context, db *gorm.DB, id string, fields map[string]any) error {
	if len(fields) == 0 {
		_, err := GetCompany(ctx, db, id)
		return err
	}
	fields["updated_at"] = time.Now().UTC()
	res := db.WithContext(ctx).
		Model(&domain.Company{}).
		Where("id = ?", id).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeleteCompany soft-deletes a company. Its log entries and notifications
// stay in place but are no longer reachable through the company.
func DeleteCompany(ctx context.Context, db *gorm.DB, id string) error {
	res := db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Company{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// SearchCompanies returns companies whose name, emails, or phone numbers
// contain query (case-insensitive), ordered by name. limit <= 0 means no limit.
func SearchCompanies(ctx context.Context, db *gorm.DB, query string, limit int) ([]domain.Company, error) {
	pattern := "%" + likeEscaper.Replace(strings.ToLower(strings.TrimSpace(query))) + "%"
	q := db.WithContext(ctx).
		Where(`LOWER(name) LIKE ? ESCAPE '\' OR LOWER(CAST(emails AS TEXT)) LIKE ? ESCAPE '\' OR LOWER(CAST(phone_numbers AS TEXT)) LIKE ? ESCAPE '\'`,
			pattern, pattern, pattern).
		Order("name asc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []domain.Company
	err := q.Find(&out).Error
	return out, err
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
