package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-followup-backend/internal/domain"
)

// UpsertUserByExternalID inserts u or, when a user with the same external id
// already exists (including a soft-deleted one), refreshes its profile
// fields and restores it. The stored row is returned. An existing user's
// role is never changed here.
func UpsertUserByExternalID(ctx context.Context, db *gorm.DB, u *domain.User) (*domain.User, error) {
	now := time.Now().UTC()
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.Role == "" {
		u.Role = domain.RoleUser
	}
	u.CreatedAt, u.UpdatedAt = now, now

	cols := []string{"email", "first_name", "last_name", "profile_image_url", "updated_at", "deleted_at"}
	err := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "external_id"}},
		DoUpdates: clause.AssignmentColumns(cols),
	}).Create(u).Error
	if err != nil {
		return nil, err
	}
	return GetUserByExternalID(ctx, db, u.ExternalID)
}

// GetUser fetches a live user by internal id.
func GetUser(ctx context.Context, db *gorm.DB, id string) (*domain.User, error) {
	var u domain.User
	if err := db.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUserByExternalID fetches a live user by identity-provider id.
func GetUserByExternalID(ctx context.Context, db *gorm.DB, externalID string) (*domain.User, error) {
	var u domain.User
	if err := db.WithContext(ctx).Where("external_id = ?", externalID).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// DeleteUserByExternalID soft-deletes a user. It returns ErrNotFound if no
// live user matched.
func DeleteUserByExternalID(ctx context.Context, db *gorm.DB, externalID string) error {
	res := db.WithContext(ctx).Where("external_id = ?", externalID).Delete(&domain.User{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ListUsersByRole returns live users with the given role ordered by first name.
func ListUsersByRole(ctx context.Context, db *gorm.DB, role domain.Role) ([]domain.User, error) {
	var out []domain.User
	err := db.WithContext(ctx).
		Where("role = ?", role).
		Order("first_name asc, last_name asc").
		Find(&out).Error
	return out, err
}
