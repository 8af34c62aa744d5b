package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-followup-backend/internal/domain"
)

// ListMethods returns all live communication methods ordered by sequence.
func ListMethods(ctx context.Context, db *gorm.DB) ([]domain.CommunicationMethod, error) {
	var out []domain.CommunicationMethod
	err := db.WithContext(ctx).
		Order("sequence asc").
		Find(&out).Error
	return out, err
}

// GetMethod fetches a live method by ID.
func GetMethod(ctx context.Context, db *gorm.DB, id string) (*domain.CommunicationMethod, error) {
	var m domain.CommunicationMethod
	if err := db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// GetMethodBySequence fetches the live method at position seq.
func GetMethodBySequence(ctx context.Context, db *gorm.DB, seq int) (*domain.CommunicationMethod, error) {
	var m domain.CommunicationMethod
	if err := db.WithContext(ctx).Where("sequence = ?", seq).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// MaxMethodSequence returns the highest live sequence, or 0 when no methods exist.
func MaxMethodSequence(ctx context.Context, db *gorm.DB) (int, error) {
	var row struct{ Max int }
	err := db.WithContext(ctx).
		Model(&domain.CommunicationMethod{}).
		Select("COALESCE(MAX(sequence), 0) AS max").
		Scan(&row).Error
	return row.Max, err
}

// CreateMethod inserts m, assigning a UUID when m.ID is empty. It returns
// ErrDuplicate when a live method already holds m.Sequence.
func CreateMethod(ctx context.Context, db *gorm.DB, m *domain.CommunicationMethod) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	m.CreatedAt, m.UpdatedAt = now, now
	if err := db.WithContext(ctx).Create(m).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// UpdateMethod applies a partial update given as column -> value.
// It returns ErrNotFound if no live row matched.
func UpdateMethod(ctx context.Context, db *gorm.DB, id string, fields map[string]any) error {
	fields["updated_at"] = time.Now().UTC()
	res := db.WithContext(ctx).
		Model(&domain.CommunicationMethod{}).
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

// DeleteMethodAndCompact soft-deletes the method with the given id and
// shifts every later method up by one so sequences stay contiguous. Both
// steps run in one transaction.
//
// The unique index is checked row by row, so the shift parks the affected
// rows on negative sequences first and flips them back in a second update.
func DeleteMethodAndCompact(ctx context.Context, db *gorm.DB, id string) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		m, err := GetMethod(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := tx.Delete(&domain.CommunicationMethod{}, "id = ?", id).Error; err != nil {
			return err
		}
		now := time.Now().UTC()
		if err := tx.Model(&domain.CommunicationMethod{}).
			Where("sequence > ?", m.Sequence).
			Updates(map[string]any{
				"sequence":   gorm.Expr("1 - sequence"),
				"updated_at": now,
			}).Error; err != nil {
			return err
		}
		return tx.Model(&domain.CommunicationMethod{}).
			Where("sequence < 0").
			Update("sequence", gorm.Expr("-sequence")).Error
	})
}

// SwapMethodSequences exchanges the sequence numbers of a and b in one
// transaction and updates the passed structs to match. a is parked on its
// negated sequence while b moves.
func SwapMethodSequences(ctx context.Context, db *gorm.DB, a, b *domain.CommunicationMethod) error {
	now := time.Now().UTC()
	set := func(tx *gorm.DB, id string, seq int) error {
		return tx.Model(&domain.CommunicationMethod{}).Where("id = ?", id).
			Updates(map[string]any{"sequence": seq, "updated_at": now}).Error
	}
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := set(tx, a.ID, -a.Sequence); err != nil {
			return err
		}
		if err := set(tx, b.ID, a.Sequence); err != nil {
			return err
		}
		return set(tx, a.ID, b.Sequence)
	})
	if err != nil {
		return err
	}
	a.Sequence, b.Sequence = b.Sequence, a.Sequence
	return nil
}
