package reaper

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/voxelforge/voxelforge-backend/pkg/db/models"
	"gorm.io/gorm"
)

// Repository reads and deletes expired generation records.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a reaper repository bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// ListExpired returns generations whose expiry has passed, oldest first.
func (r *Repository) ListExpired(ctx context.Context, cutoff time.Time, limit int) ([]models.Generation, error) {
	if limit <= 0 {
		limit = 500
	}
	var generations []models.Generation
	err := r.db.WithContext(ctx).
		Where("expires_at <= ?", cutoff).
		Order("expires_at ASC").
		Limit(limit).
		Find(&generations).Error
	if err != nil {
		return nil, err
	}
	return generations, nil
}

// DeleteBatch removes the given generation records inside tx.
func (r *Repository) DeleteBatch(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := tx.WithContext(ctx).
		Where("id IN ?", ids).
		Delete(&models.Generation{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
