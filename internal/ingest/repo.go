package ingest

import (
	"context"

	"github.com/voxelforge/voxelforge-backend/pkg/db/models"
	"gorm.io/gorm"
)

// Repository exposes asset metadata persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs an asset repository bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create persists an asset record.
func (r *Repository) Create(ctx context.Context, asset *models.Asset) (*models.Asset, error) {
	if err := r.db.WithContext(ctx).Create(asset).Error; err != nil {
		return nil, err
	}
	return asset, nil
}

// ListByUploader retrieves an uploader's asset records, newest first.
func (r *Repository) ListByUploader(ctx context.Context, uploaderID string, limit, offset int) ([]models.Asset, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	var assets []models.Asset
	err := r.db.WithContext(ctx).
		Where("uploaded_by = ?", uploaderID).
		Order("uploaded_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&assets).Error
	if err != nil {
		return nil, err
	}
	return assets, nil
}
