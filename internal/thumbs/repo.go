package thumbs

import (
	"context"

	"github.com/voxelforge/voxelforge-backend/pkg/db/models"
	"gorm.io/gorm"
)

// Repository backfills thumbnail URLs onto asset records.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a thumbnail repository bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// SetThumbnailURLByPath stamps the thumbnail URL on the asset whose storage
// path matches. Returns the number of rows updated; zero means no asset record
// exists for the source object yet.
func (r *Repository) SetThumbnailURLByPath(ctx context.Context, path, thumbnailURL string) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Asset{}).
		Where("path = ?", path).
		Update("thumbnail_url", thumbnailURL)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
