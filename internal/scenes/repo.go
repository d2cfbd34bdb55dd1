package scenes

import (
	"context"

	"github.com/google/uuid"
	"github.com/voxelforge/voxelforge-backend/pkg/db/models"
	"gorm.io/gorm"
)

// Repository persists editor scene documents.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a scene repository bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new scene record.
func (r *Repository) Create(ctx context.Context, scene *models.Scene) (*models.Scene, error) {
	if err := r.db.WithContext(ctx).Create(scene).Error; err != nil {
		return nil, err
	}
	return scene, nil
}

// FindByID loads a scene by its identifier.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Scene, error) {
	var scene models.Scene
	if err := r.db.WithContext(ctx).First(&scene, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &scene, nil
}

// Update stores the new name and payload on an existing scene.
func (r *Repository) Update(ctx context.Context, scene *models.Scene) (*models.Scene, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Scene{}).
		Where("id = ?", scene.ID).
		Updates(map[string]any{
			"name":       scene.Name,
			"scene_data": scene.SceneData,
		})
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return scene, nil
}

// ListByUser returns the user's scenes, most recently updated first.
func (r *Repository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.Scene, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	var scenes []models.Scene
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&scenes).Error
	if err != nil {
		return nil, err
	}
	return scenes, nil
}
