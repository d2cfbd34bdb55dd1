package models

import (
	"time"

	"github.com/google/uuid"

	dbtypes "github.com/voxelforge/voxelforge-backend/pkg/db/types"
)

// Generation records an AI generation whose artifacts live in storage until
// ExpiresAt, when the reaper removes them. ModelURLs maps output format to a
// signed download URL.
type Generation struct {
	ID           uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID       string          `gorm:"column:user_id;not null;index" json:"user_id"`
	Kind         string          `gorm:"column:kind;not null" json:"kind"`
	Status       string          `gorm:"column:status;not null" json:"status"`
	ExpiresAt    time.Time       `gorm:"column:expires_at;not null;index" json:"expires_at"`
	ModelURLs    dbtypes.JSONMap `gorm:"column:model_urls;type:jsonb" json:"model_urls"`
	ThumbnailURL *string         `gorm:"column:thumbnail_url" json:"thumbnail_url,omitempty"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}
