package models

import (
	"time"

	dbtypes "github.com/voxelforge/voxelforge-backend/pkg/db/types"
)

// UserStats aggregates generation activity per user.
type UserStats struct {
	UserID             string             `gorm:"column:user_id;primaryKey" json:"user_id"`
	TotalGenerations   int64              `gorm:"column:total_generations;not null;default:0" json:"total_generations"`
	LastGenerationDate time.Time          `gorm:"column:last_generation_date" json:"last_generation_date"`
	GenerationsByType  dbtypes.JSONCounts `gorm:"column:generations_by_type;type:jsonb" json:"generations_by_type"`
}

// TableName pins the plural-breaking table name.
func (UserStats) TableName() string { return "user_stats" }
