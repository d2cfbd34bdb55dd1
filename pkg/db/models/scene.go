package models

import (
	"time"

	"github.com/google/uuid"
)

// Scene stores a saved editor scene document.
type Scene struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID    string    `gorm:"column:user_id;not null;index" json:"user_id"`
	Name      string    `gorm:"column:name;not null" json:"name"`
	SceneData []byte    `gorm:"column:scene_data;type:jsonb;not null" json:"scene_data"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}
