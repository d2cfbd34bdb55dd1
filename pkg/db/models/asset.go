package models

import (
	"time"

	"github.com/google/uuid"

	dbtypes "github.com/voxelforge/voxelforge-backend/pkg/db/types"
	"github.com/voxelforge/voxelforge-backend/pkg/enums"
)

// Asset is the metadata record written once per ingested object. Path holds
// the asset's current storage location (or the original URL for externally
// hosted assets) and is the key the thumbnailer backfills against.
type Asset struct {
	ID           uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name         string              `gorm:"column:name;not null" json:"name"`
	Type         enums.AssetType     `gorm:"column:type;not null" json:"type"`
	SubType      string              `gorm:"column:sub_type;not null" json:"sub_type"`
	Size         int64               `gorm:"column:size;not null" json:"size"`
	UploadedBy   string              `gorm:"column:uploaded_by;not null" json:"uploaded_by"`
	UploadedAt   time.Time           `gorm:"column:uploaded_at;autoCreateTime" json:"uploaded_at"`
	Path         string              `gorm:"column:path;not null;unique" json:"path"`
	Bucket       string              `gorm:"column:bucket;not null" json:"bucket"`
	Tags         dbtypes.StringArray `gorm:"column:tags;type:text[]" json:"tags"`
	Extension    string              `gorm:"column:extension;not null" json:"extension"`
	ThumbnailURL *string             `gorm:"column:thumbnail_url" json:"thumbnail_url,omitempty"`
	DownloadURL  string              `gorm:"column:download_url;not null" json:"download_url"`
	IsPublic     bool                `gorm:"column:is_public;not null;default:false" json:"is_public"`
	Downloads    int64               `gorm:"column:downloads;not null;default:0" json:"downloads"`
	Version      string              `gorm:"column:version;not null;default:'1.0.0'" json:"version"`
	Description  *string             `gorm:"column:description" json:"description,omitempty"`
	Dependencies dbtypes.StringArray `gorm:"column:dependencies;type:text[]" json:"dependencies,omitempty"`
	RelatedFiles dbtypes.StringArray `gorm:"column:related_files;type:text[]" json:"related_files,omitempty"`
}
