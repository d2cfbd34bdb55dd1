package enums

import "fmt"

// AssetType is the top-level bucket an ingested asset is filed under.
type AssetType string

const (
	AssetTypeModels   AssetType = "models"
	AssetTypeProjects AssetType = "projects"
	AssetTypeImages   AssetType = "images"
	AssetTypeVideos   AssetType = "videos"
	AssetTypeShaders  AssetType = "shaders"
)

var validAssetTypes = []AssetType{
	AssetTypeModels,
	AssetTypeProjects,
	AssetTypeImages,
	AssetTypeVideos,
	AssetTypeShaders,
}

// String returns the literal string for the type.
func (a AssetType) String() string {
	return string(a)
}

// IsValid reports whether the type is known.
func (a AssetType) IsValid() bool {
	for _, candidate := range validAssetTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseAssetType converts raw input into an AssetType.
func ParseAssetType(value string) (AssetType, error) {
	for _, candidate := range validAssetTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid asset type %q", value)
}
