package classify

import (
	"path"
	"strings"

	"github.com/voxelforge/voxelforge-backend/pkg/enums"
)

// Classification is the type/sub-type pair an asset is filed under.
type Classification struct {
	Type    enums.AssetType
	SubType string
}

// classifications is the closed set of recognized extensions. Archives are
// dispatched to the expander before classification and never appear here.
var classifications = map[string]Classification{
	"glb":  {Type: enums.AssetTypeModels, SubType: "glb"},
	"gltf": {Type: enums.AssetTypeModels, SubType: "gltf"},
	"fbx":  {Type: enums.AssetTypeModels, SubType: "fbx"},
	"obj":  {Type: enums.AssetTypeModels, SubType: "obj"},
	"stl":  {Type: enums.AssetTypeModels, SubType: "stl"},
	"usdz": {Type: enums.AssetTypeModels, SubType: "usdz"},
	"dae":  {Type: enums.AssetTypeModels, SubType: "dae"},
	"ply":  {Type: enums.AssetTypeModels, SubType: "ply"},

	"blend": {Type: enums.AssetTypeProjects, SubType: "blend"},
	"c4d":   {Type: enums.AssetTypeProjects, SubType: "c4d"},
	"max":   {Type: enums.AssetTypeProjects, SubType: "max"},
	"ma":    {Type: enums.AssetTypeProjects, SubType: "ma"},
	"spp":   {Type: enums.AssetTypeProjects, SubType: "spp"},

	"png":  {Type: enums.AssetTypeImages, SubType: "png"},
	"jpg":  {Type: enums.AssetTypeImages, SubType: "jpg"},
	"jpeg": {Type: enums.AssetTypeImages, SubType: "jpeg"},
	"webp": {Type: enums.AssetTypeImages, SubType: "webp"},
	"gif":  {Type: enums.AssetTypeImages, SubType: "gif"},
	"bmp":  {Type: enums.AssetTypeImages, SubType: "bmp"},

	"mp4":  {Type: enums.AssetTypeVideos, SubType: "mp4"},
	"webm": {Type: enums.AssetTypeVideos, SubType: "webm"},
	"mov":  {Type: enums.AssetTypeVideos, SubType: "mov"},

	"glsl": {Type: enums.AssetTypeShaders, SubType: "glsl"},
	"hlsl": {Type: enums.AssetTypeShaders, SubType: "hlsl"},
	"frag": {Type: enums.AssetTypeShaders, SubType: "frag"},
	"vert": {Type: enums.AssetTypeShaders, SubType: "vert"},
	"comp": {Type: enums.AssetTypeShaders, SubType: "comp"},
}

// Extension returns the lower-cased extension of the file name without the dot.
func Extension(fileName string) string {
	ext := path.Ext(strings.TrimSpace(fileName))
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// Classify maps a file name to its classification. ok is false for
// unrecognized extensions; the caller skips those silently.
func Classify(fileName string) (Classification, bool) {
	c, ok := classifications[Extension(fileName)]
	return c, ok
}

// IsArchive reports whether the file name points at a zip archive.
func IsArchive(fileName string) bool {
	return Extension(fileName) == "zip"
}
