package thumbs

import (
	"context"
	"fmt"
	"image"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	_ "image/gif"
	_ "image/jpeg"
	"image/png"

	"github.com/voxelforge/voxelforge-backend/internal/classify"
	pkgerrors "github.com/voxelforge/voxelforge-backend/pkg/errors"
	"github.com/voxelforge/voxelforge-backend/pkg/logger"
	"github.com/voxelforge/voxelforge-backend/pkg/metrics"
	"golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

const thumbnailPrefix = "thumbnails/"

type assetRepository interface {
	SetThumbnailURLByPath(ctx context.Context, path, thumbnailURL string) (int64, error)
}

type gcsClient interface {
	DownloadObject(ctx context.Context, bucket, object string) (io.ReadCloser, error)
	UploadObject(ctx context.Context, bucket, object, contentType string, metadata map[string]string, body io.Reader) error
	SignedReadURL(bucket, object string, expires time.Duration) (string, error)
}

// Object describes a finalized storage object handed to the thumbnailer.
type Object struct {
	Bucket      string
	Name        string
	ContentType string
}

// Generator produces thumbnails for eligible finalized objects and backfills
// the owning asset record.
type Generator interface {
	ProcessObject(ctx context.Context, obj Object) error
}

type generator struct {
	repo         assetRepository
	gcs          gcsClient
	logg         *logger.Logger
	pipeline     *metrics.PipelineMetrics
	maxDimension int
	urlTTL       time.Duration
}

// Params bundles the generator dependencies.
type Params struct {
	Repo         assetRepository
	GCS          gcsClient
	Logger       *logger.Logger
	Pipeline     *metrics.PipelineMetrics
	MaxDimension int
	URLTTL       time.Duration
}

// NewGenerator constructs the thumbnail generator.
func NewGenerator(p Params) (Generator, error) {
	if p.Repo == nil {
		return nil, fmt.Errorf("asset repository required")
	}
	if p.GCS == nil {
		return nil, fmt.Errorf("gcs client required")
	}
	if p.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if p.URLTTL <= 0 {
		return nil, fmt.Errorf("thumbnail url ttl must be positive")
	}
	maxDim := p.MaxDimension
	if maxDim <= 0 {
		maxDim = 256
	}
	return &generator{
		repo:         p.Repo,
		gcs:          p.GCS,
		logg:         p.Logger,
		pipeline:     p.Pipeline,
		maxDimension: maxDim,
		urlTTL:       p.URLTTL,
	}, nil
}

// model formats that get a generated placeholder until real previews land.
var placeholderExtensions = map[string]bool{
	"glb":  true,
	"gltf": true,
	"usdz": true,
}

// ProcessObject thumbnails one finalized object. Ineligible objects return
// before any temp state is created.
func (g *generator) ProcessObject(ctx context.Context, obj Object) error {
	name := strings.TrimSpace(obj.Name)
	if name == "" {
		return nil
	}
	if strings.HasPrefix(name, thumbnailPrefix) {
		g.logg.Info(ctx, "skipping thumbnail output object")
		return nil
	}

	ext := classify.Extension(name)
	isImage := strings.HasPrefix(obj.ContentType, "image/")
	isModel := placeholderExtensions[ext]
	if !isImage && !isModel {
		g.pipeline.IncSkipped("thumbnail_ineligible")
		g.logg.Info(ctx, "object not eligible for thumbnailing")
		return nil
	}

	tempDir, err := os.MkdirTemp("", "thumbs-")
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create temp dir")
	}
	defer func() { _ = os.RemoveAll(tempDir) }()

	var (
		thumbPath string
		kind      string
	)
	if isImage {
		kind = "image"
		thumbPath, err = g.renderImageThumbnail(ctx, obj, tempDir)
	} else {
		kind = "placeholder"
		thumbPath, err = g.renderPlaceholderThumbnail(name, tempDir)
	}
	if err != nil {
		return err
	}

	thumbKey := buildThumbnailKey(name)
	file, err := os.Open(thumbPath)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "open rendered thumbnail")
	}
	defer func() { _ = file.Close() }()

	metadata := map[string]string{"source": name}
	if err := g.gcs.UploadObject(ctx, obj.Bucket, thumbKey, "image/png", metadata, file); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "upload thumbnail")
	}

	thumbnailURL, err := g.gcs.SignedReadURL(obj.Bucket, thumbKey, g.urlTTL)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sign thumbnail url")
	}

	rows, err := g.repo.SetThumbnailURLByPath(ctx, name, thumbnailURL)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "backfill thumbnail url")
	}
	if rows == 0 {
		// The asset record may not exist yet when the thumbnailer wins the
		// race against the ingestor. Observable, intentionally not retried.
		g.logg.Warn(ctx, "no asset record matched thumbnail source path")
		return nil
	}

	g.pipeline.IncThumbnail(kind)
	g.logg.Info(ctx, "thumbnail generated")
	return nil
}

func (g *generator) renderImageThumbnail(ctx context.Context, obj Object, tempDir string) (string, error) {
	sourcePath := filepath.Join(tempDir, "source")
	if err := g.downloadToFile(ctx, obj.Bucket, obj.Name, sourcePath); err != nil {
		return "", err
	}

	source, err := os.Open(sourcePath)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "open source image")
	}
	defer func() { _ = source.Close() }()

	img, _, err := image.Decode(source)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode source image")
	}

	resized := fitInside(img, g.maxDimension)

	thumbPath := filepath.Join(tempDir, "thumb_"+path.Base(obj.Name))
	out, err := os.Create(thumbPath)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create thumbnail file")
	}
	defer func() { _ = out.Close() }()

	if err := png.Encode(out, resized); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode thumbnail png")
	}
	return thumbPath, nil
}

func (g *generator) renderPlaceholderThumbnail(name, tempDir string) (string, error) {
	data, err := generatePlaceholderPNG(name, g.maxDimension)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "render placeholder png")
	}
	thumbPath := filepath.Join(tempDir, "thumb_"+path.Base(name))
	if err := os.WriteFile(thumbPath, data, 0o644); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "write placeholder file")
	}
	return thumbPath, nil
}

// fitInside scales the image to fit within max x max without enlarging.
func fitInside(img image.Image, max int) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= max && h <= max {
		return img
	}

	var tw, th int
	if w >= h {
		tw = max
		th = h * max / w
	} else {
		th = max
		tw = w * max / h
	}
	if tw < 1 {
		tw = 1
	}
	if th < 1 {
		th = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, tw, th))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}

// buildThumbnailKey mirrors the source directory under thumbnails/ and swaps
// the extension for .png.
func buildThumbnailKey(name string) string {
	dir := path.Dir(name)
	base := path.Base(name)
	ext := path.Ext(base)
	thumbBase := "thumb_" + strings.TrimSuffix(base, ext) + ".png"
	if dir == "." || dir == "/" {
		return thumbnailPrefix + thumbBase
	}
	return thumbnailPrefix + dir + "/" + thumbBase
}

func (g *generator) downloadToFile(ctx context.Context, bucket, object, dest string) error {
	body, err := g.gcs.DownloadObject(ctx, bucket, object)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "download source object")
	}
	defer func() { _ = body.Close() }()

	file, err := os.Create(dest)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create source temp file")
	}
	defer func() { _ = file.Close() }()

	if _, err := io.Copy(file, body); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "write source to disk")
	}
	return nil
}
