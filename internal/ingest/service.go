package ingest

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/voxelforge/voxelforge-backend/internal/analytics/types"
	"github.com/voxelforge/voxelforge-backend/internal/classify"
	"github.com/voxelforge/voxelforge-backend/pkg/db/models"
	pkgerrors "github.com/voxelforge/voxelforge-backend/pkg/errors"
	"github.com/voxelforge/voxelforge-backend/pkg/logger"
	"github.com/voxelforge/voxelforge-backend/pkg/metrics"
)

type assetRepository interface {
	Create(ctx context.Context, asset *models.Asset) (*models.Asset, error)
}

type eventSink interface {
	AssetIngested(ctx context.Context, row types.AssetEventRow)
}

type gcsClient interface {
	DownloadObject(ctx context.Context, bucket, object string) (io.ReadCloser, error)
	UploadObject(ctx context.Context, bucket, object, contentType string, metadata map[string]string, body io.Reader) error
	MoveObject(ctx context.Context, srcBucket, srcObject, dstBucket, dstObject string) error
	SignedReadURL(bucket, object string, expires time.Duration) (string, error)
}

// Object describes a finalized storage object handed to the ingestor.
type Object struct {
	Bucket      string
	Name        string
	ContentType string
	Size        int64
}

// Service routes finalized objects through classification into asset records.
type Service interface {
	ProcessObject(ctx context.Context, obj Object) error
}

type service struct {
	repo             assetRepository
	gcs              gcsClient
	logg             *logger.Logger
	pipeline         *metrics.PipelineMetrics
	events           eventSink
	uploadPrefix     string
	trustedAssetHost string
	proxyEndpoint    string
	assetURLTTL      time.Duration
	newID            func() uuid.UUID
}

// Params bundles the service dependencies.
type Params struct {
	Repo             assetRepository
	GCS              gcsClient
	Logger           *logger.Logger
	Pipeline         *metrics.PipelineMetrics
	Events           eventSink
	UploadPrefix     string
	TrustedAssetHost string
	ProxyEndpoint    string
	AssetURLTTL      time.Duration
}

// NewService constructs the ingestion service.
func NewService(p Params) (Service, error) {
	if p.Repo == nil {
		return nil, fmt.Errorf("asset repository required")
	}
	if p.GCS == nil {
		return nil, fmt.Errorf("gcs client required")
	}
	if p.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if p.AssetURLTTL <= 0 {
		return nil, fmt.Errorf("asset url ttl must be positive")
	}
	uploadPrefix := p.UploadPrefix
	if uploadPrefix == "" {
		uploadPrefix = "uploads/"
	}
	proxyEndpoint := p.ProxyEndpoint
	if proxyEndpoint == "" {
		proxyEndpoint = "/api/model"
	}
	return &service{
		repo:             p.Repo,
		gcs:              p.GCS,
		logg:             p.Logger,
		pipeline:         p.Pipeline,
		events:           p.Events,
		uploadPrefix:     uploadPrefix,
		trustedAssetHost: p.TrustedAssetHost,
		proxyEndpoint:    proxyEndpoint,
		assetURLTTL:      p.AssetURLTTL,
		newID:            uuid.New,
	}, nil
}

// ProcessObject dispatches a finalized object to the archive expander or the
// single-file ingestor. Objects outside the upload prefix are skipped so
// re-finalized resource objects never loop back through the pipeline.
func (s *service) ProcessObject(ctx context.Context, obj Object) error {
	name := strings.TrimSpace(obj.Name)
	if name == "" {
		return nil
	}
	if !strings.HasPrefix(name, s.uploadPrefix) {
		s.pipeline.IncSkipped("outside_uploads")
		s.logg.Info(ctx, "skipping object outside upload prefix")
		return nil
	}

	uploaderID, rest, ok := splitUploadPath(name, s.uploadPrefix)
	if !ok {
		s.pipeline.IncSkipped("malformed_path")
		s.logg.Warn(ctx, "upload path missing uploader segment")
		return nil
	}

	if classify.IsArchive(name) {
		return s.processArchive(ctx, obj, uploaderID)
	}
	return s.ingestFile(ctx, obj, uploaderID, rest)
}

// ingestFile writes exactly one asset record for a recognized non-archive
// object, or nothing at all.
func (s *service) ingestFile(ctx context.Context, obj Object, uploaderID, rest string) error {
	if s.trustedAssetHost != "" && strings.HasPrefix(rest, s.trustedAssetHost) {
		return s.ingestExternalURL(ctx, obj, uploaderID, rest)
	}

	base := path.Base(rest)
	classification, ok := classify.Classify(base)
	if !ok {
		s.pipeline.IncSkipped("unrecognized_extension")
		s.logg.Info(ctx, "skipping unrecognized extension")
		return nil
	}

	destKey := s.buildResourceKey(classification.Type.String(), uploaderID, base)
	if err := s.gcs.MoveObject(ctx, obj.Bucket, obj.Name, obj.Bucket, destKey); err != nil {
		s.pipeline.IncFailed("file")
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "move object to resources")
	}

	downloadURL, err := s.gcs.SignedReadURL(obj.Bucket, destKey, s.assetURLTTL)
	if err != nil {
		s.pipeline.IncFailed("file")
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sign download url")
	}

	asset := &models.Asset{
		ID:          s.newID(),
		Name:        base,
		Type:        classification.Type,
		SubType:     classification.SubType,
		Size:        obj.Size,
		UploadedBy:  uploaderID,
		Path:        destKey,
		Bucket:      obj.Bucket,
		Extension:   classification.SubType,
		DownloadURL: downloadURL,
	}
	if _, err := s.repo.Create(ctx, asset); err != nil {
		s.pipeline.IncFailed("file")
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist asset record")
	}

	s.pipeline.IncIngested("file")
	s.recordEvent(ctx, asset, "file")
	s.logg.Info(s.logg.WithField(ctx, "asset_id", asset.ID.String()), "asset ingested")
	return nil
}

// ingestExternalURL records an externally hosted asset without moving storage.
// Path keeps the upstream URL; downloads are routed through the model proxy.
func (s *service) ingestExternalURL(ctx context.Context, obj Object, uploaderID, externalURL string) error {
	base := path.Base(externalURL)
	classification, ok := classify.Classify(base)
	if !ok {
		s.pipeline.IncSkipped("unrecognized_extension")
		s.logg.Info(ctx, "skipping unrecognized external asset")
		return nil
	}

	asset := &models.Asset{
		ID:          s.newID(),
		Name:        base,
		Type:        classification.Type,
		SubType:     classification.SubType,
		Size:        obj.Size,
		UploadedBy:  uploaderID,
		Path:        externalURL,
		Bucket:      obj.Bucket,
		Extension:   classification.SubType,
		DownloadURL: s.proxyEndpoint + "?url=" + url.QueryEscape(externalURL),
	}
	if _, err := s.repo.Create(ctx, asset); err != nil {
		s.pipeline.IncFailed("external")
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist external asset record")
	}

	s.pipeline.IncIngested("external")
	s.recordEvent(ctx, asset, "external")
	s.logg.Info(s.logg.WithField(ctx, "asset_id", asset.ID.String()), "external asset recorded")
	return nil
}

// recordEvent ships a best-effort analytics row for an ingested asset.
func (s *service) recordEvent(ctx context.Context, asset *models.Asset, source string) {
	if s.events == nil {
		return
	}
	s.events.AssetIngested(ctx, types.AssetEventRow{
		EventID:    uuid.NewString(),
		EventType:  "asset_ingested",
		AssetID:    asset.ID.String(),
		AssetType:  asset.Type.String(),
		Source:     source,
		UploaderID: asset.UploadedBy,
		Bucket:     asset.Bucket,
		ObjectPath: asset.Path,
		SizeBytes:  asset.Size,
	})
}

func (s *service) buildResourceKey(assetType, uploaderID, base string) string {
	return fmt.Sprintf("resources/%s/%s/%s_%s", assetType, uploaderID, s.newID().String(), sanitizeFileName(base))
}

// splitUploadPath peels the upload prefix and the uploader segment off an
// object name: uploads/{uploaderID}/{rest...}.
func splitUploadPath(name, prefix string) (uploaderID, rest string, ok bool) {
	trimmed := strings.TrimPrefix(name, prefix)
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

func sanitizeFileName(name string) string {
	clean := path.Base(strings.TrimSpace(name))
	if clean == "." || clean == "/" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(clean))
	for _, r := range clean {
		switch {
		case r == '/' || r == '\\' || r < 0x20:
			continue
		case r == ' ':
			b.WriteRune('-')
		default:
			b.WriteRune(r)
		}
	}
	return strings.Trim(b.String(), "-_.")
}
