package ingest

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/voxelforge/voxelforge-backend/internal/classify"
	"github.com/voxelforge/voxelforge-backend/pkg/db/models"
	pkgerrors "github.com/voxelforge/voxelforge-backend/pkg/errors"
	"go.uber.org/multierr"
)

// processArchive expands a finalized zip and ingests every recognized entry.
// A failed entry is logged and counted; the job errors only when every
// recognized entry fails. Records for entries that succeeded are durable
// either way.
func (s *service) processArchive(ctx context.Context, obj Object, uploaderID string) error {
	tempDir, err := os.MkdirTemp("", "ingest-archive-")
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create temp dir")
	}
	defer func() { _ = os.RemoveAll(tempDir) }()

	archivePath := filepath.Join(tempDir, "archive.zip")
	if err := s.downloadToFile(ctx, obj.Bucket, obj.Name, archivePath); err != nil {
		s.pipeline.IncFailed("archive")
		return err
	}

	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		s.pipeline.IncFailed("archive")
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "open archive")
	}
	defer func() { _ = reader.Close() }()

	var (
		entryErrs error
		attempted int
		succeeded int
	)
	for _, entry := range reader.File {
		if entry.FileInfo().IsDir() {
			continue
		}
		classification, ok := classify.Classify(entry.Name)
		if !ok {
			continue
		}

		attempted++
		if err := s.ingestArchiveEntry(ctx, obj, uploaderID, tempDir, entry, classification); err != nil {
			s.pipeline.IncFailed("archive_entry")
			s.logg.Error(s.logg.WithField(ctx, "entry", entry.Name), "archive entry failed", err)
			entryErrs = multierr.Append(entryErrs, fmt.Errorf("entry %s: %w", entry.Name, err))
			continue
		}
		succeeded++
	}

	if attempted > 0 && succeeded == 0 {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, entryErrs, "all archive entries failed")
	}
	if entryErrs != nil {
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
			"attempted": attempted,
			"succeeded": succeeded,
		}), "archive expanded with partial failures")
	}
	return nil
}

func (s *service) ingestArchiveEntry(ctx context.Context, obj Object, uploaderID, tempDir string, entry *zip.File, classification classify.Classification) error {
	extracted, err := extractEntry(tempDir, entry)
	if err != nil {
		return err
	}

	base := path.Base(entry.Name)
	destKey := s.buildResourceKey(classification.Type.String(), uploaderID, base)
	contentType := "application/" + classification.SubType

	file, err := os.Open(extracted)
	if err != nil {
		return fmt.Errorf("open extracted entry: %w", err)
	}
	defer func() { _ = file.Close() }()

	if err := s.gcs.UploadObject(ctx, obj.Bucket, destKey, contentType, nil, file); err != nil {
		return fmt.Errorf("upload entry: %w", err)
	}

	downloadURL, err := s.gcs.SignedReadURL(obj.Bucket, destKey, s.assetURLTTL)
	if err != nil {
		return fmt.Errorf("sign entry url: %w", err)
	}

	asset := &models.Asset{
		ID:          s.newID(),
		Name:        base,
		Type:        classification.Type,
		SubType:     classification.SubType,
		Size:        int64(entry.UncompressedSize64),
		UploadedBy:  uploaderID,
		Path:        destKey,
		Bucket:      obj.Bucket,
		Extension:   classification.SubType,
		DownloadURL: downloadURL,
	}
	if _, err := s.repo.Create(ctx, asset); err != nil {
		return fmt.Errorf("persist entry record: %w", err)
	}

	s.pipeline.IncIngested("archive")
	s.recordEvent(ctx, asset, "archive")
	return nil
}

// extractEntry writes a zip entry under dir, creating parents and refusing
// paths that escape the extraction root.
func extractEntry(dir string, entry *zip.File) (string, error) {
	cleaned := filepath.Clean(entry.Name)
	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) || filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("entry %q escapes extraction dir", entry.Name)
	}

	target := filepath.Join(dir, "extracted", cleaned)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("create entry parents: %w", err)
	}

	src, err := entry.Open()
	if err != nil {
		return "", fmt.Errorf("open zip entry: %w", err)
	}
	defer func() { _ = src.Close() }()

	dst, err := os.Create(target)
	if err != nil {
		return "", fmt.Errorf("create extracted file: %w", err)
	}
	defer func() { _ = dst.Close() }()

	if _, err := io.Copy(dst, src); err != nil {
		return "", fmt.Errorf("extract entry: %w", err)
	}
	return target, nil
}

func (s *service) downloadToFile(ctx context.Context, bucket, object, dest string) error {
	body, err := s.gcs.DownloadObject(ctx, bucket, object)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "download archive")
	}
	defer func() { _ = body.Close() }()

	file, err := os.Create(dest)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create archive temp file")
	}
	defer func() { _ = file.Close() }()

	if _, err := io.Copy(file, body); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "write archive to disk")
	}
	return nil
}
