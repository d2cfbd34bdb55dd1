package reaper

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/voxelforge/voxelforge-backend/pkg/db"
	"github.com/voxelforge/voxelforge-backend/pkg/db/models"
	"github.com/voxelforge/voxelforge-backend/pkg/logger"
	"github.com/voxelforge/voxelforge-backend/pkg/storage/gcs"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const (
	defaultBatchSize      = 500
	defaultDeleteParallel = 8
)

type generationRepo interface {
	ListExpired(ctx context.Context, cutoff time.Time, limit int) ([]models.Generation, error)
	DeleteBatch(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) (int64, error)
}

type objectDeleter interface {
	DeleteObject(ctx context.Context, bucket, object string) error
}

// JobParams configure the expiration job.
type JobParams struct {
	Logger    *logger.Logger
	DB        db.TxRunner
	Repo      generationRepo
	Storage   objectDeleter
	BatchSize int
	Parallel  int
}

// NewJob builds the cron job that removes expired generations and their
// storage artifacts.
func NewJob(params JobParams) (*Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("generation repository required")
	}
	if params.Storage == nil {
		return nil, fmt.Errorf("storage client required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	parallel := params.Parallel
	if parallel <= 0 {
		parallel = defaultDeleteParallel
	}
	return &Job{
		logg:     params.Logger,
		db:       params.DB,
		repo:     params.Repo,
		storage:  params.Storage,
		batch:    batch,
		parallel: parallel,
		now:      time.Now,
	}, nil
}

// Job deletes generations past their expiry. Storage deletes are best effort;
// the run fails only when the expired query or the record delete fails.
type Job struct {
	logg     *logger.Logger
	db       db.TxRunner
	repo     generationRepo
	storage  objectDeleter
	batch    int
	parallel int
	now      func() time.Time
}

func (j *Job) Name() string { return "generation-expiration" }

func (j *Job) Run(ctx context.Context) error {
	cutoff := j.now().UTC()
	expired, err := j.repo.ListExpired(ctx, cutoff, j.batch)
	if err != nil {
		return fmt.Errorf("list expired generations: %w", err)
	}
	if len(expired) == 0 {
		j.logg.Info(ctx, "no expired generations")
		return nil
	}

	ids := make([]uuid.UUID, 0, len(expired))
	for _, generation := range expired {
		ids = append(ids, generation.ID)
	}

	// Artifact deletes and the record batch run side by side; both settle
	// before the run returns, and only the record delete can fail the run.
	var deleted int64
	var group errgroup.Group
	group.Go(func() error {
		j.deleteArtifacts(ctx, expired)
		return nil
	})
	group.Go(func() error {
		return j.db.WithTx(ctx, func(tx *gorm.DB) error {
			rows, err := j.repo.DeleteBatch(ctx, tx, ids)
			if err != nil {
				return err
			}
			deleted = rows
			return nil
		})
	})
	if err := group.Wait(); err != nil {
		return fmt.Errorf("delete expired generations: %w", err)
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":       cutoff,
		"rows_deleted": deleted,
	})
	j.logg.Info(logCtx, "expired generations reaped")
	return nil
}

// deleteArtifacts removes every storage object referenced by the expired
// generations. A record whose objects fail to delete is still purged, so a
// stuck object never blocks the reaper.
func (j *Job) deleteArtifacts(ctx context.Context, expired []models.Generation) {
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(j.parallel)

	for _, generation := range expired {
		for _, raw := range artifactURLs(generation) {
			group.Go(func() error {
				bucket, object, err := gcs.ObjectKeyFromSignedURL(raw)
				if err != nil {
					j.logg.Warn(j.logg.WithField(ctx, "generation_id", generation.ID.String()), "unparseable artifact url")
					return nil
				}
				if err := j.storage.DeleteObject(groupCtx, bucket, object); err != nil {
					deleteCtx := j.logg.WithObject(ctx, bucket, object)
					j.logg.Error(deleteCtx, "artifact delete failed", err)
				}
				return nil
			})
		}
	}
	_ = group.Wait()
}

func artifactURLs(generation models.Generation) []string {
	urls := make([]string, 0, len(generation.ModelURLs)+1)
	for _, value := range generation.ModelURLs {
		if value != "" {
			urls = append(urls, value)
		}
	}
	if generation.ThumbnailURL != nil && *generation.ThumbnailURL != "" {
		urls = append(urls, *generation.ThumbnailURL)
	}
	return urls
}
