package stats

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/voxelforge/voxelforge-backend/pkg/db"
	"github.com/voxelforge/voxelforge-backend/pkg/db/models"
	dbtypes "github.com/voxelforge/voxelforge-backend/pkg/db/types"
	pkgerrors "github.com/voxelforge/voxelforge-backend/pkg/errors"
	"github.com/voxelforge/voxelforge-backend/pkg/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Event is the generation-created message consumed off the generations topic.
type Event struct {
	GenerationID string `json:"generation_id"`
	UserID       string `json:"user_id"`
	Kind         string `json:"kind"`
}

// Service maintains per-user generation counters.
type Service interface {
	RecordGeneration(ctx context.Context, event Event) error
}

type service struct {
	tx   db.TxRunner
	logg *logger.Logger
	now  func() time.Time
}

// NewService constructs the stats service.
func NewService(tx db.TxRunner, logg *logger.Logger) (Service, error) {
	if tx == nil {
		return nil, errors.New("tx runner is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	return &service{tx: tx, logg: logg, now: time.Now}, nil
}

// RecordGeneration bumps the user's counters inside one transaction. The row
// is locked for the read-modify-write so concurrent events for the same user
// serialize instead of losing increments.
func (s *service) RecordGeneration(ctx context.Context, event Event) error {
	userID := strings.TrimSpace(event.UserID)
	if userID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "generation event missing user_id")
	}
	kind := strings.TrimSpace(event.Kind)
	if kind == "" {
		kind = "unknown"
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var row models.UserStats
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ?", userID).
			First(&row).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			row = models.UserStats{
				UserID:            userID,
				GenerationsByType: dbtypes.JSONCounts{},
			}
		case err != nil:
			return fmt.Errorf("load user stats: %w", err)
		}

		if row.GenerationsByType == nil {
			row.GenerationsByType = dbtypes.JSONCounts{}
		}
		row.TotalGenerations++
		row.GenerationsByType[kind]++
		row.LastGenerationDate = s.now().UTC()

		if err := tx.Save(&row).Error; err != nil {
			return fmt.Errorf("save user stats: %w", err)
		}
		return nil
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record generation stats")
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"user_id": userID,
		"kind":    kind,
	}), "generation recorded")
	return nil
}
