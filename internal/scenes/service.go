package scenes

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/voxelforge/voxelforge-backend/pkg/db/models"
	pkgerrors "github.com/voxelforge/voxelforge-backend/pkg/errors"
	"github.com/voxelforge/voxelforge-backend/pkg/logger"
	"gorm.io/gorm"
)

const maxSceneBytes = 4 << 20

type sceneRepository interface {
	Create(ctx context.Context, scene *models.Scene) (*models.Scene, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Scene, error)
	Update(ctx context.Context, scene *models.Scene) (*models.Scene, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.Scene, error)
}

// SaveInput carries one save request. A nil SceneID creates a new scene;
// otherwise the existing scene is overwritten.
type SaveInput struct {
	SceneID   *uuid.UUID
	UserID    string
	Name      string
	SceneData json.RawMessage
}

// Service handles scene persistence for the editor.
type Service interface {
	Save(ctx context.Context, input SaveInput) (*models.Scene, error)
	List(ctx context.Context, userID string, limit, offset int) ([]models.Scene, error)
}

type service struct {
	repo sceneRepository
	logg *logger.Logger
}

// NewService constructs the scene service.
func NewService(repo sceneRepository, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, errors.New("scene repository is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	return &service{repo: repo, logg: logg}, nil
}

// Save upserts a scene. Updates are only permitted for the owning user.
func (s *service) Save(ctx context.Context, input SaveInput) (*models.Scene, error) {
	userID := strings.TrimSpace(input.UserID)
	if userID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity required")
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "scene name is required")
	}
	if len(input.SceneData) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "scene data is required")
	}
	if len(input.SceneData) > maxSceneBytes {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "scene data exceeds size limit")
	}
	if !json.Valid(input.SceneData) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "scene data is not valid JSON")
	}

	if input.SceneID == nil {
		scene := &models.Scene{
			ID:        uuid.New(),
			UserID:    userID,
			Name:      name,
			SceneData: input.SceneData,
		}
		created, err := s.repo.Create(ctx, scene)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create scene")
		}
		s.logg.Info(s.logg.WithField(ctx, "scene_id", created.ID.String()), "scene created")
		return created, nil
	}

	existing, err := s.repo.FindByID(ctx, *input.SceneID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "scene not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load scene")
	}
	if existing.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "scene belongs to another user")
	}

	existing.Name = name
	existing.SceneData = input.SceneData
	updated, err := s.repo.Update(ctx, existing)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update scene")
	}
	s.logg.Info(s.logg.WithField(ctx, "scene_id", updated.ID.String()), "scene updated")
	return updated, nil
}

// List returns the caller's scenes.
func (s *service) List(ctx context.Context, userID string, limit, offset int) ([]models.Scene, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity required")
	}
	scenes, err := s.repo.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list scenes")
	}
	return scenes, nil
}
