package scenes

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/voxelforge/voxelforge-backend/pkg/db/models"
	pkgerrors "github.com/voxelforge/voxelforge-backend/pkg/errors"
	"github.com/voxelforge/voxelforge-backend/pkg/logger"
	"gorm.io/gorm"
)

type stubSceneRepo struct {
	created   []*models.Scene
	updated   []*models.Scene
	byID      map[uuid.UUID]*models.Scene
	listErr   error
	createErr error
	listed    []models.Scene
}

func (s *stubSceneRepo) Create(ctx context.Context, scene *models.Scene) (*models.Scene, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	s.created = append(s.created, scene)
	return scene, nil
}

func (s *stubSceneRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Scene, error) {
	if scene, ok := s.byID[id]; ok {
		return scene, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubSceneRepo) Update(ctx context.Context, scene *models.Scene) (*models.Scene, error) {
	s.updated = append(s.updated, scene)
	return scene, nil
}

func (s *stubSceneRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.Scene, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.listed, nil
}

func newSceneService(t *testing.T, repo *stubSceneRepo) Service {
	t.Helper()
	svc, err := NewService(repo, logger.New(logger.Options{ServiceName: "test"}))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func assertCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	typed := pkgerrors.As(err)
	if typed == nil {
		t.Fatalf("expected coded error, got %v", err)
	}
	if typed.Code() != code {
		t.Fatalf("expected code %s, got %s", code, typed.Code())
	}
}

func TestSaveCreatesNewScene(t *testing.T) {
	t.Parallel()

	repo := &stubSceneRepo{}
	svc := newSceneService(t, repo)

	scene, err := svc.Save(context.Background(), SaveInput{
		UserID:    "u1",
		Name:      "castle",
		SceneData: json.RawMessage(`{"nodes":[]}`),
	})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if scene.ID == uuid.Nil {
		t.Fatalf("expected generated scene id")
	}
	if len(repo.created) != 1 || len(repo.updated) != 0 {
		t.Fatalf("expected one create, got %d creates %d updates", len(repo.created), len(repo.updated))
	}
	if scene.UserID != "u1" || scene.Name != "castle" {
		t.Fatalf("unexpected scene %+v", scene)
	}
}

func TestSaveUpdatesOwnedScene(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	repo := &stubSceneRepo{byID: map[uuid.UUID]*models.Scene{
		id: {ID: id, UserID: "u1", Name: "old", SceneData: json.RawMessage(`{}`)},
	}}
	svc := newSceneService(t, repo)

	scene, err := svc.Save(context.Background(), SaveInput{
		SceneID:   &id,
		UserID:    "u1",
		Name:      "renamed",
		SceneData: json.RawMessage(`{"nodes":[1]}`),
	})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if scene.Name != "renamed" {
		t.Fatalf("expected renamed scene, got %s", scene.Name)
	}
	if !bytes.Equal(scene.SceneData, []byte(`{"nodes":[1]}`)) {
		t.Fatalf("expected replaced payload, got %s", scene.SceneData)
	}
	if len(repo.updated) != 1 || len(repo.created) != 0 {
		t.Fatalf("expected one update")
	}
}

func TestSaveRejectsForeignScene(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	repo := &stubSceneRepo{byID: map[uuid.UUID]*models.Scene{
		id: {ID: id, UserID: "owner", Name: "theirs", SceneData: json.RawMessage(`{}`)},
	}}
	svc := newSceneService(t, repo)

	_, err := svc.Save(context.Background(), SaveInput{
		SceneID:   &id,
		UserID:    "intruder",
		Name:      "stolen",
		SceneData: json.RawMessage(`{}`),
	})
	assertCode(t, err, pkgerrors.CodeForbidden)
	if len(repo.updated) != 0 {
		t.Fatalf("foreign scene must not be updated")
	}
}

func TestSaveUnknownSceneID(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	svc := newSceneService(t, &stubSceneRepo{})

	_, err := svc.Save(context.Background(), SaveInput{
		SceneID:   &id,
		UserID:    "u1",
		Name:      "missing",
		SceneData: json.RawMessage(`{}`),
	})
	assertCode(t, err, pkgerrors.CodeNotFound)
}

func TestSaveValidation(t *testing.T) {
	t.Parallel()

	svc := newSceneService(t, &stubSceneRepo{})
	ctx := context.Background()

	cases := map[string]struct {
		input SaveInput
		code  pkgerrors.Code
	}{
		"missing user": {
			input: SaveInput{Name: "x", SceneData: json.RawMessage(`{}`)},
			code:  pkgerrors.CodeUnauthorized,
		},
		"missing name": {
			input: SaveInput{UserID: "u1", SceneData: json.RawMessage(`{}`)},
			code:  pkgerrors.CodeValidation,
		},
		"missing data": {
			input: SaveInput{UserID: "u1", Name: "x"},
			code:  pkgerrors.CodeValidation,
		},
		"invalid json": {
			input: SaveInput{UserID: "u1", Name: "x", SceneData: json.RawMessage(`{broken`)},
			code:  pkgerrors.CodeValidation,
		},
		"oversized payload": {
			input: SaveInput{UserID: "u1", Name: "x", SceneData: bytes.Repeat([]byte("a"), maxSceneBytes+1)},
			code:  pkgerrors.CodeValidation,
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Save(ctx, tc.input)
			assertCode(t, err, tc.code)
		})
	}
}

func TestSaveWrapsRepoFailure(t *testing.T) {
	t.Parallel()

	repo := &stubSceneRepo{createErr: errors.New("insert failed")}
	svc := newSceneService(t, repo)

	_, err := svc.Save(context.Background(), SaveInput{
		UserID:    "u1",
		Name:      "x",
		SceneData: json.RawMessage(`{}`),
	})
	assertCode(t, err, pkgerrors.CodeDependency)
}

func TestListRequiresUser(t *testing.T) {
	t.Parallel()

	svc := newSceneService(t, &stubSceneRepo{})
	_, err := svc.List(context.Background(), "  ", 10, 0)
	assertCode(t, err, pkgerrors.CodeUnauthorized)
}

func TestListReturnsUserScenes(t *testing.T) {
	t.Parallel()

	repo := &stubSceneRepo{listed: []models.Scene{{Name: "a"}, {Name: "b"}}}
	svc := newSceneService(t, repo)

	scenes, err := svc.List(context.Background(), "u1", 10, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(scenes) != 2 {
		t.Fatalf("expected 2 scenes, got %d", len(scenes))
	}
}
