package controllers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/voxelforge/voxelforge-backend/api/middleware"
	"github.com/voxelforge/voxelforge-backend/api/responses"
	"github.com/voxelforge/voxelforge-backend/api/validators"
	"github.com/voxelforge/voxelforge-backend/internal/scenes"
	pkgerrors "github.com/voxelforge/voxelforge-backend/pkg/errors"
	"github.com/voxelforge/voxelforge-backend/pkg/logger"
)

type saveSceneRequest struct {
	SceneID   string          `json:"scene_id,omitempty"`
	Name      string          `json:"name" validate:"required,max=200"`
	SceneData json.RawMessage `json:"scene_data" validate:"required"`
}

// SaveScene persists an editor scene document for the authenticated user.
func SaveScene(svc scenes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "scene service unavailable"))
			return
		}

		userID := middleware.UserIDFromContext(r.Context())
		if userID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
			return
		}

		var req saveSceneRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := scenes.SaveInput{
			UserID:    userID,
			Name:      validators.SanitizeString(req.Name, 200),
			SceneData: req.SceneData,
		}
		if raw := strings.TrimSpace(req.SceneID); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid scene id"))
				return
			}
			input.SceneID = &id
		}

		scene, err := svc.Save(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"scene_id": scene.ID.String()})
	}
}

// ListScenes returns the authenticated user's saved scenes.
func ListScenes(svc scenes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "scene service unavailable"))
			return
		}

		userID := middleware.UserIDFromContext(r.Context())
		if userID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", 50, 1, 100)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		offset, err := validators.ParseQueryInt(r, "offset", 0, 0, 100000)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.List(r.Context(), userID, limit, offset)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}
