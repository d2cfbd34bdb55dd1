package controllers

import (
	"context"
	"net/http"

	"github.com/voxelforge/voxelforge-backend/api/middleware"
	"github.com/voxelforge/voxelforge-backend/api/responses"
	"github.com/voxelforge/voxelforge-backend/api/validators"
	"github.com/voxelforge/voxelforge-backend/pkg/db/models"
	pkgerrors "github.com/voxelforge/voxelforge-backend/pkg/errors"
	"github.com/voxelforge/voxelforge-backend/pkg/logger"
)

type assetLister interface {
	ListByUploader(ctx context.Context, uploaderID string, limit, offset int) ([]models.Asset, error)
}

// ListAssets returns the authenticated user's ingested assets.
func ListAssets(repo assetLister, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "asset repository unavailable"))
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

		assets, err := repo.ListByUploader(r.Context(), userID, limit, offset)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list assets"))
			return
		}
		responses.WriteSuccess(w, assets)
	}
}
