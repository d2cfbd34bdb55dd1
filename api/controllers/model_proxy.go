package controllers

import (
	"net/http"
	"strconv"

	"github.com/voxelforge/voxelforge-backend/api/responses"
	"github.com/voxelforge/voxelforge-backend/internal/meshy"
	pkgerrors "github.com/voxelforge/voxelforge-backend/pkg/errors"
	"github.com/voxelforge/voxelforge-backend/pkg/logger"
)

// ModelProxy streams a model file from the upstream asset host. The upstream
// content type is forwarded so viewers can load the bytes directly.
func ModelProxy(proxy meshy.Proxy, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if proxy == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "model proxy unavailable"))
			return
		}

		result, err := proxy.Fetch(r.Context(), r.URL.Query().Get("url"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		w.Header().Set("Content-Type", result.ContentType)
		w.Header().Set("Content-Length", strconv.Itoa(len(result.Body)))
		w.Header().Set("Cache-Control", "public, max-age=3600")
		if _, err := w.Write(result.Body); err != nil && logg != nil {
			logg.Error(r.Context(), "failed to write proxied model", err)
		}
	}
}
