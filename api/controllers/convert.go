package controllers

import (
	"errors"
	"net/http"

	"github.com/voxelforge/voxelforge-backend/api/responses"
	"github.com/voxelforge/voxelforge-backend/internal/convert"
	pkgerrors "github.com/voxelforge/voxelforge-backend/pkg/errors"
	"github.com/voxelforge/voxelforge-backend/pkg/logger"
)

const maxConvertUploadBytes = 256 << 20

// ConvertUsdzToGlb accepts a multipart usdz upload and returns a signed URL
// for the converted glb.
func ConvertUsdzToGlb(svc convert.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "conversion service unavailable"))
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxConvertUploadBytes)
		file, header, err := r.FormFile("file")
		if err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "upload exceeds size limit"))
				return
			}
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "multipart file field required"))
			return
		}
		defer func() { _ = file.Close() }()

		result, err := svc.Convert(r.Context(), convert.Input{
			FileName: header.Filename,
			Body:     file,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
