package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/voxelforge/voxelforge-backend/api/responses"
	"github.com/voxelforge/voxelforge-backend/pkg/bigquery"
	"github.com/voxelforge/voxelforge-backend/pkg/config"
	pkgerrors "github.com/voxelforge/voxelforge-backend/pkg/errors"
	"github.com/voxelforge/voxelforge-backend/pkg/logger"
	"github.com/voxelforge/voxelforge-backend/pkg/redis"
	"github.com/voxelforge/voxelforge-backend/pkg/storage/gcs"
)

const readinessTimeout = 5 * time.Second

type pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-VoxelForge-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady verifies every backing dependency responds before reporting ready.
func HealthReady(
	cfg *config.Config,
	logg *logger.Logger,
	dbP pinger,
	redisClient *redis.Client,
	gcsClient gcs.Pinger,
	bigqueryClient bigquery.Pinger,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-VoxelForge-Env", cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		checks := map[string]pinger{
			"database": dbP,
			"redis":    redisClient,
			"storage":  gcsClient,
			"bigquery": bigqueryClient,
		}
		status := map[string]string{}
		healthy := true
		for name, dep := range checks {
			if dep == nil {
				status[name] = "skipped"
				continue
			}
			if err := dep.Ping(ctx); err != nil {
				status[name] = "down"
				healthy = false
				if logg != nil {
					logg.Error(logg.WithField(ctx, "dependency", name), "readiness check failed", err)
				}
				continue
			}
			status[name] = "ok"
		}

		if !healthy {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeDependency, "dependency unavailable").WithDetails(status))
			return
		}
		responses.WriteSuccess(w, map[string]any{"status": "ready", "checks": status})
	}
}
