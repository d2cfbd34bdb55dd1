package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/voxelforge/voxelforge-backend/api/controllers"
	"github.com/voxelforge/voxelforge-backend/api/middleware"
	"github.com/voxelforge/voxelforge-backend/internal/convert"
	"github.com/voxelforge/voxelforge-backend/internal/ingest"
	"github.com/voxelforge/voxelforge-backend/internal/meshy"
	"github.com/voxelforge/voxelforge-backend/internal/scenes"
	"github.com/voxelforge/voxelforge-backend/pkg/bigquery"
	"github.com/voxelforge/voxelforge-backend/pkg/config"
	"github.com/voxelforge/voxelforge-backend/pkg/db"
	"github.com/voxelforge/voxelforge-backend/pkg/logger"
	"github.com/voxelforge/voxelforge-backend/pkg/redis"
	"github.com/voxelforge/voxelforge-backend/pkg/storage/gcs"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	gcsClient gcs.Pinger,
	bigqueryClient bigquery.Pinger,
	sceneService scenes.Service,
	assetRepo *ingest.Repository,
	convertService convert.Service,
	modelProxy meshy.Proxy,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient, gcsClient, bigqueryClient))
	})

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/ping", controllers.PublicPing())
	})

	// The model proxy is reachable without auth so viewers can embed the
	// download URLs the ingestor records.
	r.Get("/api/model", controllers.ModelProxy(modelProxy, logg))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Get("/ping", controllers.PrivatePing())

		r.Route("/scenes", func(r chi.Router) {
			r.Post("/", controllers.SaveScene(sceneService, logg))
			r.Get("/", controllers.ListScenes(sceneService, logg))
		})

		r.Get("/assets", controllers.ListAssets(assetRepo, logg))

		r.Post("/convert/usdz-to-glb", controllers.ConvertUsdzToGlb(convertService, logg))
	})

	return r
}
