package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/voxelforge/voxelforge-backend/api/routes"
	"github.com/voxelforge/voxelforge-backend/internal/convert"
	"github.com/voxelforge/voxelforge-backend/internal/ingest"
	"github.com/voxelforge/voxelforge-backend/internal/meshy"
	"github.com/voxelforge/voxelforge-backend/internal/scenes"
	"github.com/voxelforge/voxelforge-backend/pkg/bigquery"
	"github.com/voxelforge/voxelforge-backend/pkg/config"
	"github.com/voxelforge/voxelforge-backend/pkg/db"
	"github.com/voxelforge/voxelforge-backend/pkg/logger"
	"github.com/voxelforge/voxelforge-backend/pkg/migrate"
	"github.com/voxelforge/voxelforge-backend/pkg/redis"
	"github.com/voxelforge/voxelforge-backend/pkg/storage/gcs"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	gcsClient, err := gcs.NewClient(context.Background(), cfg.GCS, cfg.GCP, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap gcs", err)
		os.Exit(1)
	}

	bigqueryClient, err := bigquery.NewClient(context.Background(), cfg.GCP, cfg.BigQuery, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap bigquery", err)
		os.Exit(1)
	}
	defer func() {
		if err := bigqueryClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing bigquery", err)
		}
	}()

	sceneService, err := scenes.NewService(scenes.NewRepository(dbClient.DB()), logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create scene service", err)
		os.Exit(1)
	}

	convertService, err := convert.NewService(convert.Params{
		GCS:             gcsClient,
		Logger:          logg,
		Bucket:          cfg.GCS.BucketName,
		ConverterURL:    cfg.Convert.ConverterURL,
		InputURLExpiry:  cfg.Convert.InputURLExpiry,
		OutputURLExpiry: cfg.Convert.OutputURLExpiry,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create conversion service", err)
		os.Exit(1)
	}

	modelProxy, err := meshy.NewProxy(meshy.Params{
		Logger:           logg,
		AllowedURLPrefix: cfg.Meshy.AllowedURLPrefix,
		MaxRetries:       cfg.Meshy.MaxRetries,
		RetryBase:        cfg.Meshy.RetryBase,
		RequestTimeout:   cfg.Meshy.RequestTimeout,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create model proxy", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			gcsClient,
			bigqueryClient,
			sceneService,
			ingest.NewRepository(dbClient.DB()),
			convertService,
			modelProxy,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
