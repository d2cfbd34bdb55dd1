package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/voxelforge/voxelforge-backend/internal/analytics/sink"
	"github.com/voxelforge/voxelforge-backend/internal/ingest"
	ingestconsumer "github.com/voxelforge/voxelforge-backend/internal/ingest/consumer"
	"github.com/voxelforge/voxelforge-backend/internal/stats"
	statsconsumer "github.com/voxelforge/voxelforge-backend/internal/stats/consumer"
	"github.com/voxelforge/voxelforge-backend/internal/thumbs"
	thumbsconsumer "github.com/voxelforge/voxelforge-backend/internal/thumbs/consumer"
	"github.com/voxelforge/voxelforge-backend/pkg/bigquery"
	"github.com/voxelforge/voxelforge-backend/pkg/config"
	"github.com/voxelforge/voxelforge-backend/pkg/db"
	"github.com/voxelforge/voxelforge-backend/pkg/logger"
	"github.com/voxelforge/voxelforge-backend/pkg/metrics"
	"github.com/voxelforge/voxelforge-backend/pkg/migrate"
	"github.com/voxelforge/voxelforge-backend/pkg/pubsub"
	"github.com/voxelforge/voxelforge-backend/pkg/storage/gcs"
)

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "ingest-worker"})

	_ = godotenv.Load()

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	cfg.Service.Kind = "ingest-worker"

	logg = logger.New(logger.Options{
		ServiceName: "ingest-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer dbClient.Close()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		requireResource(ctx, logg, "dev migrations", err)
	}

	gcsClient, err := gcs.NewClient(context.Background(), cfg.GCS, cfg.GCP, logg)
	requireResource(ctx, logg, "gcs", err)

	pubsubClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
	requireResource(ctx, logg, "pubsub", err)
	defer pubsubClient.Close()

	bigqueryClient, err := bigquery.NewClient(context.Background(), cfg.GCP, cfg.BigQuery, logg)
	requireResource(ctx, logg, "bigquery", err)
	defer bigqueryClient.Close()

	eventSink, err := sink.New(bigqueryClient, logg, sink.Config{
		AssetEventsTable: cfg.BigQuery.AssetEventsTable,
	})
	requireResource(ctx, logg, "analytics sink", err)

	pipeline := metrics.NewPipelineMetrics(prometheus.DefaultRegisterer)

	ingestService, err := ingest.NewService(ingest.Params{
		Repo:             ingest.NewRepository(dbClient.DB()),
		GCS:              gcsClient,
		Logger:           logg,
		Pipeline:         pipeline,
		Events:           eventSink,
		UploadPrefix:     cfg.Ingest.UploadPrefix,
		TrustedAssetHost: cfg.Ingest.TrustedAssetHost,
		AssetURLTTL:      cfg.GCS.AssetURLExpiry,
	})
	requireResource(ctx, logg, "ingest service", err)

	ingestCons, err := ingestconsumer.NewConsumer(
		ingestService,
		pubsubClient.IngestSubscription(),
		logg,
		cfg.Ingest.HandlerTimeout,
	)
	requireResource(ctx, logg, "ingest consumer", err)

	thumbGenerator, err := thumbs.NewGenerator(thumbs.Params{
		Repo:         thumbs.NewRepository(dbClient.DB()),
		GCS:          gcsClient,
		Logger:       logg,
		Pipeline:     pipeline,
		MaxDimension: cfg.Thumbnail.MaxDimension,
		URLTTL:       cfg.GCS.ThumbnailURLExpiry,
	})
	requireResource(ctx, logg, "thumbnail generator", err)

	thumbsCons, err := thumbsconsumer.NewConsumer(
		thumbGenerator,
		pubsubClient.ThumbnailSubscription(),
		logg,
		cfg.Ingest.HandlerTimeout,
	)
	requireResource(ctx, logg, "thumbnail consumer", err)

	statsService, err := stats.NewService(dbClient, logg)
	requireResource(ctx, logg, "stats service", err)

	statsCons, err := statsconsumer.NewConsumer(
		statsService,
		pubsubClient.GenerationsSubscription(),
		logg,
		0,
	)
	requireResource(ctx, logg, "stats consumer", err)

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	runCtx = logg.WithFields(runCtx, map[string]any{
		"serviceKind": cfg.Service.Kind,
		"env":         cfg.App.Env,
	})
	logg.Info(runCtx, "ingest worker ready")

	errCh := make(chan error, 3)
	go func() { errCh <- ingestCons.Run(runCtx) }()
	go func() { errCh <- thumbsCons.Run(runCtx) }()
	go func() { errCh <- statsCons.Run(runCtx) }()

	if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(runCtx, "ingest worker stopped unexpectedly", err)
		os.Exit(1)
	}
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
