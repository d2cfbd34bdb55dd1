package config

// EnvPrefix is the envconfig prefix shared by every VoxelForge process.
const EnvPrefix = "VOXELFORGE"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv   = "VOXELFORGE_APP_ENV"
	EnvPort     = "VOXELFORGE_APP_PORT"
	EnvLogLevel = "VOXELFORGE_LOG_LEVEL"

	EnvDBDSN  = "VOXELFORGE_DB_DSN"
	EnvDBHost = "VOXELFORGE_DB_HOST"
	EnvDBUser = "VOXELFORGE_DB_USER"
	EnvDBName = "VOXELFORGE_DB_NAME"

	EnvRedisURL = "VOXELFORGE_REDIS_URL"

	EnvJWTSecret  = "VOXELFORGE_JWT_SECRET"
	EnvJWTIssuer  = "VOXELFORGE_JWT_ISSUER"
	EnvJWTExpMins = "VOXELFORGE_JWT_EXPIRATION_MINUTES"

	EnvGCPProjectID = "VOXELFORGE_GCP_PROJECT_ID"

	EnvGCSBucket = "VOXELFORGE_GCS_BUCKET_NAME"

	EnvPubSubIngestSub      = "VOXELFORGE_PUBSUB_INGEST_SUBSCRIPTION"
	EnvPubSubThumbnailSub   = "VOXELFORGE_PUBSUB_THUMBNAIL_SUBSCRIPTION"
	EnvPubSubGenerationsSub = "VOXELFORGE_PUBSUB_GENERATIONS_SUBSCRIPTION"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
