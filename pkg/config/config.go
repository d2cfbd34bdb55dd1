package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	GCS          GCSConfig
	PubSub       PubSubConfig
	Ingest       IngestConfig
	Thumbnail    ThumbnailConfig
	Convert      ConvertConfig
	Meshy        MeshyConfig
	BigQuery     BigQueryConfig
	Cron         CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"VOXELFORGE_APP_ENV" required:"true"`
	Port         string `envconfig:"VOXELFORGE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"VOXELFORGE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"VOXELFORGE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"VOXELFORGE_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"VOXELFORGE_DB_DSN"`
	Driver string `envconfig:"VOXELFORGE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"VOXELFORGE_DB_HOST"`
	LegacyPort     int    `envconfig:"VOXELFORGE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"VOXELFORGE_DB_USER"`
	LegacyPassword string `envconfig:"VOXELFORGE_DB_PASSWORD"`
	LegacyName     string `envconfig:"VOXELFORGE_DB_NAME"`
	LegacySSLMode  string `envconfig:"VOXELFORGE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"VOXELFORGE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"VOXELFORGE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"VOXELFORGE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"VOXELFORGE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"VOXELFORGE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"VOXELFORGE_REDIS_ADDR"`
	Password     string        `envconfig:"VOXELFORGE_REDIS_PASSWORD"`
	DB           int           `envconfig:"VOXELFORGE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"VOXELFORGE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"VOXELFORGE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"VOXELFORGE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"VOXELFORGE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"VOXELFORGE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"VOXELFORGE_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"VOXELFORGE_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"VOXELFORGE_JWT_EXPIRATION_MINUTES" required:"true"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"VOXELFORGE_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"VOXELFORGE_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"VOXELFORGE_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"VOXELFORGE_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"VOXELFORGE_GOOGLE_APPLICATION_CREDENTIALS"`
}

type GCSConfig struct {
	BucketName         string        `envconfig:"VOXELFORGE_GCS_BUCKET_NAME" required:"true"`
	AssetURLExpiry     time.Duration `envconfig:"VOXELFORGE_GCS_ASSET_URL_EXPIRY" default:"168h"`
	ThumbnailURLExpiry time.Duration `envconfig:"VOXELFORGE_GCS_THUMBNAIL_URL_EXPIRY" default:"168h"`
}

type PubSubConfig struct {
	IngestSubscription      string `envconfig:"VOXELFORGE_PUBSUB_INGEST_SUBSCRIPTION" required:"true"`
	ThumbnailSubscription   string `envconfig:"VOXELFORGE_PUBSUB_THUMBNAIL_SUBSCRIPTION" required:"true"`
	GenerationsSubscription string `envconfig:"VOXELFORGE_PUBSUB_GENERATIONS_SUBSCRIPTION" required:"true"`
}

type IngestConfig struct {
	UploadPrefix     string        `envconfig:"VOXELFORGE_INGEST_UPLOAD_PREFIX" default:"uploads/"`
	TrustedAssetHost string        `envconfig:"VOXELFORGE_INGEST_TRUSTED_ASSET_HOST" default:"https://assets.meshy.ai"`
	HandlerTimeout   time.Duration `envconfig:"VOXELFORGE_INGEST_HANDLER_TIMEOUT" default:"9m"`
}

type ThumbnailConfig struct {
	MaxDimension int `envconfig:"VOXELFORGE_THUMBNAIL_MAX_DIMENSION" default:"256"`
}

type ConvertConfig struct {
	ConverterURL    string        `envconfig:"VOXELFORGE_CONVERTER_URL"`
	InputURLExpiry  time.Duration `envconfig:"VOXELFORGE_CONVERT_INPUT_URL_EXPIRY" default:"15m"`
	OutputURLExpiry time.Duration `envconfig:"VOXELFORGE_CONVERT_OUTPUT_URL_EXPIRY" default:"24h"`
}

type MeshyConfig struct {
	AllowedURLPrefix string        `envconfig:"VOXELFORGE_MESHY_ALLOWED_URL_PREFIX" default:"https://assets.meshy.ai"`
	MaxRetries       int           `envconfig:"VOXELFORGE_MESHY_MAX_RETRIES" default:"4"`
	RetryBase        time.Duration `envconfig:"VOXELFORGE_MESHY_RETRY_BASE" default:"500ms"`
	RequestTimeout   time.Duration `envconfig:"VOXELFORGE_MESHY_REQUEST_TIMEOUT" default:"60s"`
}

type BigQueryConfig struct {
	Dataset          string `envconfig:"VOXELFORGE_BIGQUERY_DATASET" default:"voxelforge"`
	AssetEventsTable string `envconfig:"VOXELFORGE_BIGQUERY_ASSET_EVENTS_TABLE" default:"asset_events"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"VOXELFORGE_CRON_INTERVAL" default:"24h"`
	LockTTL  time.Duration `envconfig:"VOXELFORGE_CRON_LOCK_TTL" default:"30m"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
