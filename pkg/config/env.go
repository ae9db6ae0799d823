package config

// EnvPrefix is handed to envconfig; every field carries its full variable name.
const EnvPrefix = "PRODUCTFEED"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "production"
)

const (
	EnvAppEnv                  = "PRODUCTFEED_APP_ENV"
	EnvPort                    = "PRODUCTFEED_APP_PORT"
	EnvLogLevel                = "PRODUCTFEED_LOG_LEVEL"
	EnvLogFormat               = "PRODUCTFEED_LOG_FORMAT"
	EnvCatalogBaseURL          = "PRODUCTFEED_CATALOG_BASE_URL"
	EnvCatalogPageTimeout      = "PRODUCTFEED_CATALOG_PAGE_TIMEOUT"
	EnvCatalogFullTimeout      = "PRODUCTFEED_CATALOG_FULL_TIMEOUT"
	EnvCatalogMaxRetries       = "PRODUCTFEED_CATALOG_MAX_RETRIES"
	EnvCatalogBackoff          = "PRODUCTFEED_CATALOG_RETRY_BACKOFF"
	EnvCatalogConnectivityAddr = "PRODUCTFEED_CATALOG_CONNECTIVITY_ADDR"
	EnvRedisURL                = "PRODUCTFEED_REDIS_URL"
	EnvRedisSnapshotTTL        = "PRODUCTFEED_REDIS_SNAPSHOT_TTL"
	EnvSessionsIdleTTL         = "PRODUCTFEED_SESSIONS_IDLE_TTL"
	EnvSessionsMax             = "PRODUCTFEED_SESSIONS_MAX"
	EnvSessionsCreateMax       = "PRODUCTFEED_SESSIONS_CREATE_LIMIT"
	EnvCORSOrigins             = "PRODUCTFEED_CORS_ORIGINS"
)
