package config

const EnvPrefix = "SCANMARKET"

const (
	AppEnvLocal = "local"
	AppEnvDev   = "dev"
	AppEnvBeta  = "beta"
	AppEnvProd  = "production"
)

const (
	StorageBackendLocal = "local"
	StorageBackendS3    = "s3"

	IdempotencyBackendDB    = "db"
	IdempotencyBackendRedis = "redis"

	ChatBusLocal = "local"
	ChatBusRedis = "redis"
)

const (
	DefaultJWTSecret = "change-me"
	minSecretLength  = 32
)

const (
	EnvAppEnv               = "SCANMARKET_APP_ENV"
	EnvPort                 = "SCANMARKET_APP_PORT"
	EnvServerBaseURL        = "SCANMARKET_SERVER_BASE_URL"
	EnvDBDSN                = "SCANMARKET_DB_DSN"
	EnvDBHost               = "SCANMARKET_DB_HOST"
	EnvDBUser               = "SCANMARKET_DB_USER"
	EnvDBName               = "SCANMARKET_DB_NAME"
	EnvRedisURL             = "SCANMARKET_REDIS_URL"
	EnvJWTSecret            = "SCANMARKET_JWT_SECRET"
	EnvJWTIssuer            = "SCANMARKET_JWT_ISSUER"
	EnvJWTExpMins           = "SCANMARKET_JWT_EXPIRATION_MINUTES"
	EnvDevAuthEnabled       = "SCANMARKET_DEV_AUTH_ENABLED"
	EnvGoogleClientID       = "SCANMARKET_GOOGLE_CLIENT_ID"
	EnvStorageBackend       = "SCANMARKET_STORAGE_BACKEND"
	EnvStorageSigningSecret = "SCANMARKET_UPLOAD_SIGNING_SECRET"
	EnvStorageS3Endpoint    = "SCANMARKET_S3_ENDPOINT"
	EnvStorageS3Bucket      = "SCANMARKET_S3_BUCKET"
	EnvIdempotencyBackend   = "SCANMARKET_IDEMPOTENCY_BACKEND"
	EnvChatBus              = "SCANMARKET_CHAT_BUS"
	EnvOpenAIAPIKey         = "SCANMARKET_OPENAI_API_KEY"
)

var dbPartEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
