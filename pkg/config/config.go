package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Auth          AuthConfig
	AuthRateLimit AuthRateLimitConfig
	Storage       StorageConfig
	Idempotency   IdempotencyConfig
	Chat          ChatConfig
	AI            AIConfig
	Metrics       MetricsConfig
	Maintenance   MaintenanceConfig
	FeatureFlags  FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings that are only safe on a developer machine.
func (c *Config) Validate() error {
	if c.Auth.DevAuthEnabled && !c.App.IsLocal() {
		return fmt.Errorf("%s is only allowed when %s=%s", EnvDevAuthEnabled, EnvAppEnv, AppEnvLocal)
	}
	if !c.App.IsLocal() {
		if c.JWT.Secret == DefaultJWTSecret {
			return fmt.Errorf("%s must be changed outside %s", EnvJWTSecret, AppEnvLocal)
		}
		if c.Storage.Backend == StorageBackendLocal && len(c.Storage.SigningSecret) < minSecretLength {
			return fmt.Errorf("%s must be at least %d characters", EnvStorageSigningSecret, minSecretLength)
		}
	}
	if (c.App.IsBeta() || c.App.IsProd()) && len(c.JWT.Secret) < minSecretLength {
		return fmt.Errorf("%s must be at least %d characters", EnvJWTSecret, minSecretLength)
	}
	switch c.Storage.Backend {
	case StorageBackendLocal:
	case StorageBackendS3:
		if c.Storage.S3Endpoint == "" || c.Storage.S3Bucket == "" {
			return fmt.Errorf("%s and %s are required for the s3 backend", EnvStorageS3Endpoint, EnvStorageS3Bucket)
		}
	default:
		return fmt.Errorf("unsupported %s %q", EnvStorageBackend, c.Storage.Backend)
	}
	switch c.Idempotency.Backend {
	case IdempotencyBackendDB, IdempotencyBackendRedis:
	default:
		return fmt.Errorf("unsupported %s %q", EnvIdempotencyBackend, c.Idempotency.Backend)
	}
	switch c.Chat.Bus {
	case ChatBusLocal, ChatBusRedis:
	default:
		return fmt.Errorf("unsupported %s %q", EnvChatBus, c.Chat.Bus)
	}
	return nil
}

type AppConfig struct {
	Env           string `envconfig:"SCANMARKET_APP_ENV" default:"local"`
	Port          string `envconfig:"SCANMARKET_APP_PORT" default:"8000"`
	ServerBaseURL string `envconfig:"SCANMARKET_SERVER_BASE_URL" default:"http://localhost:8000"`
	LogLevel      string `envconfig:"SCANMARKET_LOG_LEVEL" default:"info"`
	LogWarnStack  bool   `envconfig:"SCANMARKET_LOG_WARN_STACK" default:"false"`
	CORSOrigins   string `envconfig:"SCANMARKET_CORS_ORIGINS"`
}

func (a AppConfig) IsLocal() bool {
	return strings.EqualFold(a.Env, AppEnvLocal)
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsBeta() bool {
	return strings.EqualFold(a.Env, AppEnvBeta)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd) || strings.EqualFold(a.Env, "prod")
}

// AllowedOrigins splits the comma separated origin list. Local runs default to a wildcard.
func (a AppConfig) AllowedOrigins() []string {
	var out []string
	for _, origin := range strings.Split(a.CORSOrigins, ",") {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 && a.IsLocal() {
		return []string{"*"}
	}
	return out
}

type DBConfig struct {
	DSN    string `envconfig:"SCANMARKET_DB_DSN"`
	Driver string `envconfig:"SCANMARKET_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"SCANMARKET_DB_HOST"`
	Port     int    `envconfig:"SCANMARKET_DB_PORT" default:"5432"`
	User     string `envconfig:"SCANMARKET_DB_USER"`
	Password string `envconfig:"SCANMARKET_DB_PASSWORD"`
	Name     string `envconfig:"SCANMARKET_DB_NAME"`
	SSLMode  string `envconfig:"SCANMARKET_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SCANMARKET_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SCANMARKET_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SCANMARKET_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SCANMARKET_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"SCANMARKET_REDIS_URL"`
	Address      string        `envconfig:"SCANMARKET_REDIS_ADDR" default:"localhost:6379"`
	Password     string        `envconfig:"SCANMARKET_REDIS_PASSWORD"`
	DB           int           `envconfig:"SCANMARKET_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SCANMARKET_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SCANMARKET_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SCANMARKET_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SCANMARKET_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SCANMARKET_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"SCANMARKET_JWT_SECRET" default:"change-me"`
	Issuer                 string `envconfig:"SCANMARKET_JWT_ISSUER" default:"scanmarket"`
	ExpirationMinutes      int    `envconfig:"SCANMARKET_JWT_EXPIRATION_MINUTES" default:"30"`
	RefreshTokenTTLMinutes int    `envconfig:"SCANMARKET_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// AccessTokenTTL returns the access token lifetime configured in minutes.
func (j JWTConfig) AccessTokenTTL() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return 0
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type AuthConfig struct {
	DevAuthEnabled     bool   `envconfig:"SCANMARKET_DEV_AUTH_ENABLED" default:"false"`
	GoogleClientID     string `envconfig:"SCANMARKET_GOOGLE_CLIENT_ID"`
	GoogleIOSClientID  string `envconfig:"SCANMARKET_GOOGLE_IOS_CLIENT_ID"`
	GoogleClientSecret string `envconfig:"SCANMARKET_GOOGLE_CLIENT_SECRET"`
	GoogleRedirectURL  string `envconfig:"SCANMARKET_GOOGLE_REDIRECT_URL"`
}

// GoogleEnabled reports whether at least one Google client is configured.
func (a AuthConfig) GoogleEnabled() bool {
	return strings.TrimSpace(a.GoogleClientID) != "" || strings.TrimSpace(a.GoogleIOSClientID) != ""
}

// GoogleAudiences lists the client ids a Google ID token may be issued for.
func (a AuthConfig) GoogleAudiences() []string {
	var out []string
	for _, id := range []string{a.GoogleClientID, a.GoogleIOSClientID} {
		if trimmed := strings.TrimSpace(id); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

type AuthRateLimitConfig struct {
	LoginWindow     time.Duration `envconfig:"SCANMARKET_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit int           `envconfig:"SCANMARKET_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit    int           `envconfig:"SCANMARKET_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
}

type StorageConfig struct {
	Backend           string        `envconfig:"SCANMARKET_STORAGE_BACKEND" default:"local"`
	LocalPath         string        `envconfig:"SCANMARKET_STORAGE_LOCAL_PATH" default:"./data/storage"`
	SigningSecret     string        `envconfig:"SCANMARKET_UPLOAD_SIGNING_SECRET" default:"local-upload-signing-secret"`
	UploadURLExpiry   time.Duration `envconfig:"SCANMARKET_UPLOAD_URL_EXPIRY" default:"1h"`
	DownloadURLExpiry time.Duration `envconfig:"SCANMARKET_DOWNLOAD_URL_EXPIRY" default:"1h"`
	S3Endpoint        string        `envconfig:"SCANMARKET_S3_ENDPOINT"`
	S3Bucket          string        `envconfig:"SCANMARKET_S3_BUCKET"`
	S3AccessKey       string        `envconfig:"SCANMARKET_S3_ACCESS_KEY"`
	S3SecretKey       string        `envconfig:"SCANMARKET_S3_SECRET_KEY"`
	S3Region          string        `envconfig:"SCANMARKET_S3_REGION"`
	S3UseSSL          bool          `envconfig:"SCANMARKET_S3_USE_SSL" default:"true"`
}

type IdempotencyConfig struct {
	Backend string        `envconfig:"SCANMARKET_IDEMPOTENCY_BACKEND" default:"db"`
	TTL     time.Duration `envconfig:"SCANMARKET_IDEMPOTENCY_TTL" default:"24h"`
}

type ChatConfig struct {
	Bus             string        `envconfig:"SCANMARKET_CHAT_BUS" default:"local"`
	MaxImageMB      int           `envconfig:"SCANMARKET_CHAT_MAX_IMAGE_MB" default:"20"`
	PingInterval    time.Duration `envconfig:"SCANMARKET_CHAT_WS_PING_INTERVAL" default:"30s"`
	OutboundBacklog int           `envconfig:"SCANMARKET_CHAT_WS_OUTBOUND_BACKLOG" default:"32"`
}

// MaxImageBytes converts the configured megabyte limit into bytes.
func (c ChatConfig) MaxImageBytes() int64 {
	if c.MaxImageMB <= 0 {
		return 20 << 20
	}
	return int64(c.MaxImageMB) << 20
}

type AIConfig struct {
	OpenAIAPIKey  string        `envconfig:"SCANMARKET_OPENAI_API_KEY"`
	OpenAIBaseURL string        `envconfig:"SCANMARKET_OPENAI_BASE_URL" default:"https://api.openai.com/v1"`
	OpenAIModel   string        `envconfig:"SCANMARKET_OPENAI_MODEL" default:"gpt-4o-mini"`
	Timeout       time.Duration `envconfig:"SCANMARKET_OPENAI_TIMEOUT" default:"30s"`
	CacheTTL      time.Duration `envconfig:"SCANMARKET_AI_CACHE_TTL" default:"5m"`
}

// Enabled reports whether a vision model key is configured.
func (a AIConfig) Enabled() bool {
	return strings.TrimSpace(a.OpenAIAPIKey) != ""
}

type MetricsConfig struct {
	Enabled bool `envconfig:"SCANMARKET_METRICS_ENABLED" default:"true"`
}

type MaintenanceConfig struct {
	Interval          time.Duration `envconfig:"SCANMARKET_MAINTENANCE_INTERVAL" default:"1h"`
	RefreshTokenGrace time.Duration `envconfig:"SCANMARKET_MAINTENANCE_REFRESH_TOKEN_GRACE" default:"24h"`
	MetricsPort       string        `envconfig:"SCANMARKET_MAINTENANCE_METRICS_PORT" default:"9102"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"SCANMARKET_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range dbPartEnvVars {
		if values[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
