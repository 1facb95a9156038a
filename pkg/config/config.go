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
	HTTP          HTTPConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	Idempotency   IdempotencyConfig
	FeatureFlags  FeatureFlagsConfig
	Attachments   AttachmentsConfig
	GCP           GCPConfig
	GCS           GCSConfig
	CORS          CORSConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	if err := cfg.Attachments.validate(cfg.GCS); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"FWB_APP_ENV" required:"true"`
	Port         string `envconfig:"FWB_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"FWB_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"FWB_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type HTTPConfig struct {
	ReadTimeout     time.Duration `envconfig:"FWB_HTTP_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"FWB_HTTP_WRITE_TIMEOUT" default:"30s"`
	IdleTimeout     time.Duration `envconfig:"FWB_HTTP_IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `envconfig:"FWB_HTTP_SHUTDOWN_TIMEOUT" default:"10s"`
}

type DBConfig struct {
	DSN    string `envconfig:"FWB_DB_DSN"`
	Driver string `envconfig:"FWB_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"FWB_DB_HOST"`
	Port     int    `envconfig:"FWB_DB_PORT" default:"5432"`
	User     string `envconfig:"FWB_DB_USER"`
	Password string `envconfig:"FWB_DB_PASSWORD"`
	Name     string `envconfig:"FWB_DB_NAME"`
	SSLMode  string `envconfig:"FWB_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"FWB_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"FWB_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"FWB_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"FWB_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"FWB_REDIS_URL" required:"true"`
	Address      string        `envconfig:"FWB_REDIS_ADDR"`
	Password     string        `envconfig:"FWB_REDIS_PASSWORD"`
	DB           int           `envconfig:"FWB_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"FWB_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"FWB_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"FWB_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"FWB_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"FWB_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"FWB_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"FWB_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"FWB_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"FWB_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"FWB_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"FWB_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"FWB_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"FWB_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"FWB_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"FWB_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginUsernameLimit int           `envconfig:"FWB_AUTH_RATE_LIMIT_LOGIN_USERNAME_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"FWB_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
}

type IdempotencyConfig struct {
	TTL time.Duration `envconfig:"FWB_IDEMPOTENCY_TTL" default:"24h"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"FWB_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"FWB_AUTO_MIGRATE" default:"false"`
}

type AttachmentsConfig struct {
	Backend     string `envconfig:"FWB_ATTACHMENTS_BACKEND" default:"local"`
	LocalDir    string `envconfig:"FWB_ATTACHMENTS_LOCAL_DIR" default:"uploads"`
	MaxUploadMB int    `envconfig:"FWB_ATTACHMENTS_MAX_UPLOAD_MB" default:"10"`
}

// MaxUploadBytes returns the per-file attachment limit in bytes.
func (a AttachmentsConfig) MaxUploadBytes() int64 {
	if a.MaxUploadMB <= 0 {
		return 10 << 20
	}
	return int64(a.MaxUploadMB) << 20
}

func (a AttachmentsConfig) validate(gcs GCSConfig) error {
	switch strings.ToLower(strings.TrimSpace(a.Backend)) {
	case AttachmentBackendLocal:
		if strings.TrimSpace(a.LocalDir) == "" {
			return fmt.Errorf("%s is required for the local attachment backend", EnvAttachmentsLocalDir)
		}
		return nil
	case AttachmentBackendGCS:
		if strings.TrimSpace(gcs.BucketName) == "" {
			return fmt.Errorf("%s is required for the gcs attachment backend", EnvGCSBucket)
		}
		return nil
	default:
		return fmt.Errorf("unsupported attachment backend %q", a.Backend)
	}
}

type GCPConfig struct {
	ProjectID              string `envconfig:"FWB_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"FWB_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"FWB_GOOGLE_APPLICATION_CREDENTIALS"`
}

type GCSConfig struct {
	BucketName string `envconfig:"FWB_GCS_BUCKET_NAME"`
	Prefix     string `envconfig:"FWB_GCS_PREFIX" default:"attachments"`
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"FWB_CORS_ALLOWED_ORIGINS" default:"*"`
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if db.DSN != "" {
		return nil
	}
	if useSQLite {
		db.DSN = "file:fieldworkbook.db?cache=shared"
		return nil
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range discreteDBEnvVars {
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
