package config

const EnvPrefix = "FWB"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	AttachmentBackendLocal = "local"
	AttachmentBackendGCS   = "gcs"
)

const (
	EnvAppEnv                  = "FWB_APP_ENV"
	EnvPort                    = "FWB_APP_PORT"
	EnvDBDSN                   = "FWB_DB_DSN"
	EnvDBHost                  = "FWB_DB_HOST"
	EnvDBUser                  = "FWB_DB_USER"
	EnvDBName                  = "FWB_DB_NAME"
	EnvRedisURL                = "FWB_REDIS_URL"
	EnvJWTSecret               = "FWB_JWT_SECRET"
	EnvJWTIssuer               = "FWB_JWT_ISSUER"
	EnvJWTExpMins              = "FWB_JWT_EXPIRATION_MINUTES"
	EnvRefreshTokenTTLMinutes  = "FWB_REFRESH_TOKEN_TTL_MINUTES"
	EnvUseSQLite               = "FWB_USE_SQLITE"
	EnvAttachmentsBackend      = "FWB_ATTACHMENTS_BACKEND"
	EnvAttachmentsLocalDir     = "FWB_ATTACHMENTS_LOCAL_DIR"
	EnvAttachmentsMaxUploadMB  = "FWB_ATTACHMENTS_MAX_UPLOAD_MB"
	EnvGCSBucket               = "FWB_GCS_BUCKET_NAME"
	EnvCORSAllowedOrigins      = "FWB_CORS_ALLOWED_ORIGINS"
	EnvAuthRateLimitLoginLimit = "FWB_AUTH_RATE_LIMIT_LOGIN_USERNAME_LIMIT"
)

var discreteDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
