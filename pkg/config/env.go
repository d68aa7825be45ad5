package config

// EnvPrefix is the namespace shared by every LogGas environment variable.
const EnvPrefix = "LOGGAS"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv = "LOGGAS_APP_ENV"
	EnvPort   = "LOGGAS_APP_PORT"

	EnvDBDSN      = "LOGGAS_DB_DSN"
	EnvDBHost     = "LOGGAS_DB_HOST"
	EnvDBPort     = "LOGGAS_DB_PORT"
	EnvDBUser     = "LOGGAS_DB_USER"
	EnvDBPassword = "LOGGAS_DB_PASSWORD"
	EnvDBName     = "LOGGAS_DB_NAME"

	EnvRedisURL = "LOGGAS_REDIS_URL"

	EnvJWTSecret              = "LOGGAS_JWT_SECRET"
	EnvJWTIssuer              = "LOGGAS_JWT_ISSUER"
	EnvJWTExpMins             = "LOGGAS_JWT_EXPIRATION_MINUTES"
	EnvRefreshTokenTTLMinutes = "LOGGAS_REFRESH_TOKEN_TTL_MINUTES"

	EnvGCPProjectID = "LOGGAS_GCP_PROJECT_ID"
)

// legacyDBEnvVars must all be present when no DSN is configured.
var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
