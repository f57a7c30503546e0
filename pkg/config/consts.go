package config

// EnvPrefix namespaces every environment variable consumed by the back office.
const EnvPrefix = "SUFRAH"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv = "SUFRAH_APP_ENV"
	EnvDBDSN  = "SUFRAH_DB_DSN"
	EnvDBHost = "SUFRAH_DB_HOST"
	EnvDBUser = "SUFRAH_DB_USER"
	EnvDBName = "SUFRAH_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
