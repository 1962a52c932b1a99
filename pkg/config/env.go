package config

const (
	EnvPrefix = "AUTOPARTS"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"

	CatalogSourceDB     = "db"
	CatalogSourceRemote = "remote"

	DefaultTaxRate = "0.19"
)

const (
	EnvAppEnv          = "AUTOPARTS_APP_ENV"
	EnvPort            = "AUTOPARTS_APP_PORT"
	EnvDBDSN           = "AUTOPARTS_DB_DSN"
	EnvDBHost          = "AUTOPARTS_DB_HOST"
	EnvDBUser          = "AUTOPARTS_DB_USER"
	EnvDBName          = "AUTOPARTS_DB_NAME"
	EnvDBPassword      = "AUTOPARTS_DB_PASSWORD"
	EnvRedisURL        = "AUTOPARTS_REDIS_URL"
	EnvUseSQLite       = "AUTOPARTS_USE_SQLITE"
	EnvCheckoutTaxRate = "AUTOPARTS_CHECKOUT_TAX_RATE"
	EnvCatalogSource   = "AUTOPARTS_CATALOG_SOURCE"
	EnvOrdersTopic     = "AUTOPARTS_PUBSUB_ORDERS_TOPIC"
	EnvGCPProjectID    = "AUTOPARTS_GCP_PROJECT_ID"
)

var discreteDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
