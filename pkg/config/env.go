package config

const (
	EnvPrefix = "GROUPBUY"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv   = "GROUPBUY_APP_ENV"
	EnvPort     = "GROUPBUY_APP_PORT"
	EnvLogLevel = "GROUPBUY_LOG_LEVEL"

	EnvDBDSN  = "GROUPBUY_DB_DSN"
	EnvDBHost = "GROUPBUY_DB_HOST"
	EnvDBUser = "GROUPBUY_DB_USER"
	EnvDBName = "GROUPBUY_DB_NAME"

	EnvRedisURL = "GROUPBUY_REDIS_URL"

	EnvSettlementConcurrency   = "GROUPBUY_SETTLEMENT_CONCURRENCY"
	EnvSettlementIssuerTimeout = "GROUPBUY_SETTLEMENT_ISSUER_TIMEOUT"
	EnvSettlementClaimTTL      = "GROUPBUY_SETTLEMENT_CLAIM_TTL"

	EnvSquareAccessToken = "GROUPBUY_SQUARE_ACCESS_TOKEN"
	EnvSquareEnv         = "GROUPBUY_SQUARE_ENV"
	EnvSquareLocationID  = "GROUPBUY_SQUARE_LOCATION_ID"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
