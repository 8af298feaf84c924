package config

// EnvPrefix is intentionally empty: every variable carries the full CHAMBY_
// prefix in its envconfig tag so greps against deployment manifests match.
const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

// Environment variable names shared with tests and tooling.
const (
	EnvAppEnv    = "CHAMBY_APP_ENV"
	EnvPort      = "CHAMBY_APP_PORT"
	EnvDBDSN     = "CHAMBY_DB_DSN"
	EnvDBHost    = "CHAMBY_DB_HOST"
	EnvDBUser    = "CHAMBY_DB_USER"
	EnvDBName    = "CHAMBY_DB_NAME"
	EnvRedisURL  = "CHAMBY_REDIS_URL"
	EnvJWTSecret = "CHAMBY_JWT_SECRET"
	EnvJWTIssuer = "CHAMBY_JWT_ISSUER"
	EnvJWTExp    = "CHAMBY_JWT_EXPIRATION_MINUTES"

	EnvStripeAPIKey = "CHAMBY_STRIPE_API_KEY"
	EnvStripeSecret = "CHAMBY_STRIPE_SECRET"

	EnvGCPProjectID         = "CHAMBY_GCP_PROJECT_ID"
	EnvPubSubNotifTopic     = "CHAMBY_PUBSUB_NOTIFICATION_TOPIC"
	EnvVisitFeeCents        = "CHAMBY_VISIT_FEE_CENTS"
	EnvCommissionRate       = "CHAMBY_COMMISSION_RATE"
	EnvVisitConfirmWindow   = "CHAMBY_VISIT_CONFIRMATION_WINDOW"
	EnvAutoCompleteAfter    = "CHAMBY_AUTO_COMPLETE_AFTER"
	EnvRescheduleWarnWindow = "CHAMBY_RESCHEDULE_WARNING_WINDOW"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
