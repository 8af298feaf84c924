package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App      AppConfig
	Service  ServiceConfig
	DB       DBConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Stripe   StripeConfig
	Escrow   EscrowConfig
	Cron     CronConfig

	RateLimit RateLimitConfig
	GCP      GCPConfig
	PubSub   PubSubConfig
	Eventing EventingConfig

	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"CHAMBY_APP_ENV" required:"true"`
	Port         string `envconfig:"CHAMBY_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"CHAMBY_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"CHAMBY_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"CHAMBY_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"CHAMBY_DB_DSN"`
	Driver string `envconfig:"CHAMBY_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"CHAMBY_DB_HOST"`
	LegacyPort     int    `envconfig:"CHAMBY_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"CHAMBY_DB_USER"`
	LegacyPassword string `envconfig:"CHAMBY_DB_PASSWORD"`
	LegacyName     string `envconfig:"CHAMBY_DB_NAME"`
	LegacySSLMode  string `envconfig:"CHAMBY_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"CHAMBY_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"CHAMBY_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"CHAMBY_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"CHAMBY_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"CHAMBY_REDIS_URL" required:"true"`
	Address      string        `envconfig:"CHAMBY_REDIS_ADDR"`
	Password     string        `envconfig:"CHAMBY_REDIS_PASSWORD"`
	DB           int           `envconfig:"CHAMBY_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"CHAMBY_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"CHAMBY_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"CHAMBY_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CHAMBY_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"CHAMBY_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"CHAMBY_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"CHAMBY_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"CHAMBY_JWT_EXPIRATION_MINUTES" required:"true"`
}

type StripeConfig struct {
	APIKey string `envconfig:"CHAMBY_STRIPE_API_KEY"`
	Secret string `envconfig:"CHAMBY_STRIPE_SECRET"`
	Env    string `envconfig:"CHAMBY_STRIPE_ENV" default:"test"`

	// Per-call timeout for outbound gateway requests.
	CallTimeout time.Duration `envconfig:"CHAMBY_STRIPE_CALL_TIMEOUT" default:"15s"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

// EscrowConfig holds the money rules of the visit-fee and invoice flows. The
// historical 250/350 visit fee split was collapsed into this single
// configurable amount.
type EscrowConfig struct {
	VisitFeeCents  int64  `envconfig:"CHAMBY_VISIT_FEE_CENTS" default:"35000"`
	CommissionRate string `envconfig:"CHAMBY_COMMISSION_RATE" default:"0.15"`
	Currency       string `envconfig:"CHAMBY_CURRENCY" default:"mxn"`

	CheckoutSuccessURL string `envconfig:"CHAMBY_CHECKOUT_SUCCESS_URL" default:"https://chamby.mx/pagos/exito"`
	CheckoutCancelURL  string `envconfig:"CHAMBY_CHECKOUT_CANCEL_URL" default:"https://chamby.mx/pagos/cancelado"`
}

type CronConfig struct {
	Interval                 time.Duration `envconfig:"CHAMBY_CRON_INTERVAL" default:"10m"`
	VisitConfirmationWindow  time.Duration `envconfig:"CHAMBY_VISIT_CONFIRMATION_WINDOW" default:"48h"`
	AutoCompleteAfter        time.Duration `envconfig:"CHAMBY_AUTO_COMPLETE_AFTER" default:"24h"`
	RescheduleWarningWindow  time.Duration `envconfig:"CHAMBY_RESCHEDULE_WARNING_WINDOW" default:"35m"`
	RescheduleResponseWindow time.Duration `envconfig:"CHAMBY_RESCHEDULE_RESPONSE_WINDOW" default:"24h"`
}

// RateLimitConfig throttles the endpoints that reach the payment gateway.
type RateLimitConfig struct {
	PaymentWindow    time.Duration `envconfig:"CHAMBY_PAYMENT_RATE_WINDOW" default:"1m"`
	PaymentIPLimit   int           `envconfig:"CHAMBY_PAYMENT_RATE_IP_LIMIT" default:"30"`
	PaymentUserLimit int           `envconfig:"CHAMBY_PAYMENT_RATE_USER_LIMIT" default:"10"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"CHAMBY_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"CHAMBY_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"CHAMBY_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	NotificationTopic string `envconfig:"CHAMBY_PUBSUB_NOTIFICATION_TOPIC" default:"chamby-notification-events"`
}

type EventingConfig struct {
	WebhookIdempotencyTTL time.Duration `envconfig:"CHAMBY_WEBHOOK_IDEMPOTENCY_TTL" default:"720h"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"CHAMBY_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
