package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Password     PasswordConfig
	RateLimit    RateLimitConfig
	Idempotency  IdempotencyConfig
	FeatureFlags FeatureFlagsConfig
	Eventing     EventingConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	BigQuery     BigQueryConfig
	Outbox       OutboxConfig
	Stripe       StripeConfig
	Gemini       GeminiConfig
	Maps         MapsConfig
	Cron         CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.FeatureFlags.UseSQLite {
		cfg.DB.Driver = "sqlite"
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string   `envconfig:"LOGGAS_APP_ENV" required:"true"`
	Port         string   `envconfig:"LOGGAS_APP_PORT" required:"true"`
	LogLevel     string   `envconfig:"LOGGAS_LOG_LEVEL" default:"info"`
	LogFormat    string   `envconfig:"LOGGAS_LOG_FORMAT" default:"json"`
	LogWarnStack bool     `envconfig:"LOGGAS_LOG_WARN_STACK" default:"false"`
	CORSOrigins  []string `envconfig:"LOGGAS_CORS_ORIGINS" default:"*"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd) || strings.EqualFold(a.Env, "production")
}

type ServiceConfig struct {
	Kind string `envconfig:"LOGGAS_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"LOGGAS_DB_DSN"`
	Driver string `envconfig:"LOGGAS_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"LOGGAS_DB_HOST"`
	LegacyPort     int    `envconfig:"LOGGAS_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"LOGGAS_DB_USER"`
	LegacyPassword string `envconfig:"LOGGAS_DB_PASSWORD"`
	LegacyName     string `envconfig:"LOGGAS_DB_NAME"`
	LegacySSLMode  string `envconfig:"LOGGAS_DB_SSLMODE" default:"disable"`

	SQLitePath string `envconfig:"LOGGAS_SQLITE_PATH" default:"loggas.db"`

	MaxOpenConns    int           `envconfig:"LOGGAS_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"LOGGAS_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"LOGGAS_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"LOGGAS_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"LOGGAS_DB_SLOW_QUERY" default:"500ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"LOGGAS_REDIS_URL" required:"true"`
	Address      string        `envconfig:"LOGGAS_REDIS_ADDR"`
	Password     string        `envconfig:"LOGGAS_REDIS_PASSWORD"`
	DB           int           `envconfig:"LOGGAS_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"LOGGAS_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"LOGGAS_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"LOGGAS_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"LOGGAS_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"LOGGAS_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"LOGGAS_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"LOGGAS_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"LOGGAS_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"LOGGAS_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"LOGGAS_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"LOGGAS_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"LOGGAS_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"LOGGAS_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"LOGGAS_ARGON_KEY_LEN" default:"32"`
}

// RateLimitConfig throttles the unauthenticated write endpoints. Each surface
// counts per client IP and per identity field (email or phone).
type RateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"LOGGAS_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"LOGGAS_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"LOGGAS_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"LOGGAS_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"LOGGAS_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"LOGGAS_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
	CheckoutWindow     time.Duration `envconfig:"LOGGAS_RATE_LIMIT_CHECKOUT_WINDOW" default:"10m"`
	CheckoutPhoneLimit int           `envconfig:"LOGGAS_RATE_LIMIT_CHECKOUT_PHONE_LIMIT" default:"5"`
	CheckoutIPLimit    int           `envconfig:"LOGGAS_RATE_LIMIT_CHECKOUT_IP_LIMIT" default:"30"`
}

type IdempotencyConfig struct {
	TTL time.Duration `envconfig:"LOGGAS_IDEMPOTENCY_TTL" default:"24h"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"LOGGAS_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"LOGGAS_AUTO_MIGRATE" default:"false"`
	Advisor     bool `envconfig:"LOGGAS_FEATURE_ADVISOR" default:"true"`
}

// EventingConfig bounds how long consumers remember processed event ids.
type EventingConfig struct {
	DedupTTL time.Duration `envconfig:"LOGGAS_EVENTING_DEDUP_TTL" default:"720h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"LOGGAS_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"LOGGAS_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"LOGGAS_GOOGLE_APPLICATION_CREDENTIALS"`
}

// PubSubConfig names the change feed topic every outbox event is published to
// and the subscriptions consuming it.
type PubSubConfig struct {
	DomainTopic           string `envconfig:"LOGGAS_PUBSUB_DOMAIN_TOPIC" default:"loggas-domain-events"`
	AnalyticsSubscription string `envconfig:"LOGGAS_PUBSUB_ANALYTICS_SUBSCRIPTION" default:"loggas-analytics-sub"`
}

type BigQueryConfig struct {
	Dataset          string `envconfig:"LOGGAS_BIGQUERY_DATASET" default:"loggas"`
	SalesFactsTable  string `envconfig:"LOGGAS_BIGQUERY_SALES_TABLE" default:"sale_facts"`
	StockFactsTable  string `envconfig:"LOGGAS_BIGQUERY_STOCK_TABLE" default:"stock_facts"`
	InsertMaxRetries int    `envconfig:"LOGGAS_BIGQUERY_INSERT_MAX_RETRIES" default:"3"`
}

type OutboxConfig struct {
	BatchSize      int           `envconfig:"LOGGAS_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int           `envconfig:"LOGGAS_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int           `envconfig:"LOGGAS_OUTBOX_MAX_ATTEMPTS" default:"10"`
	Retention      time.Duration `envconfig:"LOGGAS_OUTBOX_RETENTION" default:"720h"`
}

// PollInterval converts the configured poll interval into a duration.
func (o OutboxConfig) PollInterval() time.Duration {
	if o.PollIntervalMS <= 0 {
		return 500 * time.Millisecond
	}
	return time.Duration(o.PollIntervalMS) * time.Millisecond
}

type StripeConfig struct {
	APIKey            string `envconfig:"LOGGAS_STRIPE_API_KEY"`
	Secret            string `envconfig:"LOGGAS_STRIPE_SECRET"`
	Env               string `envconfig:"LOGGAS_STRIPE_ENV" default:"test"`
	ProPriceID        string `envconfig:"LOGGAS_STRIPE_PRO_PRICE_ID"`
	EnterprisePriceID string `envconfig:"LOGGAS_STRIPE_ENTERPRISE_PRICE_ID"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

// Enabled reports whether billing calls can reach Stripe.
func (s StripeConfig) Enabled() bool {
	return strings.TrimSpace(s.APIKey) != ""
}

type GeminiConfig struct {
	APIKey  string        `envconfig:"LOGGAS_GEMINI_API_KEY"`
	Model   string        `envconfig:"LOGGAS_GEMINI_MODEL" default:"gemini-2.0-flash"`
	Timeout time.Duration `envconfig:"LOGGAS_GEMINI_TIMEOUT" default:"15s"`
}

// MapsConfig drives delivery address lookup. A blank key disables it.
type MapsConfig struct {
	APIKey   string        `envconfig:"LOGGAS_MAPS_API_KEY"`
	Region   string        `envconfig:"LOGGAS_MAPS_REGION" default:"BR"`
	Language string        `envconfig:"LOGGAS_MAPS_LANGUAGE" default:"pt-BR"`
	Timeout  time.Duration `envconfig:"LOGGAS_MAPS_TIMEOUT" default:"10s"`
}

func (m MapsConfig) Enabled() bool {
	return strings.TrimSpace(m.APIKey) != ""
}

type CronConfig struct {
	Tick           time.Duration `envconfig:"LOGGAS_CRON_TICK" default:"5m"`
	LockTTL        time.Duration `envconfig:"LOGGAS_CRON_LOCK_TTL" default:"10m"`
	ReorderHorizon time.Duration `envconfig:"LOGGAS_CRON_REORDER_HORIZON" default:"4320h"`
	LowStockEvery  time.Duration `envconfig:"LOGGAS_CRON_LOW_STOCK_EVERY" default:"1h"`
	ReconcileEvery time.Duration `envconfig:"LOGGAS_CRON_RECONCILE_EVERY" default:"1h"`
	ReorderEvery   time.Duration `envconfig:"LOGGAS_CRON_REORDER_EVERY" default:"24h"`
	RetentionEvery time.Duration `envconfig:"LOGGAS_CRON_RETENTION_EVERY" default:"24h"`
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if db.DSN != "" || useSQLite {
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
