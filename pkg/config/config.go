package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "SOURCELANE"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "SOURCELANE_DB_DSN"
	EnvDBHost = "SOURCELANE_DB_HOST"
	EnvDBUser = "SOURCELANE_DB_USER"
	EnvDBName = "SOURCELANE_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Supplier     SupplierConfig
	Shipping     ShippingConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Notify       NotifyConfig
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
	Env          string `envconfig:"SOURCELANE_APP_ENV" required:"true"`
	Port         string `envconfig:"SOURCELANE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"SOURCELANE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SOURCELANE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"SOURCELANE_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"SOURCELANE_DB_DSN"`
	Driver string `envconfig:"SOURCELANE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"SOURCELANE_DB_HOST"`
	LegacyPort     int    `envconfig:"SOURCELANE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"SOURCELANE_DB_USER"`
	LegacyPassword string `envconfig:"SOURCELANE_DB_PASSWORD"`
	LegacyName     string `envconfig:"SOURCELANE_DB_NAME"`
	LegacySSLMode  string `envconfig:"SOURCELANE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SOURCELANE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SOURCELANE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SOURCELANE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SOURCELANE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"SOURCELANE_REDIS_URL"`
	Address      string        `envconfig:"SOURCELANE_REDIS_ADDR"`
	Password     string        `envconfig:"SOURCELANE_REDIS_PASSWORD"`
	DB           int           `envconfig:"SOURCELANE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SOURCELANE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SOURCELANE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SOURCELANE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SOURCELANE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SOURCELANE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Enabled reports whether a Redis endpoint was configured at all. The rate
// limiter and job tracker fall back to in-process state when it is absent.
func (r RedisConfig) Enabled() bool {
	return r.URL != "" || r.Address != ""
}

type JWTConfig struct {
	Secret            string `envconfig:"SOURCELANE_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"SOURCELANE_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"SOURCELANE_JWT_EXPIRATION_MINUTES" default:"60"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"SOURCELANE_AUTO_MIGRATE" default:"false"`
}

// SupplierConfig tunes the extraction side: which marketplace hosts are
// accepted and how politely they are crawled.
type SupplierConfig struct {
	AllowedHosts       []string      `envconfig:"SOURCELANE_SUPPLIER_ALLOWED_HOSTS" default:"aliexpress.com,www.aliexpress.com,aliexpress.us,www.aliexpress.us"`
	SupplierName       string        `envconfig:"SOURCELANE_SUPPLIER_NAME" default:"aliexpress"`
	MinRequestInterval time.Duration `envconfig:"SOURCELANE_SUPPLIER_MIN_REQUEST_INTERVAL" default:"2s"`
	RequestTimeout     time.Duration `envconfig:"SOURCELANE_SUPPLIER_REQUEST_TIMEOUT" default:"30s"`
	MaxRetries         int           `envconfig:"SOURCELANE_SUPPLIER_MAX_RETRIES" default:"3"`
	RetryBaseDelay     time.Duration `envconfig:"SOURCELANE_SUPPLIER_RETRY_BASE_DELAY" default:"1s"`
	ImageConcurrency   int           `envconfig:"SOURCELANE_SUPPLIER_IMAGE_CONCURRENCY" default:"3"`
	ImageMaxBytes      int64         `envconfig:"SOURCELANE_SUPPLIER_IMAGE_MAX_BYTES" default:"10485760"`
}

type ShippingConfig struct {
	BaseCents    int64 `envconfig:"SOURCELANE_SHIPPING_BASE_CENTS" default:"499"`
	PerItemCents int64 `envconfig:"SOURCELANE_SHIPPING_PER_ITEM_CENTS" default:"199"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"SOURCELANE_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"SOURCELANE_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"SOURCELANE_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	DomainTopic              string `envconfig:"SOURCELANE_PUBSUB_DOMAIN_TOPIC" default:"sl-domain-events"`
	NotificationSubscription string `envconfig:"SOURCELANE_PUBSUB_NOTIFICATION_SUBSCRIPTION" default:"sl-notification-events"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"SOURCELANE_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"SOURCELANE_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"SOURCELANE_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

// NotifyConfig configures the outbound notification sink. When the webhook URL
// is empty the worker falls back to a log-only sink.
type NotifyConfig struct {
	WebhookURL      string        `envconfig:"SOURCELANE_NOTIFY_WEBHOOK_URL"`
	OperatorChannel string        `envconfig:"SOURCELANE_NOTIFY_OPERATOR_CHANNEL" default:"ops-fulfillment"`
	Timeout         time.Duration `envconfig:"SOURCELANE_NOTIFY_TIMEOUT" default:"10s"`
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
