package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

const (
	EnvPrefix = "VIYLO"

	EnvAppEnv   = "VIYLO_APP_ENV"
	EnvPort     = "VIYLO_APP_PORT"
	EnvLogLevel = "VIYLO_LOG_LEVEL"

	EnvDBDSN    = "VIYLO_DB_DSN"
	EnvDBDriver = "VIYLO_DB_DRIVER"
	EnvRedisURL = "VIYLO_REDIS_URL"

	EnvConversionRate   = "VIYLO_CONVERSION_RATE"
	EnvTaxRate          = "VIYLO_TAX_RATE"
	EnvOrderDestination = "VIYLO_ORDER_DESTINATION"
	EnvNotifyTimeout    = "VIYLO_NOTIFY_TIMEOUT"

	EnvNotifyDriver      = "VIYLO_NOTIFY_DRIVER"
	EnvEmailJSServiceID  = "VIYLO_EMAILJS_SERVICE_ID"
	EnvEmailJSTemplateID = "VIYLO_EMAILJS_TEMPLATE_ID"
	EnvEmailJSPublicKey  = "VIYLO_EMAILJS_PUBLIC_KEY"
	EnvGCPProjectID      = "VIYLO_GCP_PROJECT_ID"
	EnvPubSubOrdersTopic = "VIYLO_PUBSUB_ORDERS_TOPIC"

	EnvSquareAccessToken = "VIYLO_SQUARE_ACCESS_TOKEN"
	EnvSquareLocationID  = "VIYLO_SQUARE_LOCATION_ID"
	EnvSquareEnv         = "VIYLO_SQUARE_ENV"
)

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	NotifyDriverEmailJS = "emailjs"
	NotifyDriverPubSub  = "pubsub"
	NotifyDriverLog     = "log"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	FeatureFlags FeatureFlagsConfig
	Storefront   StorefrontConfig
	Notify       NotifyConfig
	EmailJS      EmailJSConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Square       SquareConfig
	CORS         CORSConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"VIYLO_APP_ENV" required:"true"`
	Port         string `envconfig:"VIYLO_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"VIYLO_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"VIYLO_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// DBConfig points at the order archive. An empty DSN disables archiving.
type DBConfig struct {
	DSN    string `envconfig:"VIYLO_DB_DSN"`
	Driver string `envconfig:"VIYLO_DB_DRIVER" default:"postgres"`

	MaxOpenConns    int           `envconfig:"VIYLO_DB_MAX_OPEN_CONNS" default:"10"`
	MaxIdleConns    int           `envconfig:"VIYLO_DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"VIYLO_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"VIYLO_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

func (db DBConfig) Enabled() bool {
	return strings.TrimSpace(db.DSN) != ""
}

// RedisConfig is optional; without it submissions are guarded in-process only.
type RedisConfig struct {
	URL          string        `envconfig:"VIYLO_REDIS_URL"`
	Address      string        `envconfig:"VIYLO_REDIS_ADDR"`
	Password     string        `envconfig:"VIYLO_REDIS_PASSWORD"`
	DB           int           `envconfig:"VIYLO_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"VIYLO_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"VIYLO_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"VIYLO_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"VIYLO_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"VIYLO_REDIS_WRITE_TIMEOUT" default:"5s"`
}

func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"VIYLO_AUTO_MIGRATE" default:"false"`
}

// StorefrontConfig holds the static checkout constants.
type StorefrontConfig struct {
	BaseCurrency       string          `envconfig:"VIYLO_BASE_CURRENCY" default:"JOD"`
	PaymentCurrency    string          `envconfig:"VIYLO_PAYMENT_CURRENCY" default:"USD"`
	ConversionRate     decimal.Decimal `envconfig:"VIYLO_CONVERSION_RATE" default:"1.41"`
	TaxRate            decimal.Decimal `envconfig:"VIYLO_TAX_RATE" default:"0"`
	PaymentDescription string          `envconfig:"VIYLO_PAYMENT_DESCRIPTION" default:"Viylo services"`
	WidgetContainer    string          `envconfig:"VIYLO_WIDGET_CONTAINER" default:"payment-button-container"`
	OrderDestination   string          `envconfig:"VIYLO_ORDER_DESTINATION" default:"orders@viylo.example"`
	NotifyTimeout      time.Duration   `envconfig:"VIYLO_NOTIFY_TIMEOUT" default:"10s"`
	SubmissionLockTTL  time.Duration   `envconfig:"VIYLO_SUBMISSION_LOCK_TTL" default:"1m"`
	SessionIdleTTL     time.Duration   `envconfig:"VIYLO_SESSION_IDLE_TTL" default:"2h"`
}

type NotifyConfig struct {
	Driver string `envconfig:"VIYLO_NOTIFY_DRIVER" default:"log"`
}

// NormalizedDriver returns the lower-cased notifier driver name.
func (n NotifyConfig) NormalizedDriver() string {
	driver := strings.ToLower(strings.TrimSpace(n.Driver))
	if driver == "" {
		return NotifyDriverLog
	}
	return driver
}

type EmailJSConfig struct {
	Endpoint   string `envconfig:"VIYLO_EMAILJS_ENDPOINT" default:"https://api.emailjs.com/api/v1.0/email/send"`
	ServiceID  string `envconfig:"VIYLO_EMAILJS_SERVICE_ID"`
	TemplateID string `envconfig:"VIYLO_EMAILJS_TEMPLATE_ID"`
	PublicKey  string `envconfig:"VIYLO_EMAILJS_PUBLIC_KEY"`
	PrivateKey string `envconfig:"VIYLO_EMAILJS_PRIVATE_KEY"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"VIYLO_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"VIYLO_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"VIYLO_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	OrdersTopic string `envconfig:"VIYLO_PUBSUB_ORDERS_TOPIC" default:"viylo-orders"`
}

type SquareConfig struct {
	AccessToken string `envconfig:"VIYLO_SQUARE_ACCESS_TOKEN"`
	LocationID  string `envconfig:"VIYLO_SQUARE_LOCATION_ID"`
	Env         string `envconfig:"VIYLO_SQUARE_ENV" default:"sandbox"`
}

// Enabled reports whether Square credentials were provided.
func (s SquareConfig) Enabled() bool {
	return strings.TrimSpace(s.AccessToken) != ""
}

// Environment returns the normalized Square environment (sandbox/production).
func (s SquareConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "sandbox"
	}
	return env
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"VIYLO_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (c *Config) validate() error {
	if c.Storefront.ConversionRate.Sign() <= 0 {
		return fmt.Errorf("%s must be positive", EnvConversionRate)
	}
	if c.Storefront.TaxRate.IsNegative() {
		return fmt.Errorf("%s must be non-negative", EnvTaxRate)
	}
	if strings.TrimSpace(c.Storefront.OrderDestination) == "" {
		return fmt.Errorf("%s is required", EnvOrderDestination)
	}
	if c.Storefront.NotifyTimeout <= 0 {
		return fmt.Errorf("%s must be positive", EnvNotifyTimeout)
	}

	switch c.Notify.NormalizedDriver() {
	case NotifyDriverLog:
	case NotifyDriverEmailJS:
		missing := []string{}
		if c.EmailJS.ServiceID == "" {
			missing = append(missing, EnvEmailJSServiceID)
		}
		if c.EmailJS.TemplateID == "" {
			missing = append(missing, EnvEmailJSTemplateID)
		}
		if c.EmailJS.PublicKey == "" {
			missing = append(missing, EnvEmailJSPublicKey)
		}
		if len(missing) > 0 {
			return fmt.Errorf("emailjs notifier requires %s", strings.Join(missing, ", "))
		}
	case NotifyDriverPubSub:
		if strings.TrimSpace(c.GCP.ProjectID) == "" {
			return fmt.Errorf("pubsub notifier requires %s", EnvGCPProjectID)
		}
		if strings.TrimSpace(c.PubSub.OrdersTopic) == "" {
			return fmt.Errorf("pubsub notifier requires %s", EnvPubSubOrdersTopic)
		}
	default:
		return fmt.Errorf("%s must be one of %s, %s, %s", EnvNotifyDriver, NotifyDriverLog, NotifyDriverEmailJS, NotifyDriverPubSub)
	}
	return nil
}
