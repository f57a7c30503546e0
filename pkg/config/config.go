package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	Billing      BillingConfig
	Cron         CronConfig
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
	if err := cfg.Billing.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"SUFRAH_APP_ENV" required:"true"`
	LogLevel     string `envconfig:"SUFRAH_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SUFRAH_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"SUFRAH_SERVICE_KIND" default:"cron-worker"`
}

type DBConfig struct {
	DSN string `envconfig:"SUFRAH_DB_DSN"`

	LegacyHost     string `envconfig:"SUFRAH_DB_HOST"`
	LegacyPort     int    `envconfig:"SUFRAH_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"SUFRAH_DB_USER"`
	LegacyPassword string `envconfig:"SUFRAH_DB_PASSWORD"`
	LegacyName     string `envconfig:"SUFRAH_DB_NAME"`
	LegacySSLMode  string `envconfig:"SUFRAH_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SUFRAH_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SUFRAH_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SUFRAH_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SUFRAH_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"SUFRAH_REDIS_URL"`
	Address      string        `envconfig:"SUFRAH_REDIS_ADDR"`
	Password     string        `envconfig:"SUFRAH_REDIS_PASSWORD"`
	DB           int           `envconfig:"SUFRAH_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SUFRAH_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SUFRAH_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SUFRAH_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SUFRAH_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SUFRAH_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// BillingConfig carries the invoicing defaults applied when callers leave
// fields unset.
type BillingConfig struct {
	DefaultTaxRate      string `envconfig:"SUFRAH_BILLING_DEFAULT_TAX_RATE" default:"15.00"`
	DefaultCurrency     string `envconfig:"SUFRAH_BILLING_DEFAULT_CURRENCY" default:"SAR"`
	InvoiceDueDays      int    `envconfig:"SUFRAH_BILLING_INVOICE_DUE_DAYS" default:"14"`
	NumberingMaxRetries int    `envconfig:"SUFRAH_BILLING_NUMBERING_MAX_RETRIES" default:"3"`
}

func (b BillingConfig) validate() error {
	if _, err := decimal.NewFromString(b.DefaultTaxRate); err != nil {
		return fmt.Errorf("invalid default tax rate %q: %w", b.DefaultTaxRate, err)
	}
	if len(b.DefaultCurrency) != 3 {
		return fmt.Errorf("default currency must be a 3-letter code, got %q", b.DefaultCurrency)
	}
	if b.InvoiceDueDays <= 0 {
		return fmt.Errorf("invoice due days must be positive, got %d", b.InvoiceDueDays)
	}
	if b.NumberingMaxRetries <= 0 {
		return fmt.Errorf("numbering retries must be positive, got %d", b.NumberingMaxRetries)
	}
	return nil
}

// TaxRate returns the parsed default tax rate. validate() runs at load time,
// so the parse cannot fail here.
func (b BillingConfig) TaxRate() decimal.Decimal {
	rate, _ := decimal.NewFromString(b.DefaultTaxRate)
	return rate
}

type CronConfig struct {
	Interval time.Duration `envconfig:"SUFRAH_CRON_INTERVAL" default:"24h"`
	LockTTL  time.Duration `envconfig:"SUFRAH_CRON_LOCK_TTL" default:"25h"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"SUFRAH_AUTO_MIGRATE" default:"false"`
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
