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
	DB           DBConfig
	Redis        RedisConfig
	Services     ServicesConfig
	Checkout     CheckoutConfig
	Shipping     ShippingConfig
	Catalog      CatalogConfig
	Inventory    InventoryConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Cron         CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.FeatureFlags.UseSQLite {
		cfg.DB.Driver = DBDriverSQLite
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	if err := cfg.Checkout.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string   `envconfig:"AUTOPARTS_APP_ENV" required:"true"`
	Port         string   `envconfig:"AUTOPARTS_APP_PORT" default:"8080"`
	LogLevel     string   `envconfig:"AUTOPARTS_LOG_LEVEL" default:"info"`
	LogWarnStack bool     `envconfig:"AUTOPARTS_LOG_WARN_STACK" default:"false"`
	CORSOrigins  []string `envconfig:"AUTOPARTS_CORS_ORIGINS" default:"http://localhost:5173"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"AUTOPARTS_DB_DSN"`
	Driver string `envconfig:"AUTOPARTS_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"AUTOPARTS_DB_HOST"`
	Port     int    `envconfig:"AUTOPARTS_DB_PORT" default:"5432"`
	User     string `envconfig:"AUTOPARTS_DB_USER"`
	Password string `envconfig:"AUTOPARTS_DB_PASSWORD"`
	Name     string `envconfig:"AUTOPARTS_DB_NAME"`
	SSLMode  string `envconfig:"AUTOPARTS_DB_SSLMODE" default:"disable"`

	SQLitePath string `envconfig:"AUTOPARTS_SQLITE_PATH" default:"autoparts.db"`

	MaxOpenConns    int           `envconfig:"AUTOPARTS_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"AUTOPARTS_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"AUTOPARTS_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"AUTOPARTS_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"AUTOPARTS_REDIS_URL" required:"true"`
	Password     string        `envconfig:"AUTOPARTS_REDIS_PASSWORD"`
	PoolSize     int           `envconfig:"AUTOPARTS_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"AUTOPARTS_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"AUTOPARTS_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"AUTOPARTS_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"AUTOPARTS_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// ServicesConfig points at the external products/orders services.
type ServicesConfig struct {
	ProductsBaseURL string        `envconfig:"AUTOPARTS_PRODUCTS_SERVICE_URL" default:"http://localhost:8081"`
	OrdersBaseURL   string        `envconfig:"AUTOPARTS_ORDERS_SERVICE_URL" default:"http://localhost:8083"`
	HTTPTimeout     time.Duration `envconfig:"AUTOPARTS_SERVICES_HTTP_TIMEOUT" default:"5s"`
	ProductsRPS     float64       `envconfig:"AUTOPARTS_PRODUCTS_SERVICE_RPS" default:"5"`
	ProductsBurst   int           `envconfig:"AUTOPARTS_PRODUCTS_SERVICE_BURST" default:"10"`
}

type CheckoutConfig struct {
	TaxRate        string        `envconfig:"AUTOPARTS_CHECKOUT_TAX_RATE" default:"0.19"`
	IdempotencyTTL time.Duration `envconfig:"AUTOPARTS_CHECKOUT_IDEMPOTENCY_TTL" default:"168h"`
	RateLimit      int           `envconfig:"AUTOPARTS_CHECKOUT_RATE_LIMIT" default:"10"`
	RateWindow     time.Duration `envconfig:"AUTOPARTS_CHECKOUT_RATE_WINDOW" default:"1m"`
}

// Rate returns the parsed tax rate. Load guarantees it parses.
func (c CheckoutConfig) Rate() decimal.Decimal {
	rate, err := decimal.NewFromString(strings.TrimSpace(c.TaxRate))
	if err != nil {
		return decimal.RequireFromString(DefaultTaxRate)
	}
	return rate
}

func (c CheckoutConfig) validate() error {
	rate, err := decimal.NewFromString(strings.TrimSpace(c.TaxRate))
	if err != nil {
		return fmt.Errorf("parsing %s: %w", EnvCheckoutTaxRate, err)
	}
	if rate.IsNegative() || rate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("%s must be within [0, 1), got %s", EnvCheckoutTaxRate, rate)
	}
	return nil
}

type ShippingConfig struct {
	RateTablePath string `envconfig:"AUTOPARTS_SHIPPING_RATE_TABLE"`
}

type CatalogConfig struct {
	Source    string        `envconfig:"AUTOPARTS_CATALOG_SOURCE" default:"db"`
	CacheSize int           `envconfig:"AUTOPARTS_CATALOG_CACHE_SIZE" default:"16"`
	CacheTTL  time.Duration `envconfig:"AUTOPARTS_CATALOG_CACHE_TTL" default:"1m"`
}

// UsesRemote reports whether the catalog is read from the products service.
func (c CatalogConfig) UsesRemote() bool {
	return strings.EqualFold(strings.TrimSpace(c.Source), CatalogSourceRemote)
}

type InventoryConfig struct {
	MinImageWidth    int           `envconfig:"AUTOPARTS_INVENTORY_MIN_IMAGE_WIDTH" default:"200"`
	MinImageHeight   int           `envconfig:"AUTOPARTS_INVENTORY_MIN_IMAGE_HEIGHT" default:"200"`
	ProbeTimeout     time.Duration `envconfig:"AUTOPARTS_INVENTORY_PROBE_TIMEOUT" default:"10s"`
	ProbeConcurrency int           `envconfig:"AUTOPARTS_INVENTORY_PROBE_CONCURRENCY" default:"4"`
	MaxUploadMB      int           `envconfig:"AUTOPARTS_INVENTORY_MAX_UPLOAD_MB" default:"5"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"AUTOPARTS_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"AUTOPARTS_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID       string `envconfig:"AUTOPARTS_GCP_PROJECT_ID"`
	CredentialsFile string `envconfig:"AUTOPARTS_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	OrdersTopic string `envconfig:"AUTOPARTS_PUBSUB_ORDERS_TOPIC"`
}

// Enabled reports whether order events should be published to Pub/Sub.
func (p PubSubConfig) Enabled(gcp GCPConfig) bool {
	return strings.TrimSpace(p.OrdersTopic) != "" && strings.TrimSpace(gcp.ProjectID) != ""
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"AUTOPARTS_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"AUTOPARTS_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"AUTOPARTS_OUTBOX_MAX_ATTEMPTS" default:"10"`
	// Delay before the first retry of a failed row; doubles per attempt up to RetryMaxDelay.
	RetryBaseDelay time.Duration `envconfig:"AUTOPARTS_OUTBOX_RETRY_BASE_DELAY" default:"5s"`
	RetryMaxDelay  time.Duration `envconfig:"AUTOPARTS_OUTBOX_RETRY_MAX_DELAY" default:"30m"`
}

type CronConfig struct {
	Interval            time.Duration `envconfig:"AUTOPARTS_CRON_INTERVAL" default:"1h"`
	LockTTL             time.Duration `envconfig:"AUTOPARTS_CRON_LOCK_TTL" default:"10m"`
	OutboxRetentionDays int           `envconfig:"AUTOPARTS_CRON_OUTBOX_RETENTION_DAYS" default:"30"`
	StaleCartDays       int           `envconfig:"AUTOPARTS_CRON_STALE_CART_DAYS" default:"14"`
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if db.DSN != "" || useSQLite {
		return nil
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range discreteDBEnvVars {
		if values[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
