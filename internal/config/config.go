package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config captures runtime configuration for the checkout service.
type Config struct {
	HTTP      HTTPConfig
	Database  DatabaseConfig
	Cache     CacheConfig
	Checkout  CheckoutConfig
	Shipping  ShippingConfig
	Payment   PaymentConfig
	Telemetry TelemetryConfig
	Service   ServiceConfig
}

type HTTPConfig struct {
	Port          int
	MetricsPath   string
	ShutdownGrace int
}

type DatabaseConfig struct {
	URL            string
	AutoMigrate    bool
	MigrationsPath string
}

type CacheConfig struct {
	// RedisAddr enables the Redis-backed cache when set; empty falls back
	// to the in-process cache.
	RedisAddr string
}

type CheckoutConfig struct {
	// Site identifies the shop in multi-site deployments.
	Site string
	// NoStockCheckout allows confirming orders for items that are out of
	// stock.
	NoStockCheckout bool
	SuccessURL      string
	PayRemainingURL string
}

type ShippingConfig struct {
	// Hiding controls whether the shipping chooser is hidden when only one
	// option remains: "NO", "YES" or "DESCRIPTION".
	Hiding         string
	SelectCheapest bool
	TaxShipping    bool
	TaxRate        string
	// Modules lists the shipping methods to offer, comma separated:
	// any of "flat", "per" and "tiered".
	Modules     string
	FlatRate    string
	PerItemRate string
	// CarrierName and CarrierTiers configure the tiered method. Tiers are
	// "min=price" pairs, comma separated, e.g. "0=8.00,25=5.00,50=0".
	CarrierName  string
	CarrierTiers string
}

type PaymentConfig struct {
	StripeSecretKey string
	StripeLive      bool
	Currency        string
	StripeSuccess   string
	StripeCancel    string
	IPNSecret       string
}

type TelemetryConfig struct {
	LogLevel      string
	OTelEndpoint  string
	EnableTracing bool
	EnableMetrics bool
	SampleRate    float64
}

type ServiceConfig struct {
	Name        string
	Version     string
	Environment string
}

const (
	defaultHTTPPort       = 8080
	defaultMetricsPath    = "/metrics"
	defaultShutdownGrace  = 15
	defaultMigrationsPath = "migrations"
	defaultAutoMigrate    = true
	defaultServiceName    = "satchmo-api"
	defaultServiceVersion = "0.1.0"
	defaultEnvironment    = "development"
	defaultLogLevel       = "info"
	defaultOTelSampleRate = 1.0
	defaultSite           = "shop"
	defaultCurrency       = "usd"
	defaultSuccessURL     = "/checkout/success/"
	defaultBalanceURL     = "/checkout/balance/"
)

// Load reads configuration from the environment, applying defaults when
// needed. A .env file in the working directory is folded in first if present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	httpCfg, err := loadHTTPConfig()
	if err != nil {
		return nil, fmt.Errorf("loading HTTP config: %w", err)
	}

	dbCfg := loadDatabaseConfig()
	telCfg, err := loadTelemetryConfig()
	if err != nil {
		return nil, fmt.Errorf("loading telemetry config: %w", err)
	}

	return &Config{
		HTTP:     httpCfg,
		Database: dbCfg,
		Cache: CacheConfig{
			RedisAddr: getEnvOrDefault("REDIS_ADDR", ""),
		},
		Checkout: CheckoutConfig{
			Site:            getEnvOrDefault("SHOP_SITE", defaultSite),
			NoStockCheckout: getBoolEnv("NO_STOCK_CHECKOUT", false),
			SuccessURL:      getEnvOrDefault("CHECKOUT_SUCCESS_URL", defaultSuccessURL),
			PayRemainingURL: getEnvOrDefault("CHECKOUT_BALANCE_URL", defaultBalanceURL),
		},
		Shipping: ShippingConfig{
			Hiding:         getEnvOrDefault("SHIPPING_HIDING", "NO"),
			SelectCheapest: getBoolEnv("SHIPPING_SELECT_CHEAPEST", true),
			TaxShipping:    getBoolEnv("TAX_SHIPPING", false),
			TaxRate:        getEnvOrDefault("TAX_SHIPPING_RATE", "0"),
			Modules:        getEnvOrDefault("SHIPPING_MODULES", "flat"),
			FlatRate:       getEnvOrDefault("SHIPPING_FLAT_RATE", "4.00"),
			PerItemRate:    getEnvOrDefault("SHIPPING_PER_ITEM_RATE", "2.00"),
			CarrierName:    getEnvOrDefault("SHIPPING_CARRIER_NAME", "Standard"),
			CarrierTiers:   getEnvOrDefault("SHIPPING_CARRIER_TIERS", ""),
		},
		Payment: PaymentConfig{
			StripeSecretKey: getEnvOrDefault("STRIPE_SECRET_KEY", ""),
			StripeLive:      getBoolEnv("STRIPE_LIVE", false),
			Currency:        getEnvOrDefault("CURRENCY", defaultCurrency),
			StripeSuccess:   getEnvOrDefault("STRIPE_SUCCESS_URL", ""),
			StripeCancel:    getEnvOrDefault("STRIPE_CANCEL_URL", ""),
			IPNSecret:       getEnvOrDefault("IPN_SECRET", ""),
		},
		Telemetry: telCfg,
		Service:   loadServiceConfig(),
	}, nil
}

func loadHTTPConfig() (HTTPConfig, error) {
	port := defaultHTTPPort
	if value, ok := os.LookupEnv("API_HTTP_PORT"); ok {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return HTTPConfig{}, fmt.Errorf("invalid API_HTTP_PORT: %w", err)
		}
		port = parsed
	}

	shutdownGrace := defaultShutdownGrace
	if value, ok := os.LookupEnv("API_SHUTDOWN_GRACE_SECONDS"); ok {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return HTTPConfig{}, fmt.Errorf("invalid API_SHUTDOWN_GRACE_SECONDS: %w", err)
		}
		shutdownGrace = parsed
	}

	metricsPath := getEnvOrDefault("API_METRICS_PATH", defaultMetricsPath)

	return HTTPConfig{
		Port:          port,
		MetricsPath:   metricsPath,
		ShutdownGrace: shutdownGrace,
	}, nil
}

func loadDatabaseConfig() DatabaseConfig {
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		databaseURL = buildDatabaseURL()
	}

	autoMigrate := defaultAutoMigrate
	if value, ok := os.LookupEnv("AUTO_MIGRATE"); ok {
		autoMigrate = value == "true"
	}

	migrationsPath := getEnvOrDefault("MIGRATIONS_PATH", defaultMigrationsPath)

	return DatabaseConfig{
		URL:            databaseURL,
		AutoMigrate:    autoMigrate,
		MigrationsPath: migrationsPath,
	}
}

func loadTelemetryConfig() (TelemetryConfig, error) {
	logLevel := getEnvOrDefault("LOG_LEVEL", defaultLogLevel)
	otelEndpoint := getEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")

	enableTracing := getBoolEnv("OTEL_ENABLE_TRACING", true)
	enableMetrics := getBoolEnv("OTEL_ENABLE_METRICS", true)

	sampleRate := defaultOTelSampleRate
	if value, ok := os.LookupEnv("OTEL_SAMPLE_RATE"); ok {
		parsed, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return TelemetryConfig{}, fmt.Errorf("invalid OTEL_SAMPLE_RATE: %w", err)
		}
		sampleRate = parsed
	}

	return TelemetryConfig{
		LogLevel:      logLevel,
		OTelEndpoint:  otelEndpoint,
		EnableTracing: enableTracing,
		EnableMetrics: enableMetrics,
		SampleRate:    sampleRate,
	}, nil
}

func loadServiceConfig() ServiceConfig {
	return ServiceConfig{
		Name:        getEnvOrDefault("API_SERVICE_NAME", defaultServiceName),
		Version:     getEnvOrDefault("SERVICE_VERSION", defaultServiceVersion),
		Environment: getEnvOrDefault("ENVIRONMENT", defaultEnvironment),
	}
}

func buildDatabaseURL() string {
	host := getEnvOrDefault("DB_HOST", "localhost")
	port := getEnvOrDefault("DB_PORT", "5432")
	user := getEnvOrDefault("DB_USER", "postgres")
	password := getEnvOrDefault("DB_PASSWORD", "postgres")
	dbName := getEnvOrDefault("DB_NAME", "satchmo")
	sslMode := getEnvOrDefault("DB_SSLMODE", "disable")

	maxConns := getEnvOrDefault("DB_MAX_CONNS", "25")
	minConns := getEnvOrDefault("DB_MIN_CONNS", "5")
	maxLifetime := getEnvOrDefault("DB_MAX_CONN_LIFETIME", "5m")

	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s&pool_max_conns=%s&pool_min_conns=%s&pool_max_conn_lifetime=%s",
		user, password, host, port, dbName, sslMode, maxConns, minConns, maxLifetime,
	)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		return value == "true"
	}
	return defaultValue
}
