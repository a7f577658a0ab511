package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Aniket7411/Gems-frontend-sub001/internal/domain"
	"github.com/Aniket7411/Gems-frontend-sub001/internal/pricing"
	pkgconfig "github.com/Aniket7411/Gems-frontend-sub001/pkg/config"
)

// Backend and gateway names accepted by the configuration.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"

	GatewayMock     = "mock"
	GatewayMidtrans = "midtrans"
)

const defaultJWTSecret = "dev-secret-change-me"

// Config holds all configuration for the storefront service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort           int      `env:"STORE_HTTP_PORT" envDefault:"8080"`
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`

	// Cart snapshots
	CartBackend   string `env:"CART_BACKEND" envDefault:"redis"`
	CartNamespace string `env:"CART_NAMESPACE" envDefault:"gems:cart"`
	// Cart TTL in hours (default: 7 days)
	CartTTL int `env:"CART_TTL_HOURS" envDefault:"168"`
	// Sessions untouched for this long are dropped from memory.
	SessionIdleMinutes int `env:"SESSION_IDLE_MINUTES" envDefault:"120"`
	// Sessions still waiting on a payment outcome are dropped after this long.
	SessionPaymentPendingHours int `env:"SESSION_PAYMENT_PENDING_HOURS" envDefault:"24"`

	// Redis
	RedisAddr string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPass string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB   int    `env:"REDIS_DB" envDefault:"0"`

	// Kafka
	KafkaEnabled bool     `env:"KAFKA_ENABLED" envDefault:"false"`
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// Checkout attempt ledger
	LedgerBackend        string `env:"LEDGER_BACKEND" envDefault:"memory"`
	PostgresHost         string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort         int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser         string `env:"POSTGRES_USER" envDefault:"storefront"`
	PostgresPass         string `env:"POSTGRES_PASSWORD" envDefault:"storefront"`
	PostgresDB           string `env:"POSTGRES_DB" envDefault:"storefront"`
	PostgresSSL          string `env:"POSTGRES_SSLMODE" envDefault:"disable"`
	DBMaxConns           int32  `env:"DB_MAX_CONNS" envDefault:"10"`
	DBMinConns           int32  `env:"DB_MIN_CONNS" envDefault:"1"`
	SlowQueryThresholdMs int    `env:"DB_SLOW_QUERY_THRESHOLD_MS" envDefault:"200"`

	// Collaborators
	OrderAPIURL          string `env:"ORDER_API_URL" envDefault:"http://localhost:5000"`
	OTPAPIURL            string `env:"OTP_API_URL" envDefault:"http://localhost:5000"`
	HTTPClientTimeoutSec int    `env:"HTTP_CLIENT_TIMEOUT_SECONDS" envDefault:"15"`

	// Circuit breaker around the Order API and OTP provider
	CBMaxRequests  uint32  `env:"CB_MAX_REQUESTS" envDefault:"1"`
	CBInterval     int     `env:"CB_INTERVAL_SECONDS" envDefault:"60"`
	CBTimeout      int     `env:"CB_TIMEOUT_SECONDS" envDefault:"30"`
	CBFailureRatio float64 `env:"CB_FAILURE_RATIO" envDefault:"0.5"`
	CBMinRequests  uint32  `env:"CB_MIN_REQUESTS" envDefault:"5"`

	// Payment gateway
	PaymentGateway           string `env:"PAYMENT_GATEWAY" envDefault:"mock"`
	MockPaymentAutoSucceedMs int    `env:"MOCK_PAYMENT_AUTO_SUCCEED_MS" envDefault:"0"`
	MidtransServerKey        string `env:"MIDTRANS_SERVER_KEY"`
	MidtransProduction       bool   `env:"MIDTRANS_PRODUCTION" envDefault:"false"`

	// Pricing
	Currency              string `env:"CURRENCY" envDefault:"INR"`
	FreeShippingThreshold string `env:"FREE_SHIPPING_THRESHOLD" envDefault:"5000"`
	FlatShippingFee       string `env:"FLAT_SHIPPING_FEE" envDefault:"200"`

	// Shopper tokens
	AuthJWTSecret string `env:"AUTH_JWT_SECRET" envDefault:"dev-secret-change-me"`

	// OTP endpoints are throttled per session; 0 disables the limit.
	OTPRatePerMinute int `env:"OTP_RATE_LIMIT_PER_MINUTE" envDefault:"5"`
	OTPRateBurst     int `env:"OTP_RATE_LIMIT_BURST" envDefault:"3"`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load storefront config: %w", err)
	}
	return cfg, nil
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	var errs []error

	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP port: %d", c.HTTPPort))
	}
	if c.CartBackend != BackendRedis && c.CartBackend != BackendMemory {
		errs = append(errs, fmt.Errorf("CART_BACKEND must be %s or %s, got %q", BackendRedis, BackendMemory, c.CartBackend))
	}
	if c.CartTTL < 1 {
		errs = append(errs, fmt.Errorf("CART_TTL_HOURS must be positive, got %d", c.CartTTL))
	}
	if c.SessionIdleMinutes < 1 {
		errs = append(errs, fmt.Errorf("SESSION_IDLE_MINUTES must be positive, got %d", c.SessionIdleMinutes))
	}
	if c.SessionPaymentPendingHours < 1 {
		errs = append(errs, fmt.Errorf("SESSION_PAYMENT_PENDING_HOURS must be positive, got %d", c.SessionPaymentPendingHours))
	}
	if c.LedgerBackend != BackendPostgres && c.LedgerBackend != BackendMemory {
		errs = append(errs, fmt.Errorf("LEDGER_BACKEND must be %s or %s, got %q", BackendPostgres, BackendMemory, c.LedgerBackend))
	}
	if c.KafkaEnabled && len(c.KafkaBrokers) == 0 {
		errs = append(errs, errors.New("KAFKA_BROKERS is required when KAFKA_ENABLED is set"))
	}
	if strings.TrimSpace(c.OrderAPIURL) == "" {
		errs = append(errs, errors.New("ORDER_API_URL is required"))
	}
	if strings.TrimSpace(c.OTPAPIURL) == "" {
		errs = append(errs, errors.New("OTP_API_URL is required"))
	}

	switch c.PaymentGateway {
	case GatewayMock:
		if c.Environment == "production" {
			errs = append(errs, errors.New("PAYMENT_GATEWAY=mock is not allowed in production"))
		}
	case GatewayMidtrans:
		if c.MidtransServerKey == "" {
			errs = append(errs, errors.New("MIDTRANS_SERVER_KEY is required for the midtrans gateway"))
		}
		if !strings.EqualFold(c.Currency, "IDR") {
			errs = append(errs, fmt.Errorf("CURRENCY must be IDR for the midtrans gateway, got %q", c.Currency))
		}
	default:
		errs = append(errs, fmt.Errorf("PAYMENT_GATEWAY must be %s or %s, got %q", GatewayMock, GatewayMidtrans, c.PaymentGateway))
	}

	if len(c.Currency) != 3 {
		errs = append(errs, fmt.Errorf("CURRENCY must be a 3-letter code, got %q", c.Currency))
	}
	if _, err := parseMoney(c.FreeShippingThreshold); err != nil {
		errs = append(errs, fmt.Errorf("FREE_SHIPPING_THRESHOLD: %w", err))
	}
	if _, err := parseMoney(c.FlatShippingFee); err != nil {
		errs = append(errs, fmt.Errorf("FLAT_SHIPPING_FEE: %w", err))
	}

	if c.AuthJWTSecret == "" {
		errs = append(errs, errors.New("AUTH_JWT_SECRET is required"))
	} else if c.Environment == "production" && c.AuthJWTSecret == defaultJWTSecret {
		errs = append(errs, errors.New("AUTH_JWT_SECRET must be changed in production"))
	}

	if c.OTPRatePerMinute < 0 || c.OTPRateBurst < 0 {
		errs = append(errs, errors.New("OTP_RATE_LIMIT_PER_MINUTE and OTP_RATE_LIMIT_BURST must not be negative"))
	}

	if c.CBFailureRatio <= 0 || c.CBFailureRatio > 1 {
		errs = append(errs, fmt.Errorf("CB_FAILURE_RATIO must be in (0, 1], got %g", c.CBFailureRatio))
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1 {
		errs = append(errs, fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %g", c.OTELSampleRate))
	}

	return errors.Join(errs...)
}

// ShippingPolicy returns the pricing policy built from the shipping settings.
// Call it only on a validated config.
func (c *Config) ShippingPolicy() pricing.Policy {
	threshold, _ := parseMoney(c.FreeShippingThreshold)
	fee, _ := parseMoney(c.FlatShippingFee)
	return pricing.Policy{
		FreeShippingThreshold: domain.NewAmount(threshold),
		FlatShippingFee:       domain.NewAmount(fee),
	}
}

// CartTTLDuration returns the snapshot time-to-live.
func (c *Config) CartTTLDuration() time.Duration {
	return time.Duration(c.CartTTL) * time.Hour
}

// SessionIdleTimeout returns how long an untouched session is kept in memory.
func (c *Config) SessionIdleTimeout() time.Duration {
	return time.Duration(c.SessionIdleMinutes) * time.Minute
}

// PaymentPendingTimeout returns how long an untouched session may wait on a
// payment outcome before it is swept.
func (c *Config) PaymentPendingTimeout() time.Duration {
	return time.Duration(c.SessionPaymentPendingHours) * time.Hour
}

func parseMoney(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q", s)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("amount must not be negative, got %s", s)
	}
	return d, nil
}
