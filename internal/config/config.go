package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Port        string
	Environment string
	LogLevel    string
	Backend     BackendConfig
	Mirror      MirrorConfig
	Redis       RedisConfig
	Database    DatabaseConfig
	Pricing     PricingConfig
	Checkout    CheckoutConfig
	Chat        ChatConfig
	Auth        AuthConfig
	CORS        CORSConfig
}

// BackendConfig is used to call the storefront REST backend
type BackendConfig struct {
	BaseURL    string        // e.g. http://localhost:5454
	AuthScheme string        // "bearer" sends "Bearer <token>", "raw" sends the token as-is
	Timeout    time.Duration // per request
}

// MirrorConfig selects where cart/order/profile snapshots are persisted
type MirrorConfig struct {
	Driver        string        // memory | redis | postgres
	TTL           time.Duration // redis only; 0 keeps snapshots forever
	MaxValueBytes int           // memory only; 0 disables the quota
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// PricingConfig holds the delivery and tax policy
type PricingConfig struct {
	FreeDeliveryThreshold string // strictly above this, delivery is free
	DeliveryFee           string
	GSTRate               string
	ChargeEmptyCart       bool
	MaxLineQuantity       int
}

type CheckoutConfig struct {
	DemoModeEnabled bool // synthesize demo orders when the backend is unreachable
}

type ChatConfig struct {
	PollInterval   time.Duration
	HistoryLimit   int
	QuotaFallbacks []int // history sizes tried when the mirror reports quota exceeded
}

// AuthConfig configures how the bearer token is read. An empty secret means
// the token is parsed without verification; the backend stays the authority.
type AuthConfig struct {
	JWTSecret  string
	EmailClaim string
}

type CORSConfig struct {
	AllowOrigins []string
}

func Load() (*Config, error) {
	// Local development convenience; real environments set variables directly
	_ = godotenv.Load(".env")
	_ = godotenv.Load("../.env")

	viper.SetConfigType("env")
	viper.SetConfigName(".env")
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.AddConfigPath("../..")

	// Set defaults
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("ENVIRONMENT", "development")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("BACKEND_URL", "http://localhost:5454")
	viper.SetDefault("MIRROR_DRIVER", "memory")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_SSLMODE", "disable")

	// Read from environment variables
	viper.AutomaticEnv()

	// Try to read .env file (optional)
	if err := viper.ReadInConfig(); err != nil {
		// It's okay if .env doesn't exist, we'll use env vars
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := &Config{
		Port:        getEnvOrViper("PORT", "8080"),
		Environment: getEnvOrViper("ENVIRONMENT", "development"),
		LogLevel:    getEnvOrViper("LOG_LEVEL", "info"),
		Backend: BackendConfig{
			BaseURL:    strings.TrimSpace(getEnvOrViper("BACKEND_URL", "http://localhost:5454")),
			AuthScheme: strings.ToLower(getEnvOrViper("BACKEND_AUTH_SCHEME", "bearer")),
			Timeout:    getDuration("BACKEND_TIMEOUT", 10*time.Second),
		},
		Mirror: MirrorConfig{
			Driver:        strings.ToLower(getEnvOrViper("MIRROR_DRIVER", "memory")),
			TTL:           getDuration("MIRROR_TTL", 0),
			MaxValueBytes: getInt("MIRROR_MAX_VALUE_BYTES", 5*1024*1024),
		},
		Redis: RedisConfig{
			Addr:     getEnvOrViper("REDIS_ADDR", "localhost:6379"),
			Password: getEnvOrViper("REDIS_PASSWORD", ""),
			DB:       getInt("REDIS_DB", 0),
			Prefix:   getEnvOrViper("REDIS_PREFIX", "storefront"),
		},
		Database: DatabaseConfig{
			Host:     getEnvOrViper("DB_HOST", "localhost"),
			Port:     getEnvOrViper("DB_PORT", "5432"),
			User:     getEnvOrViper("DB_USER", "postgres"),
			Password: getEnvOrViper("DB_PASSWORD", "postgres"),
			DBName:   getEnvOrViper("DB_NAME", "storefront"),
			SSLMode:  getEnvOrViper("DB_SSLMODE", "disable"),
		},
		Pricing: PricingConfig{
			FreeDeliveryThreshold: getEnvOrViper("FREE_DELIVERY_THRESHOLD", "499"),
			DeliveryFee:           getEnvOrViper("DELIVERY_FEE", "50"),
			GSTRate:               getEnvOrViper("GST_RATE", "0.18"),
			ChargeEmptyCart:       getBool("CHARGE_EMPTY_CART", true),
			MaxLineQuantity:       getInt("CART_MAX_LINE_QUANTITY", 100),
		},
		Checkout: CheckoutConfig{
			DemoModeEnabled: getBool("DEMO_MODE_ENABLED", true),
		},
		Chat: ChatConfig{
			PollInterval:   getDuration("CHAT_POLL_INTERVAL", 5*time.Second),
			HistoryLimit:   getInt("CHAT_HISTORY_LIMIT", 50),
			QuotaFallbacks: []int{20, 10},
		},
		Auth: AuthConfig{
			JWTSecret:  strings.TrimSpace(getEnvOrViper("JWT_SECRET", "")),
			EmailClaim: getEnvOrViper("JWT_EMAIL_CLAIM", "email"),
		},
		CORS: CORSConfig{
			AllowOrigins: splitList(getEnvOrViper("CORS_ALLOW_ORIGINS", "http://localhost:3000")),
		},
	}

	// Validate required fields
	if cfg.Backend.BaseURL == "" {
		return nil, fmt.Errorf("BACKEND_URL is required")
	}
	switch cfg.Backend.AuthScheme {
	case "bearer", "raw":
	default:
		return nil, fmt.Errorf("BACKEND_AUTH_SCHEME must be bearer or raw, got %q", cfg.Backend.AuthScheme)
	}
	switch cfg.Mirror.Driver {
	case "memory", "redis", "postgres":
	default:
		return nil, fmt.Errorf("MIRROR_DRIVER must be memory, redis or postgres, got %q", cfg.Mirror.Driver)
	}
	// without a secret tokens are only decoded, which is acceptable on a dev box only
	if cfg.Auth.JWTSecret == "" && cfg.Environment != "development" {
		return nil, fmt.Errorf("JWT_SECRET is required when ENVIRONMENT is %q", cfg.Environment)
	}

	return cfg, nil
}

func getEnvOrViper(key, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	if viper.IsSet(key) {
		return viper.GetString(key)
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	v, err := strconv.Atoi(getEnvOrViper(key, strconv.Itoa(defaultValue)))
	if err != nil {
		return defaultValue
	}
	return v
}

func getBool(key string, defaultValue bool) bool {
	v, err := strconv.ParseBool(getEnvOrViper(key, strconv.FormatBool(defaultValue)))
	if err != nil {
		return defaultValue
	}
	return v
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	v, err := time.ParseDuration(getEnvOrViper(key, defaultValue.String()))
	if err != nil {
		return defaultValue
	}
	return v
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
