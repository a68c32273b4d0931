package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config is the typed runtime configuration of the ledger service.
type Config struct {
	Env      string
	Port     string
	LogLevel string

	DB       DBConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	FX       FXConfig
	Ledger   LedgerConfig
	Auth     AuthConfig
	EventBus string // redis | kafka | log | none
}

// NeedsRedis reports whether any configured component uses redis.
func (c Config) NeedsRedis() bool {
	return c.Redis.Enabled || c.EventBus == "redis" || c.FX.RedisRateCache
}

// DBConfig holds the Postgres DSN parts and connection pool configuration.
type DBConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// RedisConfig configures the optional redis client. It is opened when
// Enabled is set or another component (event bus, rate cache) needs it.
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Password string
	DB       int
	CacheTTL time.Duration
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// FXConfig configures rates and exchange limits.
type FXConfig struct {
	BaseCurrency      string
	RateTTL           time.Duration
	RateMaxStale      time.Duration
	MarkupPercent     decimal.Decimal
	MinExchangeAmount decimal.Decimal
	MaxExchangeAmount decimal.Decimal
	QuoteTTL          time.Duration
	CurrenciesFile    string
	RateSourceURL     string
	RedisRateCache    bool
}

type LedgerConfig struct {
	TxTimeout time.Duration
}

type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
}

// LoadEnv loads variables from a .env file if present.
func LoadEnv() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file found: %v", err)
	}
}

// Load reads the environment into a Config, applying defaults.
func Load() Config {
	return Config{
		Env:      GetEnv("ENV", "development"),
		Port:     GetEnv("PORT", "3000"),
		LogLevel: GetEnv("LOG_LEVEL", "info"),
		DB: DBConfig{
			Host:            GetEnv("DB_HOST", "localhost"),
			Port:            GetEnv("DB_PORT", "5432"),
			User:            GetEnv("DB_USER", "postgres"),
			Password:        GetEnv("DB_PASSWORD", "postgres"),
			Name:            GetEnv("DB_NAME", "orusfx"),
			SSLMode:         GetEnv("DB_SSLMODE", "disable"),
			MaxIdleConns:    GetIntEnv("DB_MAX_IDLE_CONNS", 10),
			MaxOpenConns:    GetIntEnv("DB_MAX_OPEN_CONNS", 100),
			ConnMaxLifetime: GetDurationEnv("DB_CONN_MAX_LIFETIME", time.Hour),
			ConnMaxIdleTime: GetDurationEnv("DB_CONN_MAX_IDLE_TIME", 30*time.Minute),
		},
		Redis: RedisConfig{
			Enabled:  GetEnv("REDIS_ENABLED", "false") == "true",
			Host:     GetEnv("REDIS_HOST", "localhost"),
			Port:     GetEnv("REDIS_PORT", "6379"),
			Password: GetEnv("REDIS_PASSWORD", ""),
			DB:       GetIntEnv("REDIS_DB", 0),
			CacheTTL: GetDurationEnv("REDIS_CACHE_TTL", 5*time.Minute),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(GetEnv("KAFKA_BROKERS", "localhost:9092")),
			Topic:   GetEnv("KAFKA_TOPIC", "wallet-events"),
		},
		FX: FXConfig{
			BaseCurrency:      strings.ToUpper(GetEnv("FX_BASE_CURRENCY", "USD")),
			RateTTL:           GetDurationEnv("FX_RATE_TTL", time.Hour),
			RateMaxStale:      GetDurationEnv("FX_RATE_MAX_STALE", 0),
			MarkupPercent:     GetDecimalEnv("FX_MARKUP_PERCENT", decimal.RequireFromString("1.5")),
			MinExchangeAmount: GetDecimalEnv("FX_MIN_EXCHANGE_AMOUNT", decimal.NewFromInt(1)),
			MaxExchangeAmount: GetDecimalEnv("FX_MAX_EXCHANGE_AMOUNT", decimal.NewFromInt(1000000)),
			QuoteTTL:          GetDurationEnv("FX_QUOTE_TTL", 5*time.Minute),
			CurrenciesFile:    GetEnv("FX_CURRENCIES_FILE", ""),
			RateSourceURL:     GetEnv("FX_RATE_SOURCE_URL", ""),
			RedisRateCache:    GetEnv("FX_REDIS_RATE_CACHE", "false") == "true",
		},
		Ledger: LedgerConfig{
			TxTimeout: GetDurationEnv("LEDGER_TX_TIMEOUT", 5*time.Second),
		},
		Auth: AuthConfig{
			JWTSecret: GetEnv("JWT_SECRET", "orus"),
			TokenTTL:  GetDurationEnv("JWT_TOKEN_TTL", 15*time.Minute),
		},
		EventBus: GetEnv("EVENT_BUS", "log"),
	}
}

// GetEnv returns an environment variable or a default value.
func GetEnv(key, defaultVal string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return defaultVal
}

// GetIntEnv returns an int environment variable or a default value.
func GetIntEnv(key string, defaultVal int) int {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

// GetDurationEnv returns a time.Duration environment variable or a default value.
func GetDurationEnv(key string, defaultVal time.Duration) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

// GetDecimalEnv returns a decimal environment variable or a default value.
func GetDecimalEnv(key string, defaultVal decimal.Decimal) decimal.Decimal {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := decimal.NewFromString(strings.TrimSpace(val)); err == nil {
			return d
		}
	}
	return defaultVal
}

// IsProduction checks if the app runs in production mode.
func IsProduction() bool {
	return GetEnv("ENV", "development") == "production"
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
