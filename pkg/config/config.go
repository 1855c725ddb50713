package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store backends
const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Config holds all configuration for the application
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
type Config struct {
	// Server
	Port  string
	Env   string // development, staging, production
	Store string // postgres, memory

	// Database
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// External sources
	Yahoo    YahooConfig
	Universe UniverseConfig

	// Messaging
	Kafka KafkaConfig

	// Screener pipeline
	Screener ScreenerConfig

	// Logging
	LogLevel  string
	LogFormat string

	// Tracing
	TracingEnabled bool
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// YahooConfig holds market data provider settings
type YahooConfig struct {
	QuoteSummaryURL   string
	RequestsPerSecond float64
	UserAgent         string
}

// UniverseConfig holds index membership source pages
type UniverseConfig struct {
	SP500URL     string
	Nasdaq100URL string
}

// KafkaConfig holds ranking event producer settings
type KafkaConfig struct {
	Enabled      bool
	Brokers      []string
	RankingTopic string
}

// ScreenerConfig holds pipeline settings
type ScreenerConfig struct {
	ConfigPath        string // optional YAML file (universe lists, schedules)
	MarketTimezone    string
	BenchmarkSymbol   string
	BenchmarkMaxAge   time.Duration
	CollectionWorkers int
}

// Location resolves MarketTimezone, falling back to UTC.
func (s ScreenerConfig) Location() *time.Location {
	loc, err := time.LoadLocation(s.MarketTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		Port:  getEnv("PORT", "8089"),
		Env:   getEnv("ENV", "development"),
		Store: getEnv("STORE", StorePostgres),

		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 25),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 5),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},

		Yahoo: YahooConfig{
			QuoteSummaryURL:   getEnv("YAHOO_QUOTE_SUMMARY_URL", "https://query2.finance.yahoo.com/v10/finance/quoteSummary"),
			RequestsPerSecond: getEnvAsFloat("YAHOO_REQUESTS_PER_SECOND", 4),
			UserAgent:         getEnv("YAHOO_USER_AGENT", "Mozilla/5.0 (compatible; canslim-screener/1.0)"),
		},

		Universe: UniverseConfig{
			SP500URL:     getEnv("UNIVERSE_SP500_URL", "https://en.wikipedia.org/wiki/List_of_S%26P_500_companies"),
			Nasdaq100URL: getEnv("UNIVERSE_NASDAQ100_URL", "https://en.wikipedia.org/wiki/Nasdaq-100"),
		},

		Kafka: KafkaConfig{
			Enabled:      getEnvAsBool("KAFKA_ENABLED", false),
			Brokers:      getEnvAsList("KAFKA_BROKERS", "localhost:9092"),
			RankingTopic: getEnv("KAFKA_RANKING_TOPIC", "trading.rankings"),
		},

		Screener: ScreenerConfig{
			ConfigPath:        getEnv("SCREENER_CONFIG", ""),
			MarketTimezone:    getEnv("MARKET_TIMEZONE", "America/New_York"),
			BenchmarkSymbol:   getEnv("BENCHMARK_SYMBOL", "^GSPC"),
			BenchmarkMaxAge:   getEnvAsDuration("BENCHMARK_MAX_AGE", "96h"),
			CollectionWorkers: getEnvAsInt("COLLECTION_WORKERS", 4),
		},

		LogLevel:  getEnv("LOG_LEVEL", "debug"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		TracingEnabled: getEnvAsBool("TRACING_ENABLED", false),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	if c.Store != StorePostgres && c.Store != StoreMemory {
		return fmt.Errorf("STORE must be one of: postgres, memory")
	}

	// memory 모드에서는 DB 불필요
	if c.Store == StorePostgres && c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.Screener.CollectionWorkers < 1 {
		return fmt.Errorf("COLLECTION_WORKERS must be >= 1")
	}

	if _, err := time.LoadLocation(c.Screener.MarketTimezone); err != nil {
		return fmt.Errorf("MARKET_TIMEZONE invalid: %w", err)
	}

	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required when KAFKA_ENABLED=true")
	}

	return nil
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{".env"}

	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}

// getEnvAsList splits a comma-separated value, dropping blanks
func getEnvAsList(key, defaultValue string) []string {
	raw := getEnv(key, defaultValue)
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
