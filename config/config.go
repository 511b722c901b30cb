package config

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the complete application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Auth          AuthConfig
	Providers     ProvidersConfig
	Routing       RoutingConfig
	Maintenance   MaintenanceConfig
	Observability ObservabilityConfig
	Environment   string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds PostgreSQL database configuration.
// When ConnectionString (from DATABASE_URL) is set, it takes precedence over individual fields.
type DatabaseConfig struct {
	ConnectionString string // From DATABASE_URL when set
	Host             string
	Port             int
	User             string
	Password         string
	Database         string
	SSLMode          string
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxLifetime  time.Duration
}

// AuthConfig holds admin token validation configuration.
// Admin routes stay closed when JWTSecret is empty.
type AuthConfig struct {
	JWTSecret string
	JWTIssuer string
}

// ProvidersConfig holds credentials and client defaults for provider backends.
// Connection details (base URL, timeouts, rate limits) live in the catalog;
// secrets stay in the environment.
type ProvidersConfig struct {
	OpenAIAPIKey   string
	DefaultTimeout time.Duration
	MaxRetries     int
	MockEnabled    bool
}

// RoutingConfig holds the decision engine configuration
type RoutingConfig struct {
	WeightCost        float64
	WeightComplexity  float64
	WeightContext     float64
	WeightPriority    float64
	WeightLoad        float64
	MinScoreThreshold float64
	MinContextWindow  int
	MinPriority       int
	LoadCacheTTL      time.Duration
	MaxFallbacks      int
	ScoringFile       string // Optional YAML overlay for weights/threshold/curves
}

// MaintenanceConfig holds scheduled maintenance configuration
type MaintenanceConfig struct {
	Enabled           bool
	RetentionDays     int
	RetentionSchedule string
	CacheSweepEvery   string
}

// ObservabilityConfig holds logging and metrics configuration
type ObservabilityConfig struct {
	LogLevel       string
	LogFormat      string // json or text
	MetricsEnabled bool
}

// New creates a new Config instance by loading environment variables
func New(ctx context.Context) (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load(".env")

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getPort(),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Database: loadDatabaseConfig(),
		Auth: AuthConfig{
			JWTSecret: getEnv("AUTH_JWT_SECRET", ""),
			JWTIssuer: getEnv("AUTH_JWT_ISSUER", "ai-gateway"),
		},
		Providers: ProvidersConfig{
			OpenAIAPIKey:   getEnv("OPENAI_API_KEY", ""),
			DefaultTimeout: getEnvAsDuration("PROVIDER_DEFAULT_TIMEOUT", 30*time.Second),
			MaxRetries:     getEnvAsInt("PROVIDER_MAX_RETRIES", 3),
			MockEnabled:    getEnvAsBool("PROVIDER_MOCK_ENABLED", true),
		},
		Routing: RoutingConfig{
			WeightCost:        getEnvAsFloat("ROUTING_WEIGHT_COST", 0.30),
			WeightComplexity:  getEnvAsFloat("ROUTING_WEIGHT_COMPLEXITY", 0.25),
			WeightContext:     getEnvAsFloat("ROUTING_WEIGHT_CONTEXT", 0.20),
			WeightPriority:    getEnvAsFloat("ROUTING_WEIGHT_PRIORITY", 0.15),
			WeightLoad:        getEnvAsFloat("ROUTING_WEIGHT_LOAD", 0.10),
			MinScoreThreshold: getEnvAsFloat("ROUTING_MIN_SCORE_THRESHOLD", 0.3),
			MinContextWindow:  getEnvAsInt("ROUTING_MIN_CONTEXT_WINDOW", 1024),
			MinPriority:       getEnvAsInt("ROUTING_MIN_PRIORITY", 1),
			LoadCacheTTL:      getEnvAsDuration("ROUTING_LOAD_CACHE_TTL", 5*time.Minute),
			MaxFallbacks:      getEnvAsInt("ROUTING_MAX_FALLBACKS", 3),
			ScoringFile:       getEnv("ROUTING_SCORING_FILE", ""),
		},
		Maintenance: MaintenanceConfig{
			Enabled:           getEnvAsBool("MAINTENANCE_ENABLED", true),
			RetentionDays:     getEnvAsInt("MAINTENANCE_RETENTION_DAYS", 30),
			RetentionSchedule: getEnv("MAINTENANCE_RETENTION_SCHEDULE", "0 3 * * *"),
			CacheSweepEvery:   getEnv("MAINTENANCE_CACHE_SWEEP_EVERY", "@every 5m"),
		},
		Observability: ObservabilityConfig{
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			LogFormat:      getEnv("LOG_FORMAT", "json"),
			MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
		},
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if all required configuration fields are set
func (c *Config) Validate() error {
	// Database validation (DATABASE_URL or DB_* vars)
	if c.Database.ConnectionString == "" && c.Database.Host == "" {
		return fmt.Errorf("database configuration required: set DATABASE_URL or DB_HOST")
	}
	if c.Database.ConnectionString == "" {
		if c.Database.User == "" {
			return fmt.Errorf("database user is required")
		}
		if c.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
	}

	// Weight validation mirrors the scorer's own check so a bad deployment
	// fails at startup instead of on the first request
	sum := c.Routing.WeightCost + c.Routing.WeightComplexity + c.Routing.WeightContext +
		c.Routing.WeightPriority + c.Routing.WeightLoad
	if sum < 0.999 || sum > 1.001 {
		return fmt.Errorf("routing weights must sum to 1.0, got %.3f", sum)
	}
	if c.Routing.MinScoreThreshold < 0 || c.Routing.MinScoreThreshold > 1 {
		return fmt.Errorf("routing min score threshold must be between 0 and 1")
	}
	if c.Routing.MaxFallbacks < 0 {
		return fmt.Errorf("routing max fallbacks must not be negative")
	}

	// Admin auth is required in production
	if c.IsProduction() && c.Auth.JWTSecret == "" {
		return fmt.Errorf("AUTH_JWT_SECRET is required in production")
	}

	// At least one real provider credential in production (mock does not count)
	if c.IsProduction() && c.Providers.OpenAIAPIKey == "" {
		return fmt.Errorf("at least one provider API key must be configured in production")
	}

	if c.Maintenance.RetentionDays <= 0 {
		return fmt.Errorf("maintenance retention days must be positive")
	}

	if c.Observability.LogLevel == "" {
		return fmt.Errorf("log level is required")
	}

	return nil
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

// DSN returns the PostgreSQL connection string.
// Uses ConnectionString (from DATABASE_URL) when set; otherwise builds from individual fields.
func (c *DatabaseConfig) DSN() string {
	if c.ConnectionString != "" {
		return c.ConnectionString
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// LogString returns a safe string for logging (no password). Parses ConnectionString when set.
func (c *DatabaseConfig) LogString() string {
	if c.ConnectionString != "" {
		u, err := url.Parse(c.ConnectionString)
		if err == nil {
			host := u.Hostname()
			port := u.Port()
			if port == "" {
				port = "5432"
			}
			db := strings.TrimPrefix(u.Path, "/")
			return fmt.Sprintf("host=%s port=%s database=%s", host, port, db)
		}
		return "host=<from DATABASE_URL>"
	}
	return fmt.Sprintf("host=%s port=%d database=%s", c.Host, c.Port, c.Database)
}

// loadDatabaseConfig loads database config from DATABASE_URL or DB_* env vars
func loadDatabaseConfig() DatabaseConfig {
	dbURL := getEnv("DATABASE_URL", "")
	if dbURL != "" {
		return DatabaseConfig{
			ConnectionString: dbURL,
			MaxOpenConns:     getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:     getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime:  getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		}
	}
	return DatabaseConfig{
		Host:            getEnv("DB_HOST", "localhost"),
		Port:            getEnvAsInt("DB_PORT", 5432),
		User:            getEnv("DB_USER", "gateway"),
		Password:        getEnv("DB_PASSWORD", "gateway"),
		Database:        getEnv("DB_NAME", "ai_gateway"),
		SSLMode:         getEnv("DB_SSLMODE", "disable"),
		MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
		MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
	}
}

// Address returns the HTTP server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Helper functions

// getPort returns the server port from PORT or SERVER_PORT env vars (default: 8080)
func getPort() int {
	if value := os.Getenv("PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	if value := os.Getenv("SERVER_PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	return 8080
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

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
