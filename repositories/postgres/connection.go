package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/routelab/ai-gateway/config"
	"go.uber.org/zap"
)

// DB wraps the sql.DB connection pool
type DB struct {
	*sql.DB
	logger *zap.Logger
}

// NewDB creates a new database connection pool
func NewDB(cfg config.DatabaseConfig, logger *zap.Logger) (*DB, error) {
	dsn := cfg.DSN()

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("database connection established",
		zap.String("connection", cfg.LogString()))

	return &DB{
		DB:     db,
		logger: logger,
	}, nil
}

// Close closes the database connection pool
func (db *DB) Close() error {
	db.logger.Info("closing database connection")
	return db.DB.Close()
}

// HealthCheck performs a health check on the database
func (db *DB) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}

	// Check if we can query
	var result int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("database query check failed: %w", err)
	}

	return nil
}

// Stats returns database connection pool statistics
func (db *DB) Stats() sql.DBStats {
	return db.DB.Stats()
}

// InitSchema initializes the database schema
func (db *DB) InitSchema(ctx context.Context) error {
	schema := `
		-- Providers table
		CREATE TABLE IF NOT EXISTS providers (
			provider_id UUID PRIMARY KEY,
			provider_name VARCHAR(50) NOT NULL UNIQUE,
			base_url VARCHAR(255) NOT NULL,
			auth_type VARCHAR(20) NOT NULL DEFAULT 'bearer',
			max_requests_per_minute INTEGER NOT NULL DEFAULT 60,
			retry_count INTEGER NOT NULL DEFAULT 3,
			timeout_seconds INTEGER NOT NULL DEFAULT 30,
			is_active BOOLEAN NOT NULL DEFAULT true,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		-- AI models table
		CREATE TABLE IF NOT EXISTS ai_models (
			model_id UUID PRIMARY KEY,
			provider_id UUID NOT NULL REFERENCES providers(provider_id) ON DELETE CASCADE,
			model_name VARCHAR(100) NOT NULL,
			model_type VARCHAR(20) NOT NULL DEFAULT 'text',
			context_window INTEGER NOT NULL,
			max_output_tokens INTEGER,
			supports_json_mode BOOLEAN NOT NULL DEFAULT false,
			supports_function_calling BOOLEAN NOT NULL DEFAULT false,
			input_price_per_1k DECIMAL(10, 6) NOT NULL DEFAULT 0,
			output_price_per_1k DECIMAL(10, 6) NOT NULL DEFAULT 0,
			is_available BOOLEAN NOT NULL DEFAULT true,
			priority INTEGER NOT NULL DEFAULT 5,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(provider_id, model_name)
		);

		-- Requests table
		CREATE TABLE IF NOT EXISTS requests (
			request_id UUID PRIMARY KEY,
			user_id UUID,
			model_id UUID NOT NULL REFERENCES ai_models(model_id) ON DELETE RESTRICT,
			prompt_hash VARCHAR(64),
			input_text TEXT,
			input_tokens INTEGER,
			output_tokens INTEGER,
			total_cost DECIMAL(10, 6),
			temperature DECIMAL(3, 2),
			max_tokens INTEGER,
			status VARCHAR(20) NOT NULL DEFAULT 'pending',
			error_message TEXT,
			request_timestamp TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			completed_at TIMESTAMP,
			processing_time_ms INTEGER,
			client_ip VARCHAR(45),
			user_agent TEXT,
			endpoint_called VARCHAR(255)
		);

		-- Indexes for performance
		CREATE INDEX IF NOT EXISTS idx_ai_models_provider_id ON ai_models(provider_id);
		CREATE INDEX IF NOT EXISTS idx_ai_models_is_available ON ai_models(is_available);

		CREATE INDEX IF NOT EXISTS idx_requests_model_id ON requests(model_id);
		CREATE INDEX IF NOT EXISTS idx_requests_status ON requests(status);
		CREATE INDEX IF NOT EXISTS idx_requests_request_timestamp ON requests(request_timestamp);
		CREATE INDEX IF NOT EXISTS idx_requests_prompt_hash ON requests(prompt_hash);
	`

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	db.logger.Info("database schema initialized successfully")
	return nil
}

// SeedCatalog inserts a starter catalog so a fresh database can route.
// Inserts are idempotent; existing rows are left untouched.
func (db *DB) SeedCatalog(ctx context.Context) error {
	seed := `
		INSERT INTO providers (provider_id, provider_name, base_url, auth_type, is_active) VALUES
			(gen_random_uuid(), 'OpenAI', 'https://api.openai.com/v1', 'bearer', true),
			(gen_random_uuid(), 'Ollama', 'http://localhost:11434', 'none', true),
			(gen_random_uuid(), 'MockAI', 'mock://local', 'none', true)
		ON CONFLICT (provider_name) DO NOTHING;

		INSERT INTO ai_models (model_id, provider_id, model_name, model_type, context_window, input_price_per_1k, output_price_per_1k, priority, is_available) VALUES
			(gen_random_uuid(), (SELECT provider_id FROM providers WHERE provider_name = 'OpenAI'), 'gpt-4o', 'text', 128000, 0.005, 0.015, 8, true),
			(gen_random_uuid(), (SELECT provider_id FROM providers WHERE provider_name = 'OpenAI'), 'gpt-4o-mini', 'text', 128000, 0.00015, 0.0006, 6, true),
			(gen_random_uuid(), (SELECT provider_id FROM providers WHERE provider_name = 'OpenAI'), 'gpt-4-turbo', 'text', 128000, 0.010, 0.030, 7, true),
			(gen_random_uuid(), (SELECT provider_id FROM providers WHERE provider_name = 'Ollama'), 'llama3', 'text', 8192, 0, 0, 4, true),
			(gen_random_uuid(), (SELECT provider_id FROM providers WHERE provider_name = 'MockAI'), 'mock-fast', 'text', 8192, 0.0001, 0.0001, 2, true)
		ON CONFLICT (provider_id, model_name) DO NOTHING;
	`

	if _, err := db.ExecContext(ctx, seed); err != nil {
		return fmt.Errorf("failed to seed catalog: %w", err)
	}

	db.logger.Info("catalog seeded")
	return nil
}
