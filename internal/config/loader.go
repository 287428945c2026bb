package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/reeltrip")

	// Ignore error if config file not found
	_ = v.ReadInConfig()

	var cfg Config

	// Server
	cfg.Server.Host = v.GetString("server_host")
	cfg.Server.Port = v.GetInt("server_port")
	cfg.Server.Env = v.GetString("server_env")

	// Pipeline
	cfg.Pipeline.PoolSize = v.GetInt("pipeline_pool_size")
	cfg.Pipeline.ConvergenceThreshold = v.GetFloat64("pipeline_convergence_threshold")
	cfg.Pipeline.MaxIterations = v.GetInt("pipeline_max_iterations")
	cfg.Pipeline.MaxRawTurns = v.GetInt("pipeline_max_raw_turns")
	cfg.Pipeline.OverallDeadline = v.GetDuration("pipeline_overall_deadline")
	cfg.Pipeline.MaxFrames = v.GetInt("pipeline_max_frames")
	cfg.Pipeline.DefaultDays = v.GetInt("pipeline_default_days")

	// Gemini
	cfg.Gemini.APIKey = v.GetString("gemini_api_key")
	cfg.Gemini.Model = v.GetString("gemini_model")
	cfg.Gemini.BaseURL = v.GetString("gemini_base_url")
	cfg.Gemini.Timeout = v.GetDuration("gemini_timeout")

	// Places
	cfg.Places.APIKey = v.GetString("places_api_key")
	cfg.Places.BaseURL = v.GetString("places_base_url")
	cfg.Places.MaxResults = v.GetInt("places_max_results")
	cfg.Places.Timeout = v.GetDuration("places_timeout")

	// PostgreSQL
	cfg.Postgres.Host = v.GetString("postgres_host")
	cfg.Postgres.Port = v.GetInt("postgres_port")
	cfg.Postgres.User = v.GetString("postgres_user")
	cfg.Postgres.Password = v.GetString("postgres_password")
	cfg.Postgres.Database = v.GetString("postgres_db")
	cfg.Postgres.SSLMode = v.GetString("postgres_ssl_mode")
	cfg.Postgres.MaxConns = int32(v.GetInt("postgres_max_conns"))
	cfg.Postgres.MinConns = int32(v.GetInt("postgres_min_conns"))

	// ClickHouse
	cfg.ClickHouse.Enabled = v.GetBool("clickhouse_enabled")
	cfg.ClickHouse.Host = v.GetString("clickhouse_host")
	cfg.ClickHouse.Port = v.GetInt("clickhouse_port")
	cfg.ClickHouse.User = v.GetString("clickhouse_user")
	cfg.ClickHouse.Password = v.GetString("clickhouse_password")
	cfg.ClickHouse.Database = v.GetString("clickhouse_db")

	// Redis
	cfg.Redis.Host = v.GetString("redis_host")
	cfg.Redis.Port = v.GetInt("redis_port")
	cfg.Redis.Password = v.GetString("redis_password")
	cfg.Redis.DB = v.GetInt("redis_db")

	// MinIO
	cfg.MinIO.Endpoint = v.GetString("minio_endpoint")
	cfg.MinIO.AccessKey = v.GetString("minio_access_key")
	cfg.MinIO.SecretKey = v.GetString("minio_secret_key")
	cfg.MinIO.UseSSL = v.GetBool("minio_use_ssl")
	cfg.MinIO.Bucket = v.GetString("minio_bucket")

	// Worker
	cfg.Worker.Concurrency = v.GetInt("worker_concurrency")
	cfg.Worker.QueueCritical = v.GetString("worker_queue_critical")
	cfg.Worker.QueueDefault = v.GetString("worker_queue_default")
	cfg.Worker.QueueLow = v.GetString("worker_queue_low")

	// Logging
	cfg.Log.Level = v.GetString("log_level")
	cfg.Log.Format = v.GetString("log_format")

	// Sentry
	cfg.Sentry.Enabled = v.GetBool("sentry_enabled")
	cfg.Sentry.DSN = v.GetString("sentry_dsn")
	cfg.Sentry.Environment = v.GetString("sentry_environment")
	cfg.Sentry.SampleRate = v.GetFloat64("sentry_sample_rate")

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server_host", "0.0.0.0")
	v.SetDefault("server_port", 8080)
	v.SetDefault("server_env", "development")

	// Pipeline defaults
	v.SetDefault("pipeline_pool_size", 3)
	v.SetDefault("pipeline_convergence_threshold", 0.85)
	v.SetDefault("pipeline_max_iterations", 3)
	v.SetDefault("pipeline_max_raw_turns", 5)
	v.SetDefault("pipeline_overall_deadline", "120s")
	v.SetDefault("pipeline_max_frames", 8)
	v.SetDefault("pipeline_default_days", 2)

	// Gemini defaults
	v.SetDefault("gemini_model", "gemini-2.0-flash")
	v.SetDefault("gemini_base_url", "https://generativelanguage.googleapis.com")
	v.SetDefault("gemini_timeout", "60s")

	// Places defaults
	v.SetDefault("places_base_url", "https://maps.googleapis.com/maps/api/place")
	v.SetDefault("places_max_results", 15)
	v.SetDefault("places_timeout", "20s")

	// PostgreSQL defaults
	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", 5432)
	v.SetDefault("postgres_user", "reeltrip")
	v.SetDefault("postgres_password", "reeltrip")
	v.SetDefault("postgres_db", "reeltrip")
	v.SetDefault("postgres_ssl_mode", "disable")
	v.SetDefault("postgres_max_conns", 25)
	v.SetDefault("postgres_min_conns", 5)

	// ClickHouse defaults
	v.SetDefault("clickhouse_enabled", false)
	v.SetDefault("clickhouse_host", "localhost")
	v.SetDefault("clickhouse_port", 9000)
	v.SetDefault("clickhouse_user", "reeltrip")
	v.SetDefault("clickhouse_password", "reeltrip")
	v.SetDefault("clickhouse_db", "reeltrip")

	// Redis defaults
	v.SetDefault("redis_host", "localhost")
	v.SetDefault("redis_port", 6379)
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_db", 0)

	// MinIO defaults
	v.SetDefault("minio_endpoint", "localhost:9002")
	v.SetDefault("minio_access_key", "reeltrip")
	v.SetDefault("minio_secret_key", "reeltrip123")
	v.SetDefault("minio_use_ssl", false)
	v.SetDefault("minio_bucket", "reeltrip-reels")

	// Worker defaults
	v.SetDefault("worker_concurrency", 10)
	v.SetDefault("worker_queue_critical", "critical")
	v.SetDefault("worker_queue_default", "default")
	v.SetDefault("worker_queue_low", "low")

	// Logging defaults
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")

	// Sentry defaults
	v.SetDefault("sentry_enabled", false)
	v.SetDefault("sentry_sample_rate", 1.0)
}

func validate(cfg *Config) error {
	if cfg.Pipeline.PoolSize < 1 {
		return fmt.Errorf("pipeline_pool_size must be at least 1")
	}
	if cfg.Pipeline.ConvergenceThreshold < 0 || cfg.Pipeline.ConvergenceThreshold > 1 {
		return fmt.Errorf("pipeline_convergence_threshold must be within [0,1]")
	}
	if cfg.Pipeline.MaxIterations < 0 {
		return fmt.Errorf("pipeline_max_iterations must not be negative")
	}
	return nil
}
