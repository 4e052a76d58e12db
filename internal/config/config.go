package config

import (
	"os"
	"strings"

	"github.com/spf13/viper"
)

// readSecret reads a Docker secret from a file path specified by an env var
// with _FILE suffix. If FOO is already set directly, the file is skipped.
// If FOO_FILE is set, reads the file content and sets FOO.
func readSecret(envKey string) {
	if os.Getenv(envKey) != "" {
		return
	}
	fileKey := envKey + "_FILE"
	filePath := os.Getenv(fileKey)
	if filePath == "" {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	val := strings.TrimSpace(string(data))
	os.Setenv(envKey, val)
}

type Config struct {
	Server    ServerConfig
	Redis     RedisConfig
	Postgres  PostgresConfig
	Storage   StorageConfig
	OpenAI    OpenAIConfig
	Pipeline  PipelineConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Port     string
	Env      string
	LogLevel string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type PostgresConfig struct {
	DSN string
}

type StorageConfig struct {
	Endpoint        string // optional; empty means the provider default
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	PublicURL       string
}

type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// PipelineConfig controls step execution knobs. Chunk sizes and retry bounds
// are configuration, not constants in the executors.
type PipelineConfig struct {
	ChunkSize          int // sentences per translation chunk
	ChunkOverlap       int // sentences shared between adjacent chunks
	LLMMaxAttempts     int
	LLMRetryBaseMs     int
	TaskTimeoutMinutes int // visibility deadline for one pipeline run
	MaxRetry           int // queue redeliveries before a task is archived
	Concurrency        int
}

type RateLimitConfig struct {
	UploadPerHour int
}

func Load() (*Config, error) {
	// Read Docker Swarm secrets from _FILE env vars before Viper binds
	readSecret("REDIS_PASSWORD")
	readSecret("POSTGRES_DSN")
	readSecret("OPENAI_API_KEY")
	readSecret("STORAGE_ACCESS_KEY_ID")
	readSecret("STORAGE_SECRET_ACCESS_KEY")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Environment variables
	viper.AutomaticEnv()

	// Bind environment variables with underscores to nested config keys
	_ = viper.BindEnv("server.port", "SERVER_PORT")
	_ = viper.BindEnv("server.env", "SERVER_ENV")
	_ = viper.BindEnv("server.log_level", "LOG_LEVEL")
	_ = viper.BindEnv("redis.addr", "REDIS_ADDR")
	_ = viper.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = viper.BindEnv("redis.db", "REDIS_DB")
	_ = viper.BindEnv("postgres.dsn", "POSTGRES_DSN")
	_ = viper.BindEnv("storage.endpoint", "STORAGE_ENDPOINT")
	_ = viper.BindEnv("storage.region", "STORAGE_REGION")
	_ = viper.BindEnv("storage.access_key_id", "STORAGE_ACCESS_KEY_ID")
	_ = viper.BindEnv("storage.secret_access_key", "STORAGE_SECRET_ACCESS_KEY")
	_ = viper.BindEnv("storage.bucket_name", "STORAGE_BUCKET_NAME")
	_ = viper.BindEnv("storage.public_url", "STORAGE_PUBLIC_URL")
	_ = viper.BindEnv("openai.api_key", "OPENAI_API_KEY")
	_ = viper.BindEnv("openai.base_url", "OPENAI_BASE_URL")
	_ = viper.BindEnv("openai.model", "OPENAI_MODEL")
	_ = viper.BindEnv("pipeline.chunk_size", "PIPELINE_CHUNK_SIZE")
	_ = viper.BindEnv("pipeline.chunk_overlap", "PIPELINE_CHUNK_OVERLAP")
	_ = viper.BindEnv("pipeline.llm_max_attempts", "PIPELINE_LLM_MAX_ATTEMPTS")
	_ = viper.BindEnv("pipeline.llm_retry_base_ms", "PIPELINE_LLM_RETRY_BASE_MS")
	_ = viper.BindEnv("pipeline.task_timeout_minutes", "PIPELINE_TASK_TIMEOUT_MINUTES")
	_ = viper.BindEnv("pipeline.max_retry", "PIPELINE_MAX_RETRY")
	_ = viper.BindEnv("pipeline.concurrency", "PIPELINE_CONCURRENCY")
	_ = viper.BindEnv("ratelimit.upload_per_hour", "RATELIMIT_UPLOAD_PER_HOUR")

	// Defaults
	viper.SetDefault("server.port", "8000")
	viper.SetDefault("server.env", "development")
	viper.SetDefault("server.log_level", "info")
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("postgres.dsn", "postgres://localhost:5432/bardify?sslmode=disable")
	viper.SetDefault("storage.region", "auto")

	// OpenAI defaults
	viper.SetDefault("openai.base_url", "")
	viper.SetDefault("openai.model", "gpt-4o-mini")

	// Pipeline defaults. The task timeout must stay above the worst-case
	// pipeline duration, otherwise the queue hands the message to a second
	// worker while the first is still running.
	viper.SetDefault("pipeline.chunk_size", 12)
	viper.SetDefault("pipeline.chunk_overlap", 2)
	viper.SetDefault("pipeline.llm_max_attempts", 3)
	viper.SetDefault("pipeline.llm_retry_base_ms", 500)
	viper.SetDefault("pipeline.task_timeout_minutes", 15)
	viper.SetDefault("pipeline.max_retry", 3)
	viper.SetDefault("pipeline.concurrency", 4)

	viper.SetDefault("ratelimit.upload_per_hour", 50)

	// Try to read config file (optional)
	_ = viper.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port:     viper.GetString("server.port"),
			Env:      viper.GetString("server.env"),
			LogLevel: viper.GetString("server.log_level"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("redis.addr"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		Postgres: PostgresConfig{
			DSN: viper.GetString("postgres.dsn"),
		},
		Storage: StorageConfig{
			Endpoint:        viper.GetString("storage.endpoint"),
			Region:          viper.GetString("storage.region"),
			AccessKeyID:     viper.GetString("storage.access_key_id"),
			SecretAccessKey: viper.GetString("storage.secret_access_key"),
			BucketName:      viper.GetString("storage.bucket_name"),
			PublicURL:       viper.GetString("storage.public_url"),
		},
		OpenAI: OpenAIConfig{
			APIKey:  viper.GetString("openai.api_key"),
			BaseURL: viper.GetString("openai.base_url"),
			Model:   viper.GetString("openai.model"),
		},
		Pipeline: PipelineConfig{
			ChunkSize:          viper.GetInt("pipeline.chunk_size"),
			ChunkOverlap:       viper.GetInt("pipeline.chunk_overlap"),
			LLMMaxAttempts:     viper.GetInt("pipeline.llm_max_attempts"),
			LLMRetryBaseMs:     viper.GetInt("pipeline.llm_retry_base_ms"),
			TaskTimeoutMinutes: viper.GetInt("pipeline.task_timeout_minutes"),
			MaxRetry:           viper.GetInt("pipeline.max_retry"),
			Concurrency:        viper.GetInt("pipeline.concurrency"),
		},
		RateLimit: RateLimitConfig{
			UploadPerHour: viper.GetInt("ratelimit.upload_per_hour"),
		},
	}

	return cfg, nil
}
