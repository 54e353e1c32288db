package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

var (
	ErrMissingDatabaseDSN = errors.New("DB_DSN is required")
	ErrMissingOllamaURL   = errors.New("OLLAMA_URL is required")
	ErrMissingModel       = errors.New("OLLAMA_MODEL is required")
)

type Config struct {
	Server ServerConfig
	DB     DBConfig
	Redis  RedisConfig
	Ollama OllamaConfig
	Memory MemoryConfig
	Rate   RateConfig
	Log    LogConfig
}

type ServerConfig struct {
	ListenAddr        string
	HealthPath        string
	MetricsPath       string
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
}

type DBConfig struct {
	Driver      string
	DSN         string
	AutoMigrate bool
}

type RedisConfig struct {
	Addr        string
	Password    string
	DB          int
	InflightTTL time.Duration
}

type OllamaConfig struct {
	BaseURL        string
	Model          string
	EmbeddingModel string
	Timeout        time.Duration
}

type MemoryConfig struct {
	Enabled bool
	TopK    int
}

type RateConfig struct {
	PerHour int64
}

type LogConfig struct {
	Level string
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			ListenAddr:        mustEnv("LISTEN_ADDR", ":8080"),
			HealthPath:        mustEnv("HEALTH_PATH", "/healthz"),
			MetricsPath:       mustEnv("METRICS_PATH", "/metrics"),
			ReadHeaderTimeout: mustDuration("READ_HEADER_TIMEOUT", 5*time.Second),
			ShutdownTimeout:   mustDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		DB: DBConfig{
			Driver:      strings.ToLower(mustEnv("DB_DRIVER", "sqlite")),
			DSN:         mustEnv("DB_DSN", "file:coreon.sqlite?_pragma=foreign_keys(1)"),
			AutoMigrate: mustBool("AUTO_MIGRATE", true),
		},
		Redis: RedisConfig{
			Addr:        mustEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password:    mustEnv("REDIS_PASSWORD", ""),
			DB:          mustInt("REDIS_DB", 0),
			InflightTTL: mustDuration("INFLIGHT_TTL", 5*time.Minute),
		},
		Ollama: OllamaConfig{
			BaseURL:        mustEnv("OLLAMA_URL", "http://127.0.0.1:11434"),
			Model:          mustEnv("OLLAMA_MODEL", "gemma3:12b"),
			EmbeddingModel: mustEnv("OLLAMA_EMBEDDING_MODEL", "nomic-embed-text:latest"),
			Timeout:        mustDuration("OLLAMA_TIMEOUT", 120*time.Second),
		},
		Memory: MemoryConfig{
			Enabled: mustBool("MEMORY_ENABLED", false),
			TopK:    mustInt("MEMORY_TOP_K", 5),
		},
		Rate: RateConfig{
			PerHour: int64(mustInt("RATE_LIMIT_PER_HOUR", 0)),
		},
		Log: LogConfig{
			Level: strings.ToLower(mustEnv("LOG_LEVEL", "info")),
		},
	}

	if cfg.DB.DSN == "" {
		return nil, ErrMissingDatabaseDSN
	}
	if cfg.Ollama.BaseURL == "" {
		return nil, ErrMissingOllamaURL
	}
	if cfg.Ollama.Model == "" {
		return nil, ErrMissingModel
	}
	if cfg.Memory.TopK < 1 {
		cfg.Memory.TopK = 5
	}

	return cfg, nil
}

func mustEnv(key string, def string) string {
	if v := os.Getenv(key); v != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func mustInt(key string, def int) int {
	v := mustEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func mustBool(key string, def bool) bool {
	v := mustEnv(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func mustDuration(key string, def time.Duration) time.Duration {
	v := mustEnv(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
