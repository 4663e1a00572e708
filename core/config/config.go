package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"chatconnect.app/assistant/core/db"
)

type Config struct {
	OTel      OTelConfig
	LLM       LLMConfig
	Store     StoreConfig
	Redis     RedisConfig
	Assistant AssistantConfig
	Env       string
	Port      string
	DB        db.Config
}

type OTelConfig struct {
	Endpoint       string
	Headers        string
	ServiceName    string
	ServiceVersion string
	Environment    string  // deployment.environment; defaults to ASSISTANT_ENV
	SampleRatio    float64 // share of new traces kept
}

type LLMConfig struct {
	Provider        string // "openai" or "anthropic"
	APIKey          string
	BaseURL         string // Optional: for custom endpoints
	Model           string
	MaxTokens       int
	ReasoningEffort string // Optional: "low", "medium", "high" for reasoning models
}

type StoreDriver string

const (
	StoreDriverMemory   StoreDriver = "memory"
	StoreDriverPebble   StoreDriver = "pebble"
	StoreDriverPostgres StoreDriver = "postgres"
)

type StoreConfig struct {
	Driver     StoreDriver
	PebblePath string
}

type RedisConfig struct {
	URL                 string
	CommandStreamPrefix string
	ResultKeyPrefix     string
	CommandTimeout      time.Duration
	ContextTimeout      time.Duration
}

type AssistantConfig struct {
	TitleMaxLength   int
	AutoExecuteTools []string
	SnowflakeNode    int64
}

// Load loads configuration from environment variables.
// In development, .env is read first when present.
func Load() (Config, error) {
	if getEnv("ASSISTANT_ENV", "development") == "development" {
		_ = godotenv.Load(".env")
	}

	cfg := Config{
		Env:  getEnv("ASSISTANT_ENV", "development"),
		Port: getEnv("PORT", "8080"),
		DB: db.Config{
			DSN:      getEnv("DATABASE_URL", ""),
			MaxConns: getEnvInt32("DB_MAX_CONNS", 10),
			MinConns: getEnvInt32("DB_MIN_CONNS", 2),
		},
		OTel: OTelConfig{
			Endpoint:       getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			Headers:        getEnv("OTEL_EXPORTER_OTLP_HEADERS", ""),
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "chatconnect-assistant"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "dev"),
			SampleRatio:    getEnvFloat("OTEL_TRACES_SAMPLER_ARG", 1),
		},
		LLM: LLMConfig{
			Provider:        getEnv("LLM_PROVIDER", "openai"),
			APIKey:          getEnv("LLM_API_KEY", ""),
			BaseURL:         getEnv("LLM_BASE_URL", ""),
			Model:           getEnv("LLM_MODEL", "gpt-4.1-mini"),
			MaxTokens:       getEnvInt("LLM_MAX_TOKENS", 4096),
			ReasoningEffort: getEnv("LLM_REASONING_EFFORT", ""),
		},
		Store: StoreConfig{
			Driver:     StoreDriver(getEnv("STORE_DRIVER", string(StoreDriverMemory))),
			PebblePath: getEnv("STORE_PEBBLE_PATH", "./data/assistant"),
		},
		Redis: RedisConfig{
			URL:                 getEnv("REDIS_URL", "redis://localhost:6379/0"),
			CommandStreamPrefix: getEnv("PAGE_COMMAND_STREAM_PREFIX", "page-commands:"),
			ResultKeyPrefix:     getEnv("PAGE_RESULT_KEY_PREFIX", "page-result:"),
			CommandTimeout:      getEnvDuration("PAGE_COMMAND_TIMEOUT", 15*time.Second),
			ContextTimeout:      getEnvDuration("PAGE_CONTEXT_TIMEOUT", 2*time.Second),
		},
		Assistant: AssistantConfig{
			TitleMaxLength:   getEnvInt("THREAD_TITLE_MAX_LENGTH", 80),
			AutoExecuteTools: getEnvList("AUTO_EXECUTE_TOOLS", []string{"get_page_content"}),
			SnowflakeNode:    int64(getEnvInt("SNOWFLAKE_NODE", 1)),
		},
	}

	cfg.OTel.Environment = cfg.Env

	switch cfg.Store.Driver {
	case StoreDriverMemory, StoreDriverPebble:
	case StoreDriverPostgres:
		if !cfg.DB.Enabled() {
			return Config{}, fmt.Errorf("DATABASE_URL is required for the postgres store")
		}
	default:
		return Config{}, fmt.Errorf("unknown STORE_DRIVER %q", cfg.Store.Driver)
	}

	return cfg, nil
}

func (c Config) IsProduction() bool {
	return c.Env == "production"
}

func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

func (c OTelConfig) Enabled() bool {
	return c.Endpoint != ""
}

// Enabled reports whether a provider binding can be made. A disabled LLM is
// not a startup error: sends fail with a not-configured error instead.
func (c LLMConfig) Enabled() bool {
	return c.APIKey != "" && c.Model != "" && (c.Provider == "openai" || c.Provider == "anthropic")
}

func (c RedisConfig) Enabled() bool {
	return c.URL != ""
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt32(key string, fallback int32) int32 {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(i)
		}
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
