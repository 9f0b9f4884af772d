package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Auth     AuthConfig
	LLM      LLMConfig
	Eval     EvalConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type DatabaseConfig struct {
	URL            string
	MaxConns       int
	MinConns       int
	MigrationsPath string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type AuthConfig struct {
	JWTSecret string // empty = auth disabled (single-user mode)
}

type LLMConfig struct {
	OpenAIKey       string
	AnthropicKey    string
	DefaultProvider string
	DefaultModel    string
	AnalysisModel   string
	JudgeModel      string
	EmbeddingModel  string
	MaxTokens       int
	Temperature     float64
	MaxAttempts     int
	RetryBaseDelay  time.Duration
	RetryMaxDelay   time.Duration
	CallTimeout     time.Duration
}

type EvalConfig struct {
	PassThreshold float64 // score >= threshold counts as pass
	Workers       int     // bounded pool size for comprehensive analysis / batch runs
	CompareMargin float64 // per-case deviation worth flagging in comparisons
}

func Load() (*Config, error) {
	port, err := getEnvInt("SERVER_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT: %w", err)
	}

	maxConns, err := getEnvInt("DB_MAX_CONNS", 20)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_CONNS: %w", err)
	}

	minConns, err := getEnvInt("DB_MIN_CONNS", 5)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MIN_CONNS: %w", err)
	}

	redisDB, err := getEnvInt("REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxAttempts, err := getEnvInt("LLM_MAX_ATTEMPTS", 3)
	if err != nil {
		return nil, fmt.Errorf("invalid LLM_MAX_ATTEMPTS: %w", err)
	}

	maxTokens, err := getEnvInt("LLM_MAX_TOKENS", 4096)
	if err != nil {
		return nil, fmt.Errorf("invalid LLM_MAX_TOKENS: %w", err)
	}

	temperature, err := getEnvFloat("LLM_TEMPERATURE", 1.0)
	if err != nil {
		return nil, fmt.Errorf("invalid LLM_TEMPERATURE: %w", err)
	}

	passThreshold, err := getEnvFloat("TEST_PASS_THRESHOLD", 70)
	if err != nil {
		return nil, fmt.Errorf("invalid TEST_PASS_THRESHOLD: %w", err)
	}

	workers, err := getEnvInt("EVAL_WORKERS", 4)
	if err != nil {
		return nil, fmt.Errorf("invalid EVAL_WORKERS: %w", err)
	}

	compareMargin, err := getEnvFloat("COMPARE_MARGIN", 10)
	if err != nil {
		return nil, fmt.Errorf("invalid COMPARE_MARGIN: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: port,
		},
		Database: DatabaseConfig{
			URL:            getEnv("DATABASE_URL", ""),
			MaxConns:       maxConns,
			MinConns:       minConns,
			MigrationsPath: getEnv("MIGRATIONS_PATH", "migrations"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
		},
		LLM: LLMConfig{
			OpenAIKey:       getEnv("OPENAI_API_KEY", ""),
			AnthropicKey:    getEnv("ANTHROPIC_API_KEY", ""),
			DefaultProvider: getEnv("LLM_DEFAULT_PROVIDER", "anthropic"),
			DefaultModel:    getEnv("LLM_DEFAULT_MODEL", "claude-sonnet-4-20250514"),
			AnalysisModel:   getEnv("LLM_ANALYSIS_MODEL", "claude-sonnet-4-20250514"),
			JudgeModel:      getEnv("LLM_JUDGE_MODEL", "claude-sonnet-4-20250514"),
			EmbeddingModel:  getEnv("LLM_EMBEDDING_MODEL", "text-embedding-3-small"),
			MaxTokens:       maxTokens,
			Temperature:     temperature,
			MaxAttempts:     maxAttempts,
			RetryBaseDelay:  getEnvDuration("LLM_RETRY_BASE_DELAY", 2*time.Second),
			RetryMaxDelay:   getEnvDuration("LLM_RETRY_MAX_DELAY", 30*time.Second),
			CallTimeout:     getEnvDuration("LLM_CALL_TIMEOUT", 2*time.Minute),
		},
		Eval: EvalConfig{
			PassThreshold: passThreshold,
			Workers:       workers,
			CompareMargin: compareMargin,
		},
	}

	return cfg, nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func (c *Config) Validate() error {
	var missing []string
	if c.Database.URL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if c.LLM.AnthropicKey == "" && c.LLM.OpenAIKey == "" {
		missing = append(missing, "ANTHROPIC_API_KEY or OPENAI_API_KEY")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required env vars: %s", strings.Join(missing, ", "))
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.ParseFloat(v, 64)
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
