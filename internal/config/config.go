package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

const (
	PatternStorePostgres = "postgres"
	PatternStoreRedis    = "redis"
	PatternStoreBadger   = "badger"
	PatternStoreMemory   = "memory"
)

// Config centraliza la configuración del servicio.
type Config struct {
	HTTPPort    string `env:"HTTP_PORT" envDefault:"8080"`
	DatabaseURL string `env:"DATABASE_URL,required"`
	LLMAPIKey   string `env:"LLM_API_KEY,required"`
	LLMBaseURL  string `env:"LLM_BASE_URL" envDefault:"https://api.openai.com/v1"`
	LLMModel    string `env:"LLM_MODEL" envDefault:"gpt-4o-mini"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// PatternStore elige donde viven los contadores de patrones.
	PatternStore          string `env:"PATTERN_STORE" envDefault:"postgres"`
	BadgerPath            string `env:"BADGER_PATH" envDefault:"data/patterns"`
	PatternAtomicThoughts bool   `env:"PATTERN_ATOMIC_THOUGHTS" envDefault:"false"`
	PatternStoreRetries   int    `env:"PATTERN_STORE_RETRIES" envDefault:"16"`

	ClassifyTimeout         time.Duration `env:"CLASSIFY_TIMEOUT" envDefault:"15s"`
	ClassifyBreakerFailures uint32        `env:"CLASSIFY_BREAKER_FAILURES" envDefault:"5"`
	ClassifyBreakerCooldown time.Duration `env:"CLASSIFY_BREAKER_COOLDOWN" envDefault:"30s"`
	AcceptUnclassified      bool          `env:"THOUGHTS_ACCEPT_UNCLASSIFIED" envDefault:"true"`

	ThoughtRateLimit  int           `env:"THOUGHT_RATE_LIMIT" envDefault:"30"`
	ThoughtRateWindow time.Duration `env:"THOUGHT_RATE_WINDOW" envDefault:"1m"`

	MatchesDefaultLimit int `env:"MATCHES_DEFAULT_LIMIT" envDefault:"20"`
	MatchesMaxLimit     int `env:"MATCHES_MAX_LIMIT" envDefault:"100"`
}

// LoadConfig carga la configuración desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate revisa combinaciones que env no puede expresar con tags.
func (c *Config) Validate() error {
	switch c.PatternStore {
	case PatternStorePostgres, PatternStoreBadger, PatternStoreMemory:
	case PatternStoreRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("PATTERN_STORE=redis requires REDIS_ADDR")
		}
	default:
		return fmt.Errorf("unknown PATTERN_STORE %q", c.PatternStore)
	}
	if c.MatchesDefaultLimit <= 0 || c.MatchesMaxLimit < c.MatchesDefaultLimit {
		return fmt.Errorf("invalid matches limits: default=%d max=%d", c.MatchesDefaultLimit, c.MatchesMaxLimit)
	}
	if c.ClassifyTimeout <= 0 {
		return fmt.Errorf("CLASSIFY_TIMEOUT must be positive")
	}
	return nil
}
