package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog/log"
)

type Config struct {
	Port             int    `env:"PORT" envDefault:"8080"`
	DatabaseURL      string `env:"DATABASE_URL,required"`
	RedisURL         string `env:"REDIS_URL,required"`
	LogLevel         string `env:"LOG_LEVEL" envDefault:"info"`
	CookieSecure     bool   `env:"COOKIE_SECURE" envDefault:"false"`
	WSMaxHeapBytes   uint64 `env:"WS_MAX_HEAP_BYTES" envDefault:"536870912"`
	GeneralRateLimit int    `env:"GENERAL_RATE_LIMIT" envDefault:"100"`
	ChatRateLimit    int    `env:"CHAT_RATE_LIMIT" envDefault:"20"`
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) SessionMaxAge(keepSignedIn bool) time.Duration {
	if keepSignedIn {
		return SessionMaxAgeKeepSignedIn
	}
	return SessionMaxAgeDefault
}

func (c *Config) Validate(isProduction bool) error {
	if c.GeneralRateLimit <= 0 || c.ChatRateLimit <= 0 {
		return fmt.Errorf("rate limits must be positive")
	}
	if c.ChatRateLimit > c.GeneralRateLimit {
		return fmt.Errorf("CHAT_RATE_LIMIT must not exceed GENERAL_RATE_LIMIT")
	}

	if isProduction {
		if !c.CookieSecure {
			log.Warn().Msg("COOKIE_SECURE is false in production: session cookies will be sent over plain HTTP")
		}
		if strings.HasPrefix(c.RedisURL, "redis://") {
			log.Warn().Msg("REDIS_URL uses redis:// (not TLS) in production: consider using rediss://")
		}
	}

	return nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
