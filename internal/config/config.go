package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog/log"
)

var knownWeakSecrets = []string{
	"change-me", "dev-secret-change-me", "secret", "admin", "password",
}

// Lock backends for the per-user claim lock.
const (
	LockBackendAdvisory = "advisory"
	LockBackendRedis    = "redis"
	LockBackendMemory   = "memory"
)

type Config struct {
	Port                int    `env:"PORT" envDefault:"8080"`
	DatabaseURL         string `env:"DATABASE_URL,required"`
	RedisURL            string `env:"REDIS_URL"`
	AMQPURL             string `env:"AMQP_URL"`
	JWTSecret           string `env:"JWT_SECRET,required"`
	RoomProviderURL     string `env:"ROOM_PROVIDER_URL" envDefault:"https://api.daily.co/v1"`
	RoomProviderAPIKey  string `env:"ROOM_PROVIDER_API_KEY"`
	RoomTokenSecret     string `env:"ROOM_TOKEN_SECRET"`
	RoomTokenTTLSeconds int    `env:"ROOM_TOKEN_TTL_SECONDS" envDefault:"3600"`
	LockBackend         string `env:"LOCK_BACKEND" envDefault:"advisory"`
	RateLimitPerMin     int    `env:"RATE_LIMIT_PER_MIN" envDefault:"60"`
	MaxListSpanDays     int    `env:"MAX_LIST_SPAN_DAYS" envDefault:"14"`
	JoinGraceEnabled    bool   `env:"JOIN_GRACE_ENABLED" envDefault:"true"`
	LogLevel            string `env:"LOG_LEVEL" envDefault:"info"`
}

func (c *Config) RoomTokenTTL() time.Duration {
	return time.Duration(c.RoomTokenTTLSeconds) * time.Second
}

func (c *Config) MaxListSpan() time.Duration {
	return time.Duration(c.MaxListSpanDays) * 24 * time.Hour
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) Validate(isProduction bool) error {
	switch c.LockBackend {
	case LockBackendAdvisory, LockBackendMemory:
	case LockBackendRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("LOCK_BACKEND=redis requires REDIS_URL")
		}
	default:
		return fmt.Errorf("LOCK_BACKEND must be one of advisory, redis, memory (got %q)", c.LockBackend)
	}

	if c.MaxListSpanDays <= 0 {
		return fmt.Errorf("MAX_LIST_SPAN_DAYS must be positive")
	}

	if isProduction {
		if err := validateSecret("JWT_SECRET", c.JWTSecret); err != nil {
			return err
		}
		if c.LockBackend == LockBackendMemory {
			return fmt.Errorf("LOCK_BACKEND=memory is single-process only and not allowed in production")
		}

		if c.RoomTokenSecret == "" {
			log.Warn().Msg("ROOM_TOKEN_SECRET is empty in production: room tokens are signed with JWT_SECRET")
		}
		if strings.HasPrefix(c.RedisURL, "redis://") {
			log.Warn().Msg("REDIS_URL uses redis:// (not TLS) in production: consider using rediss://")
		}
		if c.AMQPURL == "" {
			log.Warn().Msg("AMQP_URL is empty in production: booking events will not be published")
		}
	}

	return nil
}

func validateSecret(name, value string) error {
	if len(value) < 32 {
		return fmt.Errorf("%s must be at least 32 characters in production (generate with: openssl rand -base64 32)", name)
	}
	for _, weak := range knownWeakSecrets {
		if value == weak {
			return fmt.Errorf("%s is a known weak default; set a strong secret in production", name)
		}
	}
	return nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.RoomTokenSecret == "" {
		cfg.RoomTokenSecret = cfg.JWTSecret
	}
	return &cfg, nil
}
