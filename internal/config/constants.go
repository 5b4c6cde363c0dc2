package config

import "time"

// Database connection pool settings
const (
	DBMaxOpenConns    = 25
	DBMaxIdleConns    = 5
	DBConnMaxLifetime = 5 * time.Minute
	DBTxMaxAttempts   = 3
)

// HTTP server timeouts
const (
	ServerRequestTimeout  = 60 * time.Second
	ServerReadTimeout     = 15 * time.Second
	ServerIdleTimeout     = 120 * time.Second
	ServerShutdownTimeout = 30 * time.Second
)

// Database ping timeout for health checks
const DBPingTimeout = 5 * time.Second

// Background job intervals
const StatusSweepInterval = 5 * time.Minute

// Default rate limiting
const DefaultRateLimitPerMin = 60

// Room provider HTTP client timeout
const RoomProviderTimeout = 10 * time.Second

// Redis claim lock settings
const (
	RedisLockTTL        = 10 * time.Second
	RedisLockRetryDelay = 25 * time.Millisecond
)

// AMQP publisher settings. Events are best effort; a dead broker must not
// hold up booking responses.
const (
	AMQPDialTimeout   = 2 * time.Second
	AMQPRedialBackoff = 15 * time.Second
)
