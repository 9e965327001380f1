package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server    ServerConfig    `mapstructure:"server" validate:"required"`
	Database  DatabaseConfig  `mapstructure:"database" validate:"required"`
	Auth      AuthConfig      `mapstructure:"auth" validate:"required"`
	LLM       LLMConfig       `mapstructure:"llm" validate:"required"`
	Search    SearchConfig    `mapstructure:"search"`
	Dedupe    DedupeConfig    `mapstructure:"dedupe" validate:"required"`
	Redis     RedisConfig     `mapstructure:"redis"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit" validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required,url"`
}

// AuthConfig contains all authentication and authorization settings.
type AuthConfig struct {
	JWTSecret            string `mapstructure:"jwt_secret" validate:"required,min=32"`
	TokenLifetimeMinutes int    `mapstructure:"token_lifetime_minutes" validate:"required,gt=0"`
}

// LLMConfig contains the settings of the upstream chat-completion provider.
// An empty APIKey is valid: generation requests then fail fast with a
// service_unavailable result instead of preventing startup.
type LLMConfig struct {
	APIURL      string  `mapstructure:"api_url" validate:"required,url"`
	APIKey      string  `mapstructure:"api_key"`
	Model       string  `mapstructure:"model" validate:"required"`
	MaxRetries  int     `mapstructure:"max_retries" validate:"gte=0,lte=10"`
	Temperature float64 `mapstructure:"temperature" validate:"gte=0,lte=2"`
}

// SearchConfig contains the settings of the web search provider.
type SearchConfig struct {
	APIURL          string `mapstructure:"api_url" validate:"omitempty,url"`
	APIKey          string `mapstructure:"api_key"`
	CacheTTLSeconds int    `mapstructure:"cache_ttl_seconds" validate:"gte=0"`

	// CacheMaxEntries bounds the number of cached queries.
	CacheMaxEntries int `mapstructure:"cache_max_entries" validate:"gte=0"`
}

// CacheTTL returns the search cache TTL as a duration.
func (c SearchConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

// DedupeConfig controls the retry dedupe cache.
type DedupeConfig struct {
	TTLSeconds           int  `mapstructure:"ttl_seconds" validate:"required,gt=0"`
	SweepIntervalSeconds int  `mapstructure:"sweep_interval_seconds" validate:"required,gt=0"`
	MaxEntries           int  `mapstructure:"max_entries" validate:"gte=0"`
	PerUser              bool `mapstructure:"per_user"`
}

// TTL returns the dedupe window as a duration.
func (c DedupeConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// SweepInterval returns how often expired dedupe entries are removed.
func (c DedupeConfig) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSeconds) * time.Second
}

// RedisConfig contains the optional Redis connection used by the dedupe cache.
// When URL is empty the in-memory cache is used.
type RedisConfig struct {
	URL string `mapstructure:"url" validate:"omitempty,url"`
}

// RateLimitConfig configures the per-user token bucket.
type RateLimitConfig struct {
	PerMinute int `mapstructure:"per_minute" validate:"required,gt=0"`
	Burst     int `mapstructure:"burst" validate:"required,gt=0"`
}
