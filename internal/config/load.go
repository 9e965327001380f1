package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable read by Load.
const EnvPrefix = "VAELIS"

// keys lists every configuration key so that viper can bind the matching
// environment variable even when no default or config file provides it.
var keys = []string{
	"server.port",
	"server.log_level",
	"database.url",
	"auth.jwt_secret",
	"auth.token_lifetime_minutes",
	"llm.api_url",
	"llm.api_key",
	"llm.model",
	"llm.max_retries",
	"llm.temperature",
	"search.api_url",
	"search.api_key",
	"search.cache_ttl_seconds",
	"search.cache_max_entries",
	"dedupe.ttl_seconds",
	"dedupe.sweep_interval_seconds",
	"dedupe.max_entries",
	"dedupe.per_user",
	"redis.url",
	"ratelimit.per_minute",
	"ratelimit.burst",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("auth.token_lifetime_minutes", 60)
	v.SetDefault("llm.api_url", "https://api.groq.com/openai/v1")
	v.SetDefault("llm.model", "llama-3.3-70b-versatile")
	v.SetDefault("llm.max_retries", 2)
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("search.api_url", "https://api.tavily.com/search")
	v.SetDefault("search.cache_ttl_seconds", 300)
	v.SetDefault("search.cache_max_entries", 1000)
	v.SetDefault("dedupe.ttl_seconds", 30)
	v.SetDefault("dedupe.sweep_interval_seconds", 60)
	v.SetDefault("dedupe.max_entries", 100000)
	v.SetDefault("dedupe.per_user", false)
	v.SetDefault("ratelimit.per_minute", 60)
	v.SetDefault("ratelimit.burst", 20)
}

// Load configuration from environment variables and optionally config files.
// A .env file in the working directory is loaded first when present; real
// environment variables always win over it. Environment variables take
// precedence over values from config.yaml.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	cfg, err := read()
	if err != nil {
		return nil, err
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// LoadSections reads configuration like Load but validates only the named
// top-level sections ("server", "database", "auth", "llm", "search",
// "dedupe", "redis", "ratelimit"). Command-line tools use it to run without
// settings they never touch.
func LoadSections(sections ...string) (*Config, error) {
	cfg, err := read()
	if err != nil {
		return nil, err
	}

	validate := validator.New()
	for _, name := range sections {
		section, ok := cfg.section(name)
		if !ok {
			return nil, fmt.Errorf("unknown config section %q", name)
		}
		if err := validate.Struct(section); err != nil {
			return nil, fmt.Errorf("config validation failed for %s: %w", name, err)
		}
	}

	return cfg, nil
}

func (c *Config) section(name string) (any, bool) {
	switch name {
	case "server":
		return c.Server, true
	case "database":
		return c.Database, true
	case "auth":
		return c.Auth, true
	case "llm":
		return c.LLM, true
	case "search":
		return c.Search, true
	case "dedupe":
		return c.Dedupe, true
	case "redis":
		return c.Redis, true
	case "ratelimit":
		return c.RateLimit, true
	default:
		return nil, false
	}
}

func read() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind environment variable for %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}
