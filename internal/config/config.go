package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Auth       AuthConfig       `yaml:"auth"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Organize   OrganizeConfig   `yaml:"organize"`
}

type ServerConfig struct {
	Host               string   `yaml:"host"`
	Port               int      `yaml:"port"`
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
	MaxBodyBytes       int64    `yaml:"max_body_bytes"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"` // "sqlite" or "postgres"
	DSN    string `yaml:"dsn"`    // file path for sqlite, connection string for postgres
}

type AuthConfig struct {
	JWTSecret      string `yaml:"jwt_secret"`
	TokenDuration  string `yaml:"token_duration"`  // e.g. "720h"
	SessionBackend string `yaml:"session_backend"` // "database" or "redis"
	RedisURL       string `yaml:"redis_url"`
}

type ClassifierConfig struct {
	Provider string `yaml:"provider"` // "none", "openai", "anthropic" or "gemini"
	Model    string `yaml:"model"`
	APIKey   string `yaml:"api_key"`
	BaseURL  string `yaml:"base_url"`
	Timeout  string `yaml:"timeout"`
}

type OrganizeConfig struct {
	Workers     int    `yaml:"workers"`
	MaxAttempts int    `yaml:"max_attempts"`
	RetryDelay  string `yaml:"retry_delay"`
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func (c *Config) ValidateServe() error {
	if c == nil {
		return fmt.Errorf("config is required")
	}
	if c.Auth.JWTSecret == "" || c.Auth.JWTSecret == "change-me-in-production" {
		return fmt.Errorf("SHOPLIST_JWT_SECRET must be set to a non-default value (example: SHOPLIST_JWT_SECRET=dev-jwt-secret-change-this)")
	}
	if len(c.Auth.JWTSecret) < 16 {
		return fmt.Errorf("SHOPLIST_JWT_SECRET must be at least 16 characters (current length: %d)", len(c.Auth.JWTSecret))
	}
	if _, err := c.TokenTTL(); err != nil {
		return err
	}
	if _, err := c.ClassifierTimeout(); err != nil {
		return err
	}
	if _, err := c.OrganizeRetryDelay(); err != nil {
		return err
	}
	switch c.Auth.SessionBackend {
	case "database":
	case "redis":
		if c.Auth.RedisURL == "" {
			return fmt.Errorf("auth.redis_url must be configured for the redis session backend")
		}
	default:
		return fmt.Errorf("unknown session backend %q", c.Auth.SessionBackend)
	}
	return nil
}

func (c *Config) TokenTTL() (time.Duration, error) {
	return parsePositiveDuration("auth.token_duration", c.Auth.TokenDuration)
}

func (c *Config) ClassifierTimeout() (time.Duration, error) {
	return parsePositiveDuration("classifier.timeout", c.Classifier.Timeout)
}

func (c *Config) OrganizeRetryDelay() (time.Duration, error) {
	return parsePositiveDuration("organize.retry_delay", c.Organize.RetryDelay)
}

func parsePositiveDuration(name, raw string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive", name)
	}
	return d, nil
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         3000,
			MaxBodyBytes: 1 << 20,
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "shoplist.db",
		},
		Auth: AuthConfig{
			JWTSecret:      "change-me-in-production",
			TokenDuration:  "720h",
			SessionBackend: "database",
		},
		Classifier: ClassifierConfig{
			Provider: "none",
			Timeout:  "30s",
		},
		Organize: OrganizeConfig{
			Workers:     2,
			MaxAttempts: 3,
			RetryDelay:  "10s",
		},
	}
}

func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("SHOPLIST_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("SHOPLIST_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = p
		}
	}
	if v := os.Getenv("SHOPLIST_CORS_ALLOW_ORIGINS"); v != "" {
		cfg.Server.CORSAllowedOrigins = parseCSV(v)
	}
	if v := os.Getenv("SHOPLIST_DB_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("SHOPLIST_DB_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("SHOPLIST_JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv("SHOPLIST_TOKEN_DURATION"); v != "" {
		cfg.Auth.TokenDuration = v
	}
	if v := os.Getenv("SHOPLIST_SESSION_BACKEND"); v != "" {
		cfg.Auth.SessionBackend = strings.ToLower(strings.TrimSpace(v))
	}
	if v := os.Getenv("SHOPLIST_REDIS_URL"); v != "" {
		cfg.Auth.RedisURL = v
	}
	if v := os.Getenv("SHOPLIST_CLASSIFIER_PROVIDER"); v != "" {
		cfg.Classifier.Provider = strings.ToLower(strings.TrimSpace(v))
	}
	if v := os.Getenv("SHOPLIST_CLASSIFIER_MODEL"); v != "" {
		cfg.Classifier.Model = v
	}
	if v := os.Getenv("SHOPLIST_CLASSIFIER_API_KEY"); v != "" {
		cfg.Classifier.APIKey = v
	}
	if v := os.Getenv("SHOPLIST_CLASSIFIER_BASE_URL"); v != "" {
		cfg.Classifier.BaseURL = v
	}
	if v := os.Getenv("SHOPLIST_CLASSIFIER_TIMEOUT"); v != "" {
		cfg.Classifier.Timeout = v
	}
	if v := os.Getenv("SHOPLIST_ORGANIZE_WORKERS"); v != "" {
		if value, err := strconv.Atoi(v); err == nil && value >= 0 {
			cfg.Organize.Workers = value
		}
	}
	if v := os.Getenv("SHOPLIST_ORGANIZE_MAX_ATTEMPTS"); v != "" {
		if value, err := strconv.Atoi(v); err == nil && value > 0 {
			cfg.Organize.MaxAttempts = value
		}
	}
}

func parseCSV(v string) []string {
	raw := strings.TrimSpace(v)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		value := strings.TrimSpace(part)
		if value == "" {
			continue
		}
		out = append(out, value)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
