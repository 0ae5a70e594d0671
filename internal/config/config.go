// Package config provides YAML-based configuration loading for Forecourt.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the top-level Forecourt configuration, loaded from forecourt.yaml.
// Secrets (LLM API key, JWT secret) are taken from the environment, never the
// YAML file; a .env file is honored if present.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	DB       DBConfig       `yaml:"db"`
	WhatsApp WhatsAppConfig `yaml:"whatsapp"`
	LLM      LLMConfig      `yaml:"llm"`
	Bot      BotConfig      `yaml:"bot"`
	Digest   DigestConfig   `yaml:"digest"`
	Redis    RedisConfig    `yaml:"redis"`
	Admin    AdminConfig    `yaml:"admin"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig holds the admin API listener settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DBConfig holds database connection settings. Driver is "sqlite" or "mysql".
type DBConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// WhatsAppConfig holds the WhatsApp session settings.
type WhatsAppConfig struct {
	// StorePath is the sqlite file holding the whatsmeow device session.
	StorePath string `yaml:"store_path"`
}

// LLMConfig holds the completion endpoint settings. The API key comes from
// the FORECOURT_LLM_API_KEY environment variable.
type LLMConfig struct {
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
	TimeoutSec  int     `yaml:"timeout_sec"`
	APIKey      string  `yaml:"-"`
}

// BotConfig controls conversation behavior.
type BotConfig struct {
	// HistoryLimit is the number of prior turns included in the LLM prompt.
	HistoryLimit int `yaml:"history_limit"`
}

// DigestConfig controls the scheduled open-ticket summary sent to operators.
type DigestConfig struct {
	Enabled    bool     `yaml:"enabled"`
	Cron       string   `yaml:"cron"`
	Recipients []string `yaml:"recipients"`
}

// RedisConfig holds the optional whitelist-cache settings. An empty Addr
// disables the cache entirely.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// AdminConfig holds admin API authentication settings. PasswordHash is a
// bcrypt hash of the operator password; login is rejected until one is set.
// The JWT secret comes from the FORECOURT_JWT_SECRET environment variable.
type AdminConfig struct {
	Username     string `yaml:"username"`
	PasswordHash string `yaml:"password_hash"`
	TokenTTLMin  int    `yaml:"token_ttl_minutes"`
	JWTSecret    string `yaml:"-"`
}

// LogConfig configures logging behavior.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Load reads a YAML config file from path and returns a validated Config
// with environment overrides applied.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	cfg.applyEnv()
	return cfg, nil
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 5000
	}
	if c.DB.Driver == "" {
		c.DB.Driver = "sqlite"
	}
	if c.DB.DSN == "" {
		c.DB.DSN = "forecourt.db"
	}
	if c.WhatsApp.StorePath == "" {
		c.WhatsApp.StorePath = "whatsapp-session.db"
	}
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = "https://api.grok.ai/v1"
	}
	if c.LLM.Model == "" {
		c.LLM.Model = "grok-2"
	}
	if c.LLM.MaxTokens == 0 {
		c.LLM.MaxTokens = 1000
	}
	if c.LLM.Temperature == 0 {
		c.LLM.Temperature = 0.7
	}
	if c.LLM.TimeoutSec == 0 {
		c.LLM.TimeoutSec = 60
	}
	if c.Bot.HistoryLimit == 0 {
		c.Bot.HistoryLimit = 20
	}
	if c.Digest.Cron == "" {
		c.Digest.Cron = "0 8 * * *"
	}
	if c.Admin.Username == "" {
		c.Admin.Username = "admin"
	}
	if c.Admin.TokenTTLMin == 0 {
		c.Admin.TokenTTLMin = 60
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// applyEnv loads a .env file if present and applies environment overrides.
func (c *Config) applyEnv() {
	_ = godotenv.Load()

	c.LLM.APIKey = os.Getenv("FORECOURT_LLM_API_KEY")
	c.Admin.JWTSecret = os.Getenv("FORECOURT_JWT_SECRET")
	if dsn := os.Getenv("FORECOURT_DB_DSN"); dsn != "" {
		c.DB.DSN = dsn
	}
	if addr := os.Getenv("FORECOURT_REDIS_ADDR"); addr != "" {
		c.Redis.Addr = addr
	}
}

// validate checks for configuration errors that would prevent startup.
func (c *Config) validate() error {
	switch c.DB.Driver {
	case "sqlite", "mysql":
	default:
		return fmt.Errorf("config: unsupported db driver %q (want sqlite or mysql)", c.DB.Driver)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: invalid server port %d", c.Server.Port)
	}
	if !strings.HasPrefix(c.LLM.BaseURL, "http://") && !strings.HasPrefix(c.LLM.BaseURL, "https://") {
		return fmt.Errorf("config: llm base_url must be an http(s) URL, got %q", c.LLM.BaseURL)
	}
	if c.Digest.Enabled && len(c.Digest.Recipients) == 0 {
		return fmt.Errorf("config: digest enabled but no recipients configured")
	}
	return nil
}
