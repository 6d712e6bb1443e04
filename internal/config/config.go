// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration. It is built once at start-up
// and passed to the components that need it.
type Config struct {
	Port        string   `yaml:"port"`
	FrontendURL string   `yaml:"frontend_url"`
	CORSOrigins []string `yaml:"cors_allowed_origins"`

	Database        DatabaseConfig        `yaml:"database"`
	Agent           AgentConfig           `yaml:"agent"`
	Auth            AuthConfig            `yaml:"auth"`
	RateLimit       RateLimitConfig       `yaml:"rate_limit"`
	ConversationLog ConversationLogConfig `yaml:"conversation_log"`
}

// DatabaseConfig selects the session store backend. A zero Retention keeps
// sessions until they are reset.
type DatabaseConfig struct {
	Driver      string        `yaml:"driver"`
	Path        string        `yaml:"path"`
	URL         string        `yaml:"url"`
	AutoMigrate bool          `yaml:"auto_migrate"`
	Retention   time.Duration `yaml:"session_retention"`
}

// AgentConfig controls the conversation orchestrator and its LLM.
type AgentConfig struct {
	Provider         string        `yaml:"llm_provider"`
	Model            string        `yaml:"llm_model"`
	APIKey           string        `yaml:"-"`
	BaseURL          string        `yaml:"llm_base_url"`
	GRPCAddr         string        `yaml:"llm_grpc_addr"`
	Temperature      float64       `yaml:"llm_temperature"`
	MaxTokens        int           `yaml:"llm_max_tokens"`
	Timeout          time.Duration `yaml:"llm_timeout"`
	MaxMessageLength int           `yaml:"max_message_length"`
	HistoryWindow    int           `yaml:"history_window"`
	AnalyticsEnabled bool          `yaml:"analytics_enabled"`
	FallbackReply    string        `yaml:"fallback_reply"`
}

// AuthConfig controls request identity.
type AuthConfig struct {
	JWTSecret string `yaml:"-"`
}

// RateLimitConfig bounds chat requests per user.
type RateLimitConfig struct {
	Requests int           `yaml:"requests"`
	Window   time.Duration `yaml:"window"`
}

// ConversationLogConfig controls JSON conversation logging.
type ConversationLogConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Dir           string `yaml:"dir"`
	GlobalEnabled bool   `yaml:"global_enabled"`
	GlobalPath    string `yaml:"global_path"`
	QueueSize     int    `yaml:"queue_size"`
}

// Supported LLM providers.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
	ProviderGRPC   = "grpc"
	ProviderLocal  = "local"
)

// DefaultFallbackReply is sent when the LLM call fails.
const DefaultFallbackReply = "Xin lỗi, hệ thống đang gặp sự cố. Bạn vui lòng thử lại sau ít phút nhé."

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		Port: "8080",
		Database: DatabaseConfig{
			Driver: "sqlite",
			Path:   "./data/advisor.db",
		},
		Agent: AgentConfig{
			Provider:         ProviderLocal,
			Model:            "gemini-2.5-flash",
			Temperature:      0.7,
			MaxTokens:        1024,
			Timeout:          30 * time.Second,
			MaxMessageLength: 1000,
			HistoryWindow:    5,
			AnalyticsEnabled: true,
			FallbackReply:    DefaultFallbackReply,
		},
		RateLimit: RateLimitConfig{
			Requests: 30,
			Window:   time.Minute,
		},
		ConversationLog: ConversationLogConfig{
			Enabled:    true,
			Dir:        "./data/logs/conversations",
			GlobalPath: "./data/logs/conversations/all.ndjson",
			QueueSize:  1000,
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file named
// by CONFIG_FILE, and environment variables, in increasing precedence.
func Load() (*Config, error) {
	cfg := Defaults()

	if path := getEnv("CONFIG_FILE", ""); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Port = getEnv("PORT", c.Port)
	c.FrontendURL = getEnv("FRONTEND_URL", c.FrontendURL)
	if v := getEnv("CORS_ALLOWED_ORIGINS", ""); v != "" {
		c.CORSOrigins = splitList(v)
	}

	c.Database.Driver = getEnv("DB_DRIVER", c.Database.Driver)
	c.Database.Path = getEnv("DB_PATH", c.Database.Path)
	c.Database.URL = getEnv("DATABASE_URL", c.Database.URL)
	c.Database.AutoMigrate = getEnvBool("DB_AUTO_MIGRATE", c.Database.AutoMigrate)
	c.Database.Retention = getEnvDuration("SESSION_RETENTION", c.Database.Retention)

	a := &c.Agent
	a.Provider = getEnv("LLM_PROVIDER", a.Provider)
	a.Model = getEnv("LLM_MODEL", a.Model)
	a.APIKey = getEnv("LLM_API_KEY", a.APIKey)
	a.BaseURL = getEnv("LLM_BASE_URL", a.BaseURL)
	a.GRPCAddr = getEnv("LLM_GRPC_ADDR", a.GRPCAddr)
	a.Temperature = getEnvFloat("LLM_TEMPERATURE", a.Temperature)
	a.MaxTokens = getEnvInt("LLM_MAX_TOKENS", a.MaxTokens)
	a.Timeout = getEnvDuration("LLM_TIMEOUT", a.Timeout)
	a.MaxMessageLength = getEnvInt("MAX_MESSAGE_LENGTH", a.MaxMessageLength)
	a.HistoryWindow = getEnvInt("HISTORY_WINDOW", a.HistoryWindow)
	a.AnalyticsEnabled = getEnvBool("ANALYTICS_ENABLED", a.AnalyticsEnabled)
	a.FallbackReply = getEnv("FALLBACK_REPLY", a.FallbackReply)

	c.Auth.JWTSecret = getEnv("JWT_SECRET", c.Auth.JWTSecret)

	c.RateLimit.Requests = getEnvInt("RATE_LIMIT_REQUESTS", c.RateLimit.Requests)
	c.RateLimit.Window = getEnvDuration("RATE_LIMIT_WINDOW", c.RateLimit.Window)

	l := &c.ConversationLog
	l.Enabled = getEnvBool("CONVERSATION_LOG_ENABLED", l.Enabled)
	l.Dir = getEnv("CONVERSATION_LOG_DIR", l.Dir)
	l.GlobalEnabled = getEnvBool("CONVERSATION_LOG_GLOBAL_ENABLED", l.GlobalEnabled)
	l.GlobalPath = getEnv("CONVERSATION_LOG_GLOBAL_PATH", l.GlobalPath)
	l.QueueSize = getEnvInt("CONVERSATION_LOG_QUEUE_SIZE", l.QueueSize)
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}

	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			return fmt.Errorf("DB_PATH cannot be empty")
		}
	case "postgres":
		if c.Database.URL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres driver")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown DB_DRIVER %q", c.Database.Driver)
	}

	switch c.Agent.Provider {
	case ProviderGemini, ProviderOpenAI:
		if c.Agent.APIKey == "" {
			return fmt.Errorf("LLM_API_KEY is required for provider %q", c.Agent.Provider)
		}
	case ProviderGRPC:
		if c.Agent.GRPCAddr == "" {
			return fmt.Errorf("LLM_GRPC_ADDR is required for the grpc provider")
		}
	case ProviderLocal:
	default:
		return fmt.Errorf("unknown LLM_PROVIDER %q", c.Agent.Provider)
	}
	if c.Agent.Timeout <= 0 {
		return fmt.Errorf("LLM_TIMEOUT must be > 0")
	}
	if c.Agent.MaxMessageLength <= 0 {
		return fmt.Errorf("MAX_MESSAGE_LENGTH must be > 0")
	}
	if c.Agent.HistoryWindow < 0 {
		return fmt.Errorf("HISTORY_WINDOW cannot be negative")
	}
	if c.Agent.FallbackReply == "" {
		return fmt.Errorf("FALLBACK_REPLY cannot be empty")
	}

	if c.RateLimit.Requests < 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS cannot be negative")
	}
	if c.RateLimit.Requests > 0 && c.RateLimit.Window <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be > 0")
	}

	if c.ConversationLog.Enabled && c.ConversationLog.Dir == "" {
		return fmt.Errorf("CONVERSATION_LOG_DIR cannot be empty")
	}
	if c.ConversationLog.GlobalEnabled && c.ConversationLog.GlobalPath == "" {
		return fmt.Errorf("CONVERSATION_LOG_GLOBAL_PATH cannot be empty")
	}
	if c.ConversationLog.QueueSize <= 0 {
		return fmt.Errorf("CONVERSATION_LOG_QUEUE_SIZE must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	if env := os.Getenv("APP_ENV"); env != "" {
		return env == "development"
	}
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

// AllowedOrigins returns the CORS origins, defaulting to the frontend URL.
func (c *Config) AllowedOrigins() []string {
	if len(c.CORSOrigins) > 0 {
		return c.CORSOrigins
	}
	if c.FrontendURL != "" {
		return []string{c.FrontendURL}
	}
	return []string{"http://localhost:3000", "http://localhost:5173"}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
