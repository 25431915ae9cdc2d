// Package config provides environment configuration for the studio server.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Text provider names accepted by TEXT_PROVIDER.
const (
	ProviderGemini    = "gemini"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// APIKeyEnv is the environment variable holding the generative API credential.
const APIKeyEnv = "API_KEY"

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	Env                string
	ServerPort         string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration
	AllowedOrigins     []string

	// Credential
	APIKey              string
	KeySelectionEnabled bool

	// Generation settings. An empty TextModel selects the provider's default.
	TextProvider      string
	TextModel         string
	VideoModel        string
	PlanTemperature   float64
	OpenAIAPIKey      string
	AnthropicAPIKey   string
	GeminiBaseURL     string
	VideoPollInterval time.Duration
	VideoPollTimeout  time.Duration
	VideoMaxPolls     int
	ChatFailureNotice bool

	// Sessions
	SessionSecret   string
	SessionTokenTTL time.Duration
	SessionIdleTTL  time.Duration

	// Rate limiting
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// NATS settings, empty URL disables publishing
	NATSURL   string
	NATSToken string

	// Logging
	LogLevel string

	// Tracing
	TracingEndpoint string
	TracingEnabled  bool
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		// Server
		Env:                getEnv("ENV", "production"),
		ServerPort:         getEnv("PORT", "8080"),
		ServerReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
		ServerWriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 120*time.Second),
		AllowedOrigins:     getListEnv("ALLOWED_ORIGINS", []string{"https://*", "http://*"}),

		// Credential
		APIKey:              os.Getenv(APIKeyEnv),
		KeySelectionEnabled: getBoolEnv("KEY_SELECTION_ENABLED", false),

		// Generation
		TextProvider:      strings.ToLower(getEnv("TEXT_PROVIDER", ProviderGemini)),
		TextModel:         getEnv("TEXT_MODEL", ""),
		VideoModel:        getEnv("VIDEO_MODEL", "veo-3.1-fast-generate-preview"),
		PlanTemperature:   getFloatEnv("PLAN_TEMPERATURE", 0.7),
		OpenAIAPIKey:      getEnv("OPENAI_API_KEY", ""),
		AnthropicAPIKey:   getEnv("ANTHROPIC_API_KEY", ""),
		GeminiBaseURL:     getEnv("GEMINI_BASE_URL", ""),
		VideoPollInterval: getDurationEnv("VIDEO_POLL_INTERVAL", 5*time.Second),
		VideoPollTimeout:  getDurationEnv("VIDEO_POLL_TIMEOUT", 10*time.Minute),
		VideoMaxPolls:     getIntEnv("VIDEO_MAX_POLLS", 120),
		ChatFailureNotice: getBoolEnv("CHAT_FAILURE_NOTICE", false),

		// Sessions
		SessionSecret:   getEnv("SESSION_SECRET", "development-secret-change-in-production"),
		SessionTokenTTL: getDurationEnv("SESSION_TOKEN_TTL", 24*time.Hour),
		SessionIdleTTL:  getDurationEnv("SESSION_IDLE_TTL", 2*time.Hour),

		// Rate limiting
		RateLimitRequests: getIntEnv("RATE_LIMIT_REQUESTS", 60),
		RateLimitWindow:   getDurationEnv("RATE_LIMIT_WINDOW", time.Minute),

		// NATS
		NATSURL:   getEnv("NATS_URL", ""),
		NATSToken: getEnv("NATS_TOKEN", ""),

		// Logging
		LogLevel: getEnv("LOG_LEVEL", "info"),

		// Tracing
		TracingEndpoint: getEnv("TRACING_ENDPOINT", "localhost:4318"),
		TracingEnabled:  getBoolEnv("TRACING_ENABLED", false),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks field values that have no usable fallback.
func (c *Config) Validate() error {
	if c.ServerPort == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	switch c.TextProvider {
	case ProviderGemini, ProviderOpenAI, ProviderAnthropic:
	default:
		return fmt.Errorf("TEXT_PROVIDER %q is not one of gemini, openai, anthropic", c.TextProvider)
	}
	if c.PlanTemperature < 0 || c.PlanTemperature > 2 {
		return fmt.Errorf("PLAN_TEMPERATURE must be within [0, 2]")
	}
	if c.VideoPollInterval <= 0 {
		return fmt.Errorf("VIDEO_POLL_INTERVAL must be > 0")
	}
	if c.VideoPollTimeout <= 0 && c.VideoMaxPolls <= 0 {
		return fmt.Errorf("either VIDEO_POLL_TIMEOUT or VIDEO_MAX_POLLS must bound video polling")
	}
	if c.SessionSecret == "" {
		return fmt.Errorf("SESSION_SECRET cannot be empty")
	}
	return nil
}

// HasCredential reports whether a credential was present at startup.
func (c *Config) HasCredential() bool {
	return c.APIKey != ""
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getListEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
