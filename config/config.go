// Package config provides configuration management for the aigw gateway.
// Configuration is read from an optional YAML file with ${VAR} expansion,
// completed from the environment, and validated before the server starts.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Supported completion providers.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
	ProviderGollm  = "gollm"
)

// Config represents the complete gateway configuration.
type Config struct {
	Server         ServerConfig         `yaml:"server"`
	LLM            LLMConfig            `yaml:"llm"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
	Notify         NotifyConfig         `yaml:"notify"`
	Logging        LoggingConfig        `yaml:"logging"`
	RateLimit      RateLimitConfig      `yaml:"rate_limit"`
	Queue          QueueConfig          `yaml:"queue"`
	CORS           CORSConfig           `yaml:"cors"`
	Tracing        TracingConfig        `yaml:"tracing"`
}

// ServerConfig holds settings for the HTTP server.
type ServerConfig struct {
	// Port specifies the HTTP server port (default: 8080)
	Port int `yaml:"port"`

	// ReadTimeout is the maximum duration for reading the entire request,
	// including the body (default: 30s)
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of the
	// response. It must leave room for the slowest completion call
	// (default: 120s)
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// MaxHeaderBytes controls the maximum number of bytes the server will
	// read parsing the request header's keys and values (default: 1MB)
	MaxHeaderBytes int `yaml:"max_header_bytes"`

	// MaxBodyBytes limits request bodies. Document uploads carry several
	// base64 images, so the default is generous (default: 32MB)
	MaxBodyBytes int64 `yaml:"max_body_bytes"`

	// ShutdownTimeout specifies how long to wait for in-flight requests
	// during graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// LLMConfig selects and tunes the completion backend.
type LLMConfig struct {
	// Provider is one of "gemini", "openai" or "gollm"
	Provider string `yaml:"provider"`

	// Backend is the gollm provider name (e.g. "anthropic", "ollama").
	// Only used when Provider is "gollm"
	Backend string `yaml:"backend"`

	// Model is the model identifier passed to the provider
	Model string `yaml:"model"`

	// APIKey authenticates against the provider. Falls back to
	// GEMINI_API_KEY, OPENAI_API_KEY or <BACKEND>_API_KEY
	APIKey string `yaml:"api_key"`

	// Endpoint overrides the provider base URL (OpenAI-compatible servers)
	Endpoint string `yaml:"endpoint"`

	// TextTimeout bounds text-only completion calls (default: 30s)
	TextTimeout time.Duration `yaml:"text_timeout"`

	// DocumentTimeout bounds completion calls carrying attachments
	// (default: 90s)
	DocumentTimeout time.Duration `yaml:"document_timeout"`

	// MaxInputTokens rejects text inputs longer than this many tokens.
	// Zero disables the check
	MaxInputTokens int `yaml:"max_input_tokens"`

	// SafetyThreshold sets the Gemini harm block threshold:
	// "none", "only_high", "medium_and_above", "low_and_above" or "" (provider default)
	SafetyThreshold string `yaml:"safety_threshold"`
}

// CircuitBreakerConfig configures the breaker guarding the completion backend.
type CircuitBreakerConfig struct {
	// MaxRequests is the number of requests allowed through in half-open state
	MaxRequests uint32 `yaml:"max_requests"`

	// Interval is the cyclic period of the closed state after which counts reset
	Interval time.Duration `yaml:"interval"`

	// Timeout is the period of the open state until it becomes half-open
	Timeout time.Duration `yaml:"timeout"`

	// FailureThreshold is the number of consecutive failures that trips the breaker.
	// Zero disables the breaker
	FailureThreshold uint32 `yaml:"failure_threshold"`
}

// NotifyConfig configures the notification relay.
type NotifyConfig struct {
	// BotToken is the Telegram bot token. Falls back to TELEGRAM_BOT_TOKEN
	BotToken string `yaml:"bot_token"`

	// SharedSecret is compared with the X-Internal-Secret header.
	// Falls back to INTERNAL_SECRET
	SharedSecret string `yaml:"shared_secret"`

	// APIBaseURL is the Telegram Bot API root (default: https://api.telegram.org)
	APIBaseURL string `yaml:"api_base_url"`
}

// LoggingConfig holds logging-specific configuration.
type LoggingConfig struct {
	// Level sets logging verbosity: debug, info, warn, error
	Level string `yaml:"level"`

	// Format specifies log output format: json or text
	Format string `yaml:"format"`
}

// RateLimitConfig configures per-client rate limiting.
type RateLimitConfig struct {
	Enabled bool `yaml:"enabled"`

	// RequestsPerMinute is the sustained rate per client IP
	RequestsPerMinute int `yaml:"requests_per_minute"`

	// Burst is the number of requests allowed at once
	Burst int `yaml:"burst"`
}

// QueueConfig configures the admission queue in front of completion routes.
type QueueConfig struct {
	Enabled bool `yaml:"enabled"`

	// MaxConcurrent is the number of completion requests processed at once
	MaxConcurrent int `yaml:"max_concurrent"`

	// MaxQueued is the number of requests allowed to wait for a slot
	MaxQueued int `yaml:"max_queued"`
}

// CORSConfig configures cross-origin access.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// TracingConfig configures export of pipeline spans to a Jaeger collector.
// With tracing disabled spans are still created but never leave the process.
type TracingConfig struct {
	Enabled bool `yaml:"enabled"`

	// Endpoint is the collector's HTTP thrift endpoint
	// (default: http://localhost:14268/api/traces)
	Endpoint string `yaml:"endpoint"`

	// ServiceName is reported as the service.name resource attribute
	ServiceName string `yaml:"service_name"`

	// SampleRatio is the fraction of root spans kept, from 0 to 1 (default: 1)
	SampleRatio float64 `yaml:"sample_ratio"`
}

// MissingCredentialError reports a required credential absent from both the
// configuration file and the environment. It is fatal at startup.
type MissingCredentialError struct {
	// Field is the configuration key, e.g. "llm.api_key"
	Field string
	// Env is the environment variable consulted as fallback
	Env string
}

func (e *MissingCredentialError) Error() string {
	if e.Env == "" {
		return fmt.Sprintf("missing credential %s", e.Field)
	}
	return fmt.Sprintf("missing credential %s (set it in the config file or %s)", e.Field, e.Env)
}

// DefaultConfig returns the configuration used when the file omits a value.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    120 * time.Second,
			MaxHeaderBytes:  1 << 20,
			MaxBodyBytes:    32 << 20,
			ShutdownTimeout: 30 * time.Second,
		},
		LLM: LLMConfig{
			Provider:        ProviderGemini,
			Model:           "gemini-1.5-flash-latest",
			TextTimeout:     30 * time.Second,
			DocumentTimeout: 90 * time.Second,
		},
		CircuitBreaker: CircuitBreakerConfig{
			MaxRequests:      1,
			Interval:         time.Minute,
			Timeout:          30 * time.Second,
			FailureThreshold: 5,
		},
		Notify: NotifyConfig{
			APIBaseURL: "https://api.telegram.org",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		RateLimit: RateLimitConfig{
			Enabled:           false,
			RequestsPerMinute: 60,
			Burst:             10,
		},
		Queue: QueueConfig{
			Enabled:       false,
			MaxConcurrent: 8,
			MaxQueued:     64,
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"*"},
		},
		Tracing: TracingConfig{
			Endpoint:    "http://localhost:14268/api/traces",
			ServiceName: "aigw",
			SampleRatio: 1,
		},
	}
}

// LoadFile loads configuration from a YAML file.
func LoadFile(filename string) (*Config, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("open config file: %w", err)
	}
	defer f.Close()

	return Load(f)
}

// LoadFileOrDefault behaves like LoadFile but treats a missing file as an
// empty one, so defaults and the environment alone can configure the gateway.
func LoadFileOrDefault(filename string) (*Config, error) {
	cfg, err := LoadFile(filename)
	if err != nil && errors.Is(err, os.ErrNotExist) {
		return Load(strings.NewReader(""))
	}
	return cfg, err
}

// expandEnvVars resolves ${VAR} and ${VAR:-default} references.
// Nested references produced by a substitution are expanded as well.
//
//	"${PORT:-8080}" → "8080" when PORT is unset or empty
func expandEnvVars(s string) string {
	result := os.Expand(s, func(key string) string {
		if i := strings.Index(key, ":-"); i >= 0 {
			if val := os.Getenv(key[:i]); val != "" {
				return val
			}
			return key[i+2:]
		}
		return os.Getenv(key)
	})

	prev := ""
	for prev != result {
		prev = result
		result = os.Expand(result, os.Getenv)
	}
	return result
}

// Load loads configuration from an io.Reader, applies environment fallbacks
// and validates the result.
func Load(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	config := DefaultConfig()

	dec := yaml.NewDecoder(strings.NewReader(expandEnvVars(string(data))))
	if err := dec.Decode(config); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	config.applyEnv()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return config, nil
}

// apiKeyEnv names the environment variable holding the provider credential.
func (c *LLMConfig) apiKeyEnv() string {
	switch c.Provider {
	case ProviderGemini:
		return "GEMINI_API_KEY"
	case ProviderOpenAI:
		return "OPENAI_API_KEY"
	case ProviderGollm:
		if c.Backend != "" {
			return strings.ToUpper(c.Backend) + "_API_KEY"
		}
	}
	return ""
}

// requiresAPIKey reports whether the provider refuses to run without a key.
// Local ollama through gollm is the only keyless setup.
func (c *LLMConfig) requiresAPIKey() bool {
	return !(c.Provider == ProviderGollm && c.Backend == "ollama")
}

func (c *Config) applyEnv() {
	if c.LLM.APIKey == "" {
		if env := c.LLM.apiKeyEnv(); env != "" {
			c.LLM.APIKey = strings.TrimSpace(os.Getenv(env))
		}
	}
	if c.Notify.BotToken == "" {
		c.Notify.BotToken = strings.TrimSpace(os.Getenv("TELEGRAM_BOT_TOKEN"))
	}
	if c.Notify.SharedSecret == "" {
		c.Notify.SharedSecret = os.Getenv("INTERNAL_SECRET")
	}
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}
}

// Validate checks ranges first and credentials last, so a malformed file is
// reported as such even when secrets are missing too.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	if c.Server.ReadTimeout < 0 {
		return fmt.Errorf("negative read timeout: %v", c.Server.ReadTimeout)
	}
	if c.Server.WriteTimeout < 0 {
		return fmt.Errorf("negative write timeout: %v", c.Server.WriteTimeout)
	}
	if c.Server.MaxHeaderBytes < 0 {
		return fmt.Errorf("negative max header bytes: %d", c.Server.MaxHeaderBytes)
	}
	if c.Server.MaxBodyBytes < 0 {
		return fmt.Errorf("negative max body bytes: %d", c.Server.MaxBodyBytes)
	}
	if c.Server.ShutdownTimeout < 0 {
		return fmt.Errorf("negative shutdown timeout: %v", c.Server.ShutdownTimeout)
	}

	switch c.LLM.Provider {
	case ProviderGemini, ProviderOpenAI:
	case ProviderGollm:
		if c.LLM.Backend == "" {
			return fmt.Errorf("llm.backend is required for provider %q", ProviderGollm)
		}
	default:
		return fmt.Errorf("unsupported LLM provider: %q", c.LLM.Provider)
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("empty LLM model")
	}
	if c.LLM.TextTimeout <= 0 {
		return fmt.Errorf("llm.text_timeout must be positive: %v", c.LLM.TextTimeout)
	}
	if c.LLM.DocumentTimeout <= 0 {
		return fmt.Errorf("llm.document_timeout must be positive: %v", c.LLM.DocumentTimeout)
	}
	if c.Server.WriteTimeout > 0 && c.Server.WriteTimeout < c.LLM.DocumentTimeout {
		return fmt.Errorf("server.write_timeout (%v) shorter than llm.document_timeout (%v)",
			c.Server.WriteTimeout, c.LLM.DocumentTimeout)
	}
	if c.LLM.MaxInputTokens < 0 {
		return fmt.Errorf("negative llm.max_input_tokens: %d", c.LLM.MaxInputTokens)
	}
	switch c.LLM.SafetyThreshold {
	case "", "none", "only_high", "medium_and_above", "low_and_above":
	default:
		return fmt.Errorf("invalid llm.safety_threshold: %q", c.LLM.SafetyThreshold)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	if c.RateLimit.Enabled && (c.RateLimit.RequestsPerMinute <= 0 || c.RateLimit.Burst <= 0) {
		return fmt.Errorf("rate_limit requires positive requests_per_minute and burst")
	}
	if c.Queue.Enabled && (c.Queue.MaxConcurrent <= 0 || c.Queue.MaxQueued < 0) {
		return fmt.Errorf("queue requires positive max_concurrent and non-negative max_queued")
	}
	if c.Notify.APIBaseURL == "" {
		return fmt.Errorf("empty notify.api_base_url")
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return fmt.Errorf("tracing.sample_ratio must be between 0 and 1: %v", c.Tracing.SampleRatio)
	}
	if c.Tracing.Enabled && c.Tracing.Endpoint == "" {
		return fmt.Errorf("tracing requires an endpoint")
	}

	if c.LLM.APIKey == "" && c.LLM.requiresAPIKey() {
		return &MissingCredentialError{Field: "llm.api_key", Env: c.LLM.apiKeyEnv()}
	}
	if c.Notify.BotToken == "" {
		return &MissingCredentialError{Field: "notify.bot_token", Env: "TELEGRAM_BOT_TOKEN"}
	}
	if c.Notify.SharedSecret == "" {
		return &MissingCredentialError{Field: "notify.shared_secret", Env: "INTERNAL_SECRET"}
	}

	return nil
}
