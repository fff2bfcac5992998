package inference

import (
	"time"

	"go.uber.org/zap"
)

// OpenRouter defaults.
const (
	DefaultBaseURL = "https://openrouter.ai/api/v1"
	DefaultModel   = "openai/gpt-4o-mini"
	DefaultReferer = "https://jarvis-assistant.local"
	DefaultTitle   = "JARVIS Assistant"
)

// Config holds provider configuration.
type Config struct {
	// Connection
	BaseURL string // API base URL
	APIKey  string // Default credential; ChatRequest.APIKey overrides it

	// Attribution headers sent to OpenRouter.
	Referer string
	Title   string

	Model string

	// Request defaults
	MaxTokens   int
	Temperature float64

	Timeout time.Duration

	// Retry configuration. Only 429, 5xx and network errors are retried.
	MaxRetries int
	RetryDelay time.Duration

	Logger *zap.Logger
}

// Option is a functional option for configuring providers.
type Option func(*Config)

// WithBaseURL sets the API base URL.
// Examples: "https://openrouter.ai/api/v1", "http://localhost:11434/v1"
func WithBaseURL(url string) Option {
	return func(c *Config) { c.BaseURL = url }
}

// WithAPIKey sets the API key.
func WithAPIKey(key string) Option {
	return func(c *Config) { c.APIKey = key }
}

// WithAttribution sets the HTTP-Referer and X-Title headers.
func WithAttribution(referer, title string) Option {
	return func(c *Config) {
		c.Referer = referer
		c.Title = title
	}
}

// WithModel sets the default chat model.
func WithModel(model string) Option {
	return func(c *Config) { c.Model = model }
}

// WithMaxTokens sets the default max tokens.
func WithMaxTokens(n int) Option {
	return func(c *Config) { c.MaxTokens = n }
}

// WithTemperature sets the default temperature.
func WithTemperature(t float64) Option {
	return func(c *Config) { c.Temperature = t }
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) { c.Timeout = d }
}

// WithRetry configures retry behavior.
func WithRetry(maxRetries int, delay time.Duration) Option {
	return func(c *Config) {
		c.MaxRetries = maxRetries
		c.RetryDelay = delay
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// DefaultConfig returns defaults for OpenRouter.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:     DefaultBaseURL,
		Referer:     DefaultReferer,
		Title:       DefaultTitle,
		Model:       DefaultModel,
		MaxTokens:   800,
		Temperature: 0.7,
		Timeout:     60 * time.Second,
		MaxRetries:  2,
		RetryDelay:  250 * time.Millisecond,
		Logger:      zap.L(),
	}
}

// Apply applies functional options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return WrapError(providerClient, ErrNoBaseURL)
	}
	if c.Model == "" {
		return WrapError(providerClient, ErrNoModel)
	}
	return nil
}
