// Package config loads go-jarvis settings from defaults, an optional YAML
// file, a .env file and the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/teslashibe/go-jarvis/pkg/audio"
	"github.com/teslashibe/go-jarvis/pkg/device"
	"github.com/teslashibe/go-jarvis/pkg/dialogue"
	"github.com/teslashibe/go-jarvis/pkg/inference"
	"github.com/teslashibe/go-jarvis/pkg/orchestrator"
	"github.com/teslashibe/go-jarvis/pkg/tools"
	"github.com/teslashibe/go-jarvis/pkg/tts"
	"github.com/teslashibe/go-jarvis/pkg/weather"
)

// EnvPrefix prefixes every environment override (JARVIS_SERVER_ADDR, ...).
const EnvPrefix = "JARVIS"

// Audio output modes.
const (
	OutputDevice = "device" // play on connected devices
	OutputLocal  = "local"  // pipe to a local command
	OutputNone   = "none"   // text only
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Dialogue  DialogueConfig  `mapstructure:"dialogue"`
	TTS       TTSConfig       `mapstructure:"tts"`
	Audio     AudioConfig     `mapstructure:"audio"`
	Intent    IntentConfig    `mapstructure:"intent"`
	Tools     ToolsConfig     `mapstructure:"tools"`
	Assistant AssistantConfig `mapstructure:"assistant"`
	Weather   WeatherConfig   `mapstructure:"weather"`
	Log       LogConfig       `mapstructure:"log"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Addr      string `mapstructure:"addr"`
	StaticDir string `mapstructure:"static_dir"`
}

// DialogueConfig configures the remote dialogue backend.
type DialogueConfig struct {
	// Keys is a comma separated list, tried in order.
	Keys        string        `mapstructure:"keys"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	Temperature float64       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// APIKeys returns the configured keys in order.
func (d DialogueConfig) APIKeys() []string {
	return dialogue.ParseKeys(d.Keys)
}

// TTSConfig configures speech synthesis.
type TTSConfig struct {
	APIKey       string        `mapstructure:"api_key"`
	Voice        string        `mapstructure:"voice"`
	Model        string        `mapstructure:"model"`
	OutputFormat string        `mapstructure:"output_format"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// AudioConfig configures where speech is played.
type AudioConfig struct {
	Output  string        `mapstructure:"output"`
	Command string        `mapstructure:"command"`
	Grace   time.Duration `mapstructure:"grace"`
}

// IntentConfig configures the intent classifier.
type IntentConfig struct {
	RulesFile string `mapstructure:"rules_file"`
}

// ToolsConfig configures the local tools.
type ToolsConfig struct {
	Timeout  time.Duration `mapstructure:"timeout"`
	Location string        `mapstructure:"location"` // IANA zone for the time tool
}

// AssistantConfig configures the conversation itself.
type AssistantConfig struct {
	SystemPrompt  string        `mapstructure:"system_prompt"`
	Greeting      string        `mapstructure:"greeting"`
	GreetingDelay time.Duration `mapstructure:"greeting_delay"`
	Debounce      time.Duration `mapstructure:"debounce"`
	Voice         string        `mapstructure:"voice"`
	LogLimit      int           `mapstructure:"log_limit"`
	AutoListen    bool          `mapstructure:"auto_listen"`
}

// WeatherConfig configures the weather tool.
type WeatherConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// legacyEnv maps keys to the plain variable names older deployments use.
var legacyEnv = map[string]string{
	"dialogue.keys":  "OPENROUTER_API_KEYS",
	"dialogue.model": "OPENROUTER_MODEL",
	"tts.api_key":    "ELEVENLABS_API_KEY",
	"tts.voice":      "ELEVENLABS_VOICE_ID",
	"log.level":      "LOG_LEVEL",
}

// SetDefaults registers every key's default value.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.static_dir", "")

	v.SetDefault("dialogue.keys", "")
	v.SetDefault("dialogue.base_url", inference.DefaultBaseURL)
	v.SetDefault("dialogue.model", inference.DefaultModel)
	v.SetDefault("dialogue.temperature", 0.7)
	v.SetDefault("dialogue.max_tokens", 800)
	v.SetDefault("dialogue.timeout", dialogue.DefaultTimeout)

	v.SetDefault("tts.api_key", "")
	v.SetDefault("tts.voice", tts.DefaultElevenLabsVoice)
	v.SetDefault("tts.model", tts.ModelMultilingualV2)
	v.SetDefault("tts.output_format", string(tts.EncodingMP3))
	v.SetDefault("tts.timeout", 30*time.Second)

	v.SetDefault("audio.output", OutputDevice)
	v.SetDefault("audio.command", audio.DefaultCommand)
	v.SetDefault("audio.grace", device.DefaultGrace)

	v.SetDefault("intent.rules_file", "")

	v.SetDefault("tools.timeout", tools.DefaultTimeout)
	v.SetDefault("tools.location", "Local")

	v.SetDefault("assistant.system_prompt", orchestrator.DefaultSystemPrompt)
	v.SetDefault("assistant.greeting", orchestrator.DefaultGreeting)
	v.SetDefault("assistant.greeting_delay", time.Second)
	v.SetDefault("assistant.debounce", 500*time.Millisecond)
	v.SetDefault("assistant.voice", "")
	v.SetDefault("assistant.log_limit", 200)
	v.SetDefault("assistant.auto_listen", true)

	v.SetDefault("weather.enabled", true)
	v.SetDefault("weather.cache_ttl", weather.DefaultCacheTTL)

	v.SetDefault("log.level", "info")
}

// Load reads configuration. A .env file in the working directory is loaded
// first when present; path names an optional YAML file.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}
	return load(viper.New(), path)
}

func load(v *viper.Viper, path string) (*Config, error) {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, legacy := range legacyEnv {
		prefixed := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, legacy); err != nil {
			return nil, fmt.Errorf("config: bind %s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	return cfg, nil
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return &ConfigError{Field: "server.addr", Message: "server address is required"}
	}
	if len(c.Dialogue.APIKeys()) == 0 {
		return &ConfigError{Field: "dialogue.keys", Message: "OPENROUTER_API_KEYS environment variable is required"}
	}
	if c.Dialogue.Timeout <= 0 {
		return &ConfigError{Field: "dialogue.timeout", Message: "dialogue timeout must be positive"}
	}

	switch c.Audio.Output {
	case OutputDevice, OutputLocal:
		if c.TTS.APIKey == "" {
			return &ConfigError{Field: "tts.api_key", Message: "ELEVENLABS_API_KEY environment variable is required for speech output"}
		}
		if c.TTS.Voice == "" {
			return &ConfigError{Field: "tts.voice", Message: "a voice is required for speech output"}
		}
	case OutputNone:
	default:
		return &ConfigError{
			Field:   "audio.output",
			Message: fmt.Sprintf("unknown audio output %q (want device, local or none)", c.Audio.Output),
		}
	}

	if c.Assistant.Debounce < 0 {
		return &ConfigError{Field: "assistant.debounce", Message: "debounce must not be negative"}
	}
	if c.Assistant.LogLimit < 0 {
		return &ConfigError{Field: "assistant.log_limit", Message: "log limit must not be negative"}
	}
	return nil
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Message
}
