package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"OPENROUTER_API_KEYS", "OPENROUTER_MODEL", "ELEVENLABS_API_KEY",
		"ELEVENLABS_VOICE_ID", "LOG_LEVEL",
		"JARVIS_DIALOGUE_KEYS", "JARVIS_SERVER_ADDR", "JARVIS_AUDIO_OUTPUT",
	} {
		t.Setenv(name, "")
	}
}

func TestDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := load(viper.New(), "")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "openai/gpt-4o-mini", cfg.Dialogue.Model)
	assert.Equal(t, 30*time.Second, cfg.Dialogue.Timeout)
	assert.Equal(t, "daniel", cfg.TTS.Voice)
	assert.Equal(t, OutputDevice, cfg.Audio.Output)
	assert.Equal(t, 500*time.Millisecond, cfg.Assistant.Debounce)
	assert.Equal(t, time.Second, cfg.Assistant.GreetingDelay)
	assert.Equal(t, 200, cfg.Assistant.LogLimit)
	assert.True(t, cfg.Assistant.AutoListen)
	assert.True(t, cfg.Weather.Enabled)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Empty(t, cfg.Dialogue.APIKeys())
}

func TestLegacyEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENROUTER_API_KEYS", "k1, k2,,k3")
	t.Setenv("OPENROUTER_MODEL", "anthropic/claude-3.5-haiku")
	t.Setenv("ELEVENLABS_API_KEY", "el-key")
	t.Setenv("ELEVENLABS_VOICE_ID", "rachel")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := load(viper.New(), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"k1", "k2", "k3"}, cfg.Dialogue.APIKeys())
	assert.Equal(t, "anthropic/claude-3.5-haiku", cfg.Dialogue.Model)
	assert.Equal(t, "el-key", cfg.TTS.APIKey)
	assert.Equal(t, "rachel", cfg.TTS.Voice)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestPrefixedEnvWins(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENROUTER_API_KEYS", "legacy")
	t.Setenv("JARVIS_DIALOGUE_KEYS", "new")
	t.Setenv("JARVIS_SERVER_ADDR", ":9090")
	t.Setenv("JARVIS_ASSISTANT_DEBOUNCE", "750ms")

	cfg, err := load(viper.New(), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"new"}, cfg.Dialogue.APIKeys())
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 750*time.Millisecond, cfg.Assistant.Debounce)
}

func TestFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "jarvis.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":7000"
audio:
  output: none
assistant:
  greeting: ""
  greeting_delay: 2s
  auto_listen: false
intent:
  rules_file: rules.yaml
`), 0o644))

	cfg, err := load(viper.New(), path)
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.Server.Addr)
	assert.Equal(t, OutputNone, cfg.Audio.Output)
	assert.Equal(t, 2*time.Second, cfg.Assistant.GreetingDelay)
	assert.False(t, cfg.Assistant.AutoListen)
	assert.Equal(t, "rules.yaml", cfg.Intent.RulesFile)
}

func TestMissingFile(t *testing.T) {
	clearEnv(t)
	_, err := load(viper.New(), filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	clearEnv(t)
	base := func() *Config {
		cfg, err := load(viper.New(), "")
		require.NoError(t, err)
		cfg.Dialogue.Keys = "k1"
		cfg.TTS.APIKey = "el"
		return cfg
	}

	require.NoError(t, base().Validate())

	tests := []struct {
		name  string
		edit  func(*Config)
		field string
	}{
		{"no keys", func(c *Config) { c.Dialogue.Keys = " , " }, "dialogue.keys"},
		{"no addr", func(c *Config) { c.Server.Addr = "" }, "server.addr"},
		{"no tts key", func(c *Config) { c.TTS.APIKey = "" }, "tts.api_key"},
		{"no voice", func(c *Config) { c.TTS.Voice = "" }, "tts.voice"},
		{"bad output", func(c *Config) { c.Audio.Output = "speakers" }, "audio.output"},
		{"negative debounce", func(c *Config) { c.Assistant.Debounce = -time.Second }, "assistant.debounce"},
		{"zero timeout", func(c *Config) { c.Dialogue.Timeout = 0 }, "dialogue.timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.edit(cfg)
			err := cfg.Validate()
			var cerr *ConfigError
			require.ErrorAs(t, err, &cerr)
			assert.Equal(t, tt.field, cerr.Field)
		})
	}

	textOnly := base()
	textOnly.Audio.Output = OutputNone
	textOnly.TTS.APIKey = ""
	assert.NoError(t, textOnly.Validate())
}
