package orchestrator

import (
	"errors"
	"time"
)

// DefaultSystemPrompt is the assistant persona.
const DefaultSystemPrompt = "Eres JARVIS, el asistente virtual inteligente de Tony Stark. " +
	"Responde de manera concisa, inteligente y con un toque de sofisticación. " +
	"Mantén las respuestas breves pero informativas. " +
	"Usa un tono profesional pero amigable. " +
	"Responde en español a menos que te soliciten otro idioma."

// DefaultGreeting is appended and spoken at start-up and after every clear.
const DefaultGreeting = "Hola, soy JARVIS. ¿En qué puedo asistirte hoy?"

// Config holds the orchestrator's tunable parameters.
type Config struct {
	// Debounce collapses bursts of final transcripts; the latest one wins.
	Debounce time.Duration

	// GreetingDelay is how long after start (or clear) the greeting is spoken.
	GreetingDelay time.Duration

	SystemPrompt string
	Greeting     string // empty disables the greeting

	// Voice is passed to the speaker with every reply. Empty uses its default.
	Voice string

	// LogLimit caps the visible log (0 = unbounded).
	LogLimit int

	// AutoListen enables the microphone when Run starts.
	AutoListen bool
}

// DefaultConfig returns the standard configuration.
func DefaultConfig() Config {
	return Config{
		Debounce:      500 * time.Millisecond,
		GreetingDelay: time.Second,
		SystemPrompt:  DefaultSystemPrompt,
		Greeting:      DefaultGreeting,
		LogLimit:      200,
		AutoListen:    true,
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Debounce < 0 {
		return errors.New("orchestrator: debounce must not be negative")
	}
	if c.GreetingDelay < 0 {
		return errors.New("orchestrator: greeting delay must not be negative")
	}
	if c.LogLimit < 0 {
		return errors.New("orchestrator: log limit must not be negative")
	}
	return nil
}
