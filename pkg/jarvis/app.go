// Package jarvis assembles the assistant: device bridge, dialogue backend,
// local tools, speech output, orchestrator and dashboard.
package jarvis

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/teslashibe/go-jarvis/internal/config"
	"github.com/teslashibe/go-jarvis/pkg/audio"
	"github.com/teslashibe/go-jarvis/pkg/device"
	"github.com/teslashibe/go-jarvis/pkg/dialogue"
	"github.com/teslashibe/go-jarvis/pkg/inference"
	"github.com/teslashibe/go-jarvis/pkg/intent"
	"github.com/teslashibe/go-jarvis/pkg/metrics"
	"github.com/teslashibe/go-jarvis/pkg/orchestrator"
	"github.com/teslashibe/go-jarvis/pkg/speech"
	"github.com/teslashibe/go-jarvis/pkg/tools"
	"github.com/teslashibe/go-jarvis/pkg/tts"
	"github.com/teslashibe/go-jarvis/pkg/weather"
	"github.com/teslashibe/go-jarvis/pkg/web"
)

// App is the assembled assistant.
type App struct {
	cfg    *config.Config
	zl     *zap.Logger
	logger *zap.SugaredLogger

	// Backends; injected ones skip construction in Init.
	backend inference.Provider
	synth   tts.Provider
	player  audio.Player
	clock   func() time.Time

	bridge     *device.Bridge
	latency    *metrics.Collector
	classifier *intent.Classifier
	registry   *tools.Registry
	dialogue   *dialogue.Client
	speaker    *speech.Scheduler
	orch       *orchestrator.Orchestrator
	server     *web.Server
}

// Option configures an App.
type Option func(*App)

// WithInference replaces the dialogue backend.
func WithInference(p inference.Provider) Option {
	return func(a *App) { a.backend = p }
}

// WithSynthesizer replaces the speech synthesizer.
func WithSynthesizer(p tts.Provider) Option {
	return func(a *App) { a.synth = p }
}

// WithPlayer replaces the audio output chosen by configuration.
func WithPlayer(p audio.Player) Option {
	return func(a *App) { a.player = p }
}

// WithClock sets the time tool's clock.
func WithClock(fn func() time.Time) Option {
	return func(a *App) { a.clock = fn }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(a *App) {
		if l != nil {
			a.zl = l
		}
	}
}

// New validates cfg and creates an App. Call Init before Run.
func New(cfg *config.Config, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, errors.New("jarvis: nil config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	a := &App{cfg: cfg, zl: zap.L()}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.zl.Sugar().With("component", "jarvis.app")
	return a, nil
}

// Init builds every component.
func (a *App) Init() error {
	a.bridge = device.NewBridge(device.WithGrace(a.cfg.Audio.Grace), device.WithLogger(a.zl))
	a.latency = metrics.NewCollector()

	if err := a.initTools(); err != nil {
		return fmt.Errorf("tools: %w", err)
	}
	if err := a.initDialogue(); err != nil {
		return fmt.Errorf("dialogue: %w", err)
	}
	if err := a.initSpeech(); err != nil {
		return fmt.Errorf("speech: %w", err)
	}
	if err := a.initOrchestrator(); err != nil {
		return fmt.Errorf("orchestrator: %w", err)
	}
	a.initWeb()

	a.logger.Infow("initialized",
		"model", a.cfg.Dialogue.Model,
		"keys", a.dialogue.Keys().Len(),
		"output", a.cfg.Audio.Output,
		"tools", a.registry.Tags(),
	)
	return nil
}

func (a *App) initTools() error {
	var err error
	if path := a.cfg.Intent.RulesFile; path != "" {
		a.classifier, err = intent.FromFile(path)
		if err != nil {
			return err
		}
	} else {
		a.classifier = intent.Default()
	}

	loc, err := time.LoadLocation(a.cfg.Tools.Location)
	if err != nil {
		return fmt.Errorf("location %q: %w", a.cfg.Tools.Location, err)
	}

	b := tools.Builtins{Clock: a.clock, Location: loc, Pick: rand.Intn}
	if a.cfg.Weather.Enabled {
		b.Weather = weather.New(weather.WithCacheTTL(a.cfg.Weather.CacheTTL), weather.WithLogger(a.zl))
	}

	a.registry = tools.NewRegistry(tools.WithTimeout(a.cfg.Tools.Timeout), tools.WithLogger(a.zl))
	a.registry.RegisterBuiltins(b)
	return nil
}

func (a *App) initDialogue() error {
	keys, err := dialogue.NewKeyPool(a.cfg.Dialogue.APIKeys()...)
	if err != nil {
		return err
	}

	dc := a.cfg.Dialogue
	if a.backend == nil {
		a.backend, err = inference.NewClient(
			inference.WithBaseURL(dc.BaseURL),
			inference.WithModel(dc.Model),
			inference.WithTemperature(dc.Temperature),
			inference.WithMaxTokens(dc.MaxTokens),
			inference.WithLogger(a.zl),
		)
		if err != nil {
			return err
		}
	}

	a.dialogue = dialogue.New(a.backend, keys,
		dialogue.WithModel(dc.Model),
		dialogue.WithSampling(dc.Temperature, dc.MaxTokens),
		dialogue.WithTimeout(dc.Timeout),
		dialogue.WithLogger(a.zl),
	)
	return nil
}

func (a *App) initSpeech() error {
	tc := a.cfg.TTS
	if a.synth == nil {
		if a.cfg.Audio.Output == config.OutputNone {
			a.synth = tts.Text{}
		} else {
			el, err := tts.NewElevenLabs(
				tts.WithAPIKey(tc.APIKey),
				tts.WithVoice(tc.Voice),
				tts.WithModel(tc.Model),
				tts.WithOutputFormat(tts.Encoding(tc.OutputFormat)),
				tts.WithTimeout(tc.Timeout),
				tts.WithLogger(a.zl),
			)
			if err != nil {
				return err
			}
			a.synth = el
		}
	}

	if a.player == nil {
		switch a.cfg.Audio.Output {
		case config.OutputDevice:
			a.player = a.bridge
		case config.OutputLocal:
			a.player = audio.NewCommandPlayer(a.cfg.Audio.Command, a.zl)
		default:
			a.player = audio.Discard
		}
	}

	a.speaker = speech.New(a.synth, a.player,
		speech.WithVoice(tc.Voice),
		speech.WithSynthesisTimeout(tc.Timeout),
		speech.WithOnStart(func(speech.Request) { a.latency.MarkSpeech() }),
		speech.WithLogger(a.zl),
	)
	return nil
}

func (a *App) initOrchestrator() error {
	ac := a.cfg.Assistant
	cfg := orchestrator.Config{
		Debounce:      ac.Debounce,
		GreetingDelay: ac.GreetingDelay,
		SystemPrompt:  ac.SystemPrompt,
		Greeting:      ac.Greeting,
		Voice:         ac.Voice,
		LogLimit:      ac.LogLimit,
		AutoListen:    ac.AutoListen,
	}

	var err error
	a.orch, err = orchestrator.New(cfg, orchestrator.Deps{
		Source:     a.bridge,
		Classifier: a.classifier,
		Tools:      a.registry,
		Dialogue:   a.dialogue,
		Speaker:    a.speaker,
		Latency:    a.latency,
	}, orchestrator.WithLogger(a.zl))
	return err
}

func (a *App) initWeb() {
	opts := []web.Option{
		web.WithTools(a.registry),
		web.WithLatency(a.latency),
		web.WithDevices(a.bridge),
		web.WithLogger(a.zl),
	}
	if vl, ok := a.synth.(tts.VoiceLister); ok {
		opts = append(opts, web.WithVoices(vl))
	}
	if dir := a.cfg.Server.StaticDir; dir != "" {
		opts = append(opts, web.WithStatic(dir))
	}
	a.server = web.NewServer(a.cfg.Server.Addr, a.orch, opts...)

	a.orch.OnStateChange(a.server.Observe)
	a.latency.OnUpdate(a.server.PublishLatency)
}

// Run serves until ctx is cancelled or a component fails.
func (a *App) Run(ctx context.Context) error {
	if a.orch == nil {
		return errors.New("jarvis: Init not called")
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	go func() { errCh <- a.server.Run(ctx) }()
	go func() { errCh <- a.orch.Run(ctx) }()
	go a.forwardInputs(ctx)

	a.logger.Infow("assistant ready", "addr", a.cfg.Server.Addr)

	var first error
	for i := 0; i < 2; i++ {
		err := <-errCh
		if errors.Is(err, context.Canceled) {
			err = nil
		}
		if err != nil && first == nil {
			first = err
		}
		cancel()
	}
	return first
}

// forwardInputs relays text typed on devices to the orchestrator.
func (a *App) forwardInputs(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case text := <-a.bridge.Inputs():
			a.orch.ManualInput(text)
		}
	}
}

// Shutdown releases resources. Safe to call after a failed Init.
func (a *App) Shutdown() {
	if a.speaker != nil {
		a.speaker.Close()
	}
	if a.bridge != nil {
		a.bridge.Close()
	}
	if a.synth != nil {
		a.synth.Close()
	}
	if a.backend != nil {
		a.backend.Close()
	}
	a.logger.Info("shutdown complete")
}

// Orchestrator returns the conversation orchestrator.
func (a *App) Orchestrator() *orchestrator.Orchestrator { return a.orch }

// Bridge returns the device bridge.
func (a *App) Bridge() *device.Bridge { return a.bridge }
