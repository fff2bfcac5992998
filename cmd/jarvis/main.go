// JARVIS - Spanish voice assistant server.
// Devices stream speech recognition in and play replies out over websocket;
// the dashboard and a terminal console connect to the same server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-jarvis/internal/config"
	"github.com/teslashibe/go-jarvis/internal/log"
	"github.com/teslashibe/go-jarvis/pkg/audio"
	"github.com/teslashibe/go-jarvis/pkg/console"
	"github.com/teslashibe/go-jarvis/pkg/jarvis"
	"github.com/teslashibe/go-jarvis/pkg/tts"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "❌", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "jarvis",
		Short:         "JARVIS voice assistant",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file")

	var opts serveOptions
	serve := newServeCmd(&configPath, &opts)
	root.AddCommand(serve, newConsoleCmd(), newVoicesCmd(&configPath))

	// Bare "jarvis" serves and takes the same flags.
	root.RunE = serve.RunE
	opts.register(root)
	return root
}

// serveOptions are command-line overrides for the server.
type serveOptions struct {
	addr   string
	output string
}

func (o *serveOptions) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.addr, "addr", "", "listen address (overrides server.addr)")
	cmd.Flags().StringVar(&o.output, "output", "", "audio output: device, local or none")
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	log.Init(cfg.Log.Level)
	return cfg, nil
}

func newServeCmd(configPath *string, opts *serveOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the assistant server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			defer log.Sync()

			if opts.addr != "" {
				cfg.Server.Addr = opts.addr
			}
			if opts.output != "" {
				cfg.Audio.Output = opts.output
			}
			log.Info("starting jarvis", "version", version, "addr", cfg.Server.Addr, "output", cfg.Audio.Output)

			app, err := jarvis.New(cfg, jarvis.WithLogger(log.L()))
			if err != nil {
				return fmt.Errorf("configuration error: %w", err)
			}
			defer app.Shutdown()

			if err := app.Init(); err != nil {
				return fmt.Errorf("initialization failed: %w", err)
			}

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			if err := app.Run(ctx); err != nil {
				log.Error("server stopped", "error", err)
				return err
			}
			return nil
		},
	}
	opts.register(cmd)
	return cmd
}

func newConsoleCmd() *cobra.Command {
	var url string
	var play bool

	cmd := &cobra.Command{
		Use:   "console",
		Short: "Chat with a running server from the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			log.Init("warn")
			defer log.Sync()

			opts := []console.Option{console.WithLogger(log.L())}
			if play {
				opts = append(opts, console.WithPlayer(audio.NewCommandPlayer("", log.L())))
			}

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			return console.New(url, os.Stdin, os.Stdout, opts...).Run(ctx)
		},
	}
	cmd.Flags().StringVar(&url, "url", "ws://localhost:8080/ws/device/console", "server device endpoint")
	cmd.Flags().BoolVar(&play, "play", false, "play replies locally with "+audio.DefaultCommand)
	return cmd
}

func newVoicesCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "voices",
		Short: "List ElevenLabs voices",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			defer log.Sync()

			el, err := tts.NewElevenLabs(
				tts.WithAPIKey(cfg.TTS.APIKey),
				tts.WithVoice(cfg.TTS.Voice),
				tts.WithLogger(log.L()),
			)
			if err != nil {
				return err
			}
			defer el.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
			defer cancel()

			voices, err := el.Voices(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, v := range voices {
				marker := " "
				if v.VoiceID == tts.ResolveElevenLabsVoice(cfg.TTS.Voice) {
					marker = "*"
				}
				fmt.Fprintf(out, "%s %-24s %-10s %s\n", marker, v.VoiceID, v.Category, v.Name)
			}
			log.Debug("listed voices", "count", len(voices))
			return nil
		},
	}
}
