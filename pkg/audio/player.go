// Package audio plays synthesized speech.
//
// A Player blocks until playback completes, fails, or ctx is cancelled.
// Cancelling ctx stops the audio immediately.
package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"github.com/teslashibe/go-jarvis/pkg/tts"
)

// ErrNoAudio is returned when asked to play an empty result.
var ErrNoAudio = errors.New("audio: no audio data")

// Player plays a synthesized result to completion.
type Player interface {
	Play(ctx context.Context, audio *tts.AudioResult) error
}

// PlayerFunc adapts a function to Player.
type PlayerFunc func(ctx context.Context, audio *tts.AudioResult) error

// Play calls f.
func (f PlayerFunc) Play(ctx context.Context, audio *tts.AudioResult) error {
	return f(ctx, audio)
}

// DefaultCommand is the local playback program.
const DefaultCommand = "ffplay"

// CommandPlayer pipes audio into a local playback command such as ffplay.
type CommandPlayer struct {
	command string

	mu      sync.Mutex
	playing bool

	logger *zap.SugaredLogger
}

// NewCommandPlayer creates a player that runs command (DefaultCommand when empty).
func NewCommandPlayer(command string, logger *zap.Logger) *CommandPlayer {
	if command == "" {
		command = DefaultCommand
	}
	if logger == nil {
		logger = zap.L()
	}
	return &CommandPlayer{
		command: command,
		logger:  logger.Sugar().With("component", "audio.command"),
	}
}

// Args returns the playback arguments for a format.
func Args(format tts.AudioFormat) []string {
	args := []string{"-nodisp", "-autoexit", "-loglevel", "quiet"}
	if format.Encoding.IsPCM() {
		channels := format.Channels
		if channels == 0 {
			channels = 1
		}
		args = append(args,
			"-f", "s16le",
			"-ar", strconv.Itoa(format.SampleRate),
			"-ac", strconv.Itoa(channels),
		)
	}
	return append(args, "-i", "pipe:0")
}

// Play writes the audio to the command's stdin and waits for it to exit.
func (p *CommandPlayer) Play(ctx context.Context, audio *tts.AudioResult) error {
	if audio == nil || len(audio.Audio) == 0 {
		return ErrNoAudio
	}

	cmd := exec.CommandContext(ctx, p.command, Args(audio.Format)...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("audio: stdin pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("audio: start %s: %w", p.command, err)
	}

	p.setPlaying(true)
	defer p.setPlaying(false)

	go func() {
		defer stdin.Close()
		if _, err := io.Copy(stdin, bytes.NewReader(audio.Audio)); err != nil {
			p.logger.Debugw("write to player interrupted", "error", err)
		}
	}()

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("audio: %s: %w", p.command, err)
	}
	p.logger.Debugw("playback finished", "bytes", len(audio.Audio), "duration", audio.Duration)
	return nil
}

// IsPlaying reports whether audio is currently playing.
func (p *CommandPlayer) IsPlaying() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

func (p *CommandPlayer) setPlaying(v bool) {
	p.mu.Lock()
	p.playing = v
	p.mu.Unlock()
}

// Discard is a Player that drops audio immediately.
var Discard Player = PlayerFunc(func(ctx context.Context, audio *tts.AudioResult) error {
	return ctx.Err()
})
