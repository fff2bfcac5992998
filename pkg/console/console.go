// Package console is a terminal device for the assistant. Typed lines are
// sent as input; replies are printed and optionally played locally.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/teslashibe/go-jarvis/pkg/audio"
	"github.com/teslashibe/go-jarvis/pkg/protocol"
	"github.com/teslashibe/go-jarvis/pkg/tts"
)

const writeWait = 10 * time.Second

// Console connects to a server's device endpoint.
type Console struct {
	url    string
	in     io.Reader
	out    io.Writer
	player audio.Player
	dialer *websocket.Dialer
	logger *zap.SugaredLogger

	writeMu sync.Mutex
	conn    *websocket.Conn

	playMu     sync.Mutex
	playCancel context.CancelFunc
}

// Option configures a Console.
type Option func(*Console)

// WithPlayer plays received speech locally before acknowledging it.
func WithPlayer(p audio.Player) Option {
	return func(c *Console) { c.player = p }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Console) {
		if l != nil {
			c.logger = l.Sugar().With("component", "console")
		}
	}
}

// New creates a console reading lines from in and printing to out.
func New(url string, in io.Reader, out io.Writer, opts ...Option) *Console {
	c := &Console{
		url:    url,
		in:     in,
		out:    out,
		dialer: websocket.DefaultDialer,
		logger: zap.L().Sugar().With("component", "console"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run connects and relays until ctx is cancelled, input ends, "/salir" is
// typed, or the server closes the connection.
func (c *Console) Run(ctx context.Context) error {
	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("console: dial %s: %w", c.url, err)
	}
	c.conn = conn
	defer conn.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	readErr := make(chan error, 1)
	go func() { readErr <- c.readLoop(ctx) }()

	lines := make(chan string)
	go c.scan(ctx, lines)

	fmt.Fprintln(c.out, "Conectado. Escribe un mensaje (/salir para terminar).")
	for {
		select {
		case <-ctx.Done():
			c.close()
			return nil
		case err := <-readErr:
			return err
		case line, ok := <-lines:
			if !ok || line == "/salir" {
				c.close()
				return nil
			}
			if line == "" {
				continue
			}
			if err := c.send(protocol.NewInputMessage(line)); err != nil {
				return err
			}
		}
	}
}

func (c *Console) scan(ctx context.Context, lines chan<- string) {
	defer close(lines)
	sc := bufio.NewScanner(c.in)
	for sc.Scan() {
		select {
		case lines <- strings.TrimSpace(sc.Text()):
		case <-ctx.Done():
			return
		}
	}
}

func (c *Console) readLoop(ctx context.Context) error {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			return fmt.Errorf("console: read: %w", err)
		}
		msg, err := protocol.ParseMessage(data)
		if err != nil {
			c.logger.Warnw("parse error", "error", err)
			continue
		}
		c.handle(ctx, msg)
	}
}

func (c *Console) handle(ctx context.Context, msg *protocol.Message) {
	switch msg.Type {
	case protocol.TypeSpeak:
		sp, err := msg.GetSpeakData()
		if err != nil {
			return
		}
		fmt.Fprintf(c.out, "JARVIS: %s\n", sp.Text)
		c.play(ctx, sp)

	case protocol.TypeStopAudio:
		c.stopPlayback()

	case protocol.TypeListen:
		l, err := msg.GetListenData()
		if err != nil {
			return
		}
		if l.Enabled {
			fmt.Fprintln(c.out, "[micrófono activado]")
		} else {
			fmt.Fprintln(c.out, "[micrófono desactivado]")
		}
	}
}

// play acknowledges a speak message, after local playback when a player is set.
func (c *Console) play(ctx context.Context, sp *protocol.SpeakData) {
	if c.player == nil {
		c.send(protocol.NewPlaybackDoneMessage(sp.ID, ""))
		return
	}

	data, err := sp.DecodeSpeakData()
	if err != nil {
		c.send(protocol.NewPlaybackDoneMessage(sp.ID, err.Error()))
		return
	}
	enc := tts.Encoding(sp.Format)
	res := &tts.AudioResult{
		Audio:    data,
		Text:     sp.Text,
		Format:   tts.AudioFormat{Encoding: enc, SampleRate: sp.SampleRate, Channels: 1, BitDepth: 16},
		Duration: tts.EstimateDuration(enc, len(data)),
	}

	pctx, cancel := context.WithCancel(ctx)
	c.playMu.Lock()
	if c.playCancel != nil {
		c.playCancel()
	}
	c.playCancel = cancel
	c.playMu.Unlock()

	go func() {
		defer cancel()
		errMsg := ""
		if err := c.player.Play(pctx, res); err != nil {
			errMsg = err.Error()
		}
		if pctx.Err() == nil || errMsg == "" {
			c.send(protocol.NewPlaybackDoneMessage(sp.ID, errMsg))
		}
	}()
}

func (c *Console) stopPlayback() {
	c.playMu.Lock()
	defer c.playMu.Unlock()
	if c.playCancel != nil {
		c.playCancel()
		c.playCancel = nil
	}
}

func (c *Console) send(msg *protocol.Message, err error) error {
	if err != nil {
		return err
	}
	data, err := msg.Bytes()
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *Console) close() {
	c.stopPlayback()
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
}
