package audio

import (
	"context"
	"sync"
	"time"

	"github.com/teslashibe/go-jarvis/pkg/tts"
)

// Mock records played results. Each Play sleeps for Delay (or the result's
// Duration when UseDuration is set) and returns Err.
type Mock struct {
	Delay       time.Duration
	UseDuration bool
	Err         error

	mu       sync.Mutex
	played   []string
	active   int
	maxSeen  int
	canceled int
}

// NewMock creates a mock player with no delay.
func NewMock() *Mock {
	return &Mock{}
}

// Play implements Player.
func (m *Mock) Play(ctx context.Context, audio *tts.AudioResult) error {
	m.mu.Lock()
	m.active++
	if m.active > m.maxSeen {
		m.maxSeen = m.active
	}
	text := ""
	if audio != nil {
		text = audio.Text
	}
	m.played = append(m.played, text)
	delay := m.Delay
	if m.UseDuration && audio != nil {
		delay = audio.Duration
	}
	err := m.Err
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.active--
		m.mu.Unlock()
	}()

	if delay > 0 {
		t := time.NewTimer(delay)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			m.mu.Lock()
			m.canceled++
			m.mu.Unlock()
			return ctx.Err()
		}
	}
	return err
}

// Played returns the texts passed to Play in order.
func (m *Mock) Played() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.played))
	copy(out, m.played)
	return out
}

// MaxConcurrent returns the highest number of overlapping Play calls seen.
func (m *Mock) MaxConcurrent() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maxSeen
}

// Canceled returns how many plays were interrupted by ctx.
func (m *Mock) Canceled() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.canceled
}

var _ Player = (*Mock)(nil)
