package metrics

import (
	"sync"
	"time"
)

const historySize = 100

// Latency tracks the timing of one conversation turn.
// All durations are measured from the moment the transcript was accepted.
type Latency struct {
	TranscriptTime time.Time `json:"-"`
	ReplyTime      time.Time `json:"-"`
	SpeechTime     time.Time `json:"-"`

	Reply  time.Duration `json:"reply_ns"`
	Speech time.Duration `json:"speech_ns"`

	Route string `json:"route,omitempty"`
}

// Collector collects latency for the current turn and keeps recent turns
// for averaging. It is goroutine-safe.
type Collector struct {
	mu      sync.Mutex
	current Latency
	history []Latency

	onUpdate func(Latency)
}

// NewCollector creates a latency collector.
func NewCollector() *Collector {
	return &Collector{history: make([]Latency, 0, historySize)}
}

// OnUpdate sets a callback fired whenever a turn completes.
func (c *Collector) OnUpdate(fn func(Latency)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onUpdate = fn
}

// MarkTranscript starts a new turn.
func (c *Collector) MarkTranscript() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = Latency{TranscriptTime: time.Now()}
}

// MarkReply records when the reply message was produced.
func (c *Collector) MarkReply(route string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current.ReplyTime = time.Now()
	c.current.Route = route
	if !c.current.TranscriptTime.IsZero() {
		c.current.Reply = c.current.ReplyTime.Sub(c.current.TranscriptTime)
	}
}

// MarkSpeech records when playback of the reply started and archives the turn.
// Calls without a pending reply are ignored.
func (c *Collector) MarkSpeech() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current.ReplyTime.IsZero() || !c.current.SpeechTime.IsZero() {
		return
	}
	c.current.SpeechTime = time.Now()
	c.current.Speech = c.current.SpeechTime.Sub(c.current.TranscriptTime)

	c.history = append(c.history, c.current)
	if len(c.history) > historySize {
		c.history = c.history[1:]
	}
	if c.onUpdate != nil {
		l := c.current
		go c.onUpdate(l)
	}
}

// Current returns the current turn snapshot.
func (c *Collector) Current() Latency {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Average returns average latency over recent turns.
func (c *Collector) Average() Latency {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.history) == 0 {
		return Latency{}
	}

	var avg Latency
	for _, h := range c.history {
		avg.Reply += h.Reply
		avg.Speech += h.Speech
	}
	n := time.Duration(len(c.history))
	avg.Reply /= n
	avg.Speech /= n
	return avg
}

// Turns returns the number of archived turns.
func (c *Collector) Turns() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.history)
}

// String formats the latency for logs.
func (l Latency) String() string {
	return formatDuration(l.Reply) + " reply | " + formatDuration(l.Speech) + " speech"
}

func formatDuration(d time.Duration) string {
	if d == 0 {
		return "---ms"
	}
	return d.Round(time.Millisecond).String()
}
