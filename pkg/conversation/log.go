package conversation

import "sync"

// Log is the ordered, visible message log.
// Entries appear in finalization order and are never reordered. At most one
// system entry exists and it is always first.
type Log struct {
	mu       sync.RWMutex
	messages []Message
	limit    int
	rev      uint64
}

// NewLog creates a log. A limit > 0 caps the number of retained non-system
// entries, dropping the oldest first.
func NewLog(limit int) *Log {
	return &Log{limit: limit}
}

// Append adds a message to the end of the log.
// System messages are routed through SetSystem.
func (l *Log) Append(m Message) {
	if m.Role == RoleSystem {
		l.SetSystem(m)
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, m)
	l.trimLocked()
	l.rev++
}

// SetSystem replaces any existing system entry with m, placing it first.
// The relative order of the other entries is preserved.
func (l *Log) SetSystem(m Message) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = WithSystem(l.messages, m)
	l.rev++
}

// Clear removes every entry, including the system entry.
func (l *Log) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = nil
	l.rev++
}

// Messages returns a copy of the log.
func (l *Log) Messages() []Message {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Message, len(l.messages))
	copy(out, l.messages)
	return out
}

// Len returns the number of entries.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.messages)
}

// Revision increases on every mutation.
func (l *Log) Revision() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.rev
}

func (l *Log) trimLocked() {
	if l.limit <= 0 {
		return
	}
	start := 0
	if len(l.messages) > 0 && l.messages[0].Role == RoleSystem {
		start = 1
	}
	for len(l.messages)-start > l.limit {
		l.messages = append(l.messages[:start], l.messages[start+1:]...)
	}
}

// WithSystem returns a new slice with every system entry of msgs removed and
// sys placed first.
func WithSystem(msgs []Message, sys Message) []Message {
	out := make([]Message, 0, len(msgs)+1)
	out = append(out, sys)
	for _, m := range msgs {
		if m.Role != RoleSystem {
			out = append(out, m)
		}
	}
	return out
}
