package dialogue

import (
	"errors"
	"strings"
	"sync"
)

// ErrNoKeys is returned when a key pool is built without credentials.
var ErrNoKeys = errors.New("dialogue: at least one API key required")

// KeyPool is an ordered list of credentials with a forward-only cursor.
// Once the cursor reaches the last key it never moves again, so rotation is
// exhausted for the lifetime of the pool.
type KeyPool struct {
	mu     sync.Mutex
	keys   []string
	cursor int
}

// NewKeyPool creates a pool from keys, skipping blank entries.
func NewKeyPool(keys ...string) (*KeyPool, error) {
	p := &KeyPool{}
	for _, k := range keys {
		if k = strings.TrimSpace(k); k != "" {
			p.keys = append(p.keys, k)
		}
	}
	if len(p.keys) == 0 {
		return nil, ErrNoKeys
	}
	return p, nil
}

// ParseKeys splits a comma separated key list, dropping blank entries.
func ParseKeys(s string) []string {
	var keys []string
	for _, k := range strings.Split(s, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

// Current returns the active credential.
func (p *KeyPool) Current() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.keys[p.cursor]
}

// Cursor returns the index of the active credential.
func (p *KeyPool) Cursor() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cursor
}

// Len returns the number of credentials.
func (p *KeyPool) Len() int {
	return len(p.keys)
}

// Remaining returns how many credentials are left including the active one.
func (p *KeyPool) Remaining() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.keys) - p.cursor
}

// Advance moves to the next credential. It reports false, leaving the
// cursor unchanged, when the active key is the last one.
func (p *KeyPool) Advance() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cursor >= len(p.keys)-1 {
		return false
	}
	p.cursor++
	return true
}
