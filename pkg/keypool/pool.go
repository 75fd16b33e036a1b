package keypool

import (
	"log/slog"
	"sort"
	"strings"
	"sync"

	"mercator-hq/switchboard/pkg/telemetry/logging"
)

// Pool is the ordered list of API keys for one provider.
//
// Pool holds a current pointer and a set of keys marked exhausted. The current
// key is never an exhausted one unless every key is exhausted. Rotation and
// reset are serialized by the pool's mutex; reads return a consistent snapshot
// that may be stale by the time the caller uses it.
type Pool struct {
	provider string
	keys     []string
	logger   *slog.Logger

	mu        sync.Mutex
	current   int
	exhausted map[int]bool
}

// New creates a pool from an ordered key list. Blank entries are dropped.
// A nil logger falls back to slog.Default().
func New(provider string, keys []string, logger *slog.Logger) *Pool {
	if logger == nil {
		logger = slog.Default()
	}

	cleaned := make([]string, 0, len(keys))
	for _, k := range keys {
		if k = strings.TrimSpace(k); k != "" {
			cleaned = append(cleaned, k)
		}
	}

	return &Pool{
		provider:  provider,
		keys:      cleaned,
		logger:    logger.With("component", "keypool", "provider", provider),
		exhausted: make(map[int]bool),
	}
}

// Provider returns the provider name the pool belongs to.
func (p *Pool) Provider() string {
	return p.provider
}

// KeyCount returns the number of keys.
func (p *Pool) KeyCount() int {
	return len(p.keys)
}

// HasKeys reports whether the pool holds at least one key.
func (p *Pool) HasKeys() bool {
	return len(p.keys) > 0
}

// CurrentKey returns the key at the current index. It returns false when the
// pool is empty or every key is exhausted.
func (p *Pool) CurrentKey() (string, bool) {
	_, key, ok := p.Current()
	return key, ok
}

// Current returns the current index together with its key, for callers that
// later rotate away from exactly that key with RotateFrom.
func (p *Pool) Current() (int, string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.keys) == 0 || p.exhausted[p.current] {
		return p.current, "", false
	}
	return p.current, p.keys[p.current], true
}

// KeyNumber returns the 1-based ordinal of the current key, for logging.
func (p *Pool) KeyNumber() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current + 1
}

// HasMoreKeys reports whether at least one key is not exhausted.
func (p *Pool) HasMoreKeys() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.exhausted) < len(p.keys)
}

// Rotate marks the current key exhausted and advances to the next
// non-exhausted key, wrapping around. It returns the new current key, or
// false when no key remains.
func (p *Pool) Rotate(reason string) (string, bool) {
	p.mu.Lock()
	index := p.current
	p.mu.Unlock()
	return p.RotateFrom(index, reason)
}

// RotateFrom marks the key at index exhausted and moves the current pointer
// off it if it is still there.
//
// Two callers that failed on the same key both call RotateFrom with that
// key's index: the first advances the pointer, the second finds it already
// moved and leaves it in place. Neither skips a healthy key.
func (p *Pool) RotateFrom(index int, reason string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.keys) == 0 {
		return "", false
	}
	if index < 0 || index >= len(p.keys) {
		index = p.current
	}

	p.exhausted[index] = true

	if p.current == index || p.exhausted[p.current] {
		from := p.current
		for step := 1; step <= len(p.keys); step++ {
			next := (from + step) % len(p.keys)
			if !p.exhausted[next] {
				p.current = next
				break
			}
		}
	}

	if p.exhausted[p.current] {
		p.logger.Warn("all keys exhausted",
			"key_number", index+1,
			"reason", reason,
			"key_count", len(p.keys),
		)
		return "", false
	}

	p.logger.Info("rotated API key",
		"from_key", index+1,
		"to_key", p.current+1,
		"key_count", len(p.keys),
		"reason", reason,
	)
	return p.keys[p.current], true
}

// ResetExhausted clears every exhausted mark. The current pointer is kept.
func (p *Pool) ResetExhausted() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.exhausted) == 0 {
		return
	}
	cleared := len(p.exhausted)
	p.exhausted = make(map[int]bool)
	p.logger.Info("reset exhausted keys", "cleared", cleared, "key_number", p.current+1)
}

// Status is a point-in-time view of a pool.
type Status struct {
	Provider   string   `json:"provider"`
	KeyCount   int      `json:"key_count"`
	CurrentKey int      `json:"current_key"`
	Exhausted  []int    `json:"exhausted"`
	Available  int      `json:"available"`
	Masked     []string `json:"masked_keys"`
}

// Status returns a snapshot with 1-based key ordinals and masked keys.
func (p *Pool) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := Status{
		Provider:   p.provider,
		KeyCount:   len(p.keys),
		CurrentKey: p.current + 1,
		Exhausted:  make([]int, 0, len(p.exhausted)),
		Available:  len(p.keys) - len(p.exhausted),
		Masked:     make([]string, len(p.keys)),
	}
	for idx := range p.exhausted {
		s.Exhausted = append(s.Exhausted, idx+1)
	}
	sort.Ints(s.Exhausted)
	for i, k := range p.keys {
		s.Masked[i] = logging.RedactAPIKey(k)
	}
	return s
}
