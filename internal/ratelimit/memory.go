package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-process fixed-window Limiter. Each (key, class) pair
// owns one counter entry with its own mutex, so unrelated keys never
// serialize on a shared lock.
type Memory struct {
	entries sync.Map // "<class>|<key>" → *windowEntry
	now     func() time.Time
	stop    chan struct{}
	stopped sync.Once
}

type windowEntry struct {
	mu          sync.Mutex
	count       int
	windowStart time.Time
	lastSeen    time.Time
	window      time.Duration
}

// janitorInterval is how often stale entries are purged.
const janitorInterval = time.Minute

// staleAfter is how many window durations of inactivity evict an entry.
const staleAfter = 3

// NewMemory creates an in-process limiter and starts its eviction janitor.
// Call Close to stop the janitor.
func NewMemory() *Memory {
	m := &Memory{now: time.Now, stop: make(chan struct{})}
	go m.janitor()
	return m
}

// Admit checks and increments the fixed-window counter for key under class.
// A request is admitted iff the count within the current window is below
// the class limit; admission consumes one slot. Never returns an error.
func (m *Memory) Admit(ctx context.Context, key string, class Class) (bool, error) {
	if class.Limit <= 0 || class.Window <= 0 {
		return true, nil
	}

	entryKey := class.Name + "|" + key
	v, _ := m.entries.LoadOrStore(entryKey, &windowEntry{})
	e := v.(*windowEntry)

	now := m.now()
	e.mu.Lock()
	defer e.mu.Unlock()

	if now.Sub(e.windowStart) >= class.Window {
		e.count = 0
		e.windowStart = now
	}
	e.lastSeen = now
	e.window = class.Window

	if e.count >= class.Limit {
		return false, nil
	}
	e.count++
	return true, nil
}

// Close stops the eviction janitor.
func (m *Memory) Close() {
	m.stopped.Do(func() { close(m.stop) })
}

func (m *Memory) janitor() {
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.evictStale()
		}
	}
}

// evictStale removes entries idle for several of their own window
// durations. The horizon scales with the entry's class window so a
// long-window counter is never deleted mid-window, which would reset a
// maxed-out key's allowance early. Eviction racing an in-flight Admit is
// harmless: the entry is recreated with a fresh window, which only limits
// more strictly.
func (m *Memory) evictStale() {
	now := m.now()
	m.entries.Range(func(k, v any) bool {
		e := v.(*windowEntry)
		e.mu.Lock()
		idle := now.Sub(e.lastSeen)
		horizon := staleAfter * e.window
		e.mu.Unlock()
		if horizon < staleAfter*janitorInterval {
			horizon = staleAfter * janitorInterval
		}
		if idle >= horizon {
			m.entries.Delete(k)
		}
		return true
	})
}
