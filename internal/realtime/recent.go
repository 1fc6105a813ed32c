package realtime

import (
	"sync"
	"time"
)

// Entry is one item of the recent buffer.
type Entry struct {
	Source    string    `json:"source"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// Recent keeps the last N raw bus payloads and device pushes in memory.
type Recent struct {
	mu    sync.RWMutex
	items []Entry
	next  int
	full  bool
	now   func() time.Time
}

func NewRecent(size int) *Recent {
	if size <= 0 {
		size = 1
	}
	return &Recent{items: make([]Entry, size), now: time.Now}
}

func (r *Recent) Add(source string, data any) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.items[r.next] = Entry{Source: source, Data: data, Timestamp: r.now().UTC()}
	r.next = (r.next + 1) % len(r.items)
	if r.next == 0 {
		r.full = true
	}
}

// Snapshot returns the buffered items, oldest first.
func (r *Recent) Snapshot() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !r.full {
		return append([]Entry(nil), r.items[:r.next]...)
	}
	out := make([]Entry, 0, len(r.items))
	out = append(out, r.items[r.next:]...)
	return append(out, r.items[:r.next]...)
}

func (r *Recent) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.full {
		return len(r.items)
	}
	return r.next
}
