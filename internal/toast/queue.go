// Package toast keeps the floating notification toasts of each session. A toast stays
// visible for a fixed lifetime unless dismissed earlier.
package toast

import (
	"sync"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

const (
	DefaultLifetime = 2 * time.Second
	DefaultCap      = 5
)

type Toast struct {
	domain.Notification
	ExpiresAt time.Time `json:"expiresAt"`
}

type entry struct {
	toast Toast
	timer *time.Timer
}

// Queue is the toast surface of one session. Toasts are kept in push order; when the cap is
// exceeded the oldest toast is dropped.
type Queue struct {
	lifetime time.Duration
	cap      int
	onIdle   func()

	mu      sync.Mutex
	entries []*entry
	closed  bool
}

// NewQueue creates a queue. Non-positive values fall back to the defaults.
func NewQueue(lifetime time.Duration, cap int) *Queue {
	if lifetime <= 0 {
		lifetime = DefaultLifetime
	}
	if cap <= 0 {
		cap = DefaultCap
	}
	return &Queue{lifetime: lifetime, cap: cap}
}

// Push shows n and schedules its dismissal.
func (q *Queue) Push(n domain.Notification) Toast {
	q.mu.Lock()
	defer q.mu.Unlock()

	t := Toast{Notification: n, ExpiresAt: time.Now().Add(q.lifetime)}
	if q.closed {
		return t
	}

	e := &entry{toast: t}
	id := n.ID
	e.timer = time.AfterFunc(q.lifetime, func() { q.expire(id) })
	q.entries = append(q.entries, e)

	for len(q.entries) > q.cap {
		q.entries[0].timer.Stop()
		q.entries = q.entries[1:]
	}
	return t
}

// Dismiss removes the toast early and reports whether it was visible.
func (q *Queue) Dismiss(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	idx := q.indexOf(id)
	if idx < 0 {
		return false
	}
	q.entries[idx].timer.Stop()
	q.entries = append(q.entries[:idx:idx], q.entries[idx+1:]...)
	return true
}

// Active returns the visible toasts, oldest first.
func (q *Queue) Active() []Toast {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]Toast, 0, len(q.entries))
	for _, e := range q.entries {
		out = append(out, e.toast)
	}
	return out
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Close cancels every pending timer. Pushes after Close are ignored.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, e := range q.entries {
		e.timer.Stop()
	}
	q.entries = nil
	q.closed = true
}

func (q *Queue) expire(id string) {
	q.mu.Lock()
	idx := q.indexOf(id)
	if idx >= 0 {
		q.entries = append(q.entries[:idx:idx], q.entries[idx+1:]...)
	}
	idle := idx >= 0 && len(q.entries) == 0
	onIdle := q.onIdle
	q.mu.Unlock()

	if idle && onIdle != nil {
		onIdle()
	}
}

func (q *Queue) indexOf(id string) int {
	for i, e := range q.entries {
		if e.toast.ID == id {
			return i
		}
	}
	return -1
}
