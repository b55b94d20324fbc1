package toast

import (
	"sync"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/events"
)

// Subscriber is the notification side of *events.Bus.
type Subscriber interface {
	SubscribeNotifications(fn events.NotificationHandler) func()
}

// Center routes bus notifications to per-session queues. Queues are created on the first
// notification of a session and dropped once their last toast expires.
type Center struct {
	lifetime time.Duration
	cap      int

	mu          sync.Mutex
	queues      map[string]*Queue
	unsubscribe func()
}

func NewCenter(bus Subscriber, lifetime time.Duration, cap int) *Center {
	c := &Center{
		lifetime: lifetime,
		cap:      cap,
		queues:   make(map[string]*Queue),
	}
	c.unsubscribe = bus.SubscribeNotifications(c.push)
	return c
}

func (c *Center) push(n domain.Notification) {
	c.mu.Lock()
	defer c.mu.Unlock()

	q, ok := c.queues[n.Session]
	if !ok {
		q = NewQueue(c.lifetime, c.cap)
		session := n.Session
		q.onIdle = func() { c.dropIfIdle(session, q) }
		c.queues[n.Session] = q
	}
	q.Push(n)
}

// Active returns the visible toasts of a session.
func (c *Center) Active(session string) []Toast {
	c.mu.Lock()
	q, ok := c.queues[session]
	c.mu.Unlock()
	if !ok {
		return []Toast{}
	}
	return q.Active()
}

func (c *Center) Dismiss(session, id string) bool {
	c.mu.Lock()
	q, ok := c.queues[session]
	c.mu.Unlock()
	if !ok {
		return false
	}
	return q.Dismiss(id)
}

// Forget closes the queue of a session.
func (c *Center) Forget(session string) {
	c.mu.Lock()
	q, ok := c.queues[session]
	delete(c.queues, session)
	c.mu.Unlock()
	if ok {
		q.Close()
	}
}

func (c *Center) Sessions() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queues)
}

// Close unsubscribes from the bus and cancels every pending toast timer.
func (c *Center) Close() {
	c.unsubscribe()

	c.mu.Lock()
	queues := c.queues
	c.queues = make(map[string]*Queue)
	c.mu.Unlock()

	for _, q := range queues {
		q.Close()
	}
}

func (c *Center) dropIfIdle(session string, q *Queue) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.queues[session] == q && q.Len() == 0 {
		delete(c.queues, session)
	}
}
