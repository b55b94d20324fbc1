// Package events is the in-process publish/subscribe bus for state-sync and notification signals.
package events

import (
	"sync"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

type StateHandler func(domain.StateSync)

type NotificationHandler func(domain.Notification)

// Bus delivers signals synchronously, on the publisher's goroutine, in subscription order.
type Bus struct {
	mu            sync.RWMutex
	nextID        uint64
	state         []stateSub
	notifications []notificationSub
}

type stateSub struct {
	id uint64
	fn StateHandler
}

type notificationSub struct {
	id uint64
	fn NotificationHandler
}

func NewBus() *Bus {
	return &Bus{}
}

// SubscribeState registers fn for state-sync signals and returns its unsubscribe func.
func (b *Bus) SubscribeState(fn StateHandler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.state = append(b.state, stateSub{id: id, fn: fn})
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, s := range b.state {
			if s.id == id {
				b.state = append(b.state[:i:i], b.state[i+1:]...)
				return
			}
		}
	}
}

func (b *Bus) SubscribeNotifications(fn NotificationHandler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.notifications = append(b.notifications, notificationSub{id: id, fn: fn})
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, s := range b.notifications {
			if s.id == id {
				b.notifications = append(b.notifications[:i:i], b.notifications[i+1:]...)
				return
			}
		}
	}
}

func (b *Bus) PublishState(s domain.StateSync) {
	b.mu.RLock()
	subs := b.state
	b.mu.RUnlock()

	for _, sub := range subs {
		sub.fn(s)
	}
}

func (b *Bus) PublishNotification(n domain.Notification) {
	b.mu.RLock()
	subs := b.notifications
	b.mu.RUnlock()

	for _, sub := range subs {
		sub.fn(n)
	}
}
