// Package session holds the per-profile auth state and announces every
// change on an in-process bus. Subscribers (websocket relays, metrics)
// react to logouts without polling storage.
package session

import (
	"sync"
)

// AuthEvent is published whenever a profile logs in or out.
type AuthEvent struct {
	ProfileID     string
	Authenticated bool
	Reason        string
}

// Bus is a publish/subscribe hub of AuthEvents. The zero value is not usable.
type Bus struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[uint64]func(AuthEvent)
}

func NewBus() *Bus {
	return &Bus{subs: make(map[uint64]func(AuthEvent))}
}

// Subscribe registers fn and returns a function that removes it.
// fn runs synchronously on the publisher's goroutine and must not block.
func (b *Bus) Subscribe(fn func(AuthEvent)) (unsubscribe func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = fn
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		})
	}
}

// Publish delivers ev to every current subscriber.
func (b *Bus) Publish(ev AuthEvent) {
	b.mu.RLock()
	fns := make([]func(AuthEvent), 0, len(b.subs))
	for _, fn := range b.subs {
		fns = append(fns, fn)
	}
	b.mu.RUnlock()

	for _, fn := range fns {
		fn(ev)
	}
}
