// Package broadcast provides a named, zero-payload change signal with
// explicit subscribe/unsubscribe, used to tell interested UI code that the
// session (or a progress indicator) changed.
package broadcast

import (
	"slices"
	"sync"
)

// AuthChange is the name of the session-changed signal.
const AuthChange = "authchange"

type Signal struct {
	name string

	lock   sync.Mutex
	subs   map[uint64]*Subscription
	nextID uint64
}

type Subscription struct {
	id     uint64
	fn     func()
	signal *Signal
	once   sync.Once
}

func New(name string) *Signal {
	return &Signal{
		name: name,
		subs: make(map[uint64]*Subscription),
	}
}

func (s *Signal) Name() string {
	return s.name
}

// Subscribe registers fn to be called on every Emit.
func (s *Signal) Subscribe(fn func()) *Subscription {
	s.lock.Lock()
	defer s.lock.Unlock()

	sub := &Subscription{id: s.nextID, fn: fn, signal: s}
	s.nextID++
	s.subs[sub.id] = sub
	return sub
}

// Unsubscribe is idempotent.
func (sub *Subscription) Unsubscribe() {
	if sub == nil {
		return
	}
	sub.once.Do(func() {
		sub.signal.lock.Lock()
		delete(sub.signal.subs, sub.id)
		sub.signal.lock.Unlock()
	})
}

// Emit calls every current subscriber synchronously, in subscription order.
// Subscribers may subscribe or unsubscribe from within the callback.
func (s *Signal) Emit() {
	s.lock.Lock()
	ids := make([]uint64, 0, len(s.subs))
	for id := range s.subs {
		ids = append(ids, id)
	}
	subs := make([]*Subscription, 0, len(ids))
	slices.Sort(ids)
	for _, id := range ids {
		subs = append(subs, s.subs[id])
	}
	s.lock.Unlock()

	for _, sub := range subs {
		sub.fn()
	}
}

// Len reports the number of live subscriptions.
func (s *Signal) Len() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return len(s.subs)
}
