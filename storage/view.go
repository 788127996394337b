package storage

import "sync"

// View is one consumer's handle on a Medium, the equivalent of a browser
// tab's window.localStorage.
type View struct {
	medium *Medium

	lock     sync.Mutex
	watchers map[uint64]func(Change)
	nextID   uint64
	closed   bool
}

func (v *View) Get(key string) (string, bool) {
	return v.medium.get(key)
}

// GetMany reads several keys under a single lock; absent keys are omitted.
func (v *View) GetMany(keys ...string) map[string]string {
	return v.medium.getMany(keys)
}

// Apply writes the batch atomically. Other views are notified before Apply
// returns.
func (v *View) Apply(b *Batch) error {
	v.lock.Lock()
	closed := v.closed
	v.lock.Unlock()
	if closed {
		return ErrViewClosed
	}
	if b == nil || b.empty() {
		return nil
	}
	return v.medium.apply(v, b)
}

// Watch registers fn for changes made elsewhere. The returned func removes
// the registration and is safe to call more than once.
func (v *View) Watch(fn func(Change)) func() {
	v.lock.Lock()
	defer v.lock.Unlock()

	id := v.nextID
	v.nextID++
	v.watchers[id] = fn

	return func() {
		v.lock.Lock()
		delete(v.watchers, id)
		v.lock.Unlock()
	}
}

// Close detaches the view; it stops receiving changes and rejects writes.
func (v *View) Close() {
	v.lock.Lock()
	if v.closed {
		v.lock.Unlock()
		return
	}
	v.closed = true
	v.watchers = make(map[uint64]func(Change))
	v.lock.Unlock()
	v.medium.detach(v)
}

func (v *View) notify(c Change) {
	v.lock.Lock()
	fns := make([]func(Change), 0, len(v.watchers))
	for _, fn := range v.watchers {
		fns = append(fns, fn)
	}
	v.lock.Unlock()

	for _, fn := range fns {
		fn(c)
	}
}
