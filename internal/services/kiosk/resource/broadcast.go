package resource

import "sync"

// Broadcast fans the full updated collection out to every subscribed hook
// instance of one resource kind. It replaces cross-instance refetching:
// after a mutation, sibling hooks resynchronize from the event payload
// without touching the network.
type Broadcast[T any] struct {
	mu   sync.Mutex
	subs map[int]func(T)
	next int
}

// NewBroadcast creates an empty coordinator.
func NewBroadcast[T any]() *Broadcast[T] {
	return &Broadcast[T]{subs: make(map[int]func(T))}
}

// Subscribe registers fn and returns its cancel function.
func (b *Broadcast[T]) Subscribe(fn func(T)) (cancel func()) {
	if b == nil || fn == nil {
		return func() {}
	}
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = fn
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}

// Publish delivers value to every subscriber. Delivery is synchronous and
// in caller order; subscribers must not block.
func (b *Broadcast[T]) Publish(value T) {
	if b == nil {
		return
	}
	b.mu.Lock()
	fns := make([]func(T), 0, len(b.subs))
	for _, fn := range b.subs {
		fns = append(fns, fn)
	}
	b.mu.Unlock()

	for _, fn := range fns {
		fn(value)
	}
}
