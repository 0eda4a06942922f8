package broadcast

import (
	"context"
	"sync"
)

// Broadcaster fans values of type T out to any number of subscribers. Each
// subscriber gets its own buffered channel; delivery is destructive (a value
// is delivered at most once per subscriber) and there is no replay, so a
// subscriber that attaches after a publish never sees that value.
//
// Publishing never blocks: when a subscriber's buffer is full the value is
// dropped for that subscriber.
type Broadcaster[T any] struct {
	mu      sync.RWMutex
	subs    map[*Subscription[T]]struct{}
	bufSize int
	closed  bool
}

// Subscription is one subscriber's end of a Broadcaster.
type Subscription[T any] struct {
	ch     chan T
	once   sync.Once
	parent *Broadcaster[T]
}

// New creates a Broadcaster whose subscribers buffer up to bufSize values.
// A minimum buffer of 1 is enforced so publishes stay non-blocking.
func New[T any](bufSize int) *Broadcaster[T] {
	return &Broadcaster[T]{
		subs:    make(map[*Subscription[T]]struct{}),
		bufSize: max(bufSize, 1),
	}
}

// Subscribe registers a new subscriber. The subscription is torn down when
// ctx is cancelled or Close is called on it, whichever happens first. If the
// broadcaster is already closed the returned subscription is already closed.
func (b *Broadcaster[T]) Subscribe(ctx context.Context) *Subscription[T] {
	sub := &Subscription[T]{
		ch:     make(chan T, b.bufSize),
		parent: b,
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		sub.once.Do(func() { close(sub.ch) })
		return sub
	}
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	if ctx.Done() != nil {
		go func() {
			<-ctx.Done()
			sub.Close()
		}()
	}

	return sub
}

// Publish delivers v to every current subscriber without blocking. Values are
// dropped for subscribers whose buffers are full.
func (b *Broadcaster[T]) Publish(v T) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	for sub := range b.subs {
		select {
		case sub.ch <- v:
		default:
			// Subscriber is not keeping up; it loses this value.
		}
	}
}

// Close shuts down the broadcaster and closes all subscriptions. It is safe
// to call more than once.
func (b *Broadcaster[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true

	for sub := range b.subs {
		sub.once.Do(func() { close(sub.ch) })
	}
	b.subs = nil
}

func (b *Broadcaster[T]) remove(sub *Subscription[T]) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	delete(b.subs, sub)
}

// C returns the receive channel. It is closed when the subscription ends.
func (s *Subscription[T]) C() <-chan T { return s.ch }

// Close detaches the subscription from its broadcaster and closes the
// receive channel. Idempotent.
func (s *Subscription[T]) Close() {
	s.parent.remove(s)
	s.once.Do(func() { close(s.ch) })
}
