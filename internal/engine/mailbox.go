package engine

import (
	"context"
	"iter"
	"sync"
	"sync/atomic"
)

// Mailbox is the stage-2 queue owned by a single subscriber. This
// abstraction allows different mailbox strategies (priority queues, durable
// on-disk queues, backpressure-aware queues) to be plugged in without
// changing the broker or the actor loop.
//
// Thread safety:
//   - TrySend may be called concurrently from multiple goroutines (the
//     broker dispatching Phase 1 and Phase 2 concurrently).
//   - Send may be called concurrently from multiple goroutines.
//   - Envelopes, Receive and Drain should only be read from the actor's own
//     goroutine.
//   - Close is idempotent and safe to call concurrently with Send/TrySend.
//   - IsClosed is safe to call from any goroutine.
type Mailbox[E Event] interface {
	// Send blocks until the envelope is accepted, ctx is cancelled, or the
	// mailbox is closed. Returns true on success.
	Send(ctx context.Context, env *Envelope[E]) bool

	// TrySend attempts a non-blocking enqueue. Returns false if the
	// mailbox is full or closed.
	TrySend(env *Envelope[E]) bool

	// Envelopes returns the channel backing this mailbox, safe to select
	// on directly. The channel closes (yielding zero-value, ok=false)
	// once the mailbox is closed and drained.
	Envelopes() <-chan *Envelope[E]

	// Receive returns an iterator over envelopes, stopping when ctx is
	// cancelled or the mailbox closes. A convenience wrapper over
	// Envelopes() for simple consumers.
	Receive(ctx context.Context) iter.Seq[*Envelope[E]]

	// Close closes the mailbox, preventing further sends. Idempotent.
	Close()

	// IsClosed reports whether Close has been called.
	IsClosed() bool

	// Drain returns an iterator over any envelopes left in the mailbox
	// after Close. Only meaningful once closed.
	Drain() iter.Seq[*Envelope[E]]

	// Len returns the current number of buffered envelopes.
	Len() int
}

// channelMailbox is a Mailbox backed by a Go channel, the only
// implementation the engine ships. Closing is guarded by an RWMutex so a
// concurrent Send/TrySend can never race a Close into a
// send-on-closed-channel panic: Close takes the write lock, sends take the
// read lock, and Go's mutex guarantees the write lock can't be acquired
// while any read lock is held.
type channelMailbox[E Event] struct {
	ch chan *Envelope[E]

	closed    atomic.Bool
	mu        sync.RWMutex
	closeOnce sync.Once
}

// newChannelMailbox creates a channel-backed mailbox with the given
// capacity. A non-positive capacity is treated as 1.
func newChannelMailbox[E Event](capacity int) *channelMailbox[E] {
	if capacity <= 0 {
		capacity = 1
	}
	return &channelMailbox[E]{
		ch: make(chan *Envelope[E], capacity),
	}
}

// Send implements Mailbox.
func (m *channelMailbox[E]) Send(ctx context.Context, env *Envelope[E]) bool {
	if ctx.Err() != nil {
		return false
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed.Load() {
		return false
	}

	select {
	case m.ch <- env:
		return true
	case <-ctx.Done():
		return false
	}
}

// TrySend implements Mailbox.
func (m *channelMailbox[E]) TrySend(env *Envelope[E]) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed.Load() {
		return false
	}

	select {
	case m.ch <- env:
		return true
	default:
		return false
	}
}

// Envelopes implements Mailbox.
func (m *channelMailbox[E]) Envelopes() <-chan *Envelope[E] {
	return m.ch
}

// Receive implements Mailbox.
func (m *channelMailbox[E]) Receive(ctx context.Context) iter.Seq[*Envelope[E]] {
	return func(yield func(*Envelope[E]) bool) {
		for {
			if ctx.Err() != nil {
				return
			}

			select {
			case env, ok := <-m.ch:
				if !ok {
					return
				}
				if !yield(env) {
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}
}

// Close implements Mailbox.
func (m *channelMailbox[E]) Close() {
	m.closeOnce.Do(func() {
		m.mu.Lock()
		defer m.mu.Unlock()

		m.closed.Store(true)
		close(m.ch)
	})
}

// IsClosed implements Mailbox.
func (m *channelMailbox[E]) IsClosed() bool {
	return m.closed.Load()
}

// Drain implements Mailbox.
func (m *channelMailbox[E]) Drain() iter.Seq[*Envelope[E]] {
	return func(yield func(*Envelope[E]) bool) {
		if !m.IsClosed() {
			return
		}

		for {
			select {
			case env, ok := <-m.ch:
				if !ok {
					return
				}
				if !yield(env) {
					return
				}
			default:
				return
			}
		}
	}
}

// Len implements Mailbox.
func (m *channelMailbox[E]) Len() int {
	return len(m.ch)
}
