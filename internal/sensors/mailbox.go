package sensors

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// ErrClosed is returned by Mailbox.Next once the producer has stopped
// and the last sample was taken.
var ErrClosed = errors.New("sensor mailbox closed")

// Mailbox is a single-slot, latest-wins handoff between the read loop
// and one consumer. Publishing while a sample is still pending replaces
// it and counts a drop; the consumer always sees the newest sample.
type Mailbox struct {
	mu     sync.Mutex
	cond   *sync.Cond
	slot   Sample
	full   bool
	closed bool

	published atomic.Uint64
	dropped   atomic.Uint64
}

func NewMailbox() *Mailbox {
	m := &Mailbox{}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// Publish stores s, overwriting any sample not yet consumed.
func (m *Mailbox) Publish(s Sample) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	if m.full {
		m.dropped.Add(1)
	}
	m.slot = s
	m.full = true
	m.published.Add(1)
	m.cond.Signal()
	m.mu.Unlock()
}

// Next blocks until a sample is available, the mailbox is closed or ctx
// is done.
func (m *Mailbox) Next(ctx context.Context) (Sample, error) {
	stop := context.AfterFunc(ctx, func() {
		m.mu.Lock()
		m.cond.Broadcast()
		m.mu.Unlock()
	})
	defer stop()

	m.mu.Lock()
	defer m.mu.Unlock()
	for !m.full && !m.closed && ctx.Err() == nil {
		m.cond.Wait()
	}
	if m.full {
		m.full = false
		return m.slot, nil
	}
	if m.closed {
		return Sample{}, ErrClosed
	}
	return Sample{}, ctx.Err()
}

// TryNext returns the pending sample without blocking.
func (m *Mailbox) TryNext() (Sample, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.full {
		return Sample{}, false
	}
	m.full = false
	return m.slot, true
}

// Close wakes the consumer. A pending sample can still be taken.
func (m *Mailbox) Close() {
	m.mu.Lock()
	m.closed = true
	m.cond.Broadcast()
	m.mu.Unlock()
}

func (m *Mailbox) Published() uint64 { return m.published.Load() }
func (m *Mailbox) Dropped() uint64   { return m.dropped.Load() }
