// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package bus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/kuntrapaku/subway-social-link-sub000/internal/log"
	"github.com/kuntrapaku/subway-social-link-sub000/internal/metrics"
)

const (
	DefaultBuffer = 64
	dropLogEvery  = 100
)

var dropCount atomic.Uint64

// MemoryBus is an in-process pub/sub with one topic per Kind. Publish blocks
// on a full subscriber until ctx is done.
type MemoryBus struct {
	mu     sync.RWMutex
	subs   map[Kind][]*memSub
	buffer int
}

type Option func(*MemoryBus)

// WithBuffer sets the per-subscriber queue length.
func WithBuffer(n int) Option {
	return func(b *MemoryBus) {
		if n > 0 {
			b.buffer = n
		}
	}
}

func NewMemoryBus(opts ...Option) *MemoryBus {
	b := &MemoryBus{subs: make(map[Kind][]*memSub), buffer: DefaultBuffer}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func publishDropReason(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "context_done"
	}
}

func (b *MemoryBus) Publish(ctx context.Context, ev Event) error {
	if ctx == nil {
		return fmt.Errorf("publish context is nil")
	}
	if ev == nil {
		return ErrNilEvent
	}
	kind := ev.Kind()
	if !kind.Valid() {
		return fmt.Errorf("publish %q: %w", kind, ErrUnknownKind)
	}
	b.mu.RLock()
	subs := append([]*memSub(nil), b.subs[kind]...)
	b.mu.RUnlock()

	metrics.IncBusPublished(string(kind))
	for _, s := range subs {
		if err := s.deliver(ctx, ev); err != nil {
			reason := publishDropReason(err)
			metrics.IncBusDropReason(string(kind), reason)
			count := dropCount.Add(1)
			if count%dropLogEvery == 0 {
				log.L().Warn().
					Str("kind", string(kind)).
					Str("reason", reason).
					Uint64("dropped", count).
					Msg("memory bus failed to publish due to context cancellation")
			}
			return fmt.Errorf("publish %q: %w", kind, err)
		}
	}
	return nil
}

func (b *MemoryBus) Subscribe(_ context.Context, kind Kind) (Subscriber, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("subscribe %q: %w", kind, ErrUnknownKind)
	}
	s := &memSub{
		b:    b,
		kind: kind,
		ch:   make(chan Event, b.buffer),
		done: make(chan struct{}),
	}
	b.mu.Lock()
	b.subs[kind] = append(b.subs[kind], s)
	b.mu.Unlock()
	return s, nil
}

// Subscribers reports the current subscriber count for kind.
func (b *MemoryBus) Subscribers(kind Kind) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[kind])
}

func (b *MemoryBus) remove(s *memSub) {
	b.mu.Lock()
	defer b.mu.Unlock()
	lst := b.subs[s.kind]
	out := lst[:0]
	for _, c := range lst {
		if c != s {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		delete(b.subs, s.kind)
	} else {
		b.subs[s.kind] = out
	}
}

type memSub struct {
	b    *MemoryBus
	kind Kind
	ch   chan Event
	done chan struct{}
	once sync.Once

	// mu orders in-flight deliveries against close(ch).
	mu     sync.RWMutex
	closed bool
}

func (s *memSub) deliver(ctx context.Context, ev Event) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil
	}
	select {
	case s.ch <- ev:
		return nil
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *memSub) C() <-chan Event {
	return s.ch
}

func (s *memSub) Close() error {
	s.once.Do(func() {
		close(s.done)
		s.b.remove(s)
		s.mu.Lock()
		s.closed = true
		close(s.ch)
		s.mu.Unlock()
	})
	return nil
}

var _ Bus = (*MemoryBus)(nil)
