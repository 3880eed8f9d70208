package events

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"dramaflow/internal/logging"
)

// Bus fans events out to any number of subscribers. Publish never blocks on a
// subscriber; each subscription owns an unbounded FIFO drained by its own
// goroutine, so every subscriber sees events in publish order and a slow
// subscriber only delays itself.
type Bus struct {
	mu     sync.Mutex
	seq    uint64
	nextID uint64
	subs   map[uint64]*Subscription
	closed bool
	logger *slog.Logger
}

// NewBus constructs an empty bus. A nil logger discards observer panics.
func NewBus(logger *slog.Logger) *Bus {
	return &Bus{
		subs:   make(map[uint64]*Subscription),
		logger: logging.NewComponentLogger(logger, "events"),
	}
}

// Subscribe registers an observer for every event published from now on.
func (b *Bus) Subscribe(observer Observer) *Subscription {
	sub := &Subscription{bus: b, observer: observer, done: make(chan struct{})}
	sub.cond = sync.NewCond(&sub.mu)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		sub.closed = true
		close(sub.done)
		return sub
	}
	b.nextID++
	sub.id = b.nextID
	b.subs[sub.id] = sub
	b.mu.Unlock()

	go sub.pump(b.logger)
	return sub
}

// SubscribeFunc is Subscribe for plain functions.
func (b *Bus) SubscribeFunc(fn func(Event)) *Subscription {
	return b.Subscribe(ObserverFunc(fn))
}

// Publish stamps the event with the next sequence number and enqueues it for
// every current subscriber. It returns the assigned sequence, or 0 when the
// bus is closed.
func (b *Bus) Publish(evt Event) uint64 {
	if b == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return 0
	}
	b.seq++
	evt.Seq = b.seq
	if evt.Time.IsZero() {
		evt.Time = time.Now().UTC()
	}
	for _, sub := range b.subs {
		sub.enqueue(evt)
	}
	return evt.Seq
}

// Sync blocks until every event published before the call has been handed to
// every subscriber's observer, or ctx ends.
func (b *Bus) Sync(ctx context.Context) error {
	b.mu.Lock()
	subs := make([]*Subscription, 0, len(b.subs))
	for _, sub := range b.subs {
		subs = append(subs, sub)
	}
	b.mu.Unlock()
	for _, sub := range subs {
		if err := sub.sync(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Close delivers what is already queued, stops every subscription, and
// rejects further publishes.
func (b *Bus) Close(ctx context.Context) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	subs := make([]*Subscription, 0, len(b.subs))
	for id, sub := range b.subs {
		subs = append(subs, sub)
		delete(b.subs, id)
	}
	b.mu.Unlock()

	for _, sub := range subs {
		sub.mu.Lock()
		sub.draining = true
		sub.cond.Broadcast()
		sub.mu.Unlock()
	}
	for _, sub := range subs {
		select {
		case <-sub.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (b *Bus) remove(id uint64) {
	b.mu.Lock()
	delete(b.subs, id)
	b.mu.Unlock()
}

// Subscription is a registered observer. Close it to stop delivery.
type Subscription struct {
	bus      *Bus
	id       uint64
	observer Observer

	mu        sync.Mutex
	cond      *sync.Cond
	queue     []Event
	enqueued  uint64
	delivered uint64
	draining  bool
	closed    bool
	done      chan struct{}
}

// Close unsubscribes immediately; queued but undelivered events are dropped.
// An observer call already in progress runs to completion; wait on Done to
// observe the delivery goroutine exiting.
func (s *Subscription) Close() {
	if s == nil {
		return
	}
	s.bus.remove(s.id)
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.queue = nil
	s.cond.Broadcast()
	s.mu.Unlock()
}

// Done is closed once the subscription's delivery goroutine exits.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

func (s *Subscription) enqueue(evt Event) {
	s.mu.Lock()
	if !s.closed {
		s.queue = append(s.queue, evt)
		s.enqueued = evt.Seq
		s.cond.Broadcast()
	}
	s.mu.Unlock()
}

func (s *Subscription) pump(logger *slog.Logger) {
	defer close(s.done)
	for {
		s.mu.Lock()
		for len(s.queue) == 0 && !s.closed && !s.draining {
			s.cond.Wait()
		}
		if s.closed || (s.draining && len(s.queue) == 0) {
			s.closed = true
			s.cond.Broadcast()
			s.mu.Unlock()
			return
		}
		evt := s.queue[0]
		s.queue[0] = Event{}
		s.queue = s.queue[1:]
		s.mu.Unlock()

		s.deliver(logger, evt)

		s.mu.Lock()
		s.delivered = evt.Seq
		s.cond.Broadcast()
		s.mu.Unlock()
	}
}

func (s *Subscription) deliver(logger *slog.Logger, evt Event) {
	defer func() {
		if r := recover(); r != nil {
			logging.WarnWithContext(logger, "observer panicked", "observer_panic",
				logging.String("event_kind", string(evt.Kind)),
				logging.String("panic", fmt.Sprint(r)),
				logging.String(logging.FieldImpact, "this observer missed one event"),
			)
		}
	}()
	s.observer.Notify(evt)
}

func (s *Subscription) sync(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		s.mu.Lock()
		s.cond.Broadcast()
		s.mu.Unlock()
	})
	defer stop()

	s.mu.Lock()
	defer s.mu.Unlock()
	target := s.enqueued
	for s.delivered < target && !s.closed {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.cond.Wait()
	}
	return nil
}
