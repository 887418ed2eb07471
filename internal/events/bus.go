package events

import (
	"sync"

	"github.com/google/uuid"
)

// Predicate decides at delivery time whether a subscriber may see an event.
// It must be a pure function of the payload and the viewer; it runs
// synchronously inside Publish.
type Predicate func(ev Event, viewerID uuid.UUID) bool

const defaultQueueSize = 64

// Bus is an in-process topic fan-out broadcaster. It is constructed once
// and handed to every manager; there is no package-level instance.
//
// Publish is fire-and-forget and at-most-once: each subscription owns a
// bounded FIFO queue, and when a slow consumer's queue is full the oldest
// queued event is dropped so publishers never block. Disconnected clients
// miss events and reconcile by querying on reconnect.
type Bus struct {
	mu        sync.RWMutex
	topics    map[string]map[*Subscription]struct{}
	queueSize int
}

// Subscription is one subscriber's handle on one topic. Events arrive on
// Events() in publish order. Close deregisters the subscription; after
// Close returns its predicate is never evaluated again.
type Subscription struct {
	bus       *Bus
	topic     string
	viewerID  uuid.UUID
	predicate Predicate
	ch        chan Event
	closeOnce sync.Once
}

func NewBus() *Bus {
	return &Bus{
		topics:    make(map[string]map[*Subscription]struct{}),
		queueSize: defaultQueueSize,
	}
}

// Subscribe registers viewerID on topic. A nil predicate admits every
// event on the topic.
func (b *Bus) Subscribe(topic string, viewerID uuid.UUID, pred Predicate) *Subscription {
	s := &Subscription{
		bus:       b,
		topic:     topic,
		viewerID:  viewerID,
		predicate: pred,
		ch:        make(chan Event, b.queueSize),
	}

	b.mu.Lock()
	subs, ok := b.topics[topic]
	if !ok {
		subs = make(map[*Subscription]struct{})
		b.topics[topic] = subs
	}
	subs[s] = struct{}{}
	b.mu.Unlock()

	return s
}

// Publish delivers ev to every live subscriber of topic whose predicate
// admits it. It never blocks on slow subscribers.
func (b *Bus) Publish(topic string, ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for s := range b.topics[topic] {
		if s.predicate != nil && !s.predicate(ev, s.viewerID) {
			continue
		}
		s.enqueue(ev)
	}
}

// SubscriberCount reports the number of live subscriptions on topic.
func (b *Bus) SubscriberCount(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.topics[topic])
}

// enqueue appends ev to the subscription queue, dropping the oldest queued
// event when the consumer has fallen queueSize events behind. Callers hold
// the bus read lock, which keeps enqueue ordered against Close.
func (s *Subscription) enqueue(ev Event) {
	for {
		select {
		case s.ch <- ev:
			return
		default:
		}
		select {
		case <-s.ch:
		default:
		}
	}
}

// Events is the subscriber's delivery stream. It is closed by Close.
func (s *Subscription) Events() <-chan Event {
	return s.ch
}

// Topic returns the topic this subscription is bound to.
func (s *Subscription) Topic() string {
	return s.topic
}

// Close deregisters the subscription and closes its stream. Safe to call
// more than once.
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		b := s.bus
		b.mu.Lock()
		if subs, ok := b.topics[s.topic]; ok {
			delete(subs, s)
			if len(subs) == 0 {
				delete(b.topics, s.topic)
			}
		}
		// No publisher can hold a reference past this point, so closing
		// the channel cannot race a send.
		close(s.ch)
		b.mu.Unlock()
	})
}
