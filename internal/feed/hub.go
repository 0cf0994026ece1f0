// Package feed fans reservation changes out to subscribed viewers.
package feed

import (
	"context"
	"errors"
	"sync"

	"github.com/bissquit/campus-reservations/internal/domain"
)

// ErrHubClosed is returned when subscribing to a closed hub.
var ErrHubClosed = errors.New("feed hub closed")

// Publisher receives every committed reservation change.
type Publisher interface {
	Publish(ctx context.Context, change domain.ReservationChange) error
}

// Filter selects the changes a subscriber receives.
// The zero value matches every change.
type Filter struct {
	StudentID string
}

// Matches reports whether change passes the filter.
func (f Filter) Matches(change domain.ReservationChange) bool {
	return f.StudentID == "" || f.StudentID == change.StudentID
}

// Subscription is a live stream of changes. Close it when done.
type Subscription struct {
	id     uint64
	filter Filter
	ch     chan domain.ReservationChange
	hub    *Hub
}

// C returns the change stream. It is closed when the subscription or the hub closes.
func (s *Subscription) C() <-chan domain.ReservationChange {
	return s.ch
}

// Close removes the subscription from the hub. Safe to call more than once.
func (s *Subscription) Close() {
	s.hub.remove(s.id)
}

// Hub broadcasts changes to in-process subscribers.
// A subscriber whose buffer is full misses the change instead of blocking publishers.
type Hub struct {
	bufferSize int

	mu     sync.RWMutex
	subs   map[uint64]*Subscription
	nextID uint64
	closed bool
}

// NewHub creates a hub with the given per-subscriber buffer size.
func NewHub(bufferSize int) *Hub {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	return &Hub{
		bufferSize: bufferSize,
		subs:       make(map[uint64]*Subscription),
	}
}

// Publish implements Publisher for single-instance deployments.
func (h *Hub) Publish(_ context.Context, change domain.ReservationChange) error {
	h.Broadcast(change)
	recordPublished(resultOK)
	return nil
}

// Broadcast delivers change to every matching subscriber.
func (h *Hub) Broadcast(change domain.ReservationChange) (delivered, dropped int) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, sub := range h.subs {
		if !sub.filter.Matches(change) {
			continue
		}
		select {
		case sub.ch <- change:
			delivered++
		default:
			dropped++
		}
	}

	recordDelivery(delivered, dropped)
	return delivered, dropped
}

// Subscribe registers a new subscriber.
func (h *Hub) Subscribe(filter Filter) (*Subscription, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrHubClosed
	}

	h.nextID++
	sub := &Subscription{
		id:     h.nextID,
		filter: filter,
		ch:     make(chan domain.ReservationChange, h.bufferSize),
		hub:    h,
	}
	h.subs[sub.id] = sub
	subscribersGauge.Inc()

	return sub, nil
}

// SubscriberCount returns the number of live subscriptions.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close ends all subscriptions and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for id, sub := range h.subs {
		close(sub.ch)
		delete(h.subs, id)
		subscribersGauge.Dec()
	}
}

func (h *Hub) remove(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	sub, ok := h.subs[id]
	if !ok {
		return
	}
	close(sub.ch)
	delete(h.subs, id)
	subscribersGauge.Dec()
}
