// Package notify fans committed prayer log events out to live subscribers.
package notify

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"example.com/prayer/internal/events"
)

const defaultBuffer = 16

var (
	subscribersGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "prayer_service",
		Subsystem: "notify",
		Name:      "subscribers",
		Help:      "Number of live change-notification subscribers.",
	})
	droppedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "prayer_service",
		Subsystem: "notify",
		Name:      "events_dropped_total",
		Help:      "Events not delivered because a subscriber buffer was full.",
	})
)

func init() {
	prometheus.MustRegister(subscribersGauge, droppedCounter)
}

// Hub broadcasts entry.created events to every subscriber.
type Hub struct {
	mu   sync.RWMutex
	subs map[chan events.EntryCreated]struct{}
}

// NewHub constructs an empty Hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[chan events.EntryCreated]struct{})}
}

// Publish delivers evt to every subscriber without blocking. Slow subscribers miss the event.
func (h *Hub) Publish(evt events.EntryCreated) {
	if h == nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.subs {
		select {
		case ch <- evt:
		default:
			droppedCounter.Inc()
		}
	}
}

// EntryCreated lets the Hub act as the domain notifier when no outbox is running.
func (h *Hub) EntryCreated(_ context.Context, evt events.EntryCreated) {
	h.Publish(evt)
}

// Subscribe registers a subscriber until ctx is done; the channel is closed afterwards.
func (h *Hub) Subscribe(ctx context.Context, buffer int) <-chan events.EntryCreated {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	ch := make(chan events.EntryCreated, buffer)

	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	subscribersGauge.Inc()

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		delete(h.subs, ch)
		h.mu.Unlock()
		subscribersGauge.Dec()
		close(ch)
	}()

	return ch
}

// Subscribers reports the current subscriber count.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
