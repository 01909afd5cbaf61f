// Package hub is the subscription registry and live fan-out engine. One
// goroutine owns the subscriber map; sessions register and unregister
// through channels, and a single bus subscription feeds every watcher.
//
// Each subscription owns a bounded delivery queue. A consumer that falls
// behind loses the oldest buffered events and is told how many it missed;
// the hub itself never blocks on a slow session.
package hub

import (
	"context"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/itter-sh/itter/internal/logging"
	"github.com/itter-sh/itter/internal/server/models"
)

// Delivery is one fanned-out eet. Missed is the number of events dropped
// for this subscription since the previous delivery; renderers surface it
// as a "missed N updates" notice.
type Delivery struct {
	Eet    *models.Eet
	Missed int
}

// Subscription binds one session to one topic. It must be released with
// Hub.Unsubscribe; releasing twice is a no-op.
type Subscription struct {
	id      string
	topic   Topic
	ownerID string
	follows *models.FollowSet

	ch            chan Delivery
	pendingMissed int // owned by the hub goroutine
}

// Deliveries returns the subscription's queue. The channel is closed when
// the subscription is unsubscribed or the hub shuts down.
func (s *Subscription) Deliveries() <-chan Delivery {
	return s.ch
}

// Topic returns the topic the subscription watches.
func (s *Subscription) Topic() Topic {
	return s.topic
}

type Hub struct {
	register   chan *Subscription
	unregister chan *Subscription
	events     <-chan *models.Eet
	queueSize  int
	logger     logging.Logger

	count atomic.Int64
}

// New builds a hub draining events from the given channel (the process-wide
// bus subscription). queueSize bounds each subscription's delivery queue.
func New(events <-chan *models.Eet, queueSize int, logger logging.Logger) *Hub {
	if queueSize < 1 {
		queueSize = 1
	}
	return &Hub{
		register:   make(chan *Subscription),
		unregister: make(chan *Subscription),
		events:     events,
		queueSize:  queueSize,
		logger:     logger.With("module", "hub"),
	}
}

// Subscribe registers a watcher. When Subscribe returns, every event the
// hub ingests afterwards reaches the new subscription; sessions entering
// watch mode rely on that to cover posts created while they render the
// static page. follows may be nil for topics other than TopicMine.
func (h *Hub) Subscribe(ctx context.Context, topic Topic, ownerID string, follows *models.FollowSet) (*Subscription, error) {
	sub := &Subscription{
		id:      uuid.NewString(),
		topic:   topic,
		ownerID: ownerID,
		follows: follows,
		ch:      make(chan Delivery, h.queueSize),
	}
	select {
	case h.register <- sub:
		return sub, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Unsubscribe removes a subscription and closes its delivery channel. Safe
// to call more than once and safe to race with hub shutdown.
func (h *Hub) Unsubscribe(ctx context.Context, sub *Subscription) {
	if sub == nil {
		return
	}
	select {
	case h.unregister <- sub:
	case <-ctx.Done():
	}
}

// Subscribers reports the current number of live subscriptions.
func (h *Hub) Subscribers() int {
	return int(h.count.Load())
}

// Run owns the registry until ctx is cancelled or the event channel closes.
// All delivery channels are closed on the way out.
func (h *Hub) Run(ctx context.Context) {
	subs := make(map[*Subscription]struct{})
	defer func() {
		for sub := range subs {
			close(sub.ch)
			delete(subs, sub)
		}
		h.count.Store(0)
	}()

	for {
		select {
		case sub := <-h.register:
			subs[sub] = struct{}{}
			h.count.Store(int64(len(subs)))
			h.logger.Debug(ctx, "subscribed", "subscription", sub.id, "topic", sub.topic.String())

		case sub := <-h.unregister:
			if _, ok := subs[sub]; ok {
				delete(subs, sub)
				close(sub.ch)
				h.count.Store(int64(len(subs)))
				h.logger.Debug(ctx, "unsubscribed", "subscription", sub.id, "topic", sub.topic.String())
			}

		case eet, ok := <-h.events:
			if !ok {
				return
			}
			for sub := range subs {
				if sub.topic.matches(eet, sub.ownerID, sub.follows) {
					h.enqueue(sub, eet)
				}
			}

		case <-ctx.Done():
			return
		}
	}
}

// enqueue appends to the subscription's bounded queue, dropping the oldest
// buffered delivery when full. Dropped deliveries are folded into the
// missed count carried by the next one that lands. Runs only on the hub
// goroutine.
func (h *Hub) enqueue(sub *Subscription, eet *models.Eet) {
	d := Delivery{Eet: eet, Missed: sub.pendingMissed}
	select {
	case sub.ch <- d:
		sub.pendingMissed = 0
		return
	default:
	}

	// Queue full: evict the oldest and account for it (plus whatever it had
	// already absorbed). The consumer may drain concurrently, in which case
	// the retry below succeeds with nothing lost.
	select {
	case old := <-sub.ch:
		sub.pendingMissed += old.Missed + 1
	default:
	}

	d.Missed = sub.pendingMissed
	select {
	case sub.ch <- d:
		sub.pendingMissed = 0
	default:
		sub.pendingMissed++
	}
}
