package event

import (
	"context"
	"sync"

	"github.com/itter-sh/itter/internal/server/models"
)

// subscriberBuffer bounds how far a subscriber may lag behind Publish
// before Publish blocks. The hub drains promptly, so in practice this only
// absorbs bursts.
const subscriberBuffer = 256

// MemoryBus is an in-process Bus for single-node deployments and tests.
type MemoryBus struct {
	mu   sync.Mutex
	subs map[string][]chan *models.Eet
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: make(map[string][]chan *models.Eet)}
}

func (b *MemoryBus) Publish(ctx context.Context, topic string, eet *models.Eet) error {
	b.mu.Lock()
	subs := make([]chan *models.Eet, len(b.subs[topic]))
	copy(subs, b.subs[topic])
	b.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- eet:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (b *MemoryBus) Subscribe(ctx context.Context, topic string) (<-chan *models.Eet, error) {
	ch := make(chan *models.Eet, subscriberBuffer)

	b.mu.Lock()
	b.subs[topic] = append(b.subs[topic], ch)
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		subs := b.subs[topic]
		for i, c := range subs {
			if c == ch {
				b.subs[topic] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
		b.mu.Unlock()
		close(ch)
	}()

	return ch, nil
}
