// Package event abstracts the "new eet created" broadcast the Subscription
// Hub consumes. The server subscribes exactly once per process; per-session
// fan-out happens inside the hub, never upstream.
package event

import (
	"context"

	"github.com/itter-sh/itter/internal/server/models"
)

// TopicEets is the single broadcast topic the core uses.
const TopicEets = "eet_events"

// Bus is the pluggable event source. Publish announces a newly created eet;
// Subscribe returns a channel carrying every announcement for the topic, in
// ingestion order, until ctx is cancelled.
//
// Implementations may make Publish a no-op when the backing store announces
// inserts itself (the Postgres bus relies on a NOTIFY trigger).
type Bus interface {
	Publish(ctx context.Context, topic string, eet *models.Eet) error
	Subscribe(ctx context.Context, topic string) (<-chan *models.Eet, error)
}
