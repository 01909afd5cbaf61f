package event

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/itter-sh/itter/internal/logging"
	"github.com/itter-sh/itter/internal/server/models"
)

// PostgresBus delivers eet events over Postgres LISTEN/NOTIFY. The insert
// trigger installed by the migrations does the NOTIFY, so Publish is a
// no-op here; Subscribe holds one dedicated connection in LISTEN mode and
// reconnects with backoff if it drops.
type PostgresBus struct {
	dsn            string
	reconnectDelay time.Duration
	logger         logging.Logger
}

func NewPostgresBus(dsn string, reconnectDelay time.Duration, logger logging.Logger) *PostgresBus {
	if reconnectDelay <= 0 {
		reconnectDelay = 2 * time.Second
	}
	return &PostgresBus{dsn: dsn, reconnectDelay: reconnectDelay, logger: logger.With("module", "event_bus")}
}

// Publish is a no-op: the eets insert trigger already notifies the channel
// inside the same transaction as the insert.
func (b *PostgresBus) Publish(ctx context.Context, topic string, eet *models.Eet) error {
	return nil
}

func (b *PostgresBus) Subscribe(ctx context.Context, topic string) (<-chan *models.Eet, error) {
	out := make(chan *models.Eet, subscriberBuffer)

	go func() {
		defer close(out)
		for ctx.Err() == nil {
			if err := b.listen(ctx, topic, out); err != nil && ctx.Err() == nil {
				b.logger.Warn(ctx, "listen connection lost, reconnecting", "error", err)
				select {
				case <-time.After(b.reconnectDelay):
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

func (b *PostgresBus) listen(ctx context.Context, topic string, out chan<- *models.Eet) error {
	conn, err := pgx.Connect(ctx, b.dsn)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = conn.Close(closeCtx)
	}()

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{topic}.Sanitize()); err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	b.logger.Info(ctx, "listening for eet events", "topic", topic)

	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			return fmt.Errorf("wait: %w", err)
		}
		eet, err := decodePayload(n.Payload)
		if err != nil {
			b.logger.Warn(ctx, "dropping undecodable event payload", "error", err)
			continue
		}
		select {
		case out <- eet:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

type eetPayload struct {
	ID        string    `json:"id"`
	Seq       int64     `json:"seq"`
	AuthorID  string    `json:"author_id"`
	Author    string    `json:"author"`
	Body      string    `json:"body"`
	Tags      []string  `json:"tags"`
	Mentions  []string  `json:"mentions"`
	CreatedAt time.Time `json:"created_at"`
}

func decodePayload(payload string) (*models.Eet, error) {
	var p eetPayload
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return nil, err
	}
	return &models.Eet{
		ID:        p.ID,
		Seq:       p.Seq,
		AuthorID:  p.AuthorID,
		Author:    p.Author,
		Body:      p.Body,
		Tags:      p.Tags,
		Mentions:  p.Mentions,
		CreatedAt: p.CreatedAt,
	}, nil
}
