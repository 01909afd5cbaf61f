package eets

import (
	"context"

	"github.com/itter-sh/itter/internal/server/models"
)

// Repository persists eets and serves the timeline queries. All List
// methods page by sequence id: beforeSeq == 0 means "newest first from the
// top", any other value returns rows with seq strictly below it. Rows come
// back in descending seq order.
type Repository interface {
	Create(ctx context.Context, eet *models.Eet) (*models.Eet, error)
	ListAll(ctx context.Context, beforeSeq int64, limit int) ([]models.Eet, error)
	ListByAuthor(ctx context.Context, username string, beforeSeq int64, limit int) ([]models.Eet, error)
	ListByChannel(ctx context.Context, tag string, beforeSeq int64, limit int) ([]models.Eet, error)
	// ListMine returns the viewer's own eets plus those of followed users
	// and followed channels.
	ListMine(ctx context.Context, viewerID string, beforeSeq int64, limit int) ([]models.Eet, error)
}
