package users

import (
	"context"

	"github.com/itter-sh/itter/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	// UsernameExists checks case-insensitively, so "Bob" blocks "bob".
	UsernameExists(ctx context.Context, username string) (bool, error)
	UpdateProfile(ctx context.Context, userID string, displayName, email *string) error
	Stats(ctx context.Context, username string) (*models.ProfileStats, error)
}
