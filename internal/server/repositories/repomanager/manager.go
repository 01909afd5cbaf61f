// Package repomanager vends repository implementations for a storage
// backend and owns schema migrations.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/itter-sh/itter/internal/dbx"
	"github.com/itter-sh/itter/internal/server/repositories/eets"
	"github.com/itter-sh/itter/internal/server/repositories/follows"
	"github.com/itter-sh/itter/internal/server/repositories/users"
)

// RepositoryManager builds repositories bound to the provided DBTX (either
// the shared *sql.DB or a transaction handle).
type RepositoryManager interface {
	Users(db dbx.DBTX) users.Repository
	Eets(db dbx.DBTX) eets.Repository
	Follows(db dbx.DBTX) follows.Repository
	RunMigrations(ctx context.Context, db *sql.DB) error
}
