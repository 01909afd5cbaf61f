package eets

import (
	"context"
	"fmt"
	"strings"

	"github.com/itter-sh/itter/internal/dbx"
	"github.com/itter-sh/itter/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Tags and mentions are stored as text[] but travel through queries as
// space-joined strings; both are restricted to word characters and hyphens
// so the join is unambiguous.
const eetColumns = `e.id, e.seq, e.author_id, u.username,
	       e.body, array_to_string(e.tags, ' '), array_to_string(e.mentions, ' '), e.created_at`

func (r *PostgresRepository) Create(ctx context.Context, eet *models.Eet) (*models.Eet, error) {

	query :=
		`INSERT INTO eets (author_id, body, tags, mentions, hashed_ip)
		 VALUES ($1, $2,
		         COALESCE(string_to_array(NULLIF($3, ''), ' '), '{}'),
		         COALESCE(string_to_array(NULLIF($4, ''), ' '), '{}'),
		         $5)
		 RETURNING id, seq, created_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		eet.AuthorID, eet.Body,
		strings.Join(eet.Tags, " "), strings.Join(eet.Mentions, " "),
		eet.HashedIP).Scan(&eet.ID, &eet.Seq, &eet.CreatedAt)

	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return eet, nil
}

func (r *PostgresRepository) ListAll(ctx context.Context, beforeSeq int64, limit int) ([]models.Eet, error) {
	query :=
		`SELECT ` + eetColumns + `
		 FROM eets e
		 JOIN users u ON u.id = e.author_id
		 WHERE ($1 = 0 OR e.seq < $1)
		 ORDER BY e.seq DESC
		 LIMIT $2
		 `
	return r.list(ctx, query, beforeSeq, limit)
}

func (r *PostgresRepository) ListByAuthor(ctx context.Context, username string, beforeSeq int64, limit int) ([]models.Eet, error) {
	query :=
		`SELECT ` + eetColumns + `
		 FROM eets e
		 JOIN users u ON u.id = e.author_id
		 WHERE lower(u.username) = lower($3) AND ($1 = 0 OR e.seq < $1)
		 ORDER BY e.seq DESC
		 LIMIT $2
		 `
	return r.list(ctx, query, beforeSeq, limit, username)
}

func (r *PostgresRepository) ListByChannel(ctx context.Context, tag string, beforeSeq int64, limit int) ([]models.Eet, error) {
	query :=
		`SELECT ` + eetColumns + `
		 FROM eets e
		 JOIN users u ON u.id = e.author_id
		 WHERE e.tags @> ARRAY[$3] AND ($1 = 0 OR e.seq < $1)
		 ORDER BY e.seq DESC
		 LIMIT $2
		 `
	return r.list(ctx, query, beforeSeq, limit, tag)
}

func (r *PostgresRepository) ListMine(ctx context.Context, viewerID string, beforeSeq int64, limit int) ([]models.Eet, error) {
	query :=
		`SELECT ` + eetColumns + `
		 FROM eets e
		 JOIN users u ON u.id = e.author_id
		 WHERE ($1 = 0 OR e.seq < $1)
		   AND (e.author_id = $3
		        OR e.author_id IN (SELECT f.followee_id FROM follows f WHERE f.follower_id = $3)
		        OR e.tags && ARRAY(SELECT cf.channel_tag FROM channel_follows cf WHERE cf.user_id = $3))
		 ORDER BY e.seq DESC
		 LIMIT $2
		 `
	return r.list(ctx, query, beforeSeq, limit, viewerID)
}

func (r *PostgresRepository) list(ctx context.Context, query string, beforeSeq int64, limit int, extra ...any) ([]models.Eet, error) {
	args := append([]any{beforeSeq, limit}, extra...)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []models.Eet
	for rows.Next() {
		var e models.Eet
		var tags, mentions string
		if err := rows.Scan(&e.ID, &e.Seq, &e.AuthorID, &e.Author,
			&e.Body, &tags, &mentions, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		e.Tags = strings.Fields(tags)
		e.Mentions = strings.Fields(mentions)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}
