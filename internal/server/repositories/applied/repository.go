// Package applied records which client write requests have already been
// applied, so replays of a queued request are acknowledged without being
// applied twice.
package applied

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/invoicer/internal/dbx"
)

type Repository interface {
	// Mark records requestID for userID and reports whether it was new.
	Mark(ctx context.Context, userID, requestID string) (bool, error)
}

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Mark(ctx context.Context, userID, requestID string) (bool, error) {
	query := `INSERT INTO applied_requests (user_id, request_id) VALUES ($1, $2)
		ON CONFLICT (user_id, request_id) DO NOTHING`
	res, err := r.db.ExecContext(ctx, query, userID, requestID)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected error: %w", err)
	}
	return n == 1, nil
}
