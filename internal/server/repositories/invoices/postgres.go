// Package invoices provides the PostgreSQL-backed invoice repository.
package invoices

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/invoicer/internal/common"
	"github.com/dmitrijs2005/invoicer/internal/dbx"
	"github.com/dmitrijs2005/invoicer/internal/server/models"
)

// ErrAlreadyExists is returned by Create for an id the tenant already uses.
var ErrAlreadyExists = errors.New("invoice already exists")

// PostgresRepository implements invoice storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts inv and fills its timestamps from the database.
func (r *PostgresRepository) Create(ctx context.Context, inv *models.Invoice) error {
	query := `
		INSERT INTO invoices (id, user_id, document)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, id) DO NOTHING
		RETURNING created_at, updated_at;
	`
	err := r.db.QueryRowContext(ctx, query, inv.ID, inv.UserID, []byte(inv.Document)).
		Scan(&inv.CreatedAt, &inv.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Update replaces the document of an existing invoice.
func (r *PostgresRepository) Update(ctx context.Context, inv *models.Invoice) error {
	query := `
		UPDATE invoices SET document = $3, updated_at = now()
		WHERE user_id = $1 AND id = $2
		RETURNING created_at, updated_at;
	`
	err := r.db.QueryRowContext(ctx, query, inv.UserID, inv.ID, []byte(inv.Document)).
		Scan(&inv.CreatedAt, &inv.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return common.ErrorNotFound
	}
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, userID, id string) (*models.Invoice, error) {
	query := `SELECT id, user_id, document, created_at, updated_at FROM invoices WHERE user_id = $1 AND id = $2`

	inv, err := scanInvoice(r.db.QueryRowContext(ctx, query, userID, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return inv, nil
}

// List returns the tenant's invoices, oldest first.
func (r *PostgresRepository) List(ctx context.Context, userID string) ([]*models.Invoice, error) {
	query := `SELECT id, user_id, document, created_at, updated_at FROM invoices
		WHERE user_id = $1 ORDER BY created_at, id`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to select invoices: %w", err)
	}
	defer rows.Close()

	result := []*models.Invoice{}
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM invoices WHERE user_id = $1 AND id = $2`, userID, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanInvoice(s scanner) (*models.Invoice, error) {
	var (
		inv models.Invoice
		doc []byte
	)
	if err := s.Scan(&inv.ID, &inv.UserID, &doc, &inv.CreatedAt, &inv.UpdatedAt); err != nil {
		return nil, err
	}
	inv.Document = doc
	return &inv, nil
}
