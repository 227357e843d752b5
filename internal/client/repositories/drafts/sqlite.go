package drafts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/invoicer/internal/client/models"
	"github.com/dmitrijs2005/invoicer/internal/client/store"
)

// SQLiteRepository implements Repository on the lazily opened local store.
type SQLiteRepository struct {
	st store.Provider
}

func NewSQLiteRepository(st store.Provider) *SQLiteRepository {
	return &SQLiteRepository{st: st}
}

func (r *SQLiteRepository) Save(ctx context.Context, d *models.Draft) error {
	if d.ID == "" {
		return models.ErrEmptyID
	}
	db, err := r.st.DB(ctx)
	if err != nil {
		return err
	}
	if d.UpdatedAt.IsZero() {
		d.UpdatedAt = time.Now().UTC()
	}

	payload := []byte(d.Payload)
	if payload == nil {
		payload = []byte("null")
	}

	query := `INSERT INTO drafts (id, payload, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`
	if _, err := db.ExecContext(ctx, query, d.ID, payload, d.UpdatedAt.UnixNano()); err != nil {
		return fmt.Errorf("%w: save draft %s: %w", store.ErrStorageWrite, d.ID, err)
	}
	return nil
}

func (r *SQLiteRepository) Get(ctx context.Context, id string) (*models.Draft, error) {
	db, err := r.st.DB(ctx)
	if err != nil {
		return nil, err
	}

	row := db.QueryRowContext(ctx, `SELECT id, payload, updated_at FROM drafts WHERE id = ?`, id)
	d, err := scanDraft(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get draft %s: %w", store.ErrStorageRead, id, err)
	}
	return d, nil
}

func (r *SQLiteRepository) List(ctx context.Context) ([]*models.Draft, error) {
	db, err := r.st.DB(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `SELECT id, payload, updated_at FROM drafts`)
	if err != nil {
		return nil, fmt.Errorf("%w: list drafts: %w", store.ErrStorageRead, err)
	}
	defer rows.Close()

	result := make([]*models.Draft, 0)
	for rows.Next() {
		d, err := scanDraft(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan draft: %w", store.ErrStorageRead, err)
		}
		result = append(result, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate drafts: %w", store.ErrStorageRead, err)
	}
	return result, nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	db, err := r.st.DB(ctx)
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, `DELETE FROM drafts WHERE id = ?`, id); err != nil {
		return fmt.Errorf("%w: delete draft %s: %w", store.ErrStorageWrite, id, err)
	}
	return nil
}

func (r *SQLiteRepository) Clear(ctx context.Context) error {
	db, err := r.st.DB(ctx)
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, `DELETE FROM drafts`); err != nil {
		return fmt.Errorf("%w: clear drafts: %w", store.ErrStorageWrite, err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDraft(s scanner) (*models.Draft, error) {
	var (
		d       models.Draft
		payload []byte
		updated int64
	)
	if err := s.Scan(&d.ID, &payload, &updated); err != nil {
		return nil, err
	}
	d.Payload = payload
	d.UpdatedAt = time.Unix(0, updated).UTC()
	return &d, nil
}
