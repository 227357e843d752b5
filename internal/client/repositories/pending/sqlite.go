package pending

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/invoicer/internal/client/models"
	"github.com/dmitrijs2005/invoicer/internal/client/store"
)

var ErrNegativeRetryCount = errors.New("retry count must not be negative")

const selectColumns = `SELECT id, url, method, body, enqueued_at, retry_count FROM pending_requests`

type SQLiteRepository struct {
	st store.Provider
}

func NewSQLiteRepository(st store.Provider) *SQLiteRepository {
	return &SQLiteRepository{st: st}
}

// Enqueue upserts req. On overwrite the original enqueue time is kept, so a
// retried request keeps its place in the queue, and the stored retry count
// never goes down.
func (r *SQLiteRepository) Enqueue(ctx context.Context, req *models.PendingRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	if req.RetryCount < 0 {
		return ErrNegativeRetryCount
	}
	req.Method, _ = models.NormalizeMethod(req.Method)
	if req.EnqueuedAt.IsZero() {
		req.EnqueuedAt = time.Now().UTC()
	}

	db, err := r.st.DB(ctx)
	if err != nil {
		return err
	}

	query := `INSERT INTO pending_requests (id, url, method, body, enqueued_at, retry_count)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET url = excluded.url,
			method = excluded.method,
			body = excluded.body,
			retry_count = max(pending_requests.retry_count, excluded.retry_count)`
	_, err = db.ExecContext(ctx, query,
		req.ID, req.URL, req.Method, []byte(req.Body), req.EnqueuedAt.UnixNano(), req.RetryCount)
	if err != nil {
		return fmt.Errorf("%w: enqueue request %s: %w", store.ErrStorageWrite, req.ID, err)
	}
	return nil
}

func (r *SQLiteRepository) Get(ctx context.Context, id string) (*models.PendingRequest, error) {
	db, err := r.st.DB(ctx)
	if err != nil {
		return nil, err
	}

	req, err := scanRequest(db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get request %s: %w", store.ErrStorageRead, id, err)
	}
	return req, nil
}

func (r *SQLiteRepository) List(ctx context.Context) ([]*models.PendingRequest, error) {
	db, err := r.st.DB(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, selectColumns+` ORDER BY enqueued_at, id`)
	if err != nil {
		return nil, fmt.Errorf("%w: list requests: %w", store.ErrStorageRead, err)
	}
	defer rows.Close()

	result := make([]*models.PendingRequest, 0)
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan request: %w", store.ErrStorageRead, err)
		}
		result = append(result, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate requests: %w", store.ErrStorageRead, err)
	}
	return result, nil
}

func (r *SQLiteRepository) Remove(ctx context.Context, id string) error {
	db, err := r.st.DB(ctx)
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, `DELETE FROM pending_requests WHERE id = ?`, id); err != nil {
		return fmt.Errorf("%w: remove request %s: %w", store.ErrStorageWrite, id, err)
	}
	return nil
}

func (r *SQLiteRepository) Clear(ctx context.Context) error {
	db, err := r.st.DB(ctx)
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, `DELETE FROM pending_requests`); err != nil {
		return fmt.Errorf("%w: clear requests: %w", store.ErrStorageWrite, err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRequest(s scanner) (*models.PendingRequest, error) {
	var (
		req      models.PendingRequest
		body     []byte
		enqueued int64
	)
	if err := s.Scan(&req.ID, &req.URL, &req.Method, &body, &enqueued, &req.RetryCount); err != nil {
		return nil, err
	}
	req.Body = body
	req.EnqueuedAt = time.Unix(0, enqueued).UTC()
	return &req, nil
}
