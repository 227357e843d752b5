package metadata

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/invoicer/internal/client/store"
)

type SQLiteRepository struct {
	st store.Provider
}

func NewSQLiteRepository(st store.Provider) *SQLiteRepository {
	return &SQLiteRepository{st: st}
}

func (r *SQLiteRepository) Get(ctx context.Context, key string) ([]byte, error) {
	db, err := r.st.DB(ctx)
	if err != nil {
		return nil, err
	}

	var value []byte
	err = db.QueryRowContext(ctx, `SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get metadata[%s]: %w", store.ErrStorageRead, key, err)
	}
	return value, nil
}

func (r *SQLiteRepository) Set(ctx context.Context, key string, value []byte) error {
	db, err := r.st.DB(ctx)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO metadata (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("%w: set metadata[%s]: %w", store.ErrStorageWrite, key, err)
	}
	return nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, key string) error {
	db, err := r.st.DB(ctx)
	if err != nil {
		return err
	}

	if _, err := db.ExecContext(ctx, `DELETE FROM metadata WHERE key = ?`, key); err != nil {
		return fmt.Errorf("%w: delete metadata[%s]: %w", store.ErrStorageWrite, key, err)
	}
	return nil
}

func (r *SQLiteRepository) Clear(ctx context.Context) error {
	db, err := r.st.DB(ctx)
	if err != nil {
		return err
	}

	if _, err := db.ExecContext(ctx, `DELETE FROM metadata`); err != nil {
		return fmt.Errorf("%w: clear metadata: %w", store.ErrStorageWrite, err)
	}
	return nil
}

func (r *SQLiteRepository) List(ctx context.Context) (map[string][]byte, error) {
	db, err := r.st.DB(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `SELECT key, value FROM metadata`)
	if err != nil {
		return nil, fmt.Errorf("%w: list metadata: %w", store.ErrStorageRead, err)
	}
	defer rows.Close()

	result := make(map[string][]byte)
	for rows.Next() {
		var key string
		var value []byte
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("%w: scan metadata row: %w", store.ErrStorageRead, err)
		}
		result[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate metadata rows: %w", store.ErrStorageRead, err)
	}
	return result, nil
}
