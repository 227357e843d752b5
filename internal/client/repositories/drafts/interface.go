package drafts

import (
	"context"

	"github.com/dmitrijs2005/invoicer/internal/client/models"
)

// Repository describes CRUD operations on locally stored drafts.
type Repository interface {
	// Save inserts the draft or overwrites the one with the same ID.
	Save(ctx context.Context, d *models.Draft) error

	// Get returns the draft, or nil when there is none.
	Get(ctx context.Context, id string) (*models.Draft, error)

	// List returns every draft in store order.
	List(ctx context.Context) ([]*models.Draft, error)

	Delete(ctx context.Context, id string) error
	Clear(ctx context.Context) error
}
