package pending

import (
	"context"

	"github.com/dmitrijs2005/invoicer/internal/client/models"
)

// Repository is the durable staging area for deferred writes.
type Repository interface {
	// Enqueue inserts the request or overwrites the one with the same ID.
	Enqueue(ctx context.Context, r *models.PendingRequest) error

	// Get returns the request, or nil when there is none.
	Get(ctx context.Context, id string) (*models.PendingRequest, error)

	// List returns every queued request, oldest first.
	List(ctx context.Context) ([]*models.PendingRequest, error)

	// Remove deletes the request; removing an unknown id is a no-op.
	Remove(ctx context.Context, id string) error

	Clear(ctx context.Context) error
}
