package invoices

import (
	"context"

	"github.com/dmitrijs2005/invoicer/internal/server/models"
)

// Repository stores invoices per tenant. Lookups by an unknown id return
// common.ErrorNotFound.
type Repository interface {
	Create(ctx context.Context, inv *models.Invoice) error
	Update(ctx context.Context, inv *models.Invoice) error
	Get(ctx context.Context, userID, id string) (*models.Invoice, error)
	List(ctx context.Context, userID string) ([]*models.Invoice, error)
	Delete(ctx context.Context, userID, id string) error
}
