// Package services holds the server's application services.
package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/invoicer/internal/common"
	"github.com/dmitrijs2005/invoicer/internal/dbx"
	"github.com/dmitrijs2005/invoicer/internal/server/models"
	"github.com/dmitrijs2005/invoicer/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// ErrAlreadyApplied reports that a write carrying the same request id was
// applied before; the caller should acknowledge it without a body.
var ErrAlreadyApplied = errors.New("request already applied")

type InvoiceService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
}

func NewInvoiceService(db *sql.DB, repomanager repomanager.RepositoryManager) *InvoiceService {
	return &InvoiceService{db: db, repomanager: repomanager}
}

func (s *InvoiceService) List(ctx context.Context, userID string) ([]*models.Invoice, error) {
	return s.repomanager.Invoices(s.db).List(ctx, userID)
}

func (s *InvoiceService) Get(ctx context.Context, userID, id string) (*models.Invoice, error) {
	return s.repomanager.Invoices(s.db).Get(ctx, userID, id)
}

// Create stores doc as a new invoice. The id comes from doc's "id" field,
// or a fresh UUID when it has none.
func (s *InvoiceService) Create(ctx context.Context, userID, requestID string, doc json.RawMessage) (*models.Invoice, error) {
	fields, err := decodeDocument(doc)
	if err != nil {
		return nil, err
	}

	id, _ := fields["id"].(string)
	if id == "" {
		id = uuid.NewString()
	}
	inv, err := newInvoice(userID, id, fields)
	if err != nil {
		return nil, err
	}

	err = s.apply(ctx, userID, requestID, func(ctx context.Context, tx dbx.DBTX) error {
		return s.repomanager.Invoices(tx).Create(ctx, inv)
	})
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// Update replaces the document of invoice id. An "id" inside doc that
// disagrees with the path is rejected.
func (s *InvoiceService) Update(ctx context.Context, userID, requestID, id string, doc json.RawMessage) (*models.Invoice, error) {
	fields, err := decodeDocument(doc)
	if err != nil {
		return nil, err
	}
	if docID, ok := fields["id"].(string); ok && docID != id {
		return nil, fmt.Errorf("%w: id %q does not match %q", common.ErrorInvalidPayload, docID, id)
	}

	inv, err := newInvoice(userID, id, fields)
	if err != nil {
		return nil, err
	}

	err = s.apply(ctx, userID, requestID, func(ctx context.Context, tx dbx.DBTX) error {
		return s.repomanager.Invoices(tx).Update(ctx, inv)
	})
	if err != nil {
		return nil, err
	}
	return inv, nil
}

func (s *InvoiceService) Delete(ctx context.Context, userID, requestID, id string) error {
	return s.apply(ctx, userID, requestID, func(ctx context.Context, tx dbx.DBTX) error {
		return s.repomanager.Invoices(tx).Delete(ctx, userID, id)
	})
}

// apply runs write in a transaction together with recording requestID, so a
// replayed request is either fully applied once or reported as
// ErrAlreadyApplied. An empty requestID skips deduplication.
func (s *InvoiceService) apply(ctx context.Context, userID, requestID string, write func(ctx context.Context, tx dbx.DBTX) error) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if requestID != "" {
			fresh, err := s.repomanager.AppliedRequests(tx).Mark(ctx, userID, requestID)
			if err != nil {
				return err
			}
			if !fresh {
				return ErrAlreadyApplied
			}
		}
		return write(ctx, tx)
	})
}

func decodeDocument(doc json.RawMessage) (map[string]any, error) {
	var fields map[string]any
	if err := json.Unmarshal(doc, &fields); err != nil || fields == nil {
		return nil, fmt.Errorf("%w: body must be a JSON object", common.ErrorInvalidPayload)
	}
	return fields, nil
}

func newInvoice(userID, id string, fields map[string]any) (*models.Invoice, error) {
	fields["id"] = id
	doc, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrorInternal, err)
	}
	return &models.Invoice{ID: id, UserID: userID, Document: doc}, nil
}
