// Package httpapi exposes invoices over HTTP with chi.
//
// Routes:
//
//	GET    /healthz              liveness, no auth
//	GET    /api/invoices         list the caller's invoices
//	POST   /api/invoices         create
//	GET    /api/invoices/{id}    fetch one
//	PUT    /api/invoices/{id}    replace
//	DELETE /api/invoices/{id}    delete
//
// Everything under /api needs "Authorization: Bearer <jwt>"; the token's
// UserID is the tenant. Writes carrying an X-Request-ID that was applied
// before are answered with 200 and not applied again.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/dmitrijs2005/invoicer/internal/logging"
	"github.com/dmitrijs2005/invoicer/internal/server/models"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// HeaderRequestID carries the client's id of a queued write.
const HeaderRequestID = "X-Request-ID"

const maxBodySize = 1 << 20

// InvoiceStore is what the handlers need from the invoice service.
type InvoiceStore interface {
	List(ctx context.Context, userID string) ([]*models.Invoice, error)
	Get(ctx context.Context, userID, id string) (*models.Invoice, error)
	Create(ctx context.Context, userID, requestID string, doc json.RawMessage) (*models.Invoice, error)
	Update(ctx context.Context, userID, requestID, id string, doc json.RawMessage) (*models.Invoice, error)
	Delete(ctx context.Context, userID, requestID, id string) error
}

type Option func(*options)

type options struct {
	meter metric.Meter
}

// WithMeter sets the meter for request metrics; the global provider is used
// otherwise.
func WithMeter(m metric.Meter) Option {
	return func(o *options) { o.meter = m }
}

// NewRouter builds the API handler.
func NewRouter(store InvoiceStore, secretKey []byte, logger logging.Logger, opts ...Option) (http.Handler, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.meter == nil {
		o.meter = otel.Meter("github.com/dmitrijs2005/invoicer/internal/server/httpapi")
	}
	if logger == nil {
		logger = logging.Nop()
	}

	requests, err := o.meter.Int64Counter("invoicer.http.requests",
		metric.WithDescription("HTTP requests served, by route and status."))
	if err != nil {
		return nil, err
	}

	h := &handler{store: store, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(accessLog(logger, requests))

	r.Get("/healthz", h.health)

	r.Route("/api", func(r chi.Router) {
		r.Use(bearerAuth(secretKey))

		r.Route("/invoices", func(r chi.Router) {
			r.Get("/", h.list)
			r.Post("/", h.create)
			r.Get("/{id}", h.get)
			r.Put("/{id}", h.update)
			r.Delete("/{id}", h.delete)
		})
	})

	return r, nil
}
