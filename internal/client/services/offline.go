// Package services contains the application services behind the CLI.
// This file defines the offline service: local drafts, the pending request
// queue and its synchronization with the server.
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/invoicer/internal/client/models"
	"github.com/dmitrijs2005/invoicer/internal/client/repositories/drafts"
	"github.com/dmitrijs2005/invoicer/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/invoicer/internal/client/repositories/pending"
	"github.com/dmitrijs2005/invoicer/internal/client/syncer"
	"github.com/dmitrijs2005/invoicer/internal/client/transport"
	"github.com/dmitrijs2005/invoicer/internal/logging"
)

// Outcome tells how Submit handled a write.
type Outcome int

const (
	// OutcomeDelivered: the server accepted the request right away.
	OutcomeDelivered Outcome = iota
	// OutcomeQueued: the request was queued and the draft kept for later.
	OutcomeQueued
	// OutcomeAbandoned: the server rejected a request that had no retries
	// left. The draft is kept, the request is dropped.
	OutcomeAbandoned
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDelivered:
		return "delivered"
	case OutcomeQueued:
		return "queued"
	case OutcomeAbandoned:
		return "abandoned"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Syncer runs one synchronization pass and reports how many requests were
// delivered.
type Syncer interface {
	Sync(ctx context.Context) (int, error)
}

// Clearer wipes drafts and pending requests in one transaction.
type Clearer interface {
	Clear(ctx context.Context) error
}

// Status is a snapshot of the local state, shown by the CLI.
type Status struct {
	Drafts     int
	Pending    int
	LastSyncAt time.Time
	LastSync   syncer.PassResult
}

// OfflineService is the client's entry point for offline work.
//
// Draft and queue operations only touch the local store. SyncPendingRequests
// and Submit talk to the server; a server that cannot be reached never
// turns into an error, the work simply stays queued.
type OfflineService interface {
	SaveDraft(ctx context.Context, d *models.Draft) error
	GetDraft(ctx context.Context, id string) (*models.Draft, error)
	ListDrafts(ctx context.Context) ([]*models.Draft, error)
	DeleteDraft(ctx context.Context, id string) error

	AddPendingRequest(ctx context.Context, r *models.PendingRequest) error
	ListPendingRequests(ctx context.Context) ([]*models.PendingRequest, error)
	DeletePendingRequest(ctx context.Context, id string) error
	SyncPendingRequests(ctx context.Context) (int, error)

	Submit(ctx context.Context, d *models.Draft, r *models.PendingRequest) (Outcome, error)
	ClearAllData(ctx context.Context) error
	Status(ctx context.Context) (*Status, error)
}

type offlineService struct {
	drafts    drafts.Repository
	queue     pending.Repository
	meta      metadata.Repository
	syncer    Syncer
	transport transport.Transport
	clearer   Clearer
	logger    logging.Logger

	maxRetries int
}

// Deps bundles what NewOfflineService needs. Meta may be nil, in which case
// Status reports no sync history. MaxRetries must match the synchronizer's
// limit, normally models.MaxRetries.
type Deps struct {
	Drafts    drafts.Repository
	Queue     pending.Repository
	Meta      metadata.Repository
	Syncer    Syncer
	Transport transport.Transport
	Clearer   Clearer
	Logger    logging.Logger

	MaxRetries int
}

func NewOfflineService(d Deps) OfflineService {
	logger := d.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	return &offlineService{
		drafts:    d.Drafts,
		queue:     d.Queue,
		meta:      d.Meta,
		syncer:    d.Syncer,
		transport: d.Transport,
		clearer:   d.Clearer,
		logger:    logger,

		maxRetries: d.MaxRetries,
	}
}

func (s *offlineService) SaveDraft(ctx context.Context, d *models.Draft) error {
	return s.drafts.Save(ctx, d)
}

func (s *offlineService) GetDraft(ctx context.Context, id string) (*models.Draft, error) {
	return s.drafts.Get(ctx, id)
}

func (s *offlineService) ListDrafts(ctx context.Context) ([]*models.Draft, error) {
	return s.drafts.List(ctx)
}

func (s *offlineService) DeleteDraft(ctx context.Context, id string) error {
	return s.drafts.Delete(ctx, id)
}

// AddPendingRequest refuses a request that has already used up its retries.
func (s *offlineService) AddPendingRequest(ctx context.Context, r *models.PendingRequest) error {
	if err := s.checkRetries(r); err != nil {
		return err
	}
	return s.queue.Enqueue(ctx, r)
}

func (s *offlineService) ListPendingRequests(ctx context.Context) ([]*models.PendingRequest, error) {
	return s.queue.List(ctx)
}

func (s *offlineService) DeletePendingRequest(ctx context.Context, id string) error {
	return s.queue.Remove(ctx, id)
}

func (s *offlineService) SyncPendingRequests(ctx context.Context) (int, error) {
	return s.syncer.Sync(ctx)
}

// Submit tries to deliver r now. When the server accepts it the draft is
// deleted, since the server copy supersedes it. Otherwise the draft is saved
// and r is queued for the next sync pass, unless that rejection used up its
// last retry. d may be nil.
func (s *offlineService) Submit(ctx context.Context, d *models.Draft, r *models.PendingRequest) (Outcome, error) {
	if err := r.Validate(); err != nil {
		return OutcomeQueued, err
	}
	if err := s.checkRetries(r); err != nil {
		return OutcomeAbandoned, err
	}

	res, err := s.transport.Deliver(ctx, r)
	switch {
	case err == nil && res.OK():
		if d != nil {
			if err := s.drafts.Delete(ctx, d.ID); err != nil {
				return OutcomeDelivered, fmt.Errorf("delete submitted draft: %w", err)
			}
		}
		return OutcomeDelivered, nil
	case err != nil:
		if ctx.Err() != nil {
			return OutcomeQueued, ctx.Err()
		}
		s.logger.Info(ctx, "server unreachable, queueing request", "request_id", r.ID, "error", err)
	default:
		s.logger.Warn(ctx, "server rejected request, queueing for retry",
			"request_id", r.ID, "status", res.StatusCode)
		// The immediate attempt counts as a failed delivery.
		r.RetryCount++
		if r.Exhausted(s.maxRetries) {
			return s.abandon(ctx, d, r)
		}
	}

	if d != nil {
		if err := s.drafts.Save(ctx, d); err != nil {
			return OutcomeQueued, fmt.Errorf("save draft: %w", err)
		}
	}
	if err := s.queue.Enqueue(ctx, r); err != nil {
		return OutcomeQueued, fmt.Errorf("queue request: %w", err)
	}
	return OutcomeQueued, nil
}

func (s *offlineService) checkRetries(r *models.PendingRequest) error {
	if r.Exhausted(s.maxRetries) {
		return fmt.Errorf("%w: request %s failed %d times", models.ErrRetriesExhausted, r.ID, r.RetryCount)
	}
	return nil
}

// abandon drops r, including any copy already queued, and keeps the draft.
func (s *offlineService) abandon(ctx context.Context, d *models.Draft, r *models.PendingRequest) (Outcome, error) {
	s.logger.Warn(ctx, "retry limit exceeded, request abandoned",
		"request_id", r.ID, "retry_count", r.RetryCount)
	if d != nil {
		if err := s.drafts.Save(ctx, d); err != nil {
			return OutcomeAbandoned, fmt.Errorf("save draft: %w", err)
		}
	}
	if err := s.queue.Remove(ctx, r.ID); err != nil {
		return OutcomeAbandoned, fmt.Errorf("remove abandoned request: %w", err)
	}
	return OutcomeAbandoned, nil
}

func (s *offlineService) ClearAllData(ctx context.Context) error {
	if err := s.clearer.Clear(ctx); err != nil {
		return err
	}
	s.logger.Info(ctx, "local data cleared")
	return nil
}

func (s *offlineService) Status(ctx context.Context) (*Status, error) {
	ds, err := s.drafts.List(ctx)
	if err != nil {
		return nil, err
	}
	qs, err := s.queue.List(ctx)
	if err != nil {
		return nil, err
	}

	st := &Status{Drafts: len(ds), Pending: len(qs)}
	if s.meta != nil {
		at, res, err := syncer.LastPass(ctx, s.meta)
		if err != nil {
			return nil, err
		}
		st.LastSyncAt, st.LastSync = at, res
	}
	return st, nil
}
