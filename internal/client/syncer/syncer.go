// Package syncer drains the pending request queue against the remote API.
//
// A pass takes a snapshot of the queue and tries every request in it once,
// one after another. What happens to a request depends on the outcome:
//
//   - 2xx response: the request is removed and counted as synced.
//   - non-2xx response: the retry counter is incremented and the request is
//     stored again, or removed for good once the counter exceeds the retry
//     limit (abandoned).
//   - transport error: the request stays queued untouched, so being offline
//     never uses up retries.
//
// Passes are serialised by a mutex: a Sync call made while another pass is
// running waits for it and then reads a fresh snapshot.
package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/invoicer/internal/client/models"
	"github.com/dmitrijs2005/invoicer/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/invoicer/internal/client/repositories/pending"
	"github.com/dmitrijs2005/invoicer/internal/client/transport"
	"github.com/dmitrijs2005/invoicer/internal/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/dmitrijs2005/invoicer/internal/client/syncer"

type outcome int

const (
	outcomeDelivered outcome = iota
	outcomeFailed
	outcomeAbandoned
	outcomeDeferred
)

// PassResult is what a pass leaves in the metadata store under
// metadata.KeyLastSyncResult.
type PassResult struct {
	Synced    int `json:"synced"`
	Failed    int `json:"failed"`
	Abandoned int `json:"abandoned"`
	Deferred  int `json:"deferred"`
	Total     int `json:"total"`
}

type Synchronizer struct {
	queue      pending.Repository
	transport  transport.Transport
	logger     logging.Logger
	meta       metadata.Repository
	meter      metric.Meter
	maxRetries int
	now        func() time.Time

	mu sync.Mutex
	m  instruments
}

type Option func(*Synchronizer)

// WithMaxRetries overrides models.MaxRetries.
func WithMaxRetries(n int) Option {
	return func(s *Synchronizer) { s.maxRetries = n }
}

// WithMeter sets the meter used for sync metrics; the global meter
// provider is used otherwise.
func WithMeter(m metric.Meter) Option {
	return func(s *Synchronizer) { s.meter = m }
}

// WithMetadata makes every pass record its time and result.
func WithMetadata(repo metadata.Repository) Option {
	return func(s *Synchronizer) { s.meta = repo }
}

func New(queue pending.Repository, tr transport.Transport, logger logging.Logger, opts ...Option) (*Synchronizer, error) {
	s := &Synchronizer{
		queue:      queue,
		transport:  tr,
		logger:     logger,
		maxRetries: models.MaxRetries,
		now:        time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	if s.logger == nil {
		s.logger = logging.Nop()
	}
	if s.meter == nil {
		s.meter = otel.Meter(instrumentationName)
	}
	if s.maxRetries < 0 {
		return nil, fmt.Errorf("max retries must not be negative, got %d", s.maxRetries)
	}

	m, err := newInstruments(s.meter)
	if err != nil {
		return nil, fmt.Errorf("create sync instruments: %w", err)
	}
	s.m = m
	return s, nil
}

// Sync runs one pass and returns how many requests of the snapshot were
// delivered. Delivery failures never surface as errors. The error reports
// storage problems (reading the snapshot, or recording an outcome) and
// context cancellation; the count is valid either way.
func (s *Synchronizer) Sync(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := s.now()

	snapshot, err := s.queue.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("read pending requests: %w", err)
	}

	res := PassResult{Total: len(snapshot)}
	var errs []error

	for _, req := range snapshot {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		out, err := s.process(ctx, req)
		if err != nil {
			errs = append(errs, err)
		}
		switch out {
		case outcomeDelivered:
			res.Synced++
		case outcomeFailed:
			res.Failed++
		case outcomeAbandoned:
			res.Abandoned++
		case outcomeDeferred:
			res.Deferred++
		}
	}

	s.m.passDuration.Record(ctx, s.now().Sub(start).Seconds())
	s.record(ctx, res)

	s.logger.Info(ctx, "sync pass finished",
		"synced", res.Synced, "total", res.Total,
		"failed", res.Failed, "abandoned", res.Abandoned, "deferred", res.Deferred)

	return res.Synced, errors.Join(errs...)
}

func (s *Synchronizer) process(ctx context.Context, req *models.PendingRequest) (outcome, error) {
	log := s.logger.With("request_id", req.ID, "method", req.Method, "url", req.URL)
	attrs := metric.WithAttributes(methodAttr(req.Method))

	if req.Exhausted(s.maxRetries) {
		return s.abandon(ctx, log, attrs, req, 0)
	}

	res, err := s.transport.Deliver(ctx, req)
	if err != nil {
		s.m.deferred.Add(ctx, 1, attrs)
		log.Warn(ctx, "delivery not attempted, request kept", "error", err)
		return outcomeDeferred, nil
	}

	if res.OK() {
		s.m.delivered.Add(ctx, 1, attrs)
		log.Debug(ctx, "request delivered", "status", res.StatusCode)
		if err := s.queue.Remove(ctx, req.ID); err != nil {
			log.Error(ctx, "failed to remove delivered request", "error", err)
			return outcomeDelivered, fmt.Errorf("remove delivered request %s: %w", req.ID, err)
		}
		return outcomeDelivered, nil
	}

	req.RetryCount++
	if req.Exhausted(s.maxRetries) {
		return s.abandon(ctx, log, attrs, req, res.StatusCode)
	}

	s.m.failed.Add(ctx, 1, attrs)
	log.Warn(ctx, "delivery rejected, will retry",
		"status", res.StatusCode, "retry_count", req.RetryCount)
	if err := s.queue.Enqueue(ctx, req); err != nil {
		log.Error(ctx, "failed to requeue request", "error", err)
		return outcomeFailed, fmt.Errorf("requeue request %s: %w", req.ID, err)
	}
	return outcomeFailed, nil
}

// abandon drops req from the queue. status is 0 when req arrived already
// exhausted and was not sent.
func (s *Synchronizer) abandon(ctx context.Context, log logging.Logger, attrs metric.AddOption,
	req *models.PendingRequest, status int) (outcome, error) {
	s.m.abandoned.Add(ctx, 1, attrs)
	log.Warn(ctx, "retry limit exceeded, request abandoned",
		"status", status, "retry_count", req.RetryCount)
	if err := s.queue.Remove(ctx, req.ID); err != nil {
		log.Error(ctx, "failed to remove abandoned request", "error", err)
		return outcomeAbandoned, fmt.Errorf("remove abandoned request %s: %w", req.ID, err)
	}
	return outcomeAbandoned, nil
}

func (s *Synchronizer) record(ctx context.Context, res PassResult) {
	if s.meta == nil {
		return
	}
	b, err := json.Marshal(res)
	if err == nil {
		err = s.meta.Set(ctx, metadata.KeyLastSyncResult, b)
	}
	if err == nil {
		err = s.meta.Set(ctx, metadata.KeyLastSyncAt, []byte(s.now().UTC().Format(time.RFC3339Nano)))
	}
	if err != nil {
		s.logger.Warn(ctx, "failed to record sync pass", "error", err)
	}
}

// LastPass reads what the most recent pass recorded. It returns zero values
// when no pass has been recorded yet.
func LastPass(ctx context.Context, repo metadata.Repository) (time.Time, PassResult, error) {
	var res PassResult

	at, err := repo.Get(ctx, metadata.KeyLastSyncAt)
	if err != nil || at == nil {
		return time.Time{}, res, err
	}
	ts, err := time.Parse(time.RFC3339Nano, string(at))
	if err != nil {
		return time.Time{}, res, fmt.Errorf("parse %s: %w", metadata.KeyLastSyncAt, err)
	}

	raw, err := repo.Get(ctx, metadata.KeyLastSyncResult)
	if err != nil {
		return ts, res, err
	}
	if raw != nil {
		if err := json.Unmarshal(raw, &res); err != nil {
			return ts, res, fmt.Errorf("parse %s: %w", metadata.KeyLastSyncResult, err)
		}
	}
	return ts, res, nil
}
