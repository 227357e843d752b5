package services

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/dmitrijs2005/invoicer/internal/client/models"
	"github.com/dmitrijs2005/invoicer/internal/client/repositories/drafts"
	"github.com/dmitrijs2005/invoicer/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/invoicer/internal/client/repositories/pending"
	"github.com/dmitrijs2005/invoicer/internal/client/store"
	"github.com/dmitrijs2005/invoicer/internal/client/syncer"
	"github.com/dmitrijs2005/invoicer/internal/client/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTransport struct {
	transport.Transport
	status int
	err    error
	calls  int
}

func (f *fakeTransport) Deliver(context.Context, *models.PendingRequest) (*transport.Result, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &transport.Result{StatusCode: f.status}, nil
}

type invoice struct {
	Number string  `json:"number"`
	Total  float64 `json:"total"`
}

func setupService(t *testing.T) (OfflineService, *fakeTransport) {
	t.Helper()
	st := store.New(":memory:", nil)
	t.Cleanup(func() { _ = st.Close() })

	queue := pending.NewSQLiteRepository(st)
	meta := metadata.NewSQLiteRepository(st)
	tr := &fakeTransport{status: 201}

	sy, err := syncer.New(queue, tr, nil, syncer.WithMetadata(meta))
	require.NoError(t, err)

	svc := NewOfflineService(Deps{
		Drafts:    drafts.NewSQLiteRepository(st),
		Queue:     queue,
		Meta:      meta,
		Syncer:    sy,
		Transport: tr,
		Clearer:   st,

		MaxRetries: models.MaxRetries,
	})
	return svc, tr
}

func newDraft(t *testing.T, id string, inv invoice) *models.Draft {
	t.Helper()
	d, err := models.NewDraft(id, inv)
	require.NoError(t, err)
	return d
}

func newRequest(t *testing.T, inv invoice) *models.PendingRequest {
	t.Helper()
	r, err := models.NewPendingRequest("POST", "/api/invoices", inv)
	require.NoError(t, err)
	return r
}

func TestOfflineService_DraftLastWriteWins(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	require.NoError(t, svc.SaveDraft(ctx, newDraft(t, "d1", invoice{Number: "A-1", Total: 10})))
	require.NoError(t, svc.SaveDraft(ctx, newDraft(t, "d1", invoice{Number: "A-1", Total: 25})))

	got, err := svc.GetDraft(ctx, "d1")
	require.NoError(t, err)
	require.NotNil(t, got)

	inv, err := models.DecodeDraft[invoice](got)
	require.NoError(t, err)
	assert.Equal(t, invoice{Number: "A-1", Total: 25}, inv)

	all, err := svc.ListDrafts(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestOfflineService_DeleteUnknownIsNoop(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	assert.NoError(t, svc.DeleteDraft(ctx, "missing"))
	assert.NoError(t, svc.DeletePendingRequest(ctx, "missing"))
}

func TestOfflineService_QueueAndSync(t *testing.T) {
	svc, tr := setupService(t)
	ctx := context.Background()

	r := newRequest(t, invoice{Number: "A-2"})
	require.NoError(t, svc.AddPendingRequest(ctx, r))

	list, err := svc.ListPendingRequests(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, r.ID, list[0].ID)

	n, err := svc.SyncPendingRequests(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, tr.calls)

	list, err = svc.ListPendingRequests(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	st, err := svc.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, st.Pending)
	assert.False(t, st.LastSyncAt.IsZero())
	assert.Equal(t, syncer.PassResult{Synced: 1, Total: 1}, st.LastSync)
}

func TestOfflineService_ClearAllData(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	require.NoError(t, svc.SaveDraft(ctx, newDraft(t, "d1", invoice{Number: "1"})))
	require.NoError(t, svc.SaveDraft(ctx, newDraft(t, "d2", invoice{Number: "2"})))
	require.NoError(t, svc.AddPendingRequest(ctx, newRequest(t, invoice{Number: "1"})))
	require.NoError(t, svc.AddPendingRequest(ctx, newRequest(t, invoice{Number: "2"})))

	require.NoError(t, svc.ClearAllData(ctx))

	ds, err := svc.ListDrafts(ctx)
	require.NoError(t, err)
	assert.Empty(t, ds)

	qs, err := svc.ListPendingRequests(ctx)
	require.NoError(t, err)
	assert.Empty(t, qs)
}

func TestOfflineService_Submit(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		err         error
		want        Outcome
		wantDraft   bool
		wantQueued  bool
		wantRetries int
	}{
		{name: "accepted", status: 201, want: OutcomeDelivered},
		{name: "rejected", status: 500, want: OutcomeQueued, wantDraft: true, wantQueued: true, wantRetries: 1},
		{
			name: "offline",
			err:  fmt.Errorf("%w: connection refused", transport.ErrUnavailable),
			want: OutcomeQueued, wantDraft: true, wantQueued: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, tr := setupService(t)
			tr.status, tr.err = tt.status, tt.err
			ctx := context.Background()

			d := newDraft(t, "d1", invoice{Number: "A-3"})
			require.NoError(t, svc.SaveDraft(ctx, d))
			r := newRequest(t, invoice{Number: "A-3"})

			got, err := svc.Submit(ctx, d, r)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, 1, tr.calls)

			stored, err := svc.GetDraft(ctx, "d1")
			require.NoError(t, err)
			assert.Equal(t, tt.wantDraft, stored != nil)

			qs, err := svc.ListPendingRequests(ctx)
			require.NoError(t, err)
			if !tt.wantQueued {
				assert.Empty(t, qs)
				return
			}
			require.Len(t, qs, 1)
			assert.Equal(t, r.ID, qs[0].ID)
			assert.Equal(t, tt.wantRetries, qs[0].RetryCount)

			body, err := models.DecodeBody[invoice](qs[0])
			require.NoError(t, err)
			assert.Equal(t, "A-3", body.Number)
		})
	}
}

func TestOfflineService_SubmitWithoutDraft(t *testing.T) {
	svc, tr := setupService(t)
	tr.status = 204

	got, err := svc.Submit(context.Background(), nil, newRequest(t, invoice{Number: "A-4"}))
	require.NoError(t, err)
	assert.Equal(t, OutcomeDelivered, got)
}

func TestOfflineService_SubmitInvalidRequest(t *testing.T) {
	svc, tr := setupService(t)

	r := &models.PendingRequest{ID: "x", URL: "/api/invoices", Method: "GET", Body: json.RawMessage(`{}`)}
	_, err := svc.Submit(context.Background(), nil, r)
	assert.ErrorIs(t, err, models.ErrInvalidMethod)
	assert.Zero(t, tr.calls)
}

func TestOfflineService_SubmitCancelled(t *testing.T) {
	svc, tr := setupService(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	tr.err = fmt.Errorf("%w: %w", transport.ErrUnavailable, context.Canceled)

	_, err := svc.Submit(ctx, nil, newRequest(t, invoice{Number: "A-5"}))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOfflineService_SubmitRejectedOnLastRetryIsDropped(t *testing.T) {
	svc, tr := setupService(t)
	tr.status = 500
	ctx := context.Background()

	d := newDraft(t, "d1", invoice{Number: "A-6"})
	r := newRequest(t, invoice{Number: "A-6"})
	r.RetryCount = models.MaxRetries

	got, err := svc.Submit(ctx, d, r)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAbandoned, got)
	assert.Equal(t, 1, tr.calls)

	qs, err := svc.ListPendingRequests(ctx)
	require.NoError(t, err)
	assert.Empty(t, qs)

	stored, err := svc.GetDraft(ctx, "d1")
	require.NoError(t, err)
	assert.NotNil(t, stored, "draft is kept for the user")

	n, err := svc.SyncPendingRequests(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 1, tr.calls, "an exhausted request is never sent again")
}

func TestOfflineService_SubmitExhaustedRequestIsNotSent(t *testing.T) {
	svc, tr := setupService(t)
	r := newRequest(t, invoice{Number: "A-7"})
	r.RetryCount = models.MaxRetries + 1

	got, err := svc.Submit(context.Background(), nil, r)
	assert.ErrorIs(t, err, models.ErrRetriesExhausted)
	assert.Equal(t, OutcomeAbandoned, got)
	assert.Zero(t, tr.calls)
}

func TestOfflineService_AddPendingRequestRetryLimit(t *testing.T) {
	tests := []struct {
		name    string
		retries int
		wantErr error
	}{
		{name: "at limit", retries: models.MaxRetries},
		{name: "over limit", retries: models.MaxRetries + 1, wantErr: models.ErrRetriesExhausted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := setupService(t)
			ctx := context.Background()
			r := newRequest(t, invoice{Number: "A-8"})
			r.RetryCount = tt.retries

			err := svc.AddPendingRequest(ctx, r)
			qs, listErr := svc.ListPendingRequests(ctx)
			require.NoError(t, listErr)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, qs)
				return
			}
			require.NoError(t, err)
			require.Len(t, qs, 1)
			assert.Equal(t, tt.retries, qs[0].RetryCount)
		})
	}
}

func TestOutcome_String(t *testing.T) {
	assert.Equal(t, "delivered", OutcomeDelivered.String())
	assert.Equal(t, "queued", OutcomeQueued.String())
	assert.Equal(t, "abandoned", OutcomeAbandoned.String())
	assert.Equal(t, "Outcome(7)", Outcome(7).String())
}
