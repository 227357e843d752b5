package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/invoicer/internal/common"
	"github.com/dmitrijs2005/invoicer/internal/server/auth"
	"github.com/dmitrijs2005/invoicer/internal/server/models"
	"github.com/dmitrijs2005/invoicer/internal/server/repositories/invoices"
	"github.com/dmitrijs2005/invoicer/internal/server/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

var secret = []byte("test-secret")

// memStore is an in-memory InvoiceStore with request-id deduplication.
type memStore struct {
	mu      sync.Mutex
	data    map[string]map[string]*models.Invoice
	applied map[string]bool
	next    int
	err     error
}

func newMemStore() *memStore {
	return &memStore{data: map[string]map[string]*models.Invoice{}, applied: map[string]bool{}}
}

func (m *memStore) seen(userID, requestID string) bool {
	if requestID == "" {
		return false
	}
	k := userID + "/" + requestID
	if m.applied[k] {
		return true
	}
	m.applied[k] = true
	return false
}

func (m *memStore) List(_ context.Context, userID string) ([]*models.Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	var out []*models.Invoice
	for _, inv := range m.data[userID] {
		out = append(out, inv)
	}
	return out, nil
}

func (m *memStore) Get(_ context.Context, userID, id string) (*models.Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.data[userID][id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return inv, nil
}

func (m *memStore) Create(_ context.Context, userID, requestID string, doc json.RawMessage) (*models.Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var fields map[string]any
	if err := json.Unmarshal(doc, &fields); err != nil || fields == nil {
		return nil, common.ErrorInvalidPayload
	}
	if m.seen(userID, requestID) {
		return nil, services.ErrAlreadyApplied
	}
	id, _ := fields["id"].(string)
	if id == "" {
		m.next++
		id = fmt.Sprintf("gen-%d", m.next)
		fields["id"] = id
	}
	if _, ok := m.data[userID][id]; ok {
		return nil, invoices.ErrAlreadyExists
	}
	b, _ := json.Marshal(fields)
	inv := &models.Invoice{ID: id, UserID: userID, Document: b}
	if m.data[userID] == nil {
		m.data[userID] = map[string]*models.Invoice{}
	}
	m.data[userID][id] = inv
	return inv, nil
}

func (m *memStore) Update(_ context.Context, userID, requestID, id string, doc json.RawMessage) (*models.Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.seen(userID, requestID) {
		return nil, services.ErrAlreadyApplied
	}
	if _, ok := m.data[userID][id]; !ok {
		return nil, common.ErrorNotFound
	}
	inv := &models.Invoice{ID: id, UserID: userID, Document: doc}
	m.data[userID][id] = inv
	return inv, nil
}

func (m *memStore) Delete(_ context.Context, userID, requestID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.seen(userID, requestID) {
		return services.ErrAlreadyApplied
	}
	if _, ok := m.data[userID][id]; !ok {
		return common.ErrorNotFound
	}
	delete(m.data[userID], id)
	return nil
}

func newTestServer(t *testing.T, store InvoiceStore, opts ...Option) *httptest.Server {
	t.Helper()
	h, err := NewRouter(store, secret, nil, opts...)
	require.NoError(t, err)
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func token(t *testing.T, userID string) string {
	t.Helper()
	tok, err := auth.GenerateToken(userID, secret, time.Hour)
	require.NoError(t, err)
	return tok
}

func do(t *testing.T, srv *httptest.Server, method, path, tok, requestID, body string) (*http.Response, string) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, srv.URL+path, r)
	require.NoError(t, err)
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	if requestID != "" {
		req.Header.Set(HeaderRequestID, requestID)
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(b)
}

func TestHealthz_NoAuth(t *testing.T) {
	srv := newTestServer(t, newMemStore())

	resp, body := do(t, srv, http.MethodGet, "/healthz", "", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, body)
}

func TestAuth(t *testing.T) {
	srv := newTestServer(t, newMemStore())

	expired, err := auth.GenerateToken("u1", secret, -time.Minute)
	require.NoError(t, err)
	forged, err := auth.GenerateToken("u1", []byte("other"), time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name string
		tok  string
		want string
	}{
		{name: "missing", tok: "", want: "unauthorized"},
		{name: "expired", tok: expired, want: "token expired"},
		{name: "forged", tok: forged, want: "invalid token"},
		{name: "garbage", tok: "abc", want: "invalid token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := do(t, srv, http.MethodGet, "/api/invoices", tt.tok, "", "")
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
			assert.JSONEq(t, `{"error":"`+tt.want+`"}`, body)
		})
	}
}

func TestInvoiceLifecycle(t *testing.T) {
	srv := newTestServer(t, newMemStore())
	tok := token(t, "u1")

	resp, body := do(t, srv, http.MethodPost, "/api/invoices", tok, "r1", `{"id":"inv-1","total":10}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "/api/invoices/inv-1", resp.Header.Get("Location"))
	assert.JSONEq(t, `{"id":"inv-1","total":10}`, body)

	resp, body = do(t, srv, http.MethodGet, "/api/invoices/inv-1", tok, "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"id":"inv-1","total":10}`, body)

	resp, _ = do(t, srv, http.MethodPut, "/api/invoices/inv-1", tok, "r2", `{"id":"inv-1","total":20}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = do(t, srv, http.MethodGet, "/api/invoices", tok, "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `[{"id":"inv-1","total":20}]`, body)

	resp, body = do(t, srv, http.MethodGet, "/api/invoices", token(t, "u2"), "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `[]`, body)

	resp, _ = do(t, srv, http.MethodDelete, "/api/invoices/inv-1", tok, "r3", "")
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = do(t, srv, http.MethodGet, "/api/invoices/inv-1", tok, "", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestReplayedWriteIsAcknowledged(t *testing.T) {
	store := newMemStore()
	srv := newTestServer(t, store)
	tok := token(t, "u1")

	resp, _ := do(t, srv, http.MethodPost, "/api/invoices", tok, "r1", `{"number":"A-1"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := do(t, srv, http.MethodPost, "/api/invoices", tok, "r1", `{"number":"A-1"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, body)

	list, err := store.List(context.Background(), "u1")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestErrorMapping(t *testing.T) {
	store := newMemStore()
	srv := newTestServer(t, store)
	tok := token(t, "u1")

	resp, _ := do(t, srv, http.MethodPost, "/api/invoices", tok, "", `{broken`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = do(t, srv, http.MethodPost, "/api/invoices", tok, "", `[1]`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = do(t, srv, http.MethodPut, "/api/invoices/nope", tok, "", `{}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = do(t, srv, http.MethodPost, "/api/invoices", tok, "", `{"id":"dup"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp, _ = do(t, srv, http.MethodPost, "/api/invoices", tok, "", `{"id":"dup"}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, _ = do(t, srv, http.MethodPost, "/api/invoices", tok, "", `{"blob":"`+strings.Repeat("x", maxBodySize)+`"}`)
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)

	store.err = errors.New("db is down")
	resp, body := do(t, srv, http.MethodGet, "/api/invoices", tok, "", "")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.JSONEq(t, `{"error":"internal error"}`, body)
}

func TestRequestMetrics(t *testing.T) {
	ctx := context.Background()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(ctx) })

	srv := newTestServer(t, newMemStore(), WithMeter(mp.Meter("test")))
	do(t, srv, http.MethodGet, "/healthz", "", "", "")
	do(t, srv, http.MethodGet, "/api/invoices/x", token(t, "u1"), "", "")

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	require.Len(t, rm.ScopeMetrics, 1)

	m := rm.ScopeMetrics[0].Metrics[0]
	assert.Equal(t, "invoicer.http.requests", m.Name)

	routes := map[string]int64{}
	for _, dp := range m.Data.(metricdata.Sum[int64]).DataPoints {
		route, _ := dp.Attributes.Value("http.route")
		status, _ := dp.Attributes.Value("http.response.status_code")
		routes[route.AsString()+" "+status.AsString()] += dp.Value
	}
	assert.Equal(t, map[string]int64{
		"/healthz 200":           1,
		"/api/invoices/{id} 404": 1,
	}, routes)
}
