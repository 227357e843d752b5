package cli

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/invoicer/internal/client/config"
	"github.com/dmitrijs2005/invoicer/internal/client/connectivity"
	"github.com/dmitrijs2005/invoicer/internal/client/models"
	"github.com/dmitrijs2005/invoicer/internal/client/repositories/drafts"
	"github.com/dmitrijs2005/invoicer/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/invoicer/internal/client/repositories/pending"
	"github.com/dmitrijs2005/invoicer/internal/client/services"
	"github.com/dmitrijs2005/invoicer/internal/client/store"
	"github.com/dmitrijs2005/invoicer/internal/client/syncer"
	"github.com/dmitrijs2005/invoicer/internal/client/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	*httptest.Server
	status atomic.Int32
	hits   atomic.Int32
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ts := &testServer{}
	ts.status.Store(http.StatusCreated)
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/healthz" {
			w.WriteHeader(http.StatusOK)
			return
		}
		ts.hits.Add(1)
		w.WriteHeader(int(ts.status.Load()))
	}))
	t.Cleanup(ts.Close)
	return ts
}

func newTestApp(t *testing.T, serverURL string) (*App, *bytes.Buffer) {
	t.Helper()
	st := store.New(":memory:", nil)
	t.Cleanup(func() { _ = st.Close() })

	tr, err := transport.NewHTTPTransport(serverURL, "", time.Second)
	require.NoError(t, err)

	queue := pending.NewSQLiteRepository(st)
	meta := metadata.NewSQLiteRepository(st)
	sy, err := syncer.New(queue, tr, nil, syncer.WithMetadata(meta))
	require.NoError(t, err)

	svc := services.NewOfflineService(services.Deps{
		Drafts:    drafts.NewSQLiteRepository(st),
		Queue:     queue,
		Meta:      meta,
		Syncer:    sy,
		Transport: tr,
		Clearer:   st,

		MaxRetries: models.MaxRetries,
	})

	var out bytes.Buffer
	a := newApp(&config.Config{}, svc, nil, strings.NewReader(""), &out)
	a.watcher = connectivity.NewWatcher(tr, time.Hour, nil, a.autoSync)
	return a, &out
}

func TestApp_DraftCommands(t *testing.T) {
	ts := newTestServer(t)
	a, out := newTestApp(t, ts.URL)
	ctx := context.Background()

	require.NoError(t, a.Drafts(ctx))
	assert.Contains(t, out.String(), "No drafts.")

	require.ErrorIs(t, a.Save(ctx, "d1", "{not json"), errInvalidJSON)
	require.NoError(t, a.Save(ctx, "d1", `{"number":"A-1"}`))
	require.NoError(t, a.Save(ctx, "d1", `{"number":"A-1","total":5}`))

	out.Reset()
	require.NoError(t, a.Draft(ctx, "d1"))
	assert.JSONEq(t, `{"number":"A-1","total":5}`, strings.TrimSpace(out.String()))

	out.Reset()
	require.NoError(t, a.Drafts(ctx))
	assert.Contains(t, out.String(), "d1")

	require.NoError(t, a.RemoveDraft(ctx, "d1"))
	require.NoError(t, a.RemoveDraft(ctx, "d1"))

	out.Reset()
	require.NoError(t, a.Draft(ctx, "d1"))
	assert.Contains(t, out.String(), "Draft d1 not found.")
}

func TestApp_QueueAndSync(t *testing.T) {
	ts := newTestServer(t)
	a, out := newTestApp(t, ts.URL)
	ctx := context.Background()

	require.NoError(t, a.Enqueue(ctx, "post", "/api/invoices", `{"number":"A-2"}`))
	require.NoError(t, a.Enqueue(ctx, "DELETE", "/api/invoices/7", ""))
	require.Error(t, a.Enqueue(ctx, "GET", "/api/invoices", ""))

	out.Reset()
	require.NoError(t, a.Queue(ctx))
	assert.Contains(t, out.String(), "POST")
	assert.Contains(t, out.String(), "/api/invoices/7")

	out.Reset()
	require.NoError(t, a.Sync(ctx))
	assert.Contains(t, out.String(), "Synced 2 request(s).")
	assert.Equal(t, int32(2), ts.hits.Load())

	out.Reset()
	require.NoError(t, a.Status(ctx))
	assert.Contains(t, out.String(), "pending:  0")
	assert.Contains(t, out.String(), "synced 2 of 2")
}

func TestApp_SubmitQueuesOnRejection(t *testing.T) {
	ts := newTestServer(t)
	ts.status.Store(http.StatusServiceUnavailable)
	a, out := newTestApp(t, ts.URL)
	ctx := context.Background()

	require.NoError(t, a.Submit(ctx, "d1", "POST", "/api/invoices", `{"number":"A-3"}`))
	assert.Contains(t, out.String(), "queued")

	out.Reset()
	require.NoError(t, a.Status(ctx))
	assert.Contains(t, out.String(), "drafts:   1")
	assert.Contains(t, out.String(), "pending:  1")
	assert.Contains(t, out.String(), "last sync: never")

	ts.status.Store(http.StatusCreated)
	out.Reset()
	require.NoError(t, a.Submit(ctx, "d2", "POST", "/api/invoices", `{"number":"A-4"}`))
	assert.Contains(t, out.String(), "delivered")
}

func TestApp_Clear(t *testing.T) {
	ts := newTestServer(t)
	a, out := newTestApp(t, ts.URL)
	ctx := context.Background()

	require.NoError(t, a.Save(ctx, "d1", `{}`))
	require.NoError(t, a.Enqueue(ctx, "POST", "/api/invoices", `{}`))
	require.NoError(t, a.Clear(ctx))

	out.Reset()
	require.NoError(t, a.Status(ctx))
	assert.Contains(t, out.String(), "drafts:   0")
	assert.Contains(t, out.String(), "pending:  0")
}

func TestApp_WatcherSyncsWhenServerComesBack(t *testing.T) {
	ts := newTestServer(t)
	a, _ := newTestApp(t, ts.URL)
	ctx := context.Background()

	require.NoError(t, a.Enqueue(ctx, "POST", "/api/invoices", `{"number":"A-5"}`))
	assert.Equal(t, connectivity.ModeOffline, a.mode())

	assert.Equal(t, connectivity.ModeOnline, a.watcher.Probe(ctx))
	assert.Equal(t, int32(1), ts.hits.Load())

	qs, err := a.service.ListPendingRequests(ctx)
	require.NoError(t, err)
	assert.Empty(t, qs)
}

func TestApp_PromptOnlyWhenInteractive(t *testing.T) {
	a, _ := newTestApp(t, "http://127.0.0.1:1")
	assert.Empty(t, a.prompt())
}

func TestApp_RunProcessesScript(t *testing.T) {
	ts := newTestServer(t)
	a, out := newTestApp(t, ts.URL)
	a.in = strings.NewReader("save d1 {\"number\": \"A-6\"}\ndrafts\nexit\n")

	origPrintln := printlnFn
	printlnFn = func(...any) (int, error) { return 0, nil }
	t.Cleanup(func() { printlnFn = origPrintln })

	require.NoError(t, a.Run(context.Background()))
	assert.Contains(t, out.String(), "Draft d1 saved.")
	assert.Contains(t, out.String(), "d1")
}

func TestNewApp_RejectsBadServerURL(t *testing.T) {
	_, err := NewApp(&config.Config{ServerURL: "ftp://nope", DBPath: ":memory:"}, nil, nil)
	require.Error(t, err)
}

func TestNewApp_CreatesDatabaseDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "state")
	a, err := NewApp(&config.Config{
		ServerURL:  "http://127.0.0.1:1",
		DBPath:     filepath.Join(dir, "invoicer.db"),
		MaxRetries: 3,
	}, nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	fi, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, fi.IsDir())
}
