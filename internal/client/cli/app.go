package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/dmitrijs2005/invoicer/internal/client/config"
	"github.com/dmitrijs2005/invoicer/internal/client/connectivity"
	"github.com/dmitrijs2005/invoicer/internal/client/repositories/drafts"
	"github.com/dmitrijs2005/invoicer/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/invoicer/internal/client/repositories/pending"
	"github.com/dmitrijs2005/invoicer/internal/client/services"
	"github.com/dmitrijs2005/invoicer/internal/client/store"
	"github.com/dmitrijs2005/invoicer/internal/client/syncer"
	"github.com/dmitrijs2005/invoicer/internal/client/transport"
	"github.com/dmitrijs2005/invoicer/internal/filex"
	"github.com/dmitrijs2005/invoicer/internal/logging"
	"go.opentelemetry.io/otel/metric"
)

type App struct {
	config  *config.Config
	service services.OfflineService
	watcher *connectivity.Watcher
	logger  logging.Logger
	out     io.Writer
	in      io.Reader
	closers []io.Closer
}

// NewApp builds the client from configuration: the local store, the HTTP
// transport, the synchronizer and the offline service on top of them.
// Nothing touches the database until the first command needs it.
func NewApp(c *config.Config, logger logging.Logger, meter metric.Meter) (*App, error) {
	if logger == nil {
		logger = logging.Nop()
	}

	if c.DBPath != ":memory:" && !strings.HasPrefix(c.DBPath, "file:") {
		if _, err := filex.EnsureParentDir(c.DBPath); err != nil {
			return nil, err
		}
	}
	st := store.New(store.FileDSN(c.DBPath), logger)

	tr, err := transport.NewHTTPTransport(c.ServerURL, c.AccessToken, c.RequestTimeout)
	if err != nil {
		return nil, err
	}

	queue := pending.NewSQLiteRepository(st)
	meta := metadata.NewSQLiteRepository(st)

	opts := []syncer.Option{syncer.WithMaxRetries(c.MaxRetries), syncer.WithMetadata(meta)}
	if meter != nil {
		opts = append(opts, syncer.WithMeter(meter))
	}
	sy, err := syncer.New(queue, tr, logger, opts...)
	if err != nil {
		return nil, err
	}

	svc := services.NewOfflineService(services.Deps{
		Drafts:    drafts.NewSQLiteRepository(st),
		Queue:     queue,
		Meta:      meta,
		Syncer:    sy,
		Transport: tr,
		Clearer:   st,
		Logger:    logger,

		MaxRetries: c.MaxRetries,
	})

	a := newApp(c, svc, logger, os.Stdin, os.Stdout)
	a.watcher = connectivity.NewWatcher(tr, c.OnlineCheckInterval, logger, a.autoSync)
	a.closers = append(a.closers, st)
	return a, nil
}

func newApp(c *config.Config, svc services.OfflineService, logger logging.Logger, in io.Reader, out io.Writer) *App {
	if logger == nil {
		logger = logging.Nop()
	}
	return &App{config: c, service: svc, logger: logger, in: in, out: out}
}

// Run starts the connectivity watcher and the REPL. It returns when the user
// exits, input ends or ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	if a.watcher != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.watcher.Run(ctx)
		}()
	}

	fmt.Fprintln(a.out, "Welcome to invoicer CLI (type 'help' for commands)")
	runREPL(ctx, a, a.prompt, bufio.NewScanner(a.in))

	cancel()
	wg.Wait()
	return a.Close()
}

func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c.Close())
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *App) mode() connectivity.Mode {
	if a.watcher == nil {
		return connectivity.ModeOffline
	}
	return a.watcher.Mode()
}

// prompt returns the REPL prompt, or "" when input is not a terminal.
func (a *App) prompt() string {
	if !isInteractive(a.in) {
		return ""
	}
	return fmt.Sprintf("invoicer (%s)> ", a.mode())
}

// autoSync runs when the watcher sees the server come back online.
func (a *App) autoSync(ctx context.Context) {
	n, err := a.service.SyncPendingRequests(ctx)
	if err != nil {
		a.logger.Error(ctx, "automatic sync failed", "error", err)
	}
	if n > 0 {
		a.logger.Info(ctx, "automatic sync delivered requests", "synced", n)
	}
}
