// Package server wires the invoicing API: it opens PostgreSQL, applies the
// migrations, builds the HTTP router and serves it until the process is
// told to stop.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/invoicer/internal/logging"
	"github.com/dmitrijs2005/invoicer/internal/server/config"
	"github.com/dmitrijs2005/invoicer/internal/server/httpapi"
	"github.com/dmitrijs2005/invoicer/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/invoicer/internal/server/services"
	"github.com/dmitrijs2005/invoicer/internal/telemetry"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	config    *config.Config
	logger    logging.Logger
	handler   http.Handler
	db        *sql.DB
	telemetry *telemetry.Telemetry
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger, err := logging.NewProductionZap(logging.ParseLevel(c.LogLevel))
	if err != nil {
		return nil, fmt.Errorf("logger init error: %w", err)
	}

	tel, err := telemetry.Setup(ctx, telemetry.Config{
		ServiceName:  "invoicer-server",
		OTLPEndpoint: c.OTLPEndpoint,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("telemetry init error: %w", err)
	}

	db, err := repomanager.Open(ctx, c.DatabaseDSN)
	if err != nil {
		_ = tel.Shutdown(ctx)
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		_ = tel.Shutdown(ctx)
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	svc := services.NewInvoiceService(db, rm)
	handler, err := httpapi.NewRouter(svc, []byte(c.SecretKey), logger,
		httpapi.WithMeter(tel.Meter("github.com/dmitrijs2005/invoicer/internal/server/httpapi")))
	if err != nil {
		_ = db.Close()
		_ = tel.Shutdown(ctx)
		return nil, err
	}

	return &App{config: c, logger: logger, handler: handler, db: db, telemetry: tel}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// serve runs the HTTP server on ln until ctx is cancelled, then drains
// in-flight requests.
func (app *App) serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           app.handler,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	errc := make(chan error, 1)
	go func() {
		app.logger.Info(ctx, "http server listening", "addr", ln.Addr().String())
		errc <- srv.Serve(ln)
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	ln, err := net.Listen("tcp", app.config.EndpointAddrHTTP)
	if err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
		return
	}
	if err := app.serve(ctx, ln); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run serves until SIGINT, SIGTERM or SIGQUIT arrives or ctx is done, then
// releases the database and flushes telemetry.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	app.close(context.WithoutCancel(ctx))
	app.logger.Info(ctx, "app stopped")
}

func (app *App) close(ctx context.Context) {
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error(ctx, "close db", "error", err)
		}
	}
	if app.telemetry != nil {
		if err := app.telemetry.Shutdown(ctx); err != nil {
			app.logger.Error(ctx, "telemetry shutdown", "error", err)
		}
	}
	if z, ok := app.logger.(*logging.ZapLogger); ok {
		_ = z.Sync()
	}
}
