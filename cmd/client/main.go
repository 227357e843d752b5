package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dmitrijs2005/invoicer/internal/client/cli"
	"github.com/dmitrijs2005/invoicer/internal/client/config"
	"github.com/dmitrijs2005/invoicer/internal/logging"
	"github.com/dmitrijs2005/invoicer/internal/telemetry"
)

func main() {

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.LoadConfig()
	logger := logging.NewTextLogger(os.Stderr, logging.ParseLevel(cfg.LogLevel))

	tel, err := telemetry.Setup(ctx, telemetry.Config{ServiceName: "invoicer-client", OTLPEndpoint: cfg.OTLPEndpoint}, logger)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tel.Shutdown(sctx)
	}()

	app, err := cli.NewApp(cfg, logger, tel.Meter("github.com/dmitrijs2005/invoicer/internal/client/syncer"))
	if err != nil {
		log.Fatalf("%v", err)
	}

	if err := app.Run(ctx); err != nil {
		logger.Error(ctx, "shutdown error", "error", err)
	}

}
