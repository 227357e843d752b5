// Package telemetry sets up the OpenTelemetry meter provider shared by the
// client and the server.
package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/invoicer/internal/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

const defaultExportInterval = 30 * time.Second

type Config struct {
	ServiceName    string
	ServiceVersion string
	// OTLPEndpoint is a host:port of an OTLP/gRPC collector. Empty disables
	// export.
	OTLPEndpoint   string
	ExportInterval time.Duration
}

// Telemetry owns the meter provider. With export disabled it hands out
// noop meters.
type Telemetry struct {
	provider metric.MeterProvider
	sdk      *sdkmetric.MeterProvider
}

// Setup builds the meter provider and installs it as the global one.
func Setup(ctx context.Context, cfg Config, logger logging.Logger) (*Telemetry, error) {
	if logger == nil {
		logger = logging.Nop()
	}
	if cfg.OTLPEndpoint == "" {
		logger.Debug(ctx, "metrics export disabled")
		t := &Telemetry{provider: noop.NewMeterProvider()}
		otel.SetMeterProvider(t.provider)
		return t, nil
	}

	exporter, err := otlpmetricgrpc.New(ctx,
		otlpmetricgrpc.WithEndpoint(cfg.OTLPEndpoint),
		otlpmetricgrpc.WithInsecure(),
		otlpmetricgrpc.WithTimeout(10*time.Second),
	)
	if err != nil {
		return nil, err
	}

	interval := cfg.ExportInterval
	if interval <= 0 {
		interval = defaultExportInterval
	}

	mp := NewMeterProvider(cfg, sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval)))
	otel.SetMeterProvider(mp)
	logger.Info(ctx, "metrics export enabled", "endpoint", cfg.OTLPEndpoint, "interval", interval.String())

	return &Telemetry{provider: mp, sdk: mp}, nil
}

// NewMeterProvider builds an SDK meter provider carrying the service
// resource and reading through r.
func NewMeterProvider(cfg Config, r sdkmetric.Reader) *sdkmetric.MeterProvider {
	return sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(r),
		sdkmetric.WithResource(serviceResource(cfg)),
	)
}

func serviceResource(cfg Config) *resource.Resource {
	attrs := []attribute.KeyValue{attribute.String("service.name", cfg.ServiceName)}
	if cfg.ServiceVersion != "" {
		attrs = append(attrs, attribute.String("service.version", cfg.ServiceVersion))
	}
	return resource.NewSchemaless(attrs...)
}

func (t *Telemetry) Meter(name string) metric.Meter {
	return t.provider.Meter(name)
}

// Shutdown flushes pending metrics. It is a no-op when export is disabled.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t.sdk == nil {
		return nil
	}
	if err := t.sdk.Shutdown(ctx); err != nil && !errors.Is(err, sdkmetric.ErrReaderShutdown) {
		return err
	}
	return nil
}
