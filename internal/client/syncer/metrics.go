package syncer

import (
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type instruments struct {
	delivered    metric.Int64Counter
	failed       metric.Int64Counter
	abandoned    metric.Int64Counter
	deferred     metric.Int64Counter
	passDuration metric.Float64Histogram
}

func newInstruments(m metric.Meter) (instruments, error) {
	var (
		i    instruments
		err  error
		errs []error
	)

	i.delivered, err = m.Int64Counter("invoicer.sync.delivered",
		metric.WithDescription("Pending requests accepted by the server."))
	errs = append(errs, err)

	i.failed, err = m.Int64Counter("invoicer.sync.failed",
		metric.WithDescription("Pending requests rejected by the server and kept for retry."))
	errs = append(errs, err)

	i.abandoned, err = m.Int64Counter("invoicer.sync.abandoned",
		metric.WithDescription("Pending requests dropped after exceeding the retry limit."))
	errs = append(errs, err)

	i.deferred, err = m.Int64Counter("invoicer.sync.deferred",
		metric.WithDescription("Pending requests that could not be sent and stay queued."))
	errs = append(errs, err)

	i.passDuration, err = m.Float64Histogram("invoicer.sync.pass.duration",
		metric.WithDescription("Duration of a sync pass."),
		metric.WithUnit("s"))
	errs = append(errs, err)

	return i, errors.Join(errs...)
}

func methodAttr(method string) attribute.KeyValue {
	return attribute.String("http.request.method", method)
}
