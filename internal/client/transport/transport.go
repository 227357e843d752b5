// Package transport delivers queued writes to the remote invoicing API.
//
// Deliver separates two kinds of failure. A non-2xx response is returned
// as a Result with OK() == false: the server saw the request and refused
// it. A returned error means the request never completed (DNS, refused
// connection, timeout, cancelled context); such errors wrap ErrUnavailable.
package transport

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/invoicer/internal/client/models"
)

var ErrUnavailable = errors.New("server unavailable")

// Result is the server's answer to a delivered request.
type Result struct {
	StatusCode int
}

// OK reports whether the status is 2xx.
func (r *Result) OK() bool {
	return r != nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// Transport is what the synchronizer and the offline service need from the
// network.
type Transport interface {
	Deliver(ctx context.Context, req *models.PendingRequest) (*Result, error)
	Ping(ctx context.Context) error
}
