package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MaxRetries is how many failed deliveries a request may accumulate. A
// request whose RetryCount goes above it is abandoned.
const MaxRetries = 3

var (
	ErrInvalidMethod = errors.New("method must be one of POST, PUT, PATCH, DELETE")
	ErrInvalidURL    = errors.New("invalid request url")

	// ErrRetriesExhausted is returned for a request that may not be sent again.
	ErrRetriesExhausted = errors.New("retry limit exceeded")
)

// PendingRequest is a write the remote API has not confirmed yet.
type PendingRequest struct {
	ID     string
	URL    string
	Method string

	// Body is sent verbatim as the JSON request body; empty means no body.
	Body json.RawMessage

	EnqueuedAt time.Time

	// RetryCount counts failed deliveries. It only grows while the request
	// is queued.
	RetryCount int
}

// NewPendingRequest builds a request with a fresh UUID and a JSON body
// marshalled from body.
func NewPendingRequest[T any](method, target string, body T) (*PendingRequest, error) {
	m, err := NormalizeMethod(method)
	if err != nil {
		return nil, err
	}
	if err := ValidateURL(target); err != nil {
		return nil, err
	}
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request body: %w", err)
	}
	return &PendingRequest{
		ID:         uuid.NewString(),
		URL:        target,
		Method:     m,
		Body:       b,
		EnqueuedAt: time.Now().UTC(),
	}, nil
}

// DecodeBody unmarshals the request body into T.
func DecodeBody[T any](r *PendingRequest) (T, error) {
	var v T
	if err := json.Unmarshal(r.Body, &v); err != nil {
		return v, fmt.Errorf("unmarshal body of request %s: %w", r.ID, err)
	}
	return v, nil
}

// NormalizeMethod upper-cases method and checks that it is a write verb.
func NormalizeMethod(method string) (string, error) {
	m := strings.ToUpper(strings.TrimSpace(method))
	switch m {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return m, nil
	default:
		return "", fmt.Errorf("%w: got %q", ErrInvalidMethod, method)
	}
}

// ValidateURL accepts absolute http(s) URLs and server-relative paths.
func ValidateURL(target string) error {
	if strings.TrimSpace(target) == "" {
		return fmt.Errorf("%w: empty", ErrInvalidURL)
	}
	u, err := url.Parse(target)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	if u.IsAbs() && u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, u.Scheme)
	}
	if !u.IsAbs() && !strings.HasPrefix(u.Path, "/") {
		return fmt.Errorf("%w: relative url must start with /", ErrInvalidURL)
	}
	return nil
}

// Validate checks the fields a request needs before it can be queued.
func (r *PendingRequest) Validate() error {
	if r.ID == "" {
		return ErrEmptyID
	}
	if _, err := NormalizeMethod(r.Method); err != nil {
		return err
	}
	return ValidateURL(r.URL)
}

// Exhausted reports whether the request has used up its retry budget.
func (r *PendingRequest) Exhausted(maxRetries int) bool {
	return r.RetryCount > maxRetries
}
