package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrijs2005/invoicer/internal/client/models"
)

const (
	// HeaderRequestID carries the pending request id so the server can
	// recognise a replayed write.
	HeaderRequestID = "X-Request-ID"

	healthPath   = "/healthz"
	userAgent    = "invoicer-client"
	maxDrainSize = 64 << 10
)

// HTTPTransport sends pending requests with net/http.
type HTTPTransport struct {
	baseURL *url.URL
	token   string
	client  *http.Client
}

// NewHTTPTransport resolves relative request URLs against baseURL and, when
// token is set, authenticates with "Authorization: Bearer <token>". A zero
// timeout leaves requests unbounded.
func NewHTTPTransport(baseURL, token string, timeout time.Duration) (*HTTPTransport, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url must be http or https, got %q", baseURL)
	}
	return &HTTPTransport{
		baseURL: u,
		token:   token,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

func (t *HTTPTransport) resolve(target string) (string, error) {
	ref, err := url.Parse(target)
	if err != nil {
		return "", err
	}
	if ref.IsAbs() {
		return ref.String(), nil
	}
	u := *t.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + ref.Path
	u.RawQuery = ref.RawQuery
	return u.String(), nil
}

// Deliver issues req and reports the response status.
func (t *HTTPTransport) Deliver(ctx context.Context, req *models.PendingRequest) (*Result, error) {
	target, err := t.resolve(req.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrInvalidURL, err)
	}

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return nil, fmt.Errorf("build request %s: %w", req.ID, err)
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set(HeaderRequestID, req.ID)
	t.decorate(httpReq)

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainSize))

	return &Result{StatusCode: resp.StatusCode}, nil
}

// Ping checks that the API answers its health endpoint with 2xx.
func (t *HTTPTransport) Ping(ctx context.Context) error {
	target, _ := t.resolve(healthPath)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	t.decorate(httpReq)

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainSize))

	if !(&Result{StatusCode: resp.StatusCode}).OK() {
		return fmt.Errorf("%w: health check returned %s", ErrUnavailable, resp.Status)
	}
	return nil
}

func (t *HTTPTransport) decorate(r *http.Request) {
	r.Header.Set("User-Agent", userAgent)
	if t.token != "" {
		r.Header.Set("Authorization", "Bearer "+t.token)
	}
}
