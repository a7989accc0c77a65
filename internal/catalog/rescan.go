package catalog

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/five82/dovetail/internal/logging"
)

// Rescanner asks the library server to rescan after files changed.
type Rescanner interface {
	RequestRescan(ctx context.Context) error
}

// LogRescanner only records that a rescan is warranted.
type LogRescanner struct {
	Log *logging.Logger
}

// RequestRescan implements Rescanner.
func (r LogRescanner) RequestRescan(context.Context) error {
	r.Log.Info("Library contents changed; rescan requested")
	return nil
}

// HTTPRescanner posts to a Jellyfin/Emby style /Library/Refresh endpoint.
type HTTPRescanner struct {
	baseURL    string
	token      string
	client     *http.Client
	maxRetries uint64
	log        *logging.Logger
}

// HTTPOption configures an HTTPRescanner.
type HTTPOption func(*HTTPRescanner)

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(r *HTTPRescanner) { r.client = c }
}

// WithMaxRetries bounds retries after the first attempt.
func WithMaxRetries(n uint64) HTTPOption {
	return func(r *HTTPRescanner) { r.maxRetries = n }
}

// WithRescanLogger sets the logger.
func WithRescanLogger(l *logging.Logger) HTTPOption {
	return func(r *HTTPRescanner) { r.log = l }
}

// NewHTTPRescanner creates a rescanner for the server at baseURL.
func NewHTTPRescanner(baseURL, token string, opts ...HTTPOption) *HTTPRescanner {
	r := &HTTPRescanner{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		client:     &http.Client{Timeout: 30 * time.Second},
		maxRetries: 3,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RequestRescan implements Rescanner. 5xx responses and transport errors are
// retried with exponential backoff; 4xx responses fail at once.
func (r *HTTPRescanner) RequestRescan(ctx context.Context) error {
	url := r.baseURL + "/Library/Refresh"

	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		if r.token != "" {
			req.Header.Set("X-Emby-Token", r.token)
		}

		resp, err := r.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return err
		}
		resp.Body.Close()

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return nil
		case resp.StatusCode >= 500:
			return fmt.Errorf("rescan request to %s: %s", url, resp.Status)
		default:
			return backoff.Permanent(fmt.Errorf("rescan request to %s: %s", url, resp.Status))
		}
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	policy := backoff.WithContext(backoff.WithMaxRetries(b, r.maxRetries), ctx)

	notify := func(err error, wait time.Duration) {
		r.log.Debug("rescan attempt failed: %v; retrying in %s", err, wait)
	}
	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		return err
	}
	r.log.Info("Requested library rescan at %s", r.baseURL)
	return nil
}
