// Package retry implements the client's exponential-backoff-with-jitter
// retry policy for HTTP requests against the upload server: transient
// failures (5xx, 429, network errors) are retried up to MaxRetries times,
// honoring a Retry-After response header when present; other failures are
// returned immediately.
package retry

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Settings configures the retry policy.
type Settings struct {
	MaxRetries        int
	BaseDelay         time.Duration
	MaxDelay          time.Duration
	RespectRetryAfter bool
}

// DefaultSettings matches the policy the server expects well-behaved
// clients to use.
var DefaultSettings = Settings{
	MaxRetries:        5,
	BaseDelay:         200 * time.Millisecond,
	MaxDelay:          5 * time.Second,
	RespectRetryAfter: true,
}

// RequestBuilder produces a fresh, unsent *http.Request for each attempt.
// A fresh request is required because http.Request bodies cannot be
// safely replayed once read.
type RequestBuilder func(ctx context.Context) (*http.Request, error)

// Client sends requests built by a RequestBuilder through an *http.Client,
// retrying transient failures per Settings.
type Client struct {
	http     *http.Client
	settings Settings
}

// New builds a Client around httpClient using settings.
func New(httpClient *http.Client, settings Settings) *Client {
	return &Client{http: httpClient, settings: settings}
}

// transientError marks a response or transport error as retryable; backoff
// inspects this wrapper to decide whether to give up.
type transientError struct {
	err error
}

func (t *transientError) Error() string { return t.err.Error() }
func (t *transientError) Unwrap() error { return t.err }

// Do executes build, retrying transient failures with exponential backoff
// and jitter up to c.settings.MaxRetries times. It returns the first
// response classified as non-transient, or the last error if every
// attempt failed.
func (c *Client) Do(ctx context.Context, build RequestBuilder) (*http.Response, error) {
	var resp *http.Response

	policy := backoff.WithMaxRetries(
		backoff.NewExponentialBackOff(
			backoff.WithInitialInterval(c.settings.BaseDelay),
			backoff.WithMaxInterval(c.settings.MaxDelay),
		),
		uint64(c.settings.MaxRetries),
	)
	policy = backoff.WithContext(policy, ctx)

	operation := func() error {
		req, err := build(ctx)
		if err != nil {
			return backoff.Permanent(err)
		}

		r, err := c.http.Do(req)
		if err != nil {
			if isTransientNetworkError(err) {
				return &transientError{err}
			}
			return backoff.Permanent(err)
		}

		if isTransientStatus(r.StatusCode) {
			wait := c.retryAfterDelay(r)
			drainAndClose(r)
			if wait > 0 {
				select {
				case <-time.After(wait):
				case <-ctx.Done():
					return backoff.Permanent(ctx.Err())
				}
			}
			return &transientError{fmt.Errorf("transient http status %d", r.StatusCode)}
		}

		resp = r
		return nil
	}

	if err := backoff.Retry(operation, policy); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) retryAfterDelay(r *http.Response) time.Duration {
	if !c.settings.RespectRetryAfter {
		return 0
	}
	header := r.Header.Get("Retry-After")
	if header == "" {
		return 0
	}
	seconds, err := strconv.Atoi(header)
	if err != nil {
		return 0
	}
	wait := time.Duration(seconds) * time.Second
	if wait > c.settings.MaxDelay {
		wait = c.settings.MaxDelay
	}
	return wait
}

func isTransientStatus(status int) bool {
	return status >= 500 || status == http.StatusTooManyRequests
}

// isTransientNetworkError reports whether err, returned by http.Client.Do
// itself (not a response status), should be retried. Context cancellation
// and deadline expiry are the caller's own decision to stop, not a
// transient condition; everything else from the transport (connection
// refused, DNS failure, TLS handshake failure, timeout) is retried.
func isTransientNetworkError(err error) bool {
	return ctxErr(err) == nil
}

func ctxErr(err error) error {
	if err == context.Canceled || err == context.DeadlineExceeded {
		return err
	}
	type unwrapper interface{ Unwrap() error }
	if u, ok := err.(unwrapper); ok {
		return ctxErr(u.Unwrap())
	}
	return nil
}

func drainAndClose(r *http.Response) {
	io.Copy(io.Discard, r.Body)
	r.Body.Close()
}
