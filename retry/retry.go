/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package retry provides an http.RoundTripper that retries transient
// failures with exponential backoff. Wrapping the HTTP client rather
// than individual call sites lets one policy cover every API the tool
// talks to (model providers, GitHub).
package retry

import (
	"crypto/rand"
	"errors"
	"io"
	"math/big"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/chainguard-dev/clog"
)

// Config controls retry behavior for HTTP calls.
type Config struct {
	// MaxRetries is the maximum number of retries after the initial
	// attempt (default: 5). 0 means do not retry at all.
	MaxRetries int
	// InitialDelay is the backoff before the first retry (default: 500ms).
	InitialDelay time.Duration
	// MaxDelay caps the exponential backoff (default: 30s).
	MaxDelay time.Duration
	// MaxJitter is the maximum random jitter added to each backoff
	// (default: 500ms).
	MaxJitter time.Duration
}

// Validate checks that the retry configuration has valid values.
func (c Config) Validate() error {
	if c.MaxRetries < 0 {
		return errors.New("max retries cannot be negative")
	}
	if c.InitialDelay < 0 {
		return errors.New("initial delay cannot be negative")
	}
	if c.MaxDelay < 0 {
		return errors.New("max delay cannot be negative")
	}
	if c.MaxJitter < 0 {
		return errors.New("max jitter cannot be negative")
	}
	return nil
}

// DefaultConfig returns the retry policy used for provider and GitHub
// API calls.
func DefaultConfig() Config {
	return Config{
		MaxRetries:   5,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     30 * time.Second,
		MaxJitter:    500 * time.Millisecond,
	}
}

// retryableStatus reports whether an HTTP status is worth retrying:
// rate limits and transient server errors. 529 is the non-standard
// "overloaded" status some providers return.
func retryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		529:
		return true
	}
	return false
}

// Transport is an http.RoundTripper that retries transient outcomes.
// Once retries are exhausted the last response or error is returned
// as-is, so callers inspect the final outcome exactly as they would
// without retries in the way.
type Transport struct {
	base http.RoundTripper
	cfg  Config
}

// NewTransport wraps base with the given retry policy. A nil base uses
// http.DefaultTransport.
func NewTransport(cfg Config, base http.RoundTripper) (*Transport, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if base == nil {
		base = http.DefaultTransport
	}
	return &Transport{base: base, cfg: cfg}, nil
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	log := clog.FromContext(ctx)

	// A request whose body cannot be replayed gets exactly one attempt.
	replayable := req.Body == nil || req.GetBody != nil

	delay := t.cfg.InitialDelay
	var resp *http.Response
	var err error
	for attempt := 0; ; attempt++ {
		attemptReq := req
		if attempt > 0 {
			if attemptReq, err = rewind(req); err != nil {
				return resp, err
			}
		}

		resp, err = t.base.RoundTrip(attemptReq)

		retryable := false
		if err != nil {
			retryable = retryableError(err)
		} else if retryableStatus(resp.StatusCode) {
			retryable = true
		}
		if !retryable || !replayable || attempt >= t.cfg.MaxRetries {
			return resp, err
		}

		wait := delay
		log = log.With("method", req.Method, "host", req.URL.Host,
			"attempt", attempt+1, "max_retries", t.cfg.MaxRetries)
		if err != nil {
			log = log.With("error", err.Error())
		} else {
			log = log.With("status", resp.StatusCode)
			// A rate-limited response may name its own delay.
			if resp.StatusCode == http.StatusTooManyRequests {
				if ra, ok := retryAfter(resp.Header); ok {
					wait = ra
				}
			}
			drain(resp)
		}
		wait += randomJitter(t.cfg.MaxJitter)

		log.With("backoff", wait).Warn("Transient failure, retrying")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}

		delay = min(delay*2, t.cfg.MaxDelay)
	}
}

// rewind clones req with a fresh body so it can be re-sent.
func rewind(req *http.Request) (*http.Request, error) {
	clone := req.Clone(req.Context())
	if req.Body == nil {
		return clone, nil
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, err
	}
	clone.Body = body
	return clone, nil
}

// retryableError reports whether a transport error is transient:
// timeouts and connection failures.
func retryableError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}
	return false
}

// retryAfter parses an integer-seconds Retry-After header.
func retryAfter(h http.Header) (time.Duration, bool) {
	v := h.Get("Retry-After")
	if v == "" {
		return 0, false
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return 0, false
	}
	return time.Duration(secs) * time.Second, true
}

// drain consumes and closes a response body so the underlying
// connection can be reused by the next attempt.
func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}

// randomJitter returns a random duration in [0, max) to spread out
// concurrent retries.
func randomJitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		return 0
	}
	return time.Duration(n.Int64())
}
