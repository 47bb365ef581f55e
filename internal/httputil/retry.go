// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides HTTP helpers shared across stages.
package httputil

import (
	"context"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"
)

// RetryBaseDelay controls the base duration for exponential backoff on
// retryable HTTP responses. Tests override this to avoid real sleeps.
var RetryBaseDelay = 500 * time.Millisecond

const defaultMaxRetries = 5

// retryableStatus reports whether the upstream response warrants a retry.
// Covers rate limiting (429), request timeout (408), and transient
// unavailability (503, 504) from both PubChem and ClinicalTrials.gov.
func retryableStatus(code int) bool {
	switch code {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// DoWithRetry executes an HTTP request and retries on retryable status
// codes with exponential backoff. The delay starts at RetryBaseDelay and
// doubles each attempt. A Retry-After header, when present and parseable
// as seconds, overrides the computed backoff.
//
// When maxRetries is 0 the default (5) is used. On each retryable response
// the body is drained and closed before sleeping. If the context is
// cancelled during a backoff wait the function returns ctx.Err(). After
// exhausting retries the last response is returned so the caller can
// inspect it.
func DoWithRetry(ctx context.Context, client *http.Client, req *http.Request, maxRetries int) (*http.Response, error) {
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	for attempt := 0; ; attempt++ {
		resp, err := client.Do(req.Clone(ctx))
		if err != nil {
			return nil, err
		}

		if !retryableStatus(resp.StatusCode) {
			return resp, nil
		}

		// Exhausted retries: return the response as-is.
		if attempt >= maxRetries {
			return resp, nil
		}

		backoff := time.Duration(math.Pow(2, float64(attempt))) * RetryBaseDelay
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if secs, parseErr := strconv.ParseFloat(ra, 64); parseErr == nil && secs >= 0 {
				backoff = time.Duration(secs * float64(time.Second))
			}
		}

		// Drain and close the body before retrying.
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}
}
