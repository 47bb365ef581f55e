// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pubchem

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/magicai-labs/trial-linker/internal/httputil"
)

// transport carries the HTTP plumbing shared by the PubChem clients:
// retry-wrapped requests, User-Agent, and the politeness limiter.
type transport struct {
	HTTP       *http.Client
	UserAgent  string
	MaxRetries int
	Limiter    *httputil.Limiter
}

func (t transport) getJSON(ctx context.Context, reqURL string, out any) error {
	body, err := t.getText(ctx, reqURL)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(body), out); err != nil {
		return fmt.Errorf("pubchem: parsing response from %s: %w", reqURL, err)
	}
	return nil
}

func (t transport) getText(ctx context.Context, reqURL string) (string, error) {
	if err := t.Limiter.Wait(ctx); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", fmt.Errorf("pubchem: creating request: %w", err)
	}
	req.Header.Set("User-Agent", t.UserAgent)

	resp, err := httputil.DoWithRetry(ctx, t.HTTP, req, t.MaxRetries)
	if err != nil {
		return "", fmt.Errorf("pubchem: request to %s: %w", reqURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("pubchem: reading response from %s: %w", reqURL, err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", &StatusError{Status: resp.StatusCode, URL: reqURL, Body: snippet(body)}
	}
	return string(body), nil
}

func snippet(b []byte) string {
	if len(b) > bodySnippetLen {
		b = b[:bodySnippetLen]
	}
	return string(b)
}
