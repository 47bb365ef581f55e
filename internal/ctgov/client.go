// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ctgov wraps the ClinicalTrials.gov v2 API: single-study document
// fetches and paged study search.
package ctgov

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/magicai-labs/trial-linker/internal/httputil"
	"github.com/magicai-labs/trial-linker/pkg/types"
)

// StatusError reports a non-2xx response from the registry.
type StatusError struct {
	Status int
	URL    string
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("ctgov: HTTP %d for %s: %s", e.Status, e.URL, e.Body)
}

const (
	defaultBaseURL = "https://clinicaltrials.gov/api/v2"
	maxPageSize    = 1000
	bodySnippetLen = 500
)

// Client queries the ClinicalTrials.gov v2 API.
type Client struct {
	// BaseURL is the API root. Tests substitute an httptest server.
	BaseURL string

	HTTP       *http.Client
	UserAgent  string
	MaxRetries int
	Limiter    *httputil.Limiter
}

// NewClient returns a Client with the production endpoint.
func NewClient(cfg types.HTTPConfig, limiter *httputil.Limiter) *Client {
	return &Client{
		BaseURL:   defaultBaseURL,
		HTTP:      &http.Client{Timeout: cfg.Timeout},
		UserAgent: cfg.UserAgent,
		Limiter:   limiter,
	}
}

// Study fetches the full study document for an NCT identifier. A non-empty
// fields list restricts the response to those fields.
func (c *Client) Study(ctx context.Context, nctID string, fields []string) (map[string]any, error) {
	params := url.Values{}
	if f := normalizeFields(fields); f != "" {
		params.Set("fields", f)
	}

	reqURL := c.BaseURL + "/studies/" + url.PathEscape(nctID)
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	var doc map[string]any
	if err := c.getJSON(ctx, reqURL, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// SearchQuery holds the study search parameters. Intervention and Term map
// to query.intr and query.term respectively.
type SearchQuery struct {
	Intervention string
	Term         string
	Fields       []string
	PageSize     int
	PageToken    string
}

// SearchPage is one page of search results.
type SearchPage struct {
	Studies       []map[string]any `json:"studies"`
	NextPageToken string           `json:"nextPageToken"`
}

// SearchStudies runs one search request and returns the page.
func (c *Client) SearchStudies(ctx context.Context, q SearchQuery) (SearchPage, error) {
	pageSize := q.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	params := url.Values{"pageSize": {fmt.Sprintf("%d", pageSize)}}
	if q.Intervention != "" {
		params.Set("query.intr", q.Intervention)
	}
	if q.Term != "" {
		params.Set("query.term", q.Term)
	}
	if f := normalizeFields(q.Fields); f != "" {
		params.Set("fields", f)
	}
	if q.PageToken != "" {
		params.Set("pageToken", q.PageToken)
	}

	reqURL := c.BaseURL + "/studies?" + params.Encode()

	var page SearchPage
	if err := c.getJSON(ctx, reqURL, &page); err != nil {
		return SearchPage{}, err
	}
	return page, nil
}

// IterStudies pages through search results, calling fn per study until the
// results are exhausted, maxPages is reached, or fn returns false.
func (c *Client) IterStudies(ctx context.Context, q SearchQuery, maxPages int, fn func(map[string]any) bool) error {
	pages := 0
	for {
		page, err := c.SearchStudies(ctx, q)
		if err != nil {
			return err
		}
		for _, s := range page.Studies {
			if !fn(s) {
				return nil
			}
		}

		pages++
		if page.NextPageToken == "" {
			return nil
		}
		if maxPages > 0 && pages >= maxPages {
			return nil
		}
		q.PageToken = page.NextPageToken
	}
}

// NCTID pulls the registry identifier out of a study document.
func NCTID(doc map[string]any) string {
	ps, _ := doc["protocolSection"].(map[string]any)
	ident, _ := ps["identificationModule"].(map[string]any)
	nct, _ := ident["nctId"].(string)
	return strings.TrimSpace(nct)
}

func normalizeFields(fields []string) string {
	seen := make(map[string]bool)
	var out []string
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return strings.Join(out, ",")
}

func (c *Client) getJSON(ctx context.Context, reqURL string, out any) error {
	if err := c.Limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("ctgov: creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.UserAgent)

	resp, err := httputil.DoWithRetry(ctx, c.HTTP, req, c.MaxRetries)
	if err != nil {
		return fmt.Errorf("ctgov: request to %s: %w", reqURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("ctgov: reading response from %s: %w", reqURL, err)
	}

	if resp.StatusCode != http.StatusOK {
		snippet := body
		if len(snippet) > bodySnippetLen {
			snippet = snippet[:bodySnippetLen]
		}
		return &StatusError{Status: resp.StatusCode, URL: reqURL, Body: string(snippet)}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("ctgov: parsing response from %s: %w", reqURL, err)
	}
	return nil
}
