// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pubchem

import (
	"context"
	"fmt"
	"net/http"

	"github.com/magicai-labs/trial-linker/internal/httputil"
	"github.com/magicai-labs/trial-linker/pkg/types"
)

const defaultPageBaseURL = "https://pubchem.ncbi.nlm.nih.gov"

// PageClient fetches the public compound web page. Last resort on the
// compound side: markup drifts, so callers should only scan it when the
// structured surfaces came up empty.
type PageClient struct {
	// BaseURL is the PubChem web root. Tests substitute an httptest server.
	BaseURL string

	transport
}

// NewPageClient returns a PageClient with the production endpoint.
func NewPageClient(cfg types.HTTPConfig, limiter *httputil.Limiter) *PageClient {
	return &PageClient{
		BaseURL: defaultPageBaseURL,
		transport: transport{
			HTTP:      &http.Client{Timeout: cfg.Timeout},
			UserAgent: cfg.UserAgent,
			Limiter:   limiter,
		},
	}
}

// CompoundPageHTML fetches the compound page markup for a CID.
func (c *PageClient) CompoundPageHTML(ctx context.Context, cid int) (string, error) {
	reqURL := fmt.Sprintf("%s/compound/%d", c.BaseURL, cid)
	return c.getText(ctx, reqURL)
}
