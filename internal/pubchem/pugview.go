// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pubchem

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/magicai-labs/trial-linker/internal/httputil"
	"github.com/magicai-labs/trial-linker/pkg/types"
)

const defaultPugViewBaseURL = "https://pubchem.ncbi.nlm.nih.gov/rest/pug_view"

// PugViewClient queries the PUG-View annotation API. Payloads are returned
// as decoded JSON trees because annotation structure varies by compound;
// callers walk them for the identifiers they need.
type PugViewClient struct {
	// BaseURL is the PUG-View root. Tests substitute an httptest server.
	BaseURL string

	transport
}

// NewPugViewClient returns a PugViewClient with the production endpoint.
func NewPugViewClient(cfg types.HTTPConfig, limiter *httputil.Limiter) *PugViewClient {
	return &PugViewClient{
		BaseURL: defaultPugViewBaseURL,
		transport: transport{
			HTTP:      &http.Client{Timeout: cfg.Timeout},
			UserAgent: cfg.UserAgent,
			Limiter:   limiter,
		},
	}
}

// CompoundRecord fetches the default annotation payload for a CID.
func (c *PugViewClient) CompoundRecord(ctx context.Context, cid int) (any, error) {
	reqURL := fmt.Sprintf("%s/data/compound/%d/JSON/?response_type=display", c.BaseURL, cid)

	var payload any
	if err := c.getJSON(ctx, reqURL, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// CompoundRecordByHeading fetches the annotation payload scoped to one
// content heading. Slower than the default payload (extra request) but
// recovers sections the default payload omits.
func (c *PugViewClient) CompoundRecordByHeading(ctx context.Context, cid int, heading string) (any, error) {
	reqURL := fmt.Sprintf("%s/data/compound/%d/JSON/?heading=%s&response_type=display",
		c.BaseURL, cid, url.QueryEscape(heading))

	var payload any
	if err := c.getJSON(ctx, reqURL, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}
