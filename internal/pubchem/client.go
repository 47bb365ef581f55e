// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pubchem wraps the PubChem REST surfaces the pipeline consumes:
// PUG REST (properties, synonyms, name lookup, classification nodes),
// PUG-View annotations, the SDQ web search endpoint, and the public
// compound page. Clients are thin transports; payload interpretation
// lives with the callers.
package pubchem

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/magicai-labs/trial-linker/internal/httputil"
	"github.com/magicai-labs/trial-linker/pkg/types"
)

// StatusError reports a non-2xx response from a PubChem endpoint.
// Distinguishable from "legitimately no data", which is a nil error with
// an empty result.
type StatusError struct {
	Status int
	URL    string
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("pubchem: HTTP %d for %s: %s", e.Status, e.URL, e.Body)
}

const (
	defaultBaseURL               = "https://pubchem.ncbi.nlm.nih.gov/rest/pug"
	defaultClassificationBaseURL = "https://pubchem.ncbi.nlm.nih.gov/rest/pug/classification"
	bodySnippetLen               = 500
)

// Client queries the PUG REST API.
type Client struct {
	// BaseURL is the PUG REST root. Tests substitute an httptest server.
	BaseURL string
	// ClassificationBaseURL is the classification-node root.
	ClassificationBaseURL string

	transport
}

// NewClient returns a Client with production endpoints.
func NewClient(cfg types.HTTPConfig, limiter *httputil.Limiter) *Client {
	return &Client{
		BaseURL:               defaultBaseURL,
		ClassificationBaseURL: defaultClassificationBaseURL,
		transport: transport{
			HTTP:      &http.Client{Timeout: cfg.Timeout},
			UserAgent: cfg.UserAgent,
			Limiter:   limiter,
		},
	}
}

// Properties holds the compound property projection the pipeline records.
type Properties struct {
	InChIKey        string
	CanonicalSMILES string
	IUPACName       string
}

// PUG REST JSON structures.
type propertyResponse struct {
	PropertyTable struct {
		Properties []struct {
			CID                int    `json:"CID"`
			CanonicalSMILES    string `json:"CanonicalSMILES"`
			ConnectivitySMILES string `json:"ConnectivitySMILES"`
			InChIKey           string `json:"InChIKey"`
			IUPACName          string `json:"IUPACName"`
		} `json:"Properties"`
	} `json:"PropertyTable"`
}

type synonymsResponse struct {
	InformationList struct {
		Information []struct {
			CID     int      `json:"CID"`
			Synonym []string `json:"Synonym"`
		} `json:"Information"`
	} `json:"InformationList"`
}

type identifierListResponse struct {
	IdentifierList struct {
		CID []int `json:"CID"`
	} `json:"IdentifierList"`
}

// CompoundProperties fetches InChIKey, SMILES, and IUPAC name for a CID.
// Some CIDs return ConnectivitySMILES only; those are normalized into the
// CanonicalSMILES field.
func (c *Client) CompoundProperties(ctx context.Context, cid int) (Properties, error) {
	const props = "CanonicalSMILES,ConnectivitySMILES,InChIKey,IUPACName"
	reqURL := fmt.Sprintf("%s/compound/cid/%d/property/%s/JSON", c.BaseURL, cid, props)

	var pr propertyResponse
	if err := c.getJSON(ctx, reqURL, &pr); err != nil {
		return Properties{}, err
	}
	rows := pr.PropertyTable.Properties
	if len(rows) == 0 {
		return Properties{}, fmt.Errorf("pubchem: no properties for CID %d", cid)
	}
	row := rows[0]
	smiles := row.CanonicalSMILES
	if smiles == "" {
		smiles = row.ConnectivitySMILES
	}
	return Properties{
		InChIKey:        row.InChIKey,
		CanonicalSMILES: smiles,
		IUPACName:       row.IUPACName,
	}, nil
}

// Synonyms returns up to max distinct synonyms for a CID, in upstream order.
func (c *Client) Synonyms(ctx context.Context, cid, max int) ([]string, error) {
	reqURL := fmt.Sprintf("%s/compound/cid/%d/synonyms/JSON", c.BaseURL, cid)

	var sr synonymsResponse
	if err := c.getJSON(ctx, reqURL, &sr); err != nil {
		return nil, err
	}
	if len(sr.InformationList.Information) == 0 {
		return nil, nil
	}

	seen := make(map[string]bool)
	var out []string
	for _, s := range sr.InformationList.Information[0].Synonym {
		t := strings.TrimSpace(s)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
		if max > 0 && len(out) >= max {
			break
		}
	}
	return out, nil
}

// CIDsByName resolves a compound name to CIDs.
func (c *Client) CIDsByName(ctx context.Context, name string) ([]int, error) {
	reqURL := fmt.Sprintf("%s/compound/name/%s/cids/JSON", c.BaseURL, url.PathEscape(name))

	var ir identifierListResponse
	if err := c.getJSON(ctx, reqURL, &ir); err != nil {
		return nil, err
	}
	return ir.IdentifierList.CID, nil
}

// CIDsForNode returns the compound identifiers attached to a
// classification node (HNID), in upstream order. The TXT endpoint returns
// one CID per line.
func (c *Client) CIDsForNode(ctx context.Context, hnid int) ([]int, error) {
	reqURL := fmt.Sprintf("%s/hnid/%d/cids/TXT", c.ClassificationBaseURL, hnid)

	body, err := c.getText(ctx, reqURL)
	if err != nil {
		return nil, err
	}

	var cids []int
	for _, field := range strings.Fields(body) {
		n, convErr := strconv.Atoi(field)
		if convErr != nil {
			continue
		}
		cids = append(cids, n)
	}
	return cids, nil
}
