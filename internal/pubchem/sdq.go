// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pubchem

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/magicai-labs/trial-linker/internal/httputil"
	"github.com/magicai-labs/trial-linker/pkg/types"
)

// SDQ collections naming the trial-registry surfaces PubChem indexes.
const (
	CollectionClinicalTrials = "clinicaltrials"
	CollectionEURegister     = "clinicaltrials_eu"
	CollectionJapanNIPH      = "clinicaltrials_jp"
)

// CollectionLabels maps collection codes to display names.
var CollectionLabels = map[string]string{
	CollectionClinicalTrials: "ClinicalTrials.gov",
	CollectionEURegister:     "EU Clinical Trials Register",
	CollectionJapanNIPH:      "NIPH Clinical Trials Search of Japan",
}

// TrialCollections lists the registry collections in query order.
var TrialCollections = []string{
	CollectionClinicalTrials,
	CollectionEURegister,
	CollectionJapanNIPH,
}

const defaultSDQBaseURL = "https://pubchem.ncbi.nlm.nih.gov"

// SDQClient queries the PubChem SDQ web search endpoint, the same backend
// the compound pages use for their trial tables.
type SDQClient struct {
	// BaseURL is the PubChem web root. Tests substitute an httptest server.
	BaseURL string

	transport
}

// NewSDQClient returns an SDQClient with the production endpoint.
func NewSDQClient(cfg types.HTTPConfig, limiter *httputil.Limiter) *SDQClient {
	return &SDQClient{
		BaseURL: defaultSDQBaseURL,
		transport: transport{
			HTTP:      &http.Client{Timeout: cfg.Timeout},
			UserAgent: cfg.UserAgent,
			Limiter:   limiter,
		},
	}
}

// sdqQuery is the JSON query object the sphinxql endpoint expects.
type sdqQuery struct {
	Select       string   `json:"select"`
	Collection   string   `json:"collection"`
	Order        []string `json:"order"`
	Start        int      `json:"start"`
	Limit        int      `json:"limit"`
	NullAtBottom int      `json:"nullatbottom"`
	Where        sdqWhere `json:"where"`
	Width        int      `json:"width"`
}

type sdqWhere struct {
	Ands []map[string]string `json:"ands"`
}

// collectionOrder returns the sort key each collection's index understands.
func collectionOrder(collection string) []string {
	switch collection {
	case CollectionEURegister, CollectionJapanNIPH:
		return []string{"date,desc"}
	default:
		return []string{"updatedate,desc"}
	}
}

// Query runs a by-CID lookup against one registry collection and returns
// the decoded payload. Rows live under SDQOutputSet[0].rows; ExtractRows
// pulls them out.
func (c *SDQClient) Query(ctx context.Context, cid int, collection string, limit int) (map[string]any, error) {
	if limit <= 0 {
		limit = 200
	}

	q := sdqQuery{
		Select:       "*",
		Collection:   collection,
		Order:        collectionOrder(collection),
		Start:        1,
		Limit:        limit,
		NullAtBottom: 1,
		Where:        sdqWhere{Ands: []map[string]string{{"cid": fmt.Sprintf("%d", cid)}}},
		Width:        1000000,
	}
	queryJSON, err := json.Marshal(q)
	if err != nil {
		return nil, fmt.Errorf("pubchem: encoding SDQ query: %w", err)
	}

	params := url.Values{
		"infmt":  {"json"},
		"outfmt": {"json"},
		"query":  {string(queryJSON)},
	}
	reqURL := c.BaseURL + "/sdq/sphinxql.cgi?" + params.Encode()

	var payload map[string]any
	if err := c.getJSON(ctx, reqURL, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// ExtractRows returns the row objects of the first SDQ output set, or nil
// when the payload carries none.
func ExtractRows(payload map[string]any) []map[string]any {
	outputSet, ok := payload["SDQOutputSet"].([]any)
	if !ok || len(outputSet) == 0 {
		return nil
	}
	first, ok := outputSet[0].(map[string]any)
	if !ok {
		return nil
	}
	rawRows, ok := first["rows"].([]any)
	if !ok {
		return nil
	}

	var rows []map[string]any
	for _, r := range rawRows {
		if m, ok := r.(map[string]any); ok {
			rows = append(rows, m)
		}
	}
	return rows
}
