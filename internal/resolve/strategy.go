// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package resolve

import (
	"context"

	"github.com/magicai-labs/trial-linker/internal/pubchem"
	"github.com/magicai-labs/trial-linker/pkg/types"
)

// Strategy resolves one compound against one upstream surface. An empty
// result with a nil error means the surface legitimately has no data;
// transport and parse failures must surface as errors.
type Strategy interface {
	Source() types.Source
	Resolve(ctx context.Context, cid int) ([]string, error)
}

// PrimaryStrategy scans the default PUG-View annotation payload. Fast and
// most authoritative, but frequently empty: some upstream records carry
// trial references only via an external indirection table.
type PrimaryStrategy struct {
	PugView *pubchem.PugViewClient
}

func (s *PrimaryStrategy) Source() types.Source { return types.SourcePrimary }

func (s *PrimaryStrategy) Resolve(ctx context.Context, cid int) ([]string, error) {
	payload, err := s.PugView.CompoundRecord(ctx, cid)
	if err != nil {
		return nil, err
	}
	return NCTIDsFromPayload(payload), nil
}

// HeadingStrategy re-queries PUG-View scoped to clinical-trials headings.
// It refetches the default payload to derive the candidate heading set,
// then queries every heading. The default payload showing no trial signal
// is not a reason to skip: the whole point of the re-query is that the
// default payload can omit the section entirely. Individual heading
// failures are skipped as long as at least one heading query succeeds.
type HeadingStrategy struct {
	PugView *pubchem.PugViewClient
}

func (s *HeadingStrategy) Source() types.Source { return types.SourceHeading }

func (s *HeadingStrategy) Resolve(ctx context.Context, cid int) ([]string, error) {
	var headings []string
	payload, err := s.PugView.CompoundRecord(ctx, cid)
	if err != nil {
		// The fixed heading set still gives the re-query a chance.
		headings = CandidateHeadings(nil)
	} else {
		headings = CandidateHeadings(payload)
	}

	ids := make(map[string]bool)
	var lastErr error
	failures := 0
	for _, heading := range headings {
		sectionPayload, qErr := s.PugView.CompoundRecordByHeading(ctx, cid, heading)
		if qErr != nil {
			lastErr = qErr
			failures++
			continue
		}
		for _, id := range NCTIDsFromPayload(sectionPayload) {
			ids[id] = true
		}
	}

	if len(ids) == 0 && failures == len(headings) && lastErr != nil {
		return nil, lastErr
	}
	return sortedKeys(ids), nil
}

// WebEndpointStrategy queries the SDQ web search endpoint per registry
// collection, in fixed order, returning the first collection with hits.
type WebEndpointStrategy struct {
	SDQ   *pubchem.SDQClient
	Limit int
}

func (s *WebEndpointStrategy) Source() types.Source { return types.SourceWebEndpoint }

func (s *WebEndpointStrategy) Resolve(ctx context.Context, cid int) ([]string, error) {
	var lastErr error
	failures := 0
	for _, collection := range pubchem.TrialCollections {
		payload, err := s.SDQ.Query(ctx, cid, collection, s.Limit)
		if err != nil {
			lastErr = err
			failures++
			continue
		}
		if ids := NCTIDsFromPayload(any(payload)); len(ids) > 0 {
			return ids, nil
		}
	}
	if failures == len(pubchem.TrialCollections) {
		return nil, lastErr
	}
	return nil, nil
}

// HTMLFallbackStrategy scans the public compound page. Least reliable of
// the compound-side strategies (markup drift), so it runs last among them.
type HTMLFallbackStrategy struct {
	Page *pubchem.PageClient
}

func (s *HTMLFallbackStrategy) Source() types.Source { return types.SourceHTMLFallback }

func (s *HTMLFallbackStrategy) Resolve(ctx context.Context, cid int) ([]string, error) {
	html, err := s.Page.CompoundPageHTML(ctx, cid)
	if err != nil {
		return nil, err
	}
	return NCTIDsFromHTML(html)
}
