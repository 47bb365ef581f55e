// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package resolve

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/magicai-labs/trial-linker/internal/ctgov"
	"github.com/magicai-labs/trial-linker/internal/pubchem"
	"github.com/magicai-labs/trial-linker/pkg/types"
)

// Engine runs the fallback chain: strategies in fixed priority order,
// stopping at the first non-empty result. Order reflects confidence, not
// completeness; once an earlier strategy succeeds, later ones are never
// consulted.
type Engine struct {
	strategies []Strategy
	failFast   bool
}

// NewEngine builds the chain from explicit strategies. Used directly by
// tests; production callers go through NewDefaultEngine.
func NewEngine(strategies []Strategy, failFast bool) *Engine {
	return &Engine{strategies: strategies, failFast: failFast}
}

// Clients bundles the upstream clients the default chain needs.
type Clients struct {
	PugView *pubchem.PugViewClient
	SDQ     *pubchem.SDQClient
	Page    *pubchem.PageClient
	PubChem *pubchem.Client
	CTGov   *ctgov.Client
}

// NewDefaultEngine wires the production chain: primary, heading, web
// endpoint, HTML fallback, then the optional term-link fallback when
// enabled. The chain order never varies between runs.
func NewDefaultEngine(clients Clients, cfg types.ResolveConfig) *Engine {
	strategies := []Strategy{
		&PrimaryStrategy{PugView: clients.PugView},
		&HeadingStrategy{PugView: clients.PugView},
		&WebEndpointStrategy{SDQ: clients.SDQ, Limit: cfg.SDQLimit},
		&HTMLFallbackStrategy{Page: clients.Page},
	}
	if cfg.EnableTermLink {
		strategies = append(strategies, &TermLinkStrategy{
			PubChem: clients.PubChem,
			CTGov:   clients.CTGov,
			Config:  cfg.Linker,
		})
	}
	return NewEngine(strategies, cfg.FailFast)
}

// Resolve maps one compound to trial identifiers with provenance. A
// strategy error does not abort the chain: it is recorded and the next
// strategy runs. The returned record carries the joined errors only when
// the whole chain came up empty, so a clean empty result (source NONE, no
// error) stays distinguishable from a degraded one.
//
// In fail-fast mode the first strategy error is returned immediately.
func (e *Engine) Resolve(ctx context.Context, cid int) (types.LinkRecord, error) {
	var errs []string

	for _, s := range e.strategies {
		ids, err := s.Resolve(ctx, cid)
		if err != nil {
			if e.failFast {
				return types.LinkRecord{CID: cid, Source: types.SourceNone},
					fmt.Errorf("resolving CID %d via %s: %w", cid, s.Source(), err)
			}
			errs = append(errs, fmt.Sprintf("%s:%v", s.Source(), err))
			continue
		}
		if len(ids) > 0 {
			sort.Strings(ids)
			return types.LinkRecord{
				CID:    cid,
				NCTIDs: ids,
				NNCT:   len(ids),
				Source: s.Source(),
			}, nil
		}
	}

	rec := types.LinkRecord{CID: cid, NCTIDs: []string{}, Source: types.SourceNone}
	if len(errs) > 0 {
		rec.Error = strings.Join(errs, "|")
	}
	return rec, nil
}
