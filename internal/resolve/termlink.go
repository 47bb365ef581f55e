// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package resolve

import (
	"context"
	"regexp"
	"strings"

	"github.com/magicai-labs/trial-linker/internal/ctgov"
	"github.com/magicai-labs/trial-linker/internal/pubchem"
	"github.com/magicai-labs/trial-linker/pkg/types"
)

// maxIUPACTermLen keeps unwieldy systematic names out of the search terms.
const maxIUPACTermLen = 40

// TermLinkStrategy searches the trial registry by compound name and
// synonyms. Unlike the compound-side strategies it follows no explicit
// identifier, so every candidate study is scored against the term and
// accepted only above a threshold. Off by default.
type TermLinkStrategy struct {
	PubChem *pubchem.Client
	CTGov   *ctgov.Client
	Config  types.LinkerConfig
}

func (s *TermLinkStrategy) Source() types.Source { return types.SourceTermLink }

func (s *TermLinkStrategy) Resolve(ctx context.Context, cid int) ([]string, error) {
	cfg := s.Config
	if cfg.MaxSynonyms <= 0 {
		cfg = types.DefaultLinkerConfig()
	}

	terms, err := s.searchTerms(ctx, cid, cfg)
	if err != nil {
		return nil, err
	}

	accepted := make(map[string]bool)
	for _, term := range terms {
		if err := s.linkTerm(ctx, term, cfg, accepted); err != nil {
			return nil, err
		}
		if len(accepted) >= cfg.MaxLinksPerCID {
			break
		}
	}
	return sortedKeys(accepted), nil
}

// searchTerms builds the ordered term list: IUPAC name first when short
// enough, then synonyms up to the cap.
func (s *TermLinkStrategy) searchTerms(ctx context.Context, cid int, cfg types.LinkerConfig) ([]string, error) {
	syns, err := s.PubChem.Synonyms(ctx, cid, cfg.MaxSynonyms)
	if err != nil {
		return nil, err
	}

	props, err := s.PubChem.CompoundProperties(ctx, cid)
	if err != nil {
		return nil, err
	}

	iupac := strings.TrimSpace(props.IUPACName)
	if iupac != "" && len(iupac) <= maxIUPACTermLen {
		present := false
		for _, syn := range syns {
			if syn == iupac {
				present = true
				break
			}
		}
		if !present {
			syns = append([]string{iupac}, syns...)
		}
	}
	return syns, nil
}

// linkTerm searches the registry by one term (intervention query first,
// then free-text) and records studies that score at or above MinScore.
func (s *TermLinkStrategy) linkTerm(ctx context.Context, term string, cfg types.LinkerConfig, accepted map[string]bool) error {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil
	}

	collect := func(doc map[string]any) bool {
		nct := ctgov.NCTID(doc)
		if nct == "" || accepted[nct] {
			return len(accepted) < cfg.MaxLinksPerCID
		}
		if scoreTerm(term, doc) >= cfg.MinScore {
			accepted[nct] = true
		}
		return len(accepted) < cfg.MaxLinksPerCID
	}

	for _, q := range []ctgov.SearchQuery{
		{Intervention: term, PageSize: cfg.PageSize},
		{Term: term, PageSize: cfg.PageSize},
	} {
		if err := s.CTGov.IterStudies(ctx, q, cfg.MaxPagesPerTerm, collect); err != nil {
			return err
		}
		if len(accepted) >= cfg.MaxLinksPerCID {
			return nil
		}
	}
	return nil
}

// scoreTerm rates how plausibly a study matches a compound term:
// substring presence in the study's core fields scores 2, a whole-word
// match adds 1.
func scoreTerm(term string, doc map[string]any) int {
	blob := studyTextBlob(doc)
	t := normText(term)
	if t == "" {
		return 0
	}

	score := 0
	if strings.Contains(blob, t) {
		score += 2
	}
	wholeWord := regexp.MustCompile(`(^|[^a-z0-9])` + regexp.QuoteMeta(t) + `([^a-z0-9]|$)`)
	if wholeWord.MatchString(blob) {
		score++
	}
	return score
}

// studyTextBlob flattens the fields relevant for matching: titles,
// status, conditions, and intervention names.
func studyTextBlob(doc map[string]any) string {
	cs := ctgov.Compact(doc)
	pieces := []string{
		cs.BriefTitle,
		cs.OfficialTitle,
		cs.OverallStatus,
		strings.Join(cs.Conditions, " "),
		strings.Join(cs.Interventions, " "),
	}
	return normText(strings.Join(pieces, " "))
}

var whitespacePattern = regexp.MustCompile(`\s+`)

func normText(s string) string {
	return strings.TrimSpace(whitespacePattern.ReplaceAllString(strings.ToLower(s), " "))
}
