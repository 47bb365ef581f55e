// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package resolve maps compound identifiers to clinical-trial registry
// identifiers through an ordered chain of fallback strategies over the
// PubChem and ClinicalTrials.gov surfaces.
package resolve

import (
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/magicai-labs/trial-linker/pkg/types"
)

var (
	clinicalTrialsPattern = regexp.MustCompile(`(?i)clinical\s*trials?(\.gov)?`)
	drugMedInfoPattern    = regexp.MustCompile(`(?i)drug(?:\s|-|&|and)+medication(?:\s|-)+information`)
)

// defaultHeadings are annotation headings known to carry trial references.
// Payload-derived headings are added on top of these.
var defaultHeadings = []string{
	"ClinicalTrials.gov",
	"Clinical Trials",
	"ClinicalTrials",
	"Drug and Medication Information",
	"Drug-and-Medication-Information",
}

// walk visits every value in a decoded JSON tree.
func walk(v any, fn func(any)) {
	switch x := v.(type) {
	case map[string]any:
		for _, item := range x {
			fn(item)
			walk(item, fn)
		}
	case []any:
		for _, item := range x {
			fn(item)
			walk(item, fn)
		}
	}
}

// nctIDsFromText collects uppercased NCT identifiers from a string.
func nctIDsFromText(text string, into map[string]bool) {
	for _, m := range types.NCTPattern.FindAllString(text, -1) {
		into[strings.ToUpper(m)] = true
	}
}

// NCTIDsFromPayload scans a decoded JSON payload for NCT identifiers.
// Only strings that plausibly reference the registry are scanned, which
// keeps false positives out of unrelated annotation text.
func NCTIDsFromPayload(payload any) []string {
	ids := make(map[string]bool)
	scan := func(v any) {
		s, ok := v.(string)
		if !ok {
			return
		}
		lower := strings.ToLower(s)
		if strings.Contains(lower, "nct") || strings.Contains(lower, "clinicaltrials.gov") {
			nctIDsFromText(s, ids)
		}
	}
	scan(payload)
	walk(payload, scan)
	return sortedKeys(ids)
}

// HasExternalTrialsRef reports whether the payload references trial data
// through an external indirection table instead of inline identifiers.
// Those compounds need a heading-scoped re-query to surface the section.
func HasExternalTrialsRef(payload any) bool {
	found := false
	walk(payload, func(v any) {
		if found {
			return
		}
		m, ok := v.(map[string]any)
		if !ok {
			return
		}
		name, ok := m["ExternalTableName"].(string)
		if ok && clinicalTrialsPattern.MatchString(name) {
			found = true
		}
	})
	return found
}

// CandidateHeadings returns the annotation headings worth re-querying for
// a compound: the fixed defaults plus any heading-like field in the
// payload whose name looks clinical-trials related. Sorted for
// deterministic query order.
func CandidateHeadings(payload any) []string {
	set := make(map[string]bool, len(defaultHeadings))
	for _, h := range defaultHeadings {
		set[h] = true
	}

	headingKeys := []string{"TOCHeading", "Name", "Heading", "Title"}
	walk(payload, func(v any) {
		m, ok := v.(map[string]any)
		if !ok {
			return
		}
		for _, key := range headingKeys {
			val, ok := m[key].(string)
			if !ok {
				continue
			}
			if clinicalTrialsPattern.MatchString(val) || drugMedInfoPattern.MatchString(val) {
				set[strings.TrimSpace(val)] = true
			}
		}
	})
	return sortedKeys(set)
}

// NCTIDsFromHTML scans compound page markup for NCT identifiers: visible
// text plus element attributes, so identifiers embedded in links survive.
func NCTIDsFromHTML(html string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	ids := make(map[string]bool)
	nctIDsFromText(doc.Text(), ids)
	doc.Find("*").Each(func(_ int, sel *goquery.Selection) {
		for _, node := range sel.Nodes {
			for _, attr := range node.Attr {
				nctIDsFromText(attr.Val, ids)
			}
		}
	})
	return sortedKeys(ids), nil
}

func sortedKeys(set map[string]bool) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
