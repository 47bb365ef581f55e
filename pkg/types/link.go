// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines the records shared across pipeline stages and the
// per-stage configuration structs.
package types

import "regexp"

// Source identifies the strategy that produced a compound's trial links.
// Exactly one source is recorded per compound: the first strategy in
// priority order that returned a non-empty result, or SourceNone.
type Source string

const (
	// SourcePrimary is the default PubChem PUG-View annotation payload.
	SourcePrimary Source = "PRIMARY"
	// SourceHeading is the heading-scoped PUG-View re-query.
	SourceHeading Source = "HEADING"
	// SourceWebEndpoint is the PubChem SDQ web search endpoint.
	SourceWebEndpoint Source = "WEB_ENDPOINT"
	// SourceHTMLFallback is the compound web page scan.
	SourceHTMLFallback Source = "HTML_FALLBACK"
	// SourceTermLink is the registry-side search by compound name.
	SourceTermLink Source = "TERM_LINK"
	// SourceNone means every strategy returned empty.
	SourceNone Source = "NONE"
)

// NCTPattern matches ClinicalTrials.gov registry identifiers.
var NCTPattern = regexp.MustCompile(`(?i)\bNCT\d{8}\b`)

// LinkRecord is one compound's resolution row: the trial identifiers it
// mapped to and the strategy that produced them. NCTIDs non-empty implies
// Source != SourceNone; Error set implies NCTIDs is empty.
type LinkRecord struct {
	CID    int      `json:"cid"`
	NCTIDs []string `json:"nct_ids"`
	NNCT   int      `json:"n_nct"`
	Source Source   `json:"source"`
	Error  string   `json:"error,omitempty"`
}

// CompoundRecord holds basic compound properties fetched alongside links.
type CompoundRecord struct {
	CID             int    `json:"cid"`
	InChIKey        string `json:"inchikey"`
	CanonicalSMILES string `json:"canonical_smiles"`
	IUPACName       string `json:"iupac_name"`
	Error           string `json:"error,omitempty"`
}

// SeedRecord maps a compound to the classification nodes it was seeded from.
type SeedRecord struct {
	CID         int   `json:"cid"`
	SourceHNIDs []int `json:"source_hnids"`
}

// StudyRecord is a fetched trial document annotated with the originating
// compound identifier for downstream joins. The document keeps the
// registry's raw JSON structure.
type StudyRecord struct {
	CID   int
	NCTID string
	Doc   map[string]any
	Error string
}

// DiffSummary reports a snapshot comparison: record counts per category.
type DiffSummary struct {
	Added   int `json:"added" yaml:"added"`
	Changed int `json:"changed" yaml:"changed"`
	Removed int `json:"removed" yaml:"removed"`
}

// HasChanges reports whether any record was added, changed, or removed.
func (d DiffSummary) HasChanges() bool {
	return d.Added > 0 || d.Changed > 0 || d.Removed > 0
}
