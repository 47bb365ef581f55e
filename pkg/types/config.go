package types

import "time"

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "trial-linker/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// LinkerConfig holds settings for the optional term-link fallback, which
// searches the trial registry by compound name rather than following an
// explicit identifier. Name matching is ambiguous, so matches are scored
// and gated by MinScore.
type LinkerConfig struct {
	// MaxSynonyms caps how many PubChem synonyms are tried per compound.
	MaxSynonyms int `json:"max_synonyms" yaml:"max_synonyms"`

	// PageSize is the registry search page size per term.
	PageSize int `json:"page_size" yaml:"page_size"`

	// MaxPagesPerTerm caps pagination per search term.
	MaxPagesPerTerm int `json:"max_pages_per_term" yaml:"max_pages_per_term"`

	// MinScore is the minimum match score for a link to be accepted.
	MinScore int `json:"min_score" yaml:"min_score"`

	// MaxLinksPerCID caps accepted links per compound.
	MaxLinksPerCID int `json:"max_links_per_cid" yaml:"max_links_per_cid"`
}

// DefaultLinkerConfig returns the term-link defaults used when the
// fallback is enabled without explicit tuning.
func DefaultLinkerConfig() LinkerConfig {
	return LinkerConfig{
		MaxSynonyms:     12,
		PageSize:        50,
		MaxPagesPerTerm: 1,
		MinScore:        2,
		MaxLinksPerCID:  30,
	}
}

// ResolveConfig holds settings for the resolution engine.
type ResolveConfig struct {
	HTTPConfig `yaml:",inline"`

	// EnableTermLink turns on the registry-side term-link fallback
	// strategy. Off by default because it relies on name matching.
	EnableTermLink bool `json:"enable_term_link" yaml:"enable_term_link"`

	// SDQLimit is the row limit per web search endpoint query.
	SDQLimit int `json:"sdq_limit" yaml:"sdq_limit"`

	// FailFast aborts resolution on the first strategy error instead of
	// recording it and trying later strategies.
	FailFast bool `json:"fail_fast" yaml:"fail_fast"`

	// Linker tunes the term-link fallback when enabled.
	Linker LinkerConfig `json:"linker" yaml:"linker"`
}

// CollectConfig holds settings for the streaming collection pipeline.
type CollectConfig struct {
	// HNIDs are the PubChem classification node identifiers that seed the
	// compound list.
	HNIDs []int `json:"hnids" yaml:"hnids"`

	// OutDir is the output directory for the run's JSONL/CSV streams.
	OutDir string `json:"out_dir" yaml:"out_dir"`

	// StateDir holds the collection state database and snapshot history.
	// Defaults to OutDir when empty.
	StateDir string `json:"state_dir" yaml:"state_dir"`

	// LimitCIDs bounds the run to the first N compounds (0 = no limit).
	LimitCIDs int `json:"limit_cids" yaml:"limit_cids"`

	// LimitNCTs bounds document fetches per compound (0 = no limit).
	LimitNCTs int `json:"limit_ncts" yaml:"limit_ncts"`

	// Resume skips compounds already processed in a prior run.
	Resume bool `json:"resume" yaml:"resume"`

	// FailFast aborts the whole run on the first compound-level error.
	// Default is to record the error on the output row and continue.
	FailFast bool `json:"fail_fast" yaml:"fail_fast"`

	// IncludeCompoundProps also emits a compound property record
	// (InChIKey, SMILES, IUPAC name) per compound.
	IncludeCompoundProps bool `json:"include_compound_props" yaml:"include_compound_props"`

	// ShareTrialFetches fetches each trial document once per run and
	// shares it across compounds that map to the same trial. When false,
	// every (compound, trial) pair fetches independently.
	ShareTrialFetches bool `json:"share_trial_fetches" yaml:"share_trial_fetches"`

	// ProgressEvery reports progress after every N compounds (0 = quiet).
	ProgressEvery int `json:"progress_every" yaml:"progress_every"`

	// Delay is the politeness delay between upstream calls.
	Delay time.Duration `json:"delay" yaml:"delay"`

	// CTGovFields restricts the fields requested per study document.
	CTGovFields []string `json:"ctgov_fields" yaml:"ctgov_fields"`
}

// HistoryConfig holds settings for snapshot history updates.
type HistoryConfig struct {
	// StateDir is the base directory holding latest/, history/, and the
	// collection state file.
	StateDir string `json:"state_dir" yaml:"state_dir"`

	// RetentionDays prunes history snapshots older than this many days.
	// Negative disables pruning.
	RetentionDays int `json:"retention_days" yaml:"retention_days"`
}
