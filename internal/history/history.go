// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package history maintains the persisted snapshot lineage: a "latest"
// snapshot overwritten on change, plus immutable time-stamped history
// records written only when consecutive runs actually differ.
package history

import (
	"bufio"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.yaml.in/yaml/v3"

	"github.com/magicai-labs/trial-linker/internal/ctgov"
	"github.com/magicai-labs/trial-linker/pkg/types"
)

const (
	latestDir   = "latest"
	historyDir  = "history"
	latestFile  = "studies.jsonl"
	stateFile   = "collection_state.json"
	snapshotFmt = "studies_%s.jsonl"
	diffFmt     = "diff_%s.yaml"

	// tsLayout stamps history records; safe for filenames.
	tsLayout = "20060102T150405Z"
)

// Snapshot is a materialized dataset keyed by (cid, nct_id). Values are
// the raw study rows as decoded from the JSONL stream.
type Snapshot map[string]map[string]any

// snapshotKey builds the (cid, nct_id) key for one row. Rows without a
// recognizable identifier get an empty key and are skipped by the loader.
func snapshotKey(row map[string]any) string {
	cid, ok := row["cid"].(float64)
	if !ok {
		return ""
	}
	nct := ctgov.NCTID(row)
	if nct == "" {
		return ""
	}
	return fmt.Sprintf("%d|%s", int(cid), nct)
}

// LoadSnapshot reads a JSONL snapshot into keyed form. A missing file is
// an empty snapshot, not an error: the first run diffs against nothing.
func LoadSnapshot(path string) (Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Snapshot{}, nil
		}
		return nil, fmt.Errorf("opening snapshot %s: %w", path, err)
	}
	defer f.Close()

	snap := Snapshot{}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var row map[string]any
		if err := json.Unmarshal([]byte(text), &row); err != nil {
			return nil, fmt.Errorf("parsing snapshot %s line %d: %w", path, line, err)
		}
		if key := snapshotKey(row); key != "" {
			snap[key] = row
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading snapshot %s: %w", path, err)
	}
	return snap, nil
}

// Diff compares two snapshots by key. A record counts as changed only
// when a tracked field of its compact projection differs; unrelated key
// reordering inside the raw document does not.
func Diff(previous, current Snapshot) types.DiffSummary {
	var d types.DiffSummary
	for key, row := range current {
		prevRow, ok := previous[key]
		if !ok {
			d.Added++
			continue
		}
		if !reflect.DeepEqual(ctgov.Compact(prevRow), ctgov.Compact(row)) {
			d.Changed++
		}
	}
	for key := range previous {
		if _, ok := current[key]; !ok {
			d.Removed++
		}
	}
	return d
}

// State is the on-disk bookkeeping record alongside the snapshots.
type State struct {
	SchemaVersion  int    `json:"schema_version"`
	LastCheckedAt  string `json:"last_checked_at"`
	LastChangedAt  string `json:"last_changed_at"`
	LatestChecksum string `json:"latest_checksum"`
	LatestRowCount int    `json:"latest_row_count"`
	HistoryCount   int    `json:"history_count"`
	LatestSnapshot string `json:"latest_snapshot"`
}

// diffRecord is the immutable per-change artifact written next to each
// history snapshot.
type diffRecord struct {
	RunID     string `yaml:"run_id"`
	Timestamp string `yaml:"timestamp"`
	Added     int    `yaml:"added"`
	Changed   int    `yaml:"changed"`
	Removed   int    `yaml:"removed"`
}

// Update diffs the newly collected snapshot against the persisted latest
// one. On change it atomically overwrites the latest snapshot, appends an
// immutable history record stamped with now, and prunes expired history.
// Without a change it only refreshes the last-checked timestamp.
func Update(currentPath string, cfg types.HistoryConfig, now time.Time) (types.DiffSummary, error) {
	latestPath := filepath.Join(cfg.StateDir, latestDir, latestFile)
	histDir := filepath.Join(cfg.StateDir, historyDir)
	statePath := filepath.Join(cfg.StateDir, stateFile)

	previous, err := LoadSnapshot(latestPath)
	if err != nil {
		return types.DiffSummary{}, err
	}
	current, err := LoadSnapshot(currentPath)
	if err != nil {
		return types.DiffSummary{}, err
	}

	summary := Diff(previous, current)
	now = now.UTC()
	ts := now.Format(tsLayout)

	st, err := readState(statePath)
	if err != nil {
		return types.DiffSummary{}, err
	}
	st.SchemaVersion = 1
	st.LastCheckedAt = now.Format(time.RFC3339)

	if !summary.HasChanges() {
		return summary, writeState(statePath, st)
	}

	if err := copyAtomic(currentPath, latestPath); err != nil {
		return types.DiffSummary{}, err
	}

	if err := os.MkdirAll(histDir, 0o755); err != nil {
		return types.DiffSummary{}, fmt.Errorf("creating history directory: %w", err)
	}
	snapshotPath := filepath.Join(histDir, fmt.Sprintf(snapshotFmt, ts))
	if err := copyAtomic(currentPath, snapshotPath); err != nil {
		return types.DiffSummary{}, err
	}

	rec := diffRecord{
		RunID:     uuid.NewString(),
		Timestamp: now.Format(time.RFC3339),
		Added:     summary.Added,
		Changed:   summary.Changed,
		Removed:   summary.Removed,
	}
	recData, err := yaml.Marshal(rec)
	if err != nil {
		return types.DiffSummary{}, fmt.Errorf("marshaling diff record: %w", err)
	}
	diffPath := filepath.Join(histDir, fmt.Sprintf(diffFmt, ts))
	if err := os.WriteFile(diffPath, recData, 0o644); err != nil {
		return types.DiffSummary{}, fmt.Errorf("writing diff record: %w", err)
	}

	if err := pruneHistory(histDir, now, cfg.RetentionDays); err != nil {
		return types.DiffSummary{}, err
	}

	checksum, rows, err := fileDigest(latestPath)
	if err != nil {
		return types.DiffSummary{}, err
	}
	st.LastChangedAt = now.Format(time.RFC3339)
	st.LatestChecksum = checksum
	st.LatestRowCount = rows
	st.LatestSnapshot = snapshotPath
	st.HistoryCount, err = countSnapshots(histDir)
	if err != nil {
		return types.DiffSummary{}, err
	}

	return summary, writeState(statePath, st)
}

// LatestPath returns the persisted latest snapshot location for a state dir.
func LatestPath(stateDir string) string {
	return filepath.Join(stateDir, latestDir, latestFile)
}

// StatePath returns the bookkeeping record location for a state dir.
func StatePath(stateDir string) string {
	return filepath.Join(stateDir, stateFile)
}

func readState(path string) (State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return State{}, nil
		}
		return State{}, fmt.Errorf("reading state file: %w", err)
	}
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return State{}, fmt.Errorf("parsing state file: %w", err)
	}
	return st, nil
}

func writeState(path string, st State) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling state: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

// copyAtomic copies src over dst via a temp file and rename, so readers
// never observe a partially written snapshot.
func copyAtomic(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", dst, err)
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening %s: %w", src, err)
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".snapshot-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	_, copyErr := io.Copy(tmp, in)
	closeErr := tmp.Close()
	if copyErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("copying snapshot: %w", copyErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", closeErr)
	}

	if err := os.Rename(tmpPath, dst); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

// pruneHistory deletes snapshot and diff records older than the retention
// window. Negative retention disables pruning.
func pruneHistory(histDir string, now time.Time, retentionDays int) error {
	if retentionDays < 0 {
		return nil
	}
	if retentionDays == 0 {
		// Zero would delete everything including the record written this
		// run; treat it as "keep forever" like a missing config value.
		return nil
	}
	cutoff := now.AddDate(0, 0, -retentionDays)

	entries, err := os.ReadDir(histDir)
	if err != nil {
		return fmt.Errorf("reading history directory: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ts, ok := parseRecordTimestamp(entry.Name())
		if !ok {
			continue
		}
		if ts.Before(cutoff) {
			if err := os.Remove(filepath.Join(histDir, entry.Name())); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("pruning %s: %w", entry.Name(), err)
			}
		}
	}
	return nil
}

// parseRecordTimestamp extracts the stamp from studies_<ts>.jsonl or
// diff_<ts>.yaml names.
func parseRecordTimestamp(name string) (time.Time, bool) {
	var token string
	switch {
	case strings.HasPrefix(name, "studies_") && strings.HasSuffix(name, ".jsonl"):
		token = strings.TrimSuffix(strings.TrimPrefix(name, "studies_"), ".jsonl")
	case strings.HasPrefix(name, "diff_") && strings.HasSuffix(name, ".yaml"):
		token = strings.TrimSuffix(strings.TrimPrefix(name, "diff_"), ".yaml")
	default:
		return time.Time{}, false
	}
	ts, err := time.Parse(tsLayout, token)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

func countSnapshots(histDir string) (int, error) {
	entries, err := os.ReadDir(histDir)
	if err != nil {
		return 0, fmt.Errorf("reading history directory: %w", err)
	}
	n := 0
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "studies_") && strings.HasSuffix(e.Name(), ".jsonl") {
			n++
		}
	}
	return n, nil
}

func fileDigest(path string) (checksum string, rows int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	scanner := bufio.NewScanner(io.TeeReader(f, h))
	scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)
	for scanner.Scan() {
		if strings.TrimSpace(scanner.Text()) != "" {
			rows++
		}
	}
	if err := scanner.Err(); err != nil {
		return "", 0, fmt.Errorf("reading %s: %w", path, err)
	}
	return fmt.Sprintf("%x", h.Sum(nil)), rows, nil
}
