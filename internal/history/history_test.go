// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package history

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magicai-labs/trial-linker/pkg/types"
)

func studyLine(cid int, nct, status string) string {
	return `{"cid": ` + strconv.Itoa(cid) + `, "protocolSection": {"identificationModule": {"nctId": "` + nct + `", "briefTitle": "Trial ` + nct + `"}, "statusModule": {"overallStatus": "` + status + `"}}}`
}

func writeSnapshotFile(t *testing.T, dir string, lines ...string) string {
	t.Helper()
	path := filepath.Join(dir, "studies.jsonl")
	content := ""
	for _, line := range lines {
		content += line + "\n"
	}
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadSnapshotMissingFile(t *testing.T) {
	snap, err := LoadSnapshot(filepath.Join(t.TempDir(), "absent.jsonl"))
	require.NoError(t, err)
	assert.Empty(t, snap)
}

func TestLoadSnapshotKeysByCIDAndNCT(t *testing.T) {
	dir := t.TempDir()
	path := writeSnapshotFile(t, dir,
		studyLine(2244, "NCT00001372", "COMPLETED"),
		studyLine(2244, "NCT01234567", "RECRUITING"),
		`{"note": "no identifiers, skipped"}`,
		"",
	)

	snap, err := LoadSnapshot(path)
	require.NoError(t, err)
	assert.Len(t, snap, 2)
	assert.Contains(t, snap, "2244|NCT00001372")
	assert.Contains(t, snap, "2244|NCT01234567")
}

func TestDiff(t *testing.T) {
	base := Snapshot{}
	for _, line := range []string{
		studyLine(2244, "NCT00001372", "COMPLETED"),
		studyLine(2244, "NCT01234567", "RECRUITING"),
	} {
		dir := t.TempDir()
		snap, err := LoadSnapshot(writeSnapshotFile(t, dir, line))
		require.NoError(t, err)
		for k, v := range snap {
			base[k] = v
		}
	}

	t.Run("identical snapshots have no changes", func(t *testing.T) {
		d := Diff(base, base)
		assert.False(t, d.HasChanges())
	})

	t.Run("status change is detected per record", func(t *testing.T) {
		dir := t.TempDir()
		curr, err := LoadSnapshot(writeSnapshotFile(t, dir,
			studyLine(2244, "NCT00001372", "COMPLETED"),
			studyLine(2244, "NCT01234567", "TERMINATED"),
		))
		require.NoError(t, err)
		d := Diff(base, curr)
		assert.Equal(t, types.DiffSummary{Changed: 1}, d)
	})

	t.Run("added and removed records", func(t *testing.T) {
		dir := t.TempDir()
		curr, err := LoadSnapshot(writeSnapshotFile(t, dir,
			studyLine(2244, "NCT00001372", "COMPLETED"),
			studyLine(5090, "NCT09999999", "RECRUITING"),
		))
		require.NoError(t, err)
		d := Diff(base, curr)
		assert.Equal(t, types.DiffSummary{Added: 1, Removed: 1}, d)
	})

	t.Run("untracked raw keys do not count as changes", func(t *testing.T) {
		dir := t.TempDir()
		curr, err := LoadSnapshot(writeSnapshotFile(t, dir,
			`{"cid": 2244, "extraTopLevel": "ignored", "protocolSection": {"identificationModule": {"nctId": "NCT00001372", "briefTitle": "Trial NCT00001372"}, "statusModule": {"overallStatus": "COMPLETED"}}}`,
			studyLine(2244, "NCT01234567", "RECRUITING"),
		))
		require.NoError(t, err)
		d := Diff(base, curr)
		assert.False(t, d.HasChanges())
	})
}

func TestUpdateFirstRunRecordsEverythingAsAdded(t *testing.T) {
	stateDir := t.TempDir()
	current := writeSnapshotFile(t, t.TempDir(), studyLine(2244, "NCT00001372", "COMPLETED"))

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	summary, err := Update(current, types.HistoryConfig{StateDir: stateDir}, now)
	require.NoError(t, err)
	assert.Equal(t, types.DiffSummary{Added: 1}, summary)

	latest, err := os.ReadFile(LatestPath(stateDir))
	require.NoError(t, err)
	want, err := os.ReadFile(current)
	require.NoError(t, err)
	assert.Equal(t, want, latest)

	histSnap := filepath.Join(stateDir, "history", "studies_20260301T120000Z.jsonl")
	assert.FileExists(t, histSnap)
	assert.FileExists(t, filepath.Join(stateDir, "history", "diff_20260301T120000Z.yaml"))

	st, err := readState(StatePath(stateDir))
	require.NoError(t, err)
	assert.Equal(t, 1, st.SchemaVersion)
	assert.Equal(t, 1, st.LatestRowCount)
	assert.Equal(t, 1, st.HistoryCount)
	assert.Equal(t, histSnap, st.LatestSnapshot)
	assert.NotEmpty(t, st.LatestChecksum)
	assert.Equal(t, now.Format(time.RFC3339), st.LastChangedAt)
}

func TestUpdateNoChangeWritesNoHistory(t *testing.T) {
	stateDir := t.TempDir()
	current := writeSnapshotFile(t, t.TempDir(), studyLine(2244, "NCT00001372", "COMPLETED"))

	first := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	_, err := Update(current, types.HistoryConfig{StateDir: stateDir}, first)
	require.NoError(t, err)

	second := first.Add(24 * time.Hour)
	summary, err := Update(current, types.HistoryConfig{StateDir: stateDir}, second)
	require.NoError(t, err)
	assert.False(t, summary.HasChanges())

	entries, err := os.ReadDir(filepath.Join(stateDir, "history"))
	require.NoError(t, err)
	assert.Len(t, entries, 2, "only the first run's snapshot and diff record")

	st, err := readState(StatePath(stateDir))
	require.NoError(t, err)
	assert.Equal(t, second.Format(time.RFC3339), st.LastCheckedAt)
	assert.Equal(t, first.Format(time.RFC3339), st.LastChangedAt)
	assert.Equal(t, 1, st.HistoryCount)
}

func TestUpdateChangeAppendsHistory(t *testing.T) {
	stateDir := t.TempDir()
	dir := t.TempDir()
	current := writeSnapshotFile(t, dir, studyLine(2244, "NCT00001372", "RECRUITING"))

	first := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	_, err := Update(current, types.HistoryConfig{StateDir: stateDir}, first)
	require.NoError(t, err)

	current = writeSnapshotFile(t, dir, studyLine(2244, "NCT00001372", "COMPLETED"))
	second := first.Add(24 * time.Hour)
	summary, err := Update(current, types.HistoryConfig{StateDir: stateDir}, second)
	require.NoError(t, err)
	assert.Equal(t, types.DiffSummary{Changed: 1}, summary)

	latest, err := os.ReadFile(LatestPath(stateDir))
	require.NoError(t, err)
	assert.Contains(t, string(latest), "COMPLETED")

	st, err := readState(StatePath(stateDir))
	require.NoError(t, err)
	assert.Equal(t, 2, st.HistoryCount)
	assert.Equal(t, second.Format(time.RFC3339), st.LastChangedAt)
}

func TestUpdatePrunesExpiredRecords(t *testing.T) {
	stateDir := t.TempDir()
	histDir := filepath.Join(stateDir, "history")
	require.NoError(t, os.MkdirAll(histDir, 0o755))

	stale := "20250101T000000Z"
	require.NoError(t, os.WriteFile(filepath.Join(histDir, "studies_"+stale+".jsonl"), []byte("{}\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(histDir, "diff_"+stale+".yaml"), []byte("added: 0\n"), 0o644))

	current := writeSnapshotFile(t, t.TempDir(), studyLine(2244, "NCT00001372", "COMPLETED"))
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	_, err := Update(current, types.HistoryConfig{StateDir: stateDir, RetentionDays: 30}, now)
	require.NoError(t, err)

	assert.NoFileExists(t, filepath.Join(histDir, "studies_"+stale+".jsonl"))
	assert.NoFileExists(t, filepath.Join(histDir, "diff_"+stale+".yaml"))
	assert.FileExists(t, filepath.Join(histDir, "studies_20260301T120000Z.jsonl"))

	st, err := readState(StatePath(stateDir))
	require.NoError(t, err)
	assert.Equal(t, 1, st.HistoryCount)
}

func TestParseRecordTimestamp(t *testing.T) {
	tests := []struct {
		name string
		ok   bool
	}{
		{"studies_20260301T120000Z.jsonl", true},
		{"diff_20260301T120000Z.yaml", true},
		{"studies_garbage.jsonl", false},
		{"notes.txt", false},
	}
	for _, tt := range tests {
		_, ok := parseRecordTimestamp(tt.name)
		if ok != tt.ok {
			t.Errorf("parseRecordTimestamp(%q) ok = %v, want %v", tt.name, ok, tt.ok)
		}
	}
}
