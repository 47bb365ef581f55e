// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/magicai-labs/trial-linker/internal/collect"
	"github.com/magicai-labs/trial-linker/internal/history"
	"github.com/magicai-labs/trial-linker/internal/resolve"
	"github.com/magicai-labs/trial-linker/internal/state"
	"github.com/magicai-labs/trial-linker/pkg/types"
)

var collectCmd = &cobra.Command{
	Use:   "collect [hnids...]",
	Short: "Run the full collection pipeline over classification nodes",
	Long: `Collect seeds a compound list from PubChem classification nodes (HNIDs),
resolves each compound's trial links, fetches the linked study documents,
and streams everything to the output directory. Progress is checkpointed
per compound; rerun with --resume to continue an interrupted run.

After collection the study snapshot is diffed against the previous run and
a history record is written when anything changed.`,
	RunE: runCollect,
}

func init() {
	collectCmd.Flags().String("out", "out", "output directory for the run's streams")
	collectCmd.Flags().String("state", "", "state directory (default: <out>/state)")
	collectCmd.Flags().Int("limit-cids", 0, "process only the first N compounds")
	collectCmd.Flags().Int("limit-ncts", 0, "fetch at most N study documents per compound")
	collectCmd.Flags().Bool("resume", false, "skip compounds processed in a prior run")
	collectCmd.Flags().Bool("reset", false, "clear the processed-compound checkpoint before running")
	collectCmd.Flags().Bool("fail-fast", false, "abort the run on the first compound error")
	collectCmd.Flags().Bool("no-props", false, "skip the compound property rows (InChIKey, SMILES, IUPAC name)")
	collectCmd.Flags().Bool("per-pair-fetch", false, "fetch each (compound, trial) pair independently instead of sharing trial fetches")
	collectCmd.Flags().Int("progress-every", 25, "report progress every N compounds (0 = quiet)")
	collectCmd.Flags().String("fields", "", "comma-separated registry fields to request per study")
	collectCmd.Flags().Bool("term-link", false, "also try registry search by compound name")
	collectCmd.Flags().Int("retention-days", 0, "prune history snapshots older than N days (0 = keep forever)")
	collectCmd.Flags().Bool("no-history", false, "skip the snapshot diff and history update")

	rootCmd.AddCommand(collectCmd)
}

func runCollect(cmd *cobra.Command, args []string) error {
	hnids, err := parseHNIDs(args)
	if err != nil {
		return err
	}

	cfg, err := collectConfig(cmd, hnids)
	if err != nil {
		return err
	}

	store, err := state.Open(cfg.StateDir)
	if err != nil {
		return err
	}
	defer store.Close()

	if reset, _ := cmd.Flags().GetBool("reset"); reset {
		if err := store.Reset(); err != nil {
			return err
		}
		fmt.Fprintln(os.Stderr, "checkpoint cleared")
	}

	if cfg.Resume {
		lastID, startedAt, _, ok, err := store.LastRun()
		if err != nil {
			return err
		}
		if ok {
			fmt.Fprintf(os.Stderr, "resuming after run %s (started %s)\n", lastID, startedAt.Format(time.RFC3339))
		}
	}

	rcfg := resolveConfig(cmd)
	clients := buildClients(rcfg.HTTPConfig, requestDelay(cmd))
	collector := &collect.Collector{
		PubChem:  clients.PubChem,
		CTGov:    clients.CTGov,
		Engine:   resolve.NewDefaultEngine(clients, rcfg),
		Store:    store,
		Config:   cfg,
		Observer: collect.LogObserver{Out: os.Stderr},
	}

	res, err := collector.Run(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "run %s: %d seeded, %d processed, %d skipped, %d linked, %d errors\n",
		res.RunID, res.Seeded, res.Processed, res.Skipped, res.Linked, res.LinkErrors)

	if noHistory, _ := cmd.Flags().GetBool("no-history"); noHistory {
		return nil
	}

	retention, _ := cmd.Flags().GetInt("retention-days")
	summary, err := history.Update(collect.StudiesPath(cfg.OutDir), types.HistoryConfig{
		StateDir:      cfg.StateDir,
		RetentionDays: retention,
	}, time.Now())
	if err != nil {
		return err
	}
	if summary.HasChanges() {
		fmt.Fprintf(os.Stderr, "snapshot updated: %d added, %d changed, %d removed\n",
			summary.Added, summary.Changed, summary.Removed)
	} else {
		fmt.Fprintln(os.Stderr, "snapshot unchanged")
	}
	return nil
}

func parseHNIDs(args []string) ([]int, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("provide one or more classification node HNIDs")
	}
	hnids := make([]int, 0, len(args))
	for _, arg := range args {
		n, err := strconv.Atoi(arg)
		if err != nil {
			return nil, fmt.Errorf("invalid HNID %q: %w", arg, err)
		}
		hnids = append(hnids, n)
	}
	return hnids, nil
}

func collectConfig(cmd *cobra.Command, hnids []int) (types.CollectConfig, error) {
	outDir, _ := cmd.Flags().GetString("out")
	stateDir, _ := cmd.Flags().GetString("state")
	if stateDir == "" {
		stateDir = filepath.Join(outDir, "state")
	}
	limitCIDs, _ := cmd.Flags().GetInt("limit-cids")
	limitNCTs, _ := cmd.Flags().GetInt("limit-ncts")
	resume, _ := cmd.Flags().GetBool("resume")
	failFast, _ := cmd.Flags().GetBool("fail-fast")
	noProps, _ := cmd.Flags().GetBool("no-props")
	perPair, _ := cmd.Flags().GetBool("per-pair-fetch")
	progressEvery, _ := cmd.Flags().GetInt("progress-every")
	fieldsFlag, _ := cmd.Flags().GetString("fields")

	var fields []string
	for _, f := range strings.Split(fieldsFlag, ",") {
		if f = strings.TrimSpace(f); f != "" {
			fields = append(fields, f)
		}
	}

	return types.CollectConfig{
		HNIDs:                hnids,
		OutDir:               outDir,
		StateDir:             stateDir,
		LimitCIDs:            limitCIDs,
		LimitNCTs:            limitNCTs,
		Resume:               resume,
		FailFast:             failFast,
		IncludeCompoundProps: !noProps,
		ShareTrialFetches:    !perPair,
		ProgressEvery:        progressEvery,
		Delay:                requestDelay(cmd),
		CTGovFields:          fields,
	}, nil
}
