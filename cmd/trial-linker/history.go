// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/magicai-labs/trial-linker/internal/history"
	"github.com/magicai-labs/trial-linker/pkg/types"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect and update the study snapshot history",
}

var historyUpdateCmd = &cobra.Command{
	Use:   "update <studies.jsonl>",
	Short: "Diff a collected snapshot against the stored latest and record changes",
	Long: `Update compares a freshly collected study snapshot against the persisted
latest one. When records were added, changed, or removed, the latest
snapshot is replaced and an immutable history record is written; otherwise
only the last-checked timestamp moves.`,
	Args: cobra.ExactArgs(1),
	RunE: runHistoryUpdate,
}

var historyDiffCmd = &cobra.Command{
	Use:   "diff <previous.jsonl> <current.jsonl>",
	Short: "Compare two study snapshots without touching stored state",
	Args:  cobra.ExactArgs(2),
	RunE:  runHistoryDiff,
}

var historyStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the stored snapshot bookkeeping record",
	RunE:  runHistoryStatus,
}

func init() {
	historyCmd.PersistentFlags().String("state", "out/state", "state directory holding latest/ and history/")
	historyUpdateCmd.Flags().Int("retention-days", 0, "prune history snapshots older than N days (0 = keep forever)")
	historyUpdateCmd.Flags().String("changed-flag", "", "write true/false to this file depending on whether anything changed")

	historyCmd.AddCommand(historyUpdateCmd)
	historyCmd.AddCommand(historyDiffCmd)
	historyCmd.AddCommand(historyStatusCmd)
	rootCmd.AddCommand(historyCmd)
}

func runHistoryUpdate(cmd *cobra.Command, args []string) error {
	stateDir, _ := cmd.Flags().GetString("state")
	retention, _ := cmd.Flags().GetInt("retention-days")

	summary, err := history.Update(args[0], types.HistoryConfig{
		StateDir:      stateDir,
		RetentionDays: retention,
	}, time.Now())
	if err != nil {
		return err
	}

	if flagPath, _ := cmd.Flags().GetString("changed-flag"); flagPath != "" {
		if err := os.WriteFile(flagPath, []byte(fmt.Sprintf("%t\n", summary.HasChanges())), 0o644); err != nil {
			return fmt.Errorf("writing changed flag: %w", err)
		}
	}

	if !summary.HasChanges() {
		fmt.Println("snapshot unchanged")
		return nil
	}
	fmt.Printf("snapshot updated: %d added, %d changed, %d removed\n",
		summary.Added, summary.Changed, summary.Removed)
	return nil
}

func runHistoryDiff(cmd *cobra.Command, args []string) error {
	previous, err := history.LoadSnapshot(args[0])
	if err != nil {
		return err
	}
	current, err := history.LoadSnapshot(args[1])
	if err != nil {
		return err
	}

	summary := history.Diff(previous, current)
	return json.NewEncoder(os.Stdout).Encode(summary)
}

func runHistoryStatus(cmd *cobra.Command, args []string) error {
	stateDir, _ := cmd.Flags().GetString("state")

	data, err := os.ReadFile(history.StatePath(stateDir))
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Println("no snapshot state recorded yet")
			return nil
		}
		return err
	}
	_, err = os.Stdout.Write(data)
	return err
}
