// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/magicai-labs/trial-linker/internal/resolve"
	"github.com/magicai-labs/trial-linker/pkg/types"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve [cids...]",
	Short: "Resolve compound CIDs to NCT identifiers",
	Long: `Resolve maps PubChem compound identifiers to ClinicalTrials.gov NCT IDs.
Each compound is tried against the annotation payload, heading-scoped
annotations, the web search endpoint, and the compound page, in that order;
the first surface with results wins. One JSON row per compound is written
to stdout with the identifiers and their source.`,
	RunE: runResolve,
}

func init() {
	resolveCmd.Flags().Bool("term-link", false, "also try registry search by compound name (scored, lower precision)")
	resolveCmd.Flags().Int("sdq-limit", 0, "row limit per web search endpoint query")
	resolveCmd.Flags().Bool("fail-fast", false, "abort on the first strategy error")
	resolveCmd.Flags().Int("min-score", 0, "minimum term-link match score (default 2)")
	resolveCmd.Flags().Int("max-synonyms", 0, "synonyms tried per compound for term-link (default 12)")

	rootCmd.AddCommand(resolveCmd)
}

func runResolve(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("provide one or more compound CIDs")
	}
	cids := make([]int, 0, len(args))
	for _, arg := range args {
		cid, err := strconv.Atoi(arg)
		if err != nil {
			return fmt.Errorf("invalid CID %q: %w", arg, err)
		}
		cids = append(cids, cid)
	}

	cfg := resolveConfig(cmd)
	engine := resolve.NewDefaultEngine(buildClients(cfg.HTTPConfig, requestDelay(cmd)), cfg)

	enc := json.NewEncoder(os.Stdout)
	failures := 0
	for _, cid := range cids {
		rec, err := engine.Resolve(cmd.Context(), cid)
		if err != nil {
			return err
		}
		if rec.Error != "" {
			failures++
		}
		if err := enc.Encode(rec); err != nil {
			return err
		}
	}
	if failures > 0 {
		return fmt.Errorf("%d compound(s) resolved with errors", failures)
	}
	return nil
}

func resolveConfig(cmd *cobra.Command) types.ResolveConfig {
	termLink, _ := cmd.Flags().GetBool("term-link")
	sdqLimit, _ := cmd.Flags().GetInt("sdq-limit")
	failFast, _ := cmd.Flags().GetBool("fail-fast")

	linker := types.DefaultLinkerConfig()
	if v, _ := cmd.Flags().GetInt("min-score"); v > 0 {
		linker.MinScore = v
	}
	if v, _ := cmd.Flags().GetInt("max-synonyms"); v > 0 {
		linker.MaxSynonyms = v
	}

	return types.ResolveConfig{
		HTTPConfig:     httpConfig(cmd),
		EnableTermLink: termLink,
		SDQLimit:       sdqLimit,
		FailFast:       failFast,
		Linker:         linker,
	}
}
