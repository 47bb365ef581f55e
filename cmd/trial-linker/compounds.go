// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/magicai-labs/trial-linker/pkg/types"
)

var compoundsCmd = &cobra.Command{
	Use:   "compounds [cids...]",
	Short: "Fetch compound properties for CIDs",
	Long: `Compounds fetches basic chemical properties (InChIKey, SMILES, IUPAC name)
for PubChem compound identifiers and writes one JSON row per compound to
stdout. Failures are recorded on the row rather than aborting the batch.`,
	RunE: runCompounds,
}

var lookupCmd = &cobra.Command{
	Use:   "lookup [names...]",
	Short: "Resolve compound names to CIDs",
	RunE:  runLookup,
}

func init() {
	compoundsCmd.Flags().Int("synonyms", 0, "also list up to N synonyms per compound")

	rootCmd.AddCommand(compoundsCmd)
	rootCmd.AddCommand(lookupCmd)
}

func runCompounds(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("provide one or more compound CIDs")
	}
	maxSynonyms, _ := cmd.Flags().GetInt("synonyms")

	clients := buildClients(httpConfig(cmd), requestDelay(cmd))
	enc := json.NewEncoder(os.Stdout)
	failures := 0

	for _, arg := range args {
		cid, err := strconv.Atoi(arg)
		if err != nil {
			return fmt.Errorf("invalid CID %q: %w", arg, err)
		}

		props, err := clients.PubChem.CompoundProperties(cmd.Context(), cid)
		if err != nil {
			failures++
			if encErr := enc.Encode(types.CompoundRecord{CID: cid, Error: err.Error()}); encErr != nil {
				return encErr
			}
			continue
		}

		row := map[string]any{
			"cid":              cid,
			"inchikey":         props.InChIKey,
			"canonical_smiles": props.CanonicalSMILES,
			"iupac_name":       props.IUPACName,
		}
		if maxSynonyms > 0 {
			synonyms, err := clients.PubChem.Synonyms(cmd.Context(), cid, maxSynonyms)
			if err != nil {
				row["error"] = err.Error()
				failures++
			} else {
				row["synonyms"] = synonyms
			}
		}
		if err := enc.Encode(row); err != nil {
			return err
		}
	}

	if failures > 0 {
		return fmt.Errorf("%d compound(s) failed", failures)
	}
	return nil
}

func runLookup(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("provide one or more compound names")
	}

	clients := buildClients(httpConfig(cmd), requestDelay(cmd))
	enc := json.NewEncoder(os.Stdout)

	for _, name := range args {
		cids, err := clients.PubChem.CIDsByName(cmd.Context(), name)
		if err != nil {
			return fmt.Errorf("looking up %q: %w", name, err)
		}
		if err := enc.Encode(map[string]any{"name": name, "cids": cids}); err != nil {
			return err
		}
	}
	return nil
}
