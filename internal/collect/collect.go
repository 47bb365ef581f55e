// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package collect drives the streaming collection pipeline: seed compounds
// from classification nodes, resolve each compound's trial links, fetch the
// linked study documents, and append everything to per-run output streams.
// Work is checkpointed per compound so an interrupted run can resume.
package collect

import (
	"context"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.yaml.in/yaml/v3"

	"github.com/magicai-labs/trial-linker/internal/ctgov"
	"github.com/magicai-labs/trial-linker/internal/pubchem"
	"github.com/magicai-labs/trial-linker/internal/resolve"
	"github.com/magicai-labs/trial-linker/internal/state"
	"github.com/magicai-labs/trial-linker/pkg/types"
)

// Collector wires the upstream clients, the resolution engine, and the run
// state store into one pipeline.
type Collector struct {
	PubChem  *pubchem.Client
	CTGov    *ctgov.Client
	Engine   *resolve.Engine
	Store    *state.Store
	Config   types.CollectConfig
	Observer Observer
}

// Result summarizes one pipeline run.
type Result struct {
	RunID          string `yaml:"run_id"`
	Seeded         int    `yaml:"seeded"`
	Processed      int    `yaml:"processed"`
	Skipped        int    `yaml:"skipped"`
	Linked         int    `yaml:"linked"`
	LinkErrors     int    `yaml:"link_errors"`
	StudiesWritten int    `yaml:"studies_written"`
	StudyErrors    int    `yaml:"study_errors"`
	OutDir         string `yaml:"out_dir"`
}

// manifest is the run.yaml record written at the end of each run.
type manifest struct {
	Result     `yaml:",inline"`
	StartedAt  string `yaml:"started_at"`
	FinishedAt string `yaml:"finished_at"`
	HNIDs      []int  `yaml:"hnids"`
	LimitCIDs  int    `yaml:"limit_cids,omitempty"`
	LimitNCTs  int    `yaml:"limit_ncts,omitempty"`
	Resume     bool   `yaml:"resume"`
}

// cachedStudy is one shared trial fetch outcome, reused across compounds
// that link to the same trial.
type cachedStudy struct {
	doc map[string]any
	err string
}

// Run executes the pipeline. With FailFast unset, compound-level failures
// are recorded on the output rows and the run continues; the returned
// Result counts them. Context cancellation always aborts.
func (c *Collector) Run(ctx context.Context) (*Result, error) {
	cfg := c.Config
	obs := c.Observer
	if obs == nil {
		obs = NopObserver{}
	}

	started := time.Now().UTC()
	runID := uuid.NewString()
	if err := c.Store.BeginRun(runID); err != nil {
		return nil, err
	}

	seeds, err := c.seed(ctx)
	if err != nil {
		return nil, err
	}
	obs.Seeded(len(seeds))

	var processed map[int]bool
	if cfg.Resume {
		if processed, err = c.Store.Processed(); err != nil {
			return nil, err
		}
	}

	out, err := openStreams(cfg.OutDir, cfg.Resume)
	if err != nil {
		return nil, err
	}
	defer out.Close()

	for _, seed := range seeds {
		if err := out.writeSeed(seed.CID, seed.SourceHNIDs); err != nil {
			return nil, err
		}
	}

	res := &Result{RunID: runID, Seeded: len(seeds), OutDir: cfg.OutDir}
	var cache map[string]cachedStudy
	if cfg.ShareTrialFetches {
		cache = map[string]cachedStudy{}
	}

	for _, seed := range seeds {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if processed[seed.CID] {
			res.Skipped++
			continue
		}

		if err := c.collectCompound(ctx, seed.CID, out, cache, res, obs); err != nil {
			return nil, err
		}

		// Rows must hit disk before the checkpoint, or an abrupt kill
		// leaves the compound marked processed with its output lost.
		if err := out.Flush(); err != nil {
			return nil, err
		}
		if err := c.Store.MarkProcessed(seed.CID, runID); err != nil {
			return nil, err
		}
		res.Processed++
		if cfg.ProgressEvery > 0 && res.Processed%cfg.ProgressEvery == 0 {
			obs.Progress(res.Processed, res.Skipped, len(seeds))
		}

		if cfg.Delay > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(cfg.Delay):
			}
		}
	}

	if err := out.Close(); err != nil {
		return nil, fmt.Errorf("closing output streams: %w", err)
	}

	summary := fmt.Sprintf("processed=%d skipped=%d linked=%d errors=%d", res.Processed, res.Skipped, res.Linked, res.LinkErrors)
	if err := c.Store.FinishRun(runID, summary); err != nil {
		return nil, err
	}

	if err := writeManifest(cfg, res, started); err != nil {
		return nil, err
	}
	return res, nil
}

// seed unions the compound lists of every configured classification node,
// keeping first-seen order and recording which nodes each compound came from.
func (c *Collector) seed(ctx context.Context) ([]types.SeedRecord, error) {
	var order []int
	sources := map[int][]int{}
	for _, hnid := range c.Config.HNIDs {
		cids, err := c.PubChem.CIDsForNode(ctx, hnid)
		if err != nil {
			return nil, fmt.Errorf("seeding from node %d: %w", hnid, err)
		}
		for _, cid := range cids {
			if _, seen := sources[cid]; !seen {
				order = append(order, cid)
			}
			sources[cid] = append(sources[cid], hnid)
		}
	}

	if limit := c.Config.LimitCIDs; limit > 0 && len(order) > limit {
		order = order[:limit]
	}

	seeds := make([]types.SeedRecord, 0, len(order))
	for _, cid := range order {
		seeds = append(seeds, types.SeedRecord{CID: cid, SourceHNIDs: sources[cid]})
	}
	return seeds, nil
}

// collectCompound resolves one compound and writes its link row, optional
// property row, map rows, and study documents.
func (c *Collector) collectCompound(ctx context.Context, cid int, out *streams, cache map[string]cachedStudy, res *Result, obs Observer) error {
	cfg := c.Config

	rec, err := c.Engine.Resolve(ctx, cid)
	if err != nil {
		return fmt.Errorf("resolving cid %d: %w", cid, err)
	}
	if rec.Error != "" {
		res.LinkErrors++
		if cfg.FailFast {
			return fmt.Errorf("resolving cid %d: %s", cid, rec.Error)
		}
	}
	if rec.NNCT > 0 {
		res.Linked++
	}
	if err := out.links.Write(rec); err != nil {
		return err
	}

	if cfg.IncludeCompoundProps {
		if err := c.writeCompoundProps(ctx, cid, out); err != nil {
			return err
		}
	}

	studies := 0
	for i, nctID := range rec.NCTIDs {
		if cfg.LimitNCTs > 0 && i >= cfg.LimitNCTs {
			break
		}
		if err := out.writeMapRow(cid, nctID); err != nil {
			return err
		}
		wrote, err := c.writeStudy(ctx, cid, nctID, out, cache, res)
		if err != nil {
			return err
		}
		if wrote {
			studies++
		}
	}

	obs.CompoundDone(rec, studies)
	return nil
}

func (c *Collector) writeCompoundProps(ctx context.Context, cid int, out *streams) error {
	props, err := c.PubChem.CompoundProperties(ctx, cid)
	if err != nil {
		if c.Config.FailFast {
			return fmt.Errorf("fetching properties for cid %d: %w", cid, err)
		}
		return out.compounds.Write(types.CompoundRecord{CID: cid, Error: err.Error()})
	}
	return out.compounds.Write(types.CompoundRecord{
		CID:             cid,
		InChIKey:        props.InChIKey,
		CanonicalSMILES: props.CanonicalSMILES,
		IUPACName:       props.IUPACName,
	})
}

// writeStudy fetches one trial document, consulting the shared cache when
// enabled, and appends it to the studies stream tagged with the compound.
// It reports whether a full document (not an error row) was written.
func (c *Collector) writeStudy(ctx context.Context, cid int, nctID string, out *streams, cache map[string]cachedStudy, res *Result) (bool, error) {
	entry, hit := cache[nctID]
	if !hit {
		doc, err := c.CTGov.Study(ctx, nctID, c.Config.CTGovFields)
		if err != nil {
			if c.Config.FailFast {
				return false, fmt.Errorf("fetching study %s for cid %d: %w", nctID, cid, err)
			}
			entry = cachedStudy{err: err.Error()}
		} else {
			entry = cachedStudy{doc: doc}
		}
		if cache != nil {
			cache[nctID] = entry
		}
	}

	if entry.err != "" {
		res.StudyErrors++
		return false, out.studies.Write(map[string]any{"cid": cid, "nct_id": nctID, "error": entry.err})
	}

	row := make(map[string]any, len(entry.doc)+1)
	maps.Copy(row, entry.doc)
	row["cid"] = cid
	if err := out.studies.Write(row); err != nil {
		return false, err
	}
	res.StudiesWritten++
	return true, nil
}

func writeManifest(cfg types.CollectConfig, res *Result, started time.Time) error {
	m := manifest{
		Result:     *res,
		StartedAt:  started.Format(time.RFC3339),
		FinishedAt: time.Now().UTC().Format(time.RFC3339),
		HNIDs:      cfg.HNIDs,
		LimitCIDs:  cfg.LimitCIDs,
		LimitNCTs:  cfg.LimitNCTs,
		Resume:     cfg.Resume,
	}
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshaling run manifest: %w", err)
	}
	return os.WriteFile(filepath.Join(cfg.OutDir, manifestFile), data, 0o644)
}

// StudiesPath returns the studies stream location inside an output directory.
func StudiesPath(outDir string) string {
	return filepath.Join(outDir, studiesFile)
}
