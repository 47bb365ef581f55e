// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package collect

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

const (
	cidsTextFile  = "cids.txt"
	cidsJSONLFile = "cids.jsonl"
	linksFile     = "cid_nct_links.jsonl"
	compoundsFile = "compounds.jsonl"
	mapFile       = "cid_nct_map.csv"
	studiesFile   = "studies.jsonl"
	manifestFile  = "run.yaml"
)

// jsonlWriter appends one JSON document per line to a file.
type jsonlWriter struct {
	f   *os.File
	buf *bufio.Writer
	enc *json.Encoder
}

func newJSONLWriter(path string, resume bool) (*jsonlWriter, error) {
	f, err := os.OpenFile(path, openFlags(resume), 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	buf := bufio.NewWriter(f)
	return &jsonlWriter{f: f, buf: buf, enc: json.NewEncoder(buf)}, nil
}

func (w *jsonlWriter) Write(v any) error {
	return w.enc.Encode(v)
}

func (w *jsonlWriter) Close() error {
	if err := w.buf.Flush(); err != nil {
		w.f.Close()
		return err
	}
	return w.f.Close()
}

// openFlags picks append on resume so prior rows survive, truncate otherwise.
func openFlags(resume bool) int {
	if resume {
		return os.O_CREATE | os.O_WRONLY | os.O_APPEND
	}
	return os.O_CREATE | os.O_WRONLY | os.O_TRUNC
}

// streams holds the per-run output files. The seed files are rewritten
// every run; the row streams append when resuming.
type streams struct {
	closed    bool
	cidsText  *os.File
	cidsJSONL *jsonlWriter
	links     *jsonlWriter
	compounds *jsonlWriter
	studies   *jsonlWriter
	mapFile   *os.File
	mapBuf    *bufio.Writer
	mapCSV    *csv.Writer
}

func openStreams(dir string, resume bool) (*streams, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	s := &streams{}
	ok := false
	defer func() {
		if !ok {
			s.Close()
		}
	}()

	var err error
	if s.cidsText, err = os.Create(filepath.Join(dir, cidsTextFile)); err != nil {
		return nil, fmt.Errorf("opening %s: %w", cidsTextFile, err)
	}
	if s.cidsJSONL, err = newJSONLWriter(filepath.Join(dir, cidsJSONLFile), false); err != nil {
		return nil, err
	}
	if s.links, err = newJSONLWriter(filepath.Join(dir, linksFile), resume); err != nil {
		return nil, err
	}
	if s.compounds, err = newJSONLWriter(filepath.Join(dir, compoundsFile), resume); err != nil {
		return nil, err
	}
	if s.studies, err = newJSONLWriter(filepath.Join(dir, studiesFile), resume); err != nil {
		return nil, err
	}

	mapPath := filepath.Join(dir, mapFile)
	writeHeader := !resume
	if resume {
		if info, statErr := os.Stat(mapPath); statErr != nil || info.Size() == 0 {
			writeHeader = true
		}
	}
	if s.mapFile, err = os.OpenFile(mapPath, openFlags(resume), 0o644); err != nil {
		return nil, fmt.Errorf("opening %s: %w", mapFile, err)
	}
	s.mapBuf = bufio.NewWriter(s.mapFile)
	s.mapCSV = csv.NewWriter(s.mapBuf)
	if writeHeader {
		if err := s.mapCSV.Write([]string{"cid", "nct_id"}); err != nil {
			return nil, fmt.Errorf("writing csv header: %w", err)
		}
	}

	ok = true
	return s, nil
}

func (s *streams) writeSeed(cid int, hnids []int) error {
	if _, err := fmt.Fprintln(s.cidsText, cid); err != nil {
		return fmt.Errorf("writing %s: %w", cidsTextFile, err)
	}
	return s.cidsJSONL.Write(map[string]any{"cid": cid, "source_hnids": hnids})
}

func (s *streams) writeMapRow(cid int, nctID string) error {
	return s.mapCSV.Write([]string{strconv.Itoa(cid), nctID})
}

// Flush pushes every buffered row to disk. Called before a compound is
// checkpointed, so a killed run never has the state marking rows processed
// that the output files do not carry.
func (s *streams) Flush() error {
	s.mapCSV.Flush()
	if err := s.mapCSV.Error(); err != nil {
		return fmt.Errorf("flushing %s: %w", mapFile, err)
	}
	if err := s.mapBuf.Flush(); err != nil {
		return fmt.Errorf("flushing %s: %w", mapFile, err)
	}
	for _, w := range []*jsonlWriter{s.cidsJSONL, s.links, s.compounds, s.studies} {
		if err := w.buf.Flush(); err != nil {
			return err
		}
	}
	return nil
}

func (s *streams) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if s.mapCSV != nil {
		s.mapCSV.Flush()
		keep(s.mapCSV.Error())
	}
	if s.mapBuf != nil {
		keep(s.mapBuf.Flush())
	}
	if s.mapFile != nil {
		keep(s.mapFile.Close())
	}
	for _, w := range []*jsonlWriter{s.studies, s.compounds, s.links, s.cidsJSONL} {
		if w != nil {
			keep(w.Close())
		}
	}
	if s.cidsText != nil {
		keep(s.cidsText.Close())
	}
	return firstErr
}
