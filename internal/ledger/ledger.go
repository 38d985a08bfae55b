// Package ledger maintains the append-only per-participant results
// table on disk. One row per recorded trial, including retried
// duplicates; rows are never updated in place.
package ledger

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/neliav/tapsync/internal/experr"
	"github.com/neliav/tapsync/internal/metrics"
)

// FileName is the ledger file inside the participant's output
// directory.
const FileName = "participant_analysis.csv"

// Append loads the existing table if present, appends the record as a
// new row, re-sorts by (stimulus_number, trial_number) with a stable
// sort so a retried trial's duplicate row stays after the original,
// and rewrites the file in full. The rewrite goes through a temp file
// and rename so a crash never leaves a truncated table.
func Append(outputDir string, record metrics.TrialMetricRecord) error {
	path := filepath.Join(outputDir, FileName)

	rows, err := loadRows(path)
	if err != nil {
		return err
	}
	rows = append(rows, record.Row())

	if err := sortRows(rows); err != nil {
		return &experr.PersistenceError{Path: path, Err: err}
	}

	if err := writeRows(path, rows); err != nil {
		return &experr.PersistenceError{Path: path, Err: err}
	}
	return nil
}

// Load reads all rows of the ledger, without the header. A missing
// file yields an empty table.
func Load(outputDir string) ([][]string, error) {
	return loadRows(filepath.Join(outputDir, FileName))
}

func loadRows(path string) ([][]string, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, &experr.PersistenceError{Path: path, Err: err}
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(metrics.Columns())
	all, err := r.ReadAll()
	if err != nil {
		return nil, &experr.PersistenceError{Path: path, Err: err}
	}
	if len(all) == 0 {
		return nil, nil
	}
	// drop the header row
	return all[1:], nil
}

func sortRows(rows [][]string) error {
	type key struct{ stimulus, trial int }
	keys := make([]key, len(rows))
	for i, row := range rows {
		trial, err := strconv.Atoi(row[0])
		if err != nil {
			return fmt.Errorf("row %d: bad trial_number %q: %w", i, row[0], err)
		}
		stimulus, err := strconv.Atoi(row[1])
		if err != nil {
			return fmt.Errorf("row %d: bad stimulus_number %q: %w", i, row[1], err)
		}
		keys[i] = key{stimulus: stimulus, trial: trial}
	}

	idx := make([]int, len(rows))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		ka, kb := keys[idx[a]], keys[idx[b]]
		if ka.stimulus != kb.stimulus {
			return ka.stimulus < kb.stimulus
		}
		return ka.trial < kb.trial
	})

	sorted := make([][]string, len(rows))
	for i, j := range idx {
		sorted[i] = rows[j]
	}
	copy(rows, sorted)
	return nil
}

func writeRows(path string, rows [][]string) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}

	w := csv.NewWriter(f)
	if err := w.Write(metrics.Columns()); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := w.WriteAll(rows); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
