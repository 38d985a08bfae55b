package ledger

import (
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/neliav/tapsync/internal/experr"
	"github.com/neliav/tapsync/internal/metrics"
)

func record(stimulus, trial int, reason string) metrics.TrialMetricRecord {
	return metrics.TrialMetricRecord{
		TrialNumber:    trial,
		StimulusNumber: stimulus,
		Allocation:     "simple-stimulus1-rightear",
		FailureReason:  reason,
	}
}

func readTable(t *testing.T, dir string) [][]string {
	t.Helper()
	f, err := os.Open(filepath.Join(dir, FileName))
	if err != nil {
		t.Fatalf("opening ledger: %v", err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("reading ledger: %v", err)
	}
	return rows
}

func TestAppendCreatesSortedTable(t *testing.T) {
	dir := t.TempDir()

	// out-of-order appends for one stimulus
	for _, trial := range []int{3, 1, 2} {
		if err := Append(dir, record(1, trial, "")); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	rows := readTable(t, dir)
	if len(rows) != 4 { // header + 3
		t.Fatalf("Expected 4 rows, got %d", len(rows))
	}
	for i, want := range []string{"1", "2", "3"} {
		if rows[i+1][0] != want {
			t.Errorf("row %d trial_number = %s, want %s", i+1, rows[i+1][0], want)
		}
	}
}

func TestAppendHeader(t *testing.T) {
	dir := t.TempDir()
	if err := Append(dir, record(1, 1, "")); err != nil {
		t.Fatalf("Append: %v", err)
	}
	rows := readTable(t, dir)
	cols := metrics.Columns()
	if len(rows[0]) != len(cols) {
		t.Fatalf("header has %d columns, want %d", len(rows[0]), len(cols))
	}
	for i, c := range cols {
		if rows[0][i] != c {
			t.Errorf("header[%d] = %s, want %s", i, rows[0][i], c)
		}
	}
}

func TestAppendIsMonotonic(t *testing.T) {
	dir := t.TempDir()
	for i := 1; i <= 5; i++ {
		if err := Append(dir, record(1, i, "")); err != nil {
			t.Fatalf("Append %d: %v", i, err)
		}
		rows := readTable(t, dir)
		if got := len(rows) - 1; got != i {
			t.Fatalf("After %d appends table has %d rows", i, got)
		}
	}
}

func TestAppendSortsAcrossStimuli(t *testing.T) {
	dir := t.TempDir()
	for _, r := range []metrics.TrialMetricRecord{
		record(2, 1, ""),
		record(1, 2, ""),
		record(1, 1, ""),
		record(2, 2, ""),
	} {
		if err := Append(dir, r); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	rows := readTable(t, dir)[1:]
	want := [][2]string{{"1", "1"}, {"1", "2"}, {"2", "1"}, {"2", "2"}}
	for i, w := range want {
		if rows[i][1] != w[0] || rows[i][0] != w[1] {
			t.Errorf("row %d = (stim %s, trial %s), want (stim %s, trial %s)",
				i, rows[i][1], rows[i][0], w[0], w[1])
		}
	}
}

func TestAppendKeepsDuplicateOrder(t *testing.T) {
	dir := t.TempDir()

	// a retried trial appends a duplicate key; the stable sort must
	// keep the retry after the original
	if err := Append(dir, record(1, 4, "first attempt")); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := Append(dir, record(1, 4, "retry")); err != nil {
		t.Fatalf("Append: %v", err)
	}

	rows := readTable(t, dir)[1:]
	if len(rows) != 2 {
		t.Fatalf("Expected 2 rows, got %d", len(rows))
	}
	if rows[0][4] != "first attempt" || rows[1][4] != "retry" {
		t.Errorf("duplicate rows reordered: %v / %v", rows[0][4], rows[1][4])
	}
}

func TestAppendUnwritableDir(t *testing.T) {
	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("permission bits not enforced here")
	}
	dir := t.TempDir()
	if err := os.Chmod(dir, 0o555); err != nil {
		t.Fatalf("chmod: %v", err)
	}
	t.Cleanup(func() { os.Chmod(dir, 0o755) })

	err := Append(dir, record(1, 1, ""))
	var perr *experr.PersistenceError
	if !errors.As(err, &perr) {
		t.Fatalf("Expected PersistenceError, got %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	rows, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if rows != nil {
		t.Errorf("Expected empty table, got %v", rows)
	}
}
