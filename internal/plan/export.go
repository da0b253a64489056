package plan

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
)

// CSVHeader is the fixed column order of exported plans
var CSVHeader = []string{
	"original_path", "proposed_path", "status", "reason",
	"title", "artist", "album", "year", "month", "genre",
}

// ExportCSV writes entries to path as UTF-8 CSV, creating parent directories
// as needed. It returns the number of ok and non-ok entries written.
func ExportCSV(entries []Entry, path string) (ok, failed int, err error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return 0, 0, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to create plan file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close plan file: %w", cerr)
		}
	}()

	w := csv.NewWriter(f)
	if err := w.Write(CSVHeader); err != nil {
		return 0, 0, fmt.Errorf("failed to write header: %w", err)
	}

	for _, e := range entries {
		row := []string{
			e.OriginalPath, e.ProposedPath, e.Status, e.Reason,
			e.Title, e.Artist, e.Album, e.Year, e.Month, e.Genre,
		}
		if err := w.Write(row); err != nil {
			return ok, failed, fmt.Errorf("failed to write row for %s: %w", e.OriginalPath, err)
		}
		if e.OK() {
			ok++
		} else {
			failed++
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return ok, failed, fmt.Errorf("failed to flush plan file: %w", err)
	}

	return ok, failed, nil
}
