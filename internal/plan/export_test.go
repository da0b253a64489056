package plan

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestExportCSV(t *testing.T) {
	entries := []Entry{
		{
			OriginalPath: "/in/a.mp3",
			ProposedPath: "/out/2023/07/Rock/AC_DC/AC_DC - Thunder.mp3",
			Status:       StatusOK,
			Reason:       "planned",
			Title:        "Thunder",
			Artist:       "AC/DC",
			Year:         "2023",
			Month:        "07",
			Genre:        "Rock",
		},
		{
			OriginalPath: "/in/b, with comma.mp3",
			Status:       StatusError,
			Reason:       "boom",
		},
	}

	out := filepath.Join(t.TempDir(), "nested", "dir", "plan.csv")

	ok, failed, err := ExportCSV(entries, out)
	if err != nil {
		t.Fatalf("ExportCSV failed: %v", err)
	}
	if ok != 1 || failed != 1 {
		t.Errorf("ExportCSV = (%d, %d), want (1, 1)", ok, failed)
	}

	f, err := os.Open(out)
	if err != nil {
		t.Fatalf("Failed to open exported plan: %v", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("Failed to parse exported plan: %v", err)
	}

	if len(rows) != 3 {
		t.Fatalf("Expected header + 2 rows, got %d rows", len(rows))
	}
	wantHeader := []string{"original_path", "proposed_path", "status", "reason", "title", "artist", "album", "year", "month", "genre"}
	if !reflect.DeepEqual(rows[0], wantHeader) {
		t.Errorf("header = %v", rows[0])
	}
	wantFirst := []string{"/in/a.mp3", "/out/2023/07/Rock/AC_DC/AC_DC - Thunder.mp3", "ok", "planned", "Thunder", "AC/DC", "", "2023", "07", "Rock"}
	if !reflect.DeepEqual(rows[1], wantFirst) {
		t.Errorf("row 1 = %v", rows[1])
	}
	if rows[2][0] != "/in/b, with comma.mp3" || rows[2][2] != "error" || rows[2][1] != "" {
		t.Errorf("row 2 = %v", rows[2])
	}
}

func TestExportCSVEmptyPlan(t *testing.T) {
	out := filepath.Join(t.TempDir(), "plan.csv")

	ok, failed, err := ExportCSV(nil, out)
	if err != nil {
		t.Fatalf("ExportCSV failed: %v", err)
	}
	if ok != 0 || failed != 0 {
		t.Errorf("ExportCSV = (%d, %d), want (0, 0)", ok, failed)
	}

	content, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("Failed to read plan: %v", err)
	}
	if string(content) != "original_path,proposed_path,status,reason,title,artist,album,year,month,genre\n" {
		t.Errorf("unexpected content %q", content)
	}
}
