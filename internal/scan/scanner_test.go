package scan

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/franz/songsearch/internal/meta"
	"github.com/franz/songsearch/internal/store"
)

// stubTags derives metadata from the file name: "Artist - Title.ext"
type stubTags struct{}

func (stubTags) Read(path string) (meta.Metadata, error) {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	artist, title, ok := strings.Cut(base, " - ")
	if !ok {
		return meta.Metadata{}, nil
	}
	return meta.Metadata{Artist: artist, Title: title, Year: "1999", Month: "07"}, nil
}

func createFiles(t *testing.T, paths ...string) {
	t.Helper()
	for _, path := range paths {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("Failed to create directory: %v", err)
		}
		if err := os.WriteFile(path, []byte("not really audio"), 0o644); err != nil {
			t.Fatalf("Failed to create test file: %v", err)
		}
	}
}

func openStore(t *testing.T) *store.Store {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestIsAudioFile(t *testing.T) {
	scanner := New(&Config{Extensions: []string{".mp3", ".FLAC", ".m4a"}})

	tests := []struct {
		path     string
		expected bool
	}{
		{"test.mp3", true},
		{"test.MP3", true}, // Case insensitive
		{"test.flac", true},
		{"test.m4a", true},
		{"test.txt", false},
		{"test.jpg", false},
		{"test", false},
		{".mp3", true},
	}

	for _, tt := range tests {
		result := scanner.isAudioFile(tt.path)
		if result != tt.expected {
			t.Errorf("isAudioFile(%s) = %v, expected %v", tt.path, result, tt.expected)
		}
	}
}

func TestScannerWithRealFiles(t *testing.T) {
	tmpDir := t.TempDir()
	albumDir := filepath.Join(tmpDir, "Artist", "Album")

	createFiles(t,
		filepath.Join(albumDir, "Queen - Bohemian Rhapsody.mp3"),
		filepath.Join(albumDir, "02 Track Two.flac"),
		filepath.Join(tmpDir, "Artist", "single.m4a"),
		filepath.Join(tmpDir, "README.txt"), // Should be ignored
	)

	db := openStore(t)
	durations := func(ctx context.Context, path string) (float64, error) {
		if strings.HasSuffix(path, ".m4a") {
			return 0, errors.New("no ffprobe")
		}
		return 180.5, nil
	}

	scanner := New(&Config{
		Store:       db,
		Tags:        stubTags{},
		Duration:    durations,
		Concurrency: 2,
	})

	result, err := scanner.Scan(context.Background(), tmpDir)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	if result.FilesFound != 3 || result.FilesInserted != 3 || result.FilesSkipped != 0 {
		t.Errorf("unexpected result %+v", result)
	}
	if len(result.Errors) != 0 {
		t.Errorf("unexpected errors: %v", result.Errors)
	}

	n, err := db.Count()
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if n != 3 {
		t.Errorf("Expected 3 songs in database, got %d", n)
	}

	song, err := db.GetByPath(filepath.Join(albumDir, "Queen - Bohemian Rhapsody.mp3"))
	if err != nil {
		t.Fatalf("Failed to get song: %v", err)
	}
	if song.Artist != "Queen" || song.Title != "Bohemian Rhapsody" || song.Year != "1999" {
		t.Errorf("unexpected tags %+v", song)
	}
	if song.Name != "Queen - Bohemian Rhapsody.mp3" || song.FileFormat != "mp3" {
		t.Errorf("name/format = %q/%q", song.Name, song.FileFormat)
	}
	if song.Duration != 180.5 || song.Size != int64(len("not really audio")) {
		t.Errorf("duration/size = %v/%v", song.Duration, song.Size)
	}

	single, err := db.GetByPath(filepath.Join(tmpDir, "Artist", "single.m4a"))
	if err != nil {
		t.Fatalf("Failed to get song: %v", err)
	}
	if single.Duration != 0 || single.Title != "" {
		t.Errorf("expected untagged song without duration, got %+v", single)
	}
}

func TestScannerIdempotency(t *testing.T) {
	tmpDir := t.TempDir()
	createFiles(t, filepath.Join(tmpDir, "test.mp3"))

	db := openStore(t)
	scanner := New(&Config{
		Store:       db,
		Tags:        stubTags{},
		Concurrency: 1,
	})

	ctx := context.Background()

	result1, err := scanner.Scan(ctx, tmpDir)
	if err != nil {
		t.Fatalf("First scan failed: %v", err)
	}

	createFiles(t, filepath.Join(tmpDir, "later.flac"))

	result2, err := scanner.Scan(ctx, tmpDir)
	if err != nil {
		t.Fatalf("Second scan failed: %v", err)
	}

	if result1.FilesInserted != 1 {
		t.Errorf("First scan: expected 1 file inserted, got %d", result1.FilesInserted)
	}
	if result2.FilesInserted != 1 || result2.FilesSkipped != 1 {
		t.Errorf("Second scan: expected 1 new and 1 skipped, got %+v", result2)
	}

	if n, _ := db.Count(); n != 2 {
		t.Errorf("Expected 2 songs in database after two scans, got %d", n)
	}
}

func TestScannerCancelled(t *testing.T) {
	tmpDir := t.TempDir()
	createFiles(t, filepath.Join(tmpDir, "a.mp3"), filepath.Join(tmpDir, "b.mp3"))

	db := openStore(t)
	scanner := New(&Config{Store: db, Tags: stubTags{}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := scanner.Scan(ctx, tmpDir)
	if err != nil {
		t.Fatalf("cancelled scan returned error: %v", err)
	}
	if !result.Cancelled {
		t.Error("expected result to be marked cancelled")
	}
	if result.FilesInserted != 0 {
		t.Errorf("expected nothing inserted, got %d", result.FilesInserted)
	}
}

func TestScanRejectsMissingRoot(t *testing.T) {
	db := openStore(t)
	scanner := New(&Config{Store: db})

	if _, err := scanner.Scan(context.Background(), filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected error for missing directory")
	}

	file := filepath.Join(t.TempDir(), "file.mp3")
	createFiles(t, file)
	if _, err := scanner.Scan(context.Background(), file); err == nil {
		t.Error("expected error when root is a file")
	}
}
