package execute

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/franz/songsearch/internal/plan"
	"github.com/franz/songsearch/internal/store"
	"github.com/franz/songsearch/internal/util"
)

func setupTestDB(t *testing.T) (*store.Store, string) {
	t.Helper()

	tmpDir := t.TempDir()
	db, err := store.Open(filepath.Join(tmpDir, "test.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return db, tmpDir
}

func createTestFile(t *testing.T, path string, content []byte) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("Failed to create directory: %v", err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}
}

func okEntry(src, dest string) plan.Entry {
	return plan.Entry{OriginalPath: src, ProposedPath: dest, Status: plan.StatusOK, Reason: "planned"}
}

func TestApplyMovesFiles(t *testing.T) {
	db, tmpDir := setupTestDB(t)

	src := filepath.Join(tmpDir, "in", "a.mp3")
	dest := filepath.Join(tmpDir, "out", "2023", "07", "Rock", "Artist", "Artist - A.mp3")
	content := []byte("audio data")
	createTestFile(t, src, content)

	if _, err := db.InsertOrIgnore(&store.Song{Name: "a.mp3", Path: src}); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	var progress []int
	executor := New(&Config{
		Store:    db,
		Progress: func(done, total int) { progress = append(progress, done) },
	})

	result, err := executor.Apply(context.Background(), []plan.Entry{
		okEntry(src, dest),
		{OriginalPath: filepath.Join(tmpDir, "in", "bad.mp3"), Status: plan.StatusError, Reason: "boom"},
	})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	if result.Succeeded != 1 || result.Skipped != 1 || result.Failed != 0 {
		t.Errorf("unexpected result %+v", result)
	}
	if result.BytesWritten != int64(len(content)) {
		t.Errorf("BytesWritten = %d, want %d", result.BytesWritten, len(content))
	}
	if len(progress) != 2 || progress[1] != 2 {
		t.Errorf("progress = %v", progress)
	}

	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("destination missing: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Errorf("destination content = %q", got)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Errorf("source should be gone, stat err = %v", err)
	}

	song, err := db.GetByPath(dest)
	if err != nil {
		t.Fatalf("song did not follow the file: %v", err)
	}
	if song.MoveStatus != store.MoveStatusMoved || song.OriginalPath != src {
		t.Errorf("unexpected song %+v", song)
	}
}

func TestApplyRefusesOverwrite(t *testing.T) {
	_, tmpDir := setupTestDB(t)

	src := filepath.Join(tmpDir, "in", "a.mp3")
	dest := filepath.Join(tmpDir, "out", "a.mp3")
	createTestFile(t, src, []byte("new"))
	createTestFile(t, dest, []byte("existing"))

	executor := New(&Config{})
	result, err := executor.Apply(context.Background(), []plan.Entry{okEntry(src, dest)})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	if result.Failed != 1 || len(result.Errors) != 1 {
		t.Fatalf("expected one failure, got %+v", result)
	}
	if !errors.Is(result.Errors[0], util.ErrConflict) {
		t.Errorf("expected ErrConflict, got %v", result.Errors[0])
	}

	got, _ := os.ReadFile(dest)
	if string(got) != "existing" {
		t.Errorf("destination was overwritten: %q", got)
	}
	if _, err := os.Stat(src); err != nil {
		t.Errorf("source should remain: %v", err)
	}
}

func TestApplyDuplicateDestinations(t *testing.T) {
	_, tmpDir := setupTestDB(t)

	a := filepath.Join(tmpDir, "in", "a.mp3")
	b := filepath.Join(tmpDir, "in", "b.mp3")
	dest := filepath.Join(tmpDir, "out", "same.mp3")
	createTestFile(t, a, []byte("a"))
	createTestFile(t, b, []byte("b"))

	result, err := New(&Config{}).Apply(context.Background(), []plan.Entry{okEntry(a, dest), okEntry(b, dest)})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if result.Succeeded != 1 || result.Failed != 1 {
		t.Errorf("expected first move to win, got %+v", result)
	}

	got, _ := os.ReadFile(dest)
	if string(got) != "a" {
		t.Errorf("destination content = %q, want a", got)
	}
}

func TestApplyRecordsFailure(t *testing.T) {
	db, tmpDir := setupTestDB(t)

	missing := filepath.Join(tmpDir, "in", "gone.mp3")
	if _, err := db.InsertOrIgnore(&store.Song{Path: missing}); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	result, err := New(&Config{Store: db}).Apply(context.Background(), []plan.Entry{okEntry(missing, filepath.Join(tmpDir, "out", "gone.mp3"))})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if result.Failed != 1 {
		t.Errorf("expected failure, got %+v", result)
	}

	song, err := db.GetByPath(missing)
	if err != nil {
		t.Fatalf("GetByPath failed: %v", err)
	}
	if song.MoveStatus != store.MoveStatusFailed {
		t.Errorf("move status = %q, want failed", song.MoveStatus)
	}
}

func TestApplySkipsInPlace(t *testing.T) {
	_, tmpDir := setupTestDB(t)

	path := filepath.Join(tmpDir, "a.mp3")
	createTestFile(t, path, []byte("x"))

	result, err := New(&Config{}).Apply(context.Background(), []plan.Entry{okEntry(path, path)})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if result.Skipped != 1 || result.Failed != 0 {
		t.Errorf("unexpected result %+v", result)
	}
}

func TestApplyCancelled(t *testing.T) {
	_, tmpDir := setupTestDB(t)

	src := filepath.Join(tmpDir, "in", "a.mp3")
	createTestFile(t, src, []byte("x"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := New(&Config{}).Apply(ctx, []plan.Entry{okEntry(src, filepath.Join(tmpDir, "out", "a.mp3"))})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if !result.Cancelled || result.Processed != 0 {
		t.Errorf("unexpected result %+v", result)
	}
	if _, err := os.Stat(src); err != nil {
		t.Errorf("source should remain after cancellation: %v", err)
	}
}

func TestCopyFileAndVerify(t *testing.T) {
	_, tmpDir := setupTestDB(t)

	src := filepath.Join(tmpDir, "source.mp3")
	dest := filepath.Join(tmpDir, "dest.mp3")
	content := bytes.Repeat([]byte("0123456789"), 1000)
	createTestFile(t, src, content)

	executor := New(&Config{BufferSize: 64, VerifyMode: VerifyHash})

	written, err := executor.copyFile(context.Background(), src, dest)
	if err != nil {
		t.Fatalf("copyFile failed: %v", err)
	}
	if written != int64(len(content)) {
		t.Errorf("written = %d, want %d", written, len(content))
	}
	if _, err := os.Stat(dest + ".part"); !os.IsNotExist(err) {
		t.Error("temporary .part file left behind")
	}

	for _, mode := range []string{VerifyNone, VerifySize, VerifyHash} {
		executor.verifyMode = mode
		ok, err := executor.verify(src, dest, int64(len(content)))
		if err != nil || !ok {
			t.Errorf("verify(%s) = %v, %v", mode, ok, err)
		}
	}

	createTestFile(t, dest, append([]byte("X"), content[1:]...))
	executor.verifyMode = VerifyHash
	if ok, _ := executor.verify(src, dest, int64(len(content))); ok {
		t.Error("hash verification should detect changed content")
	}
}

func TestCopyWithContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var dst bytes.Buffer
	if _, err := copyWithContext(ctx, &dst, bytes.NewReader([]byte("data")), 0); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
