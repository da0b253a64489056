// Package execute applies a move plan to the filesystem.
package execute

import (
	"context"
	"crypto/sha1"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/franz/songsearch/internal/plan"
	"github.com/franz/songsearch/internal/report"
	"github.com/franz/songsearch/internal/store"
	"github.com/franz/songsearch/internal/util"
)

// Verify modes for cross-filesystem moves
const (
	VerifyNone = "none"
	VerifySize = "size"
	VerifyHash = "hash"
)

// Executor moves files to their planned destinations
type Executor struct {
	store       *store.Store
	verifyMode  string
	bufferSize  int
	retryConfig *util.RetryConfig
	logger      *report.EventLogger
	progress    func(done, total int)
}

// Config holds executor configuration
type Config struct {
	Store       *store.Store      // optional; moved songs follow their files when set
	VerifyMode  string            // "none", "size", "hash"
	BufferSize  int               // Buffer size for file copying (0 = use default)
	RetryConfig *util.RetryConfig // Retry configuration (nil = use default)
	Logger      *report.EventLogger
	Progress    func(done, total int)
}

// New creates a new Executor
func New(cfg *Config) *Executor {
	if cfg.VerifyMode == "" {
		cfg.VerifyMode = VerifySize
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 128 * 1024
	}
	if cfg.RetryConfig == nil {
		cfg.RetryConfig = util.DefaultRetryConfig()
	}

	return &Executor{
		store:       cfg.Store,
		verifyMode:  cfg.VerifyMode,
		bufferSize:  cfg.BufferSize,
		retryConfig: cfg.RetryConfig,
		logger:      cfg.Logger,
		progress:    cfg.Progress,
	}
}

// Result represents execution results
type Result struct {
	Processed    int
	Succeeded    int
	Skipped      int
	Failed       int
	BytesWritten int64
	Errors       []error
	Cancelled    bool
	Duration     time.Duration
}

// Apply moves every ok entry of a plan to its proposed path, in plan order.
// Error entries and files already in place are skipped. An existing file at
// the destination is never overwritten. Cancelling ctx stops before the next
// file and returns what was done so far.
func (e *Executor) Apply(ctx context.Context, entries []plan.Entry) (*Result, error) {
	start := time.Now()
	result := &Result{}
	total := len(entries)

	util.InfoLog("Applying plan: %d entries", total)

	for i, entry := range entries {
		if ctx.Err() != nil {
			result.Cancelled = true
			util.WarnLog("Apply cancelled after %d of %d entries", i, total)
			break
		}

		result.Processed++
		bytes, err := e.applyEntry(ctx, entry)
		switch {
		case err != nil:
			util.ErrorLog("Failed to move %s: %v", entry.OriginalPath, err)
			result.Errors = append(result.Errors, fmt.Errorf("%s: %w", entry.OriginalPath, err))
			result.Failed++
		case bytes < 0:
			result.Skipped++
		default:
			result.Succeeded++
			result.BytesWritten += bytes
		}

		if e.progress != nil {
			e.progress(i+1, total)
		}
	}

	result.Duration = time.Since(start)
	util.SuccessLog("Apply complete: %d processed, %d moved, %d skipped, %d failed, %s moved",
		result.Processed, result.Succeeded, result.Skipped, result.Failed, humanize.Bytes(uint64(result.BytesWritten)))

	return result, nil
}

// applyEntry moves a single file.
// Returns bytes moved (or -1 if skipped) and error.
func (e *Executor) applyEntry(ctx context.Context, entry plan.Entry) (int64, error) {
	if !entry.OK() || entry.ProposedPath == "" {
		util.DebugLog("Skipping %s: %s", entry.OriginalPath, entry.Reason)
		return -1, nil
	}

	src := filepath.Clean(entry.OriginalPath)
	dest := filepath.Clean(entry.ProposedPath)
	if src == dest {
		util.DebugLog("Already in place: %s", src)
		return -1, nil
	}

	started := time.Now()
	bytes, err := e.moveFile(ctx, src, dest)
	e.logger.LogApply(src, dest, bytes, time.Since(started), err)

	if e.store != nil {
		status := store.MoveStatusMoved
		if err != nil {
			status = store.MoveStatusFailed
		}
		if _, serr := e.store.MarkMoved(src, dest, status); serr != nil {
			util.WarnLog("Failed to record move of %s: %v", src, serr)
		}
	}

	return bytes, err
}

// moveFile renames src to dest, copying across filesystems
func (e *Executor) moveFile(ctx context.Context, srcPath, destPath string) (int64, error) {
	stat, err := os.Stat(srcPath)
	if err != nil {
		return 0, fmt.Errorf("source unavailable: %w", err)
	}
	if !stat.Mode().IsRegular() {
		return 0, fmt.Errorf("source is not a regular file")
	}

	exists, err := util.PathExists(destPath)
	if err != nil {
		return 0, fmt.Errorf("failed to check destination: %w", err)
	}
	if exists {
		return 0, fmt.Errorf("%w: %s already exists", util.ErrConflict, destPath)
	}

	destDir := filepath.Dir(destPath)
	if err := util.RetryableMkdirAll(ctx, destDir, 0o755, e.retryConfig); err != nil {
		return 0, fmt.Errorf("failed to create directory: %w", err)
	}

	if same, err := util.IsSameFilesystem(srcPath, destDir); err == nil && same {
		if err := util.RetryableRename(ctx, srcPath, destPath, e.retryConfig); err != nil {
			return 0, fmt.Errorf("failed to rename: %w", err)
		}
		util.DebugLog("Moved: %s -> %s", srcPath, destPath)
		return stat.Size(), nil
	}

	bytesWritten, err := e.copyFile(ctx, srcPath, destPath)
	if err != nil {
		return 0, err
	}

	// Verify before deleting source
	if ok, err := e.verify(srcPath, destPath, stat.Size()); !ok {
		os.Remove(destPath)
		if err == nil {
			err = errors.New("content mismatch")
		}
		return 0, fmt.Errorf("verification failed before deleting source: %w", err)
	}

	if err := os.Remove(srcPath); err != nil {
		// The copy is complete; report the leftover source
		util.WarnLog("Failed to delete source file %s: %v", srcPath, err)
	}

	util.DebugLog("Moved across filesystems: %s -> %s (%s)", srcPath, destPath, humanize.Bytes(uint64(bytesWritten)))
	return bytesWritten, nil
}

// copyFile copies a file atomically using a .part temporary file
func (e *Executor) copyFile(ctx context.Context, srcPath, destPath string) (int64, error) {
	src, err := os.Open(srcPath)
	if err != nil {
		return 0, fmt.Errorf("failed to open source: %w", err)
	}
	defer src.Close()

	tempPath := destPath + ".part"
	dest, err := os.OpenFile(tempPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return 0, fmt.Errorf("failed to create temp file: %w", err)
	}

	bytesWritten, err := copyWithContext(ctx, dest, src, e.bufferSize)
	if cerr := dest.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tempPath)
		return 0, fmt.Errorf("failed to copy: %w", err)
	}

	if err := util.RetryableRename(ctx, tempPath, destPath, e.retryConfig); err != nil {
		os.Remove(tempPath)
		return 0, fmt.Errorf("failed to rename: %w", err)
	}

	return bytesWritten, nil
}

func (e *Executor) verify(srcPath, destPath string, size int64) (bool, error) {
	switch e.verifyMode {
	case VerifyNone:
		return true, nil
	case VerifyHash:
		return verifyHash(srcPath, destPath)
	default:
		return verifySize(destPath, size)
	}
}

// verifySize verifies file size
func verifySize(path string, expectedSize int64) (bool, error) {
	stat, err := os.Stat(path)
	if err != nil {
		return false, err
	}
	return stat.Size() == expectedSize, nil
}

// verifyHash verifies file content using SHA1
func verifyHash(srcPath, destPath string) (bool, error) {
	srcHash, err := hashFile(srcPath)
	if err != nil {
		return false, fmt.Errorf("failed to hash source: %w", err)
	}

	destHash, err := hashFile(destPath)
	if err != nil {
		return false, fmt.Errorf("failed to hash dest: %w", err)
	}

	return srcHash == destHash, nil
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha1.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}

	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

// copyWithContext copies data with context cancellation support
func copyWithContext(ctx context.Context, dst io.Writer, src io.Reader, bufferSize int) (int64, error) {
	if bufferSize <= 0 {
		bufferSize = 128 * 1024
	}

	buf := make([]byte, bufferSize)
	var written int64

	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}

		nr, er := src.Read(buf)
		if nr > 0 {
			nw, ew := dst.Write(buf[:nr])
			written += int64(nw)
			if ew != nil {
				return written, ew
			}
			if nr != nw {
				return written, io.ErrShortWrite
			}
		}
		if er != nil {
			if er != io.EOF {
				return written, er
			}
			return written, nil
		}
	}
}
