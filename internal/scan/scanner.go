// Package scan indexes audio files under a directory into the song catalogue.
package scan

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/sourcegraph/conc/pool"

	"github.com/franz/songsearch/internal/meta"
	"github.com/franz/songsearch/internal/report"
	"github.com/franz/songsearch/internal/store"
	"github.com/franz/songsearch/internal/util"
)

const batchSize = 500

// TagReader reads the embedded tags of a file
type TagReader interface {
	Read(path string) (meta.Metadata, error)
}

// DurationFunc reports the playing time of a file in seconds
type DurationFunc func(ctx context.Context, path string) (float64, error)

// Scanner discovers audio files in a directory tree and catalogues them
type Scanner struct {
	store       *store.Store
	tags        TagReader
	duration    DurationFunc
	extensions  map[string]bool
	concurrency int
	logger      *report.EventLogger
}

// Config holds scanner configuration
type Config struct {
	Store       *store.Store
	Tags        TagReader    // defaults to meta.NewTagReader()
	Duration    DurationFunc // optional; durations stay 0 when nil
	Extensions  []string     // defaults to AudioExtensions
	Concurrency int
	Logger      *report.EventLogger
}

// AudioExtensions are the extensions indexed when none are configured
var AudioExtensions = []string{".mp3", ".flac", ".wav", ".aiff", ".ogg", ".aac", ".m4a", ".mp4"}

// New creates a new Scanner
func New(cfg *Config) *Scanner {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}

	tags := cfg.Tags
	if tags == nil {
		tags = meta.NewTagReader()
	}

	exts := cfg.Extensions
	if len(exts) == 0 {
		exts = AudioExtensions
	}
	extMap := make(map[string]bool, len(exts))
	for _, ext := range exts {
		extMap[strings.ToLower(ext)] = true
	}

	return &Scanner{
		store:       cfg.Store,
		tags:        tags,
		duration:    cfg.Duration,
		extensions:  extMap,
		concurrency: cfg.Concurrency,
		logger:      cfg.Logger,
	}
}

// FFprobeDuration reads durations with ffprobe. It returns nil when ffprobe
// is not installed.
func FFprobeDuration() DurationFunc {
	if !meta.CheckFFprobeAvailable() {
		return nil
	}
	return func(ctx context.Context, path string) (float64, error) {
		info, err := meta.RunFFprobe(ctx, path)
		if err != nil {
			return 0, err
		}
		return info.DurationSeconds(), nil
	}
}

// Result represents a scan result
type Result struct {
	FilesFound    int
	FilesInserted int
	FilesSkipped  int
	Errors        []error
	Cancelled     bool
	Duration      time.Duration
}

// Scan walks root and inserts every audio file not yet catalogued.
// Files already in the catalogue are skipped without reading their tags.
// Cancelling ctx stops the walk; files read so far are still stored and
// the result is marked Cancelled.
func (s *Scanner) Scan(ctx context.Context, root string) (*Result, error) {
	start := time.Now()

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", root, err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("cannot scan %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("cannot scan %s: not a directory", root)
	}

	util.InfoLog("Starting scan of: %s", absRoot)

	existing, err := s.existingPaths()
	if err != nil {
		return nil, err
	}
	util.DebugLog("Loaded %d catalogued paths", len(existing))

	result := &Result{}
	var errMu sync.Mutex
	addError := func(err error) {
		errMu.Lock()
		result.Errors = append(result.Errors, err)
		errMu.Unlock()
	}

	var found, processed, skipped atomic.Int64

	var bar *progressbar.ProgressBar
	if util.ShowProgress() {
		// Indeterminate: the total is unknown while walking
		bar = progressbar.NewOptions(-1,
			progressbar.OptionSetDescription("Indexing"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("files"),
			progressbar.OptionThrottle(200*time.Millisecond),
			progressbar.OptionClearOnFinish(),
		)
	}

	songs := make(chan *store.Song, batchSize)

	// Batch writer. The store serialises writes, so a single goroutine inserts.
	var inserted int
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		batch := make([]*store.Song, 0, batchSize)

		flush := func() {
			if len(batch) == 0 {
				return
			}
			n, err := s.store.InsertBatch(batch)
			if err != nil {
				util.ErrorLog("Failed to insert batch: %v", err)
				addError(err)
			}
			inserted += n
			for _, song := range batch {
				s.logger.LogIndex(song.Path, song.Size, err == nil && song.ID != 0)
			}
			batch = batch[:0]
		}

		for song := range songs {
			batch = append(batch, song)
			if len(batch) >= batchSize {
				flush()
			}
		}
		flush()
	}()

	workers := pool.New().WithMaxGoroutines(s.concurrency)

	walkErr := filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if err != nil {
			util.WarnLog("Error accessing path %s: %v", path, err)
			addError(fmt.Errorf("access error: %s: %w", path, err))
			return nil
		}

		if d.IsDir() || !s.isAudioFile(path) {
			return nil
		}

		found.Add(1)
		if existing[path] {
			skipped.Add(1)
			processed.Add(1)
			return nil
		}
		existing[path] = true

		workers.Go(func() {
			defer func() {
				processed.Add(1)
				if bar != nil {
					bar.Set64(processed.Load())
				}
			}()

			song, err := s.readSong(ctx, path)
			if err != nil {
				util.WarnLog("Failed to read %s: %v", path, err)
				s.logger.LogError(report.EventIndex, path, err)
				addError(err)
				return
			}
			songs <- song
		})
		return nil
	})

	workers.Wait()
	close(songs)
	<-writerDone

	if bar != nil {
		bar.Finish()
	}

	result.FilesFound = int(found.Load())
	result.FilesInserted = inserted
	result.FilesSkipped = int(skipped.Load())
	result.Duration = time.Since(start)

	if walkErr != nil {
		if errors.Is(walkErr, context.Canceled) || errors.Is(walkErr, context.DeadlineExceeded) {
			result.Cancelled = true
			util.WarnLog("Scan cancelled: %d files indexed before stopping", result.FilesInserted)
			return result, nil
		}
		return result, fmt.Errorf("walk error: %w", walkErr)
	}

	util.SuccessLog("Scan complete: %d found, %d new, %d already indexed, %d errors",
		result.FilesFound, result.FilesInserted, result.FilesSkipped, len(result.Errors))

	return result, nil
}

// readSong builds the catalogue record of one file
func (s *Scanner) readSong(ctx context.Context, path string) (*store.Song, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	md, err := s.tags.Read(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tags of %s: %w", path, err)
	}

	song := &store.Song{
		Name:          filepath.Base(path),
		Artist:        md.Artist,
		Title:         md.Title,
		Album:         md.Album,
		Year:          md.Year,
		Month:         md.Month,
		Genre:         md.Genre,
		Path:          path,
		FileFormat:    strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), "."),
		Size:          info.Size(),
		ModifiedDate:  info.ModTime(),
		MBRecordingID: md.RecordingID,
	}

	if s.duration != nil {
		d, err := s.duration(ctx, path)
		if err != nil {
			util.DebugLog("No duration for %s: %v", path, err)
		} else {
			song.Duration = d
		}
	}

	util.DebugLog("Indexed: %s", path)
	return song, nil
}

func (s *Scanner) existingPaths() (map[string]bool, error) {
	rows, err := s.store.FetchAllForSearch()
	if err != nil {
		return nil, fmt.Errorf("failed to load catalogued paths: %w", err)
	}
	paths := make(map[string]bool, len(rows))
	for _, row := range rows {
		paths[row.Path] = true
	}
	return paths, nil
}

// isAudioFile checks if a file has a supported audio extension
func (s *Scanner) isAudioFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return s.extensions[ext]
}
