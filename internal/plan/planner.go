package plan

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/sourcegraph/conc/iter"

	"github.com/franz/songsearch/internal/meta"
	"github.com/franz/songsearch/internal/report"
	"github.com/franz/songsearch/internal/util"
)

// Entry statuses
const (
	StatusOK    = "ok"
	StatusError = "error"

	reasonPlanned = "planned"
)

// TagReader reads the embedded tags of a file
type TagReader interface {
	Read(path string) (meta.Metadata, error)
}

// Enricher looks up additional metadata for a file. It never fails;
// an empty result means nothing was found.
type Enricher interface {
	Enrich(ctx context.Context, path string) meta.Metadata
}

// Entry is the proposed disposition of one file. Entries with
// Status "error" have an empty ProposedPath and empty metadata.
type Entry struct {
	OriginalPath string
	ProposedPath string
	Status       string
	Reason       string
	Title        string
	Artist       string
	Album        string
	Year         string
	Month        string
	Genre        string
}

// OK reports whether the entry can be applied
func (e Entry) OK() bool {
	return e.Status == StatusOK
}

// Planner proposes destinations for a batch of files. It reads files but
// never modifies the filesystem.
type Planner struct {
	tags      TagReader
	enricher  Enricher
	template  *Template
	workers   int
	chunkSize int
	logger    *report.EventLogger
	progress  func(done, total int)
}

// Config holds planner configuration
type Config struct {
	Tags     TagReader
	Enricher Enricher // nil disables enrichment
	Template string   // empty uses DefaultTemplate
	Workers  int      // files planned concurrently
	// ChunkSize is how many files are planned between cancellation checks
	// and progress callbacks. Defaults to Workers.
	ChunkSize int
	Logger    *report.EventLogger
	Progress  func(done, total int)
}

// New creates a new Planner. The template is validated up front so a bad
// template fails the run once rather than every file.
func New(cfg *Config) (*Planner, error) {
	if cfg.Tags == nil {
		cfg.Tags = meta.NewTagReader()
	}
	if cfg.Template == "" {
		cfg.Template = DefaultTemplate
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = cfg.Workers
	}

	tmpl, err := ParseTemplate(cfg.Template)
	if err != nil {
		return nil, err
	}

	return &Planner{
		tags:      cfg.Tags,
		enricher:  cfg.Enricher,
		template:  tmpl,
		workers:   cfg.Workers,
		chunkSize: cfg.ChunkSize,
		logger:    cfg.Logger,
		progress:  cfg.Progress,
	}, nil
}

// Result represents planning results
type Result struct {
	Entries   []Entry
	Total     int // files requested; more than len(Entries) when cancelled
	OK        int
	Failed    int
	Cancelled bool
	Duration  time.Duration
}

// Plan proposes a destination under destRoot for every path, in input order.
// A failure on one file becomes an error entry and never stops the batch.
// When ctx is cancelled, planning stops at the next chunk boundary and the
// entries gathered so far are returned with Cancelled set.
func (p *Planner) Plan(ctx context.Context, paths []string, destRoot string) (*Result, error) {
	start := time.Now()
	total := len(paths)
	result := &Result{Entries: make([]Entry, 0, total), Total: total}

	util.DebugLog("Planning %d files into %s (template %s)", total, destRoot, p.template)

	mapper := iter.Mapper[string, Entry]{MaxGoroutines: p.workers}

	for offset := 0; offset < total; offset += p.chunkSize {
		select {
		case <-ctx.Done():
			util.WarnLog("Planning cancelled after %d/%d files", len(result.Entries), total)
			result.Cancelled = true
			result.Duration = time.Since(start)
			return result, nil
		default:
		}

		end := min(offset+p.chunkSize, total)
		entries := mapper.Map(paths[offset:end], func(path *string) Entry {
			return p.planFile(ctx, *path, destRoot)
		})

		for _, e := range entries {
			if e.OK() {
				result.OK++
			} else {
				result.Failed++
			}
			p.logger.LogPlan(e.OriginalPath, e.ProposedPath, e.Status, e.Reason)
		}
		result.Entries = append(result.Entries, entries...)

		if p.progress != nil {
			p.progress(len(result.Entries), total)
		}
	}

	result.Duration = time.Since(start)
	return result, nil
}

// planFile plans a single file. Errors and panics are turned into an error entry.
func (p *Planner) planFile(ctx context.Context, path, destRoot string) (entry Entry) {
	defer func() {
		if r := recover(); r != nil {
			entry = errorEntry(path, fmt.Errorf("%v", r))
		}
	}()

	ext := filepath.Ext(path)

	local, err := p.tags.Read(path)
	if err != nil {
		util.DebugLog("Plan: %s: %v", path, err)
		return errorEntry(path, err)
	}

	var enrichment meta.Metadata
	if p.enricher != nil {
		enrichment = p.enricher.Enrich(ctx, path)
	}

	m := meta.Merge(local, enrichment)

	return Entry{
		OriginalPath: path,
		ProposedPath: p.template.Resolve(destRoot, m, ext),
		Status:       StatusOK,
		Reason:       reasonPlanned,
		Title:        m.Title,
		Artist:       m.Artist,
		Album:        m.Album,
		Year:         m.Year,
		Month:        m.Month,
		Genre:        m.Genre,
	}
}

func errorEntry(path string, err error) Entry {
	return Entry{
		OriginalPath: path,
		Status:       StatusError,
		Reason:       err.Error(),
	}
}

// PlanMoves plans paths with the given template and no enrichment.
func PlanMoves(ctx context.Context, tags TagReader, paths []string, destRoot, template string) ([]Entry, error) {
	p, err := New(&Config{Tags: tags, Template: template})
	if err != nil {
		return nil, err
	}
	res, err := p.Plan(ctx, paths, destRoot)
	if err != nil {
		return nil, err
	}
	return res.Entries, nil
}
