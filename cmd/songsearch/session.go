package main

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/schollz/progressbar/v3"

	"github.com/franz/songsearch/internal/acoustid"
	"github.com/franz/songsearch/internal/config"
	"github.com/franz/songsearch/internal/enrich"
	"github.com/franz/songsearch/internal/musicbrainz"
	"github.com/franz/songsearch/internal/report"
	"github.com/franz/songsearch/internal/store"
	"github.com/franz/songsearch/internal/util"
)

func configDir() string {
	return filepath.Join(xdg.ConfigHome, "songsearch")
}

// session bundles what every catalogue command needs
type session struct {
	cfg    *config.Config
	store  *store.Store
	logger *report.EventLogger
}

// openSession loads the configuration, opens the catalogue and starts the
// event log of this run.
func openSession() (*session, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	util.DebugLog("Opening database: %s", cfg.DBPath)
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	level := report.LevelFor(util.IsVerbose(), util.IsQuiet())
	logger, err := report.NewEventLogger(cfg.ArtifactsDir, level)
	if err != nil {
		util.WarnLog("Failed to create event logger: %v", err)
		logger = report.NullLogger()
	}

	return &session{cfg: cfg, store: st, logger: logger}, nil
}

func (s *session) Close() {
	if err := s.logger.Close(); err != nil {
		util.WarnLog("Failed to close event log: %v", err)
	}
	if err := s.store.Close(); err != nil {
		util.WarnLog("Failed to close database: %v", err)
	}
}

// artifactPath names a per-run output file in the artifacts directory
func (s *session) artifactPath(prefix, ext string) string {
	name := fmt.Sprintf("%s-%s%s", prefix, time.Now().Format("20060102-150405"), ext)
	return filepath.Join(s.cfg.ArtifactsDir, name)
}

// newEnricher wires AcoustID and the cached MusicBrainz genre lookup. The
// returned function releases the HTTP clients.
func (s *session) newEnricher() (*enrich.Enricher, func()) {
	ac := acoustid.NewClient("")
	mb := musicbrainz.NewClient(s.cfg.UserAgent())

	e := enrich.New(enrich.Config{
		APIKey:   s.cfg.AcoustIDKey,
		AcoustID: ac,
		Genres:   musicbrainz.NewCache(s.store.DB(), mb),
		Logger:   s.logger,
	})

	if !e.Enabled() {
		util.InfoLog("Online lookups disabled (needs fpcalc and an AcoustID key); using embedded tags only")
	}

	return e, func() {
		ac.Close()
		mb.Close()
	}
}

// collectAudioFiles expands the arguments into a list of files. Files are
// taken as given; directories contribute every file with one of exts, in
// lexical order. Duplicates keep their first position.
func collectAudioFiles(args []string, exts map[string]bool) ([]string, error) {
	var files []string
	seen := make(map[string]bool)

	add := func(path string) {
		if !seen[path] {
			seen[path] = true
			files = append(files, path)
		}
	}

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil || !info.IsDir() {
			// Missing files still get a plan entry explaining the failure
			add(arg)
			continue
		}

		err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				util.WarnLog("Cannot read %s: %v", path, err)
				return nil
			}
			if d.Type().IsRegular() && exts[strings.ToLower(filepath.Ext(path))] {
				add(path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to walk %s: %w", arg, err)
		}
	}

	return files, nil
}

// progressCallback draws a progress bar on interactive terminals. It returns
// nil when no bar should be shown.
func progressCallback(description string, total int) func(done, total int) {
	if !util.ShowProgress() || total == 0 {
		return nil
	}

	bar := progressbar.NewOptions(total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionThrottle(200*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)

	return func(done, _ int) {
		bar.Set(done)
		if done >= total {
			bar.Finish()
		}
	}
}
