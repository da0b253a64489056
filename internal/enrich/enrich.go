// Package enrich identifies audio files acoustically and fills in their
// metadata from AcoustID and MusicBrainz.
package enrich

import (
	"context"
	"errors"
	"strings"

	"github.com/franz/songsearch/internal/acoustid"
	"github.com/franz/songsearch/internal/fingerprint"
	"github.com/franz/songsearch/internal/meta"
	"github.com/franz/songsearch/internal/musicbrainz"
	"github.com/franz/songsearch/internal/report"
	"github.com/franz/songsearch/internal/util"
)

// Fingerprinter computes acoustic fingerprints
type Fingerprinter interface {
	Available() bool
	Compute(ctx context.Context, path string) (*fingerprint.Result, error)
}

// Lookuper resolves a fingerprint to candidate recordings
type Lookuper interface {
	Lookup(ctx context.Context, apiKey, fp string, duration float64) (*acoustid.Response, error)
}

// Config wires the enricher to its external services
type Config struct {
	APIKey        string
	Fingerprinter Fingerprinter           // defaults to fpcalc on PATH
	AcoustID      Lookuper                // required for lookups
	Genres        musicbrainz.GenreSource // optional; no genre lookup when nil
	Logger        *report.EventLogger
}

// Enricher looks up metadata for audio files. It never fails: any problem
// yields an empty or partial result.
type Enricher struct {
	apiKey   string
	fp       Fingerprinter
	acoustid Lookuper
	genres   musicbrainz.GenreSource
	logger   *report.EventLogger
}

// New creates an enricher
func New(cfg Config) *Enricher {
	fp := cfg.Fingerprinter
	if fp == nil {
		fp = fpcalc{}
	}
	return &Enricher{
		apiKey:   strings.TrimSpace(cfg.APIKey),
		fp:       fp,
		acoustid: cfg.AcoustID,
		genres:   cfg.Genres,
		logger:   cfg.Logger,
	}
}

// Enabled reports whether lookups can run at all: fpcalc is installed and
// an AcoustID key is configured.
func (e *Enricher) Enabled() bool {
	return e.apiKey != "" && e.acoustid != nil && e.fp.Available()
}

// Enrich fingerprints path and returns the metadata of the best matching
// recording. Only fields that were found are set.
func (e *Enricher) Enrich(ctx context.Context, path string) meta.Metadata {
	if e.apiKey == "" || e.acoustid == nil {
		util.DebugLog("Enrich: no AcoustID key, skipping %s", path)
		return meta.Metadata{}
	}
	if !e.fp.Available() {
		util.DebugLog("Enrich: fpcalc not found, skipping %s", path)
		return meta.Metadata{}
	}

	fp, err := e.fp.Compute(ctx, path)
	if err != nil {
		util.DebugLog("Enrich: fingerprint failed for %s: %v", path, err)
		e.logger.LogEnrich(path, "", err)
		return meta.Metadata{}
	}

	resp, err := e.acoustid.Lookup(ctx, e.apiKey, fp.Fingerprint, fp.Duration)
	if err != nil {
		util.WarnLog("Enrich: AcoustID lookup failed for %s: %v", path, err)
		e.logger.LogEnrich(path, "", err)
		return meta.Metadata{}
	}

	best := acoustid.BestResult(resp.Results)
	if best == nil {
		util.DebugLog("Enrich: no AcoustID match for %s", path)
		e.logger.LogEnrich(path, "", nil)
		return meta.Metadata{}
	}

	md := fromResult(best)

	if e.genres != nil && md.RecordingID != "" {
		genre, err := e.genres.RecordingGenre(ctx, md.RecordingID)
		switch {
		case err != nil && !errors.Is(err, context.Canceled):
			util.WarnLog("Enrich: MusicBrainz genre lookup failed for %s: %v", md.RecordingID, err)
		case genre != "":
			md.Genre = genre
		}
	}

	util.DebugLog("Enrich: %s -> %s - %s (%s)", path, md.Artist, md.Title, md.RecordingID)
	e.logger.LogEnrich(path, md.RecordingID, nil)
	return md
}

// fromResult extracts metadata from the first recording of an AcoustID result
func fromResult(result *acoustid.Result) meta.Metadata {
	rec := result.Recordings[0]

	md := meta.Metadata{
		Title:         strings.TrimSpace(rec.Title),
		Artist:        strings.Join(rec.ArtistNames(), ", "),
		RecordingID:   rec.ID,
		FingerprintID: result.ID,
	}

	var group *acoustid.ReleaseGroup
	switch {
	case len(rec.ReleaseGroups) > 0:
		group = &rec.ReleaseGroups[0]
	case len(result.ReleaseGroups) > 0:
		group = &result.ReleaseGroups[0]
	}

	date := rec.FirstReleaseDate
	if group != nil {
		md.Album = strings.TrimSpace(group.Title)
		if group.FirstReleaseDate != "" {
			date = group.FirstReleaseDate
		}
	}
	md.Year, md.Month = meta.ParseDate(date)

	return md
}

// fpcalc fingerprints with the fpcalc binary on PATH
type fpcalc struct{}

func (fpcalc) Available() bool { return fingerprint.Available() }

func (fpcalc) Compute(ctx context.Context, path string) (*fingerprint.Result, error) {
	return fingerprint.Compute(ctx, path)
}
