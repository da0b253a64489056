// Package search matches free text against the song catalogue.
package search

import (
	"context"
	"fmt"
	"sort"

	"github.com/franz/songsearch/internal/store"
	"github.com/franz/songsearch/internal/util"
)

// Search modes
const (
	ModeSong   = "song"
	ModeArtist = "artist"
)

// MaxResults caps the number of matches returned by Search
const MaxResults = 50

// Catalog supplies the rows to match against
type Catalog interface {
	FetchAllForSearch() ([]store.SearchRow, error)
}

// Match is a catalogued song scoring at or above the threshold
type Match struct {
	ID     int64
	Name   string
	Artist string
	Title  string
	Path   string
	Score  float64
}

// ValidMode reports whether mode is a supported search mode
func ValidMode(mode string) bool {
	return mode == ModeSong || mode == ModeArtist
}

// Search scores every catalogued song against query and returns those at or
// above threshold, best first. Artist mode compares against the artist;
// song mode compares against the title, or the file name when untitled.
// Equal scores keep catalogue order.
func Search(ctx context.Context, catalog Catalog, query, mode string, threshold float64) ([]Match, error) {
	if !ValidMode(mode) {
		return nil, fmt.Errorf("%w: %q (want %q or %q)", util.ErrInvalidMode, mode, ModeSong, ModeArtist)
	}

	rows, err := catalog.FetchAllForSearch()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch catalogue: %w", err)
	}

	matches := make([]Match, 0)
	for i, row := range rows {
		if i%1000 == 0 && ctx.Err() != nil {
			return nil, ctx.Err()
		}

		text := choiceText(row, mode)
		if text == "" {
			continue
		}

		score := WRatio(query, text)
		if score < threshold {
			continue
		}

		matches = append(matches, Match{
			ID:     row.ID,
			Name:   row.Name,
			Artist: row.Artist,
			Title:  row.Title,
			Path:   row.Path,
			Score:  score,
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if len(matches) > MaxResults {
		matches = matches[:MaxResults]
	}

	util.DebugLog("Fuzzy matches for '%s' (%s, >= %.0f): %d", query, mode, threshold, len(matches))
	return matches, nil
}

func choiceText(row store.SearchRow, mode string) string {
	if mode == ModeArtist {
		return row.Artist
	}
	if row.Title != "" {
		return row.Title
	}
	return row.Name
}
