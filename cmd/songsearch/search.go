package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/franz/songsearch/internal/search"
	"github.com/franz/songsearch/internal/util"
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Find songs by approximate title or artist",
	Long: `Score every catalogued song against the query and list the best matches.

With --mode song the query is compared with the title (or the file name when
the song has no title); with --mode artist it is compared with the artist.
Scores range from 0 to 100; only songs scoring at least --threshold are shown,
best first, at most 50.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)

	searchCmd.Flags().String("mode", search.ModeSong, "what to match: song or artist")
	searchCmd.Flags().Float64("threshold", -1, "minimum score 0-100 (default from config, 70)")
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	mode, _ := cmd.Flags().GetString("mode")
	if !search.ValidMode(mode) {
		return fmt.Errorf("%w: %q (use song or artist)", util.ErrInvalidMode, mode)
	}

	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	threshold, _ := cmd.Flags().GetFloat64("threshold")
	if threshold < 0 {
		threshold = s.cfg.Threshold
	}
	if threshold > 100 {
		return fmt.Errorf("threshold must be between 0 and 100, got %v", threshold)
	}

	// Matching is case sensitive; queries are lower-cased here
	query := strings.ToLower(strings.Join(args, " "))
	matches, err := search.Search(ctx, s.store, query, mode, threshold)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	s.logger.LogSearch(query, mode, threshold, len(matches))

	if len(matches) == 0 {
		util.InfoLog("No %s matches for %q at threshold %.0f", mode, query, threshold)
		return nil
	}

	renderMatches(cmd, matches)
	return nil
}

func renderMatches(cmd *cobra.Command, matches []search.Match) {
	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Score", "ID", "Artist", "Title", "Path"})

	for _, m := range matches {
		t.AppendRow(table.Row{scoreColor(m.Score).Sprintf("%.1f", m.Score), m.ID, m.Artist, m.Title, m.Path})
	}
	t.Render()
}

func scoreColor(score float64) *color.Color {
	switch {
	case score >= 90:
		return color.New(color.FgGreen)
	case score >= 80:
		return color.New(color.FgYellow)
	default:
		return color.New(color.Reset)
	}
}
