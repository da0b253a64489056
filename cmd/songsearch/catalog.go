package main

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/franz/songsearch/internal/musicbrainz"
	"github.com/franz/songsearch/internal/util"
)

var locateCmd = &cobra.Command{
	Use:   "locate <id|name> <new-path>",
	Short: "Record that a song now lives somewhere else",
	Long: `Update the stored location of a song after moving it by hand.

The song is identified by its catalogue id or by its file name. A numeric
reference is tried as an id first and falls back to the name.`,
	Args: cobra.ExactArgs(2),
	RunE: runLocate,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List catalogued songs",
	RunE:  runList,
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every song from the catalogue",
	Long: `Remove every song from the catalogue. Audio files are not touched and
the MusicBrainz genre cache is kept.

With --cache the genre cache is cleared instead and the songs are kept;
--older-than limits that to entries cached longer ago than the given
duration (for example 720h).`,
	RunE: runClear,
}

func init() {
	rootCmd.AddCommand(locateCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(clearCmd)

	listCmd.Flags().Int("limit", 50, "maximum number of songs to show (0 for all)")
	clearCmd.Flags().BoolP("yes", "y", false, "do not ask for confirmation")
	clearCmd.Flags().Bool("cache", false, "clear the MusicBrainz genre cache instead of the songs")
	clearCmd.Flags().Duration("older-than", 0, "with --cache, only remove entries older than this")
}

func runLocate(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	ref, newPath := args[0], args[1]
	rows, err := s.store.UpdateLocation(ref, newPath)
	if err != nil {
		return err
	}
	s.logger.LogLocate(ref, newPath, rows)

	if rows == 0 {
		return fmt.Errorf("%w: no song with id or name %q", util.ErrNotFound, ref)
	}
	util.SuccessLog("Updated %d song(s): %s -> %s", rows, ref, newPath)
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	limit, _ := cmd.Flags().GetInt("limit")
	songs, err := s.store.ListSongs(limit)
	if err != nil {
		return err
	}
	total, err := s.store.Count()
	if err != nil {
		return err
	}

	if len(songs) == 0 {
		util.InfoLog("The catalogue is empty; add songs with \"songsearch index <dir>\"")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"ID", "Artist", "Title", "Album", "Year", "Size", "Path"})
	for _, song := range songs {
		t.AppendRow(table.Row{song.ID, song.Artist, song.Title, song.Album, song.Year, humanize.Bytes(uint64(song.Size)), song.Path})
	}
	t.AppendFooter(table.Row{"", "", "", "", "", "Total", fmt.Sprintf("%d of %d songs", len(songs), total)})
	t.Render()

	return nil
}

func runClear(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	if clearCache, _ := cmd.Flags().GetBool("cache"); clearCache {
		olderThan, _ := cmd.Flags().GetDuration("older-than")
		removed, err := clearGenreCache(s.store.DB(), olderThan)
		if err != nil {
			return fmt.Errorf("failed to clear genre cache: %w", err)
		}
		util.SuccessLog("Removed %d cached genres", removed)
		return nil
	}

	total, err := s.store.Count()
	if err != nil {
		return err
	}
	if total == 0 {
		util.InfoLog("The catalogue is already empty")
		return nil
	}

	if yes, _ := cmd.Flags().GetBool("yes"); !yes {
		if !confirm(fmt.Sprintf("Remove all %d songs from the catalogue?", total)) {
			util.InfoLog("Aborted")
			return nil
		}
	}

	if err := s.store.ClearAll(); err != nil {
		return err
	}
	util.SuccessLog("Removed %d songs from the catalogue", total)
	return nil
}

// clearGenreCache removes cached genres, all of them when olderThan is zero
func clearGenreCache(db *sql.DB, olderThan time.Duration) (int, error) {
	cache := musicbrainz.NewCache(db, nil)
	if olderThan > 0 {
		return cache.ClearOldEntries(olderThan)
	}

	entries, _, err := cache.GetStats()
	if err != nil {
		return 0, err
	}
	if err := cache.ClearCache(); err != nil {
		return 0, err
	}
	return entries, nil
}
