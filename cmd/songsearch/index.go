package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/franz/songsearch/internal/scan"
	"github.com/franz/songsearch/internal/util"
)

var indexCmd = &cobra.Command{
	Use:   "index <dir>",
	Short: "Add the audio files of a folder to the catalogue",
	Long: `Walk a folder recursively and catalogue every audio file with one of the
configured extensions. Tags, size and modification time are read for each
new file; the duration is read when ffprobe is installed.

Files already in the catalogue are left untouched, so indexing the same
folder again only picks up new files. Press Ctrl-C to stop early; files
read so far are kept.`,
	Args: cobra.ExactArgs(1),
	RunE: runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	duration := scan.FFprobeDuration()
	if duration == nil {
		util.WarnLog("ffprobe not found; durations will not be recorded")
	}

	scanner := scan.New(&scan.Config{
		Store:       s.store,
		Duration:    duration,
		Extensions:  s.cfg.Extensions,
		Concurrency: s.cfg.Workers,
		Logger:      s.logger,
	})

	result, err := scanner.Scan(ctx, args[0])
	if err != nil {
		return fmt.Errorf("index failed: %w", err)
	}

	util.InfoLog("Found %d audio files: %d added, %d already catalogued", result.FilesFound, result.FilesInserted, result.FilesSkipped)
	for _, e := range result.Errors {
		util.WarnLog("%v", e)
	}
	if result.Cancelled {
		util.WarnLog("Indexing was interrupted; run it again to pick up the remaining files")
	} else {
		util.SuccessLog("Indexing complete in %s", result.Duration.Round(time.Millisecond))
	}

	return nil
}
