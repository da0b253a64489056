package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/franz/songsearch/internal/execute"
	"github.com/franz/songsearch/internal/util"
)

var applyCmd = &cobra.Command{
	Use:   "apply <dest> <files or dirs...>",
	Short: "Plan and move files into the organised layout",
	Long: `Plan the files exactly like "plan" does, then move every file with an ok
entry to its proposed path. Parent folders are created as needed and an
existing file at the destination is never overwritten. Moves across
filesystems copy, verify the size, then remove the source.

Catalogued songs follow their files: the catalogue records the final path
and whether the move succeeded.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runApply,
}

func init() {
	rootCmd.AddCommand(applyCmd)

	applyCmd.Flags().String("template", "", "destination template (default from config)")
	applyCmd.Flags().BoolP("yes", "y", false, "do not ask for confirmation")
	applyCmd.Flags().String("verify", execute.VerifySize, "verification of cross-filesystem copies: none, size or hash")
}

func runApply(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	verify, _ := cmd.Flags().GetString("verify")
	switch verify {
	case execute.VerifyNone, execute.VerifySize, execute.VerifyHash:
	default:
		return fmt.Errorf("%w: unknown verify mode %q", util.ErrInvalidConfig, verify)
	}

	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	template, _ := cmd.Flags().GetString("template")
	result, err := buildPlan(ctx, s, args[0], args[1:], template)
	if err != nil {
		return err
	}
	if result.Cancelled {
		util.WarnLog("Planning was interrupted; nothing was moved")
		return nil
	}

	renderPlan(cmd, result.Entries, false)
	if result.OK == 0 {
		util.WarnLog("No file can be moved")
		return nil
	}

	if yes, _ := cmd.Flags().GetBool("yes"); !yes {
		if !confirm(fmt.Sprintf("Move %d files into %s?", result.OK, args[0])) {
			util.InfoLog("Aborted")
			return nil
		}
	}

	executor := execute.New(&execute.Config{
		Store:      s.store,
		VerifyMode: verify,
		Logger:     s.logger,
		Progress:   progressCallback("Moving", len(result.Entries)),
	})

	applied, err := executor.Apply(ctx, result.Entries)
	if err != nil {
		return fmt.Errorf("apply failed: %w", err)
	}

	for _, e := range applied.Errors {
		util.ErrorLog("%v", e)
	}

	// The report counts what actually happened on disk
	result.OK = applied.Succeeded
	result.Failed += applied.Failed
	result.Cancelled = applied.Cancelled
	result.Duration += applied.Duration
	writeSummary(s, "apply", args[0], template, "", result, applied.BytesWritten)

	if applied.Cancelled {
		util.WarnLog("Apply was interrupted; %d files moved so far", applied.Succeeded)
	}
	util.SuccessLog("Moved %d files (%s), %d skipped, %d failed",
		applied.Succeeded, humanize.Bytes(uint64(applied.BytesWritten)), applied.Skipped, applied.Failed)

	if applied.Failed > 0 {
		return fmt.Errorf("%d files could not be moved", applied.Failed)
	}
	return nil
}

// confirm asks a yes/no question on stdin; anything but y/yes is a no
func confirm(question string) bool {
	fmt.Fprintf(os.Stderr, "%s [y/N] ", question)
	answer, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}
