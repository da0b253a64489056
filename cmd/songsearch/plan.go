package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/franz/songsearch/internal/meta"
	"github.com/franz/songsearch/internal/plan"
	"github.com/franz/songsearch/internal/report"
	"github.com/franz/songsearch/internal/util"
)

var planCmd = &cobra.Command{
	Use:   "plan <dest> <files or dirs...>",
	Short: "Propose an organised location for each file",
	Long: `Propose where each file should live under <dest>, following the
destination template (default {year}/{month}/{genre}/{artist}/{artist} - {title}{ext}).

Metadata comes from the embedded tags, overridden by AcoustID and MusicBrainz
when fpcalc is installed and an AcoustID key is configured. Nothing is moved:
the plan is written as CSV together with a Markdown summary in the artifacts
directory. Use --save to remember the proposed paths in the catalogue.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runPlan,
}

func init() {
	rootCmd.AddCommand(planCmd)

	planCmd.Flags().String("template", "", "destination template (default from config)")
	planCmd.Flags().String("csv", "", "write the plan to this CSV file (default in the artifacts directory)")
	planCmd.Flags().Bool("save", false, "record proposed paths for catalogued songs")
	planCmd.Flags().Bool("show", false, "print every entry instead of only the failures")
}

func runPlan(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

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

	csvPath, _ := cmd.Flags().GetString("csv")
	if csvPath == "" {
		csvPath = s.artifactPath("plan", ".csv")
	}
	ok, failed, err := plan.ExportCSV(result.Entries, csvPath)
	if err != nil {
		return fmt.Errorf("failed to export plan: %w", err)
	}
	util.SuccessLog("Plan written to %s (%d ok, %d failed)", csvPath, ok, failed)

	if save, _ := cmd.Flags().GetBool("save"); save {
		recorded := 0
		for _, e := range result.Entries {
			if !e.OK() {
				continue
			}
			n, err := s.store.RecordPlan(e.OriginalPath, e.ProposedPath)
			if err != nil {
				util.WarnLog("Failed to record plan for %s: %v", e.OriginalPath, err)
				continue
			}
			recorded += int(n)
		}
		util.InfoLog("Recorded %d proposed paths in the catalogue", recorded)
	}

	showAll, _ := cmd.Flags().GetBool("show")
	renderPlan(cmd, result.Entries, showAll)

	writeSummary(s, "plan", args[0], template, csvPath, result, 0)
	if result.Cancelled {
		util.WarnLog("Planning was interrupted after %d of %d files", len(result.Entries), result.Total)
	}
	return nil
}

// buildPlan collects the files named by paths and plans each of them under dest
func buildPlan(ctx context.Context, s *session, dest string, paths []string, template string) (*plan.Result, error) {
	if template == "" {
		template = s.cfg.Template
	}

	absDest, err := filepath.Abs(dest)
	if err != nil {
		return nil, fmt.Errorf("invalid destination %s: %w", dest, err)
	}

	files, err := collectAudioFiles(paths, s.cfg.ExtensionSet())
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no audio files found in %v", paths)
	}

	enricher, closeClients := s.newEnricher()
	defer closeClients()

	planner, err := plan.New(&plan.Config{
		Tags:     meta.NewTagReader(),
		Enricher: enricher,
		Template: template,
		Workers:  s.cfg.Workers,
		Logger:   s.logger,
		Progress: progressCallback("Planning", len(files)),
	})
	if err != nil {
		return nil, err
	}

	util.InfoLog("Planning %d files into %s", len(files), absDest)
	result, err := planner.Plan(ctx, files, absDest)
	if err != nil {
		return nil, fmt.Errorf("planning failed: %w", err)
	}

	util.InfoLog("Planned %d files: %d ok, %d failed (%s)", len(result.Entries), result.OK, result.Failed, result.Duration.Round(time.Millisecond))
	return result, nil
}

func renderPlan(cmd *cobra.Command, entries []plan.Entry, showAll bool) {
	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Status", "File", "Destination / Reason"})

	rows := 0
	for _, e := range entries {
		if e.OK() && !showAll {
			continue
		}
		target := e.ProposedPath
		if !e.OK() {
			target = e.Reason
		}
		t.AppendRow(table.Row{e.Status, e.OriginalPath, target})
		rows++
	}

	if rows > 0 {
		t.Render()
	}
}

// writeSummary writes the Markdown report of a plan or apply run
func writeSummary(s *session, command, dest, template, csvPath string, result *plan.Result, bytes int64) {
	var reasons []string
	for _, e := range result.Entries {
		if !e.OK() {
			reasons = append(reasons, e.Reason)
		}
	}
	if template == "" {
		template = s.cfg.Template
	}

	summary := &report.SummaryReport{
		GeneratedAt:     time.Now(),
		Command:         command,
		RunID:           s.logger.RunID(),
		Duration:        result.Duration,
		Total:           result.Total,
		OK:              result.OK,
		Failed:          result.Failed,
		Cancelled:       result.Cancelled,
		Bytes:           bytes,
		DestinationPath: dest,
		Template:        template,
		EventLogPath:    s.logger.Path(),
		CSVPath:         csvPath,
		TopErrors:       report.TopErrors(reasons, 10),
	}

	path := s.artifactPath(command, ".md")
	if err := report.WriteMarkdownReport(summary, path); err != nil {
		util.WarnLog("Failed to write summary report: %v", err)
		return
	}
	util.InfoLog("Summary written to %s", path)
}
