package report

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// SummaryReport describes one planning or apply run
type SummaryReport struct {
	GeneratedAt time.Time
	Command     string
	RunID       string
	Duration    time.Duration

	Total     int
	OK        int
	Failed    int
	Cancelled bool
	Bytes     int64

	DestinationPath string
	Template        string
	EventLogPath    string
	CSVPath         string

	TopErrors []ErrorSummary
}

// ErrorSummary represents an error reason with its count
type ErrorSummary struct {
	Error string
	Count int
}

// TopErrors counts identical failure reasons and returns the most common ones
func TopErrors(reasons []string, limit int) []ErrorSummary {
	counts := make(map[string]int)
	for _, r := range reasons {
		if r != "" {
			counts[r]++
		}
	}

	errs := make([]ErrorSummary, 0, len(counts))
	for reason, count := range counts {
		errs = append(errs, ErrorSummary{Error: reason, Count: count})
	}

	sort.Slice(errs, func(i, j int) bool {
		if errs[i].Count != errs[j].Count {
			return errs[i].Count > errs[j].Count
		}
		return errs[i].Error < errs[j].Error
	})

	if limit > 0 && len(errs) > limit {
		errs = errs[:limit]
	}
	return errs
}

// WriteMarkdownReport writes the summary report as Markdown
func WriteMarkdownReport(report *SummaryReport, outputPath string) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	var md strings.Builder

	md.WriteString(fmt.Sprintf("# SongSearch %s report\n\n", report.Command))
	md.WriteString(fmt.Sprintf("**Generated:** %s\n\n", report.GeneratedAt.Format("2006-01-02 15:04:05")))
	if report.RunID != "" {
		md.WriteString(fmt.Sprintf("**Run:** `%s`\n\n", report.RunID))
	}
	if report.EventLogPath != "" {
		md.WriteString(fmt.Sprintf("**Event Log:** `%s`\n\n", report.EventLogPath))
	}
	if report.CSVPath != "" {
		md.WriteString(fmt.Sprintf("**Plan CSV:** `%s`\n\n", report.CSVPath))
	}

	md.WriteString("| Metric | Value |\n")
	md.WriteString("|--------|-------|\n")
	md.WriteString(fmt.Sprintf("| Files | %d |\n", report.Total))
	md.WriteString(fmt.Sprintf("| OK | %d |\n", report.OK))
	md.WriteString(fmt.Sprintf("| Failed | %d |\n", report.Failed))
	if report.Cancelled {
		md.WriteString("| Cancelled | yes |\n")
	}
	if report.Bytes > 0 {
		md.WriteString(fmt.Sprintf("| Moved | %s |\n", humanize.Bytes(uint64(report.Bytes))))
	}
	if report.DestinationPath != "" {
		md.WriteString(fmt.Sprintf("| Destination | `%s` |\n", report.DestinationPath))
	}
	if report.Template != "" {
		md.WriteString(fmt.Sprintf("| Template | `%s` |\n", report.Template))
	}
	if report.Duration > 0 {
		md.WriteString(fmt.Sprintf("| Time | %s |\n", report.Duration.Round(time.Millisecond)))
	}
	md.WriteString("\n")

	if len(report.TopErrors) > 0 {
		md.WriteString("## Top Errors\n\n")
		md.WriteString("| Count | Error |\n")
		md.WriteString("|-------|-------|\n")
		for _, e := range report.TopErrors {
			md.WriteString(fmt.Sprintf("| %d | %s |\n", e.Count, strings.ReplaceAll(e.Error, "|", `\|`)))
		}
		md.WriteString("\n")
	}

	if err := os.WriteFile(outputPath, []byte(md.String()), 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	return nil
}
