package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/franz/songsearch/internal/config"
	"github.com/franz/songsearch/internal/fingerprint"
	"github.com/franz/songsearch/internal/musicbrainz"
	"github.com/franz/songsearch/internal/store"
	"github.com/franz/songsearch/internal/util"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run diagnostic checks on the environment and configuration",
	Long: `Run diagnostic checks to see what songsearch can do on this machine.

This command checks:
- fpcalc, needed for AcoustID lookups
- ffprobe, used to record durations while indexing
- the AcoustID API key
- the catalogue database and the MusicBrainz genre cache`,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

type checkResult struct {
	name    string
	message string
	error   bool
	warning bool
}

func runDoctor(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	util.InfoLog("=== SongSearch Doctor ===")
	util.InfoLog("")

	results := []checkResult{
		checkFpcalc(),
		checkFFprobe(),
		checkAcoustIDKey(cfg.AcoustIDKey),
		checkSQLite(),
		checkDatabase(cfg.DBPath),
		checkMusicBrainzIdentity(cfg),
	}

	hasErrors := false
	hasWarnings := false

	for _, r := range results {
		symbol := "✓"
		if r.error {
			symbol = "✗"
			hasErrors = true
		} else if r.warning {
			symbol = "⚠"
			hasWarnings = true
		}

		line := fmt.Sprintf("[%s] %s", symbol, r.name)
		if r.message != "" {
			line += fmt.Sprintf(": %s", r.message)
		}

		if r.error {
			util.ErrorLog("%s", line)
		} else if r.warning {
			util.WarnLog("%s", line)
		} else {
			util.SuccessLog("%s", line)
		}
	}

	util.InfoLog("")
	if hasErrors {
		return fmt.Errorf("system diagnostics failed")
	} else if hasWarnings {
		util.WarnLog("Some features are unavailable; see the warnings above.")
	} else {
		util.SuccessLog("All checks passed.")
	}

	return nil
}

// toolVersion runs "<name> -version" and returns the given field of the
// first output line
func toolVersion(name string, field int) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	output, err := exec.CommandContext(ctx, name, "-version").CombinedOutput()
	if err != nil {
		return "", err
	}

	first, _, _ := strings.Cut(string(output), "\n")
	if parts := strings.Fields(first); len(parts) > field {
		return parts[field], nil
	}
	return "unknown", nil
}

// checkFpcalc verifies fpcalc is available
func checkFpcalc() checkResult {
	name := "fpcalc"
	if !fingerprint.Available() {
		return checkResult{
			name:    name,
			warning: true,
			message: "not found (AcoustID and MusicBrainz lookups are disabled)",
		}
	}

	version, err := toolVersion(fingerprint.Binary, 1)
	if err != nil {
		return checkResult{name: name, warning: true, message: fmt.Sprintf("found at %s but not runnable: %v", fingerprint.Path(), err)}
	}
	return checkResult{name: name, message: fmt.Sprintf("version %s", version)}
}

// checkFFprobe verifies ffprobe is available
func checkFFprobe() checkResult {
	name := "ffprobe"
	version, err := toolVersion("ffprobe", 2)
	if err != nil {
		return checkResult{
			name:    name,
			warning: true,
			message: "not found (durations will not be recorded)",
		}
	}
	return checkResult{name: name, message: fmt.Sprintf("version %s", version)}
}

func checkAcoustIDKey(key string) checkResult {
	if key == "" {
		return checkResult{
			name:    "AcoustID key",
			warning: true,
			message: "not set (export ACOUSTID_API_KEY to enable lookups)",
		}
	}
	return checkResult{name: "AcoustID key", message: "configured"}
}

func checkMusicBrainzIdentity(cfg *config.Config) checkResult {
	if cfg.MBContact == "" {
		return checkResult{
			name:    "MusicBrainz",
			warning: true,
			message: fmt.Sprintf("user agent %q has no contact; set mb_contact", cfg.UserAgent()),
		}
	}
	return checkResult{name: "MusicBrainz", message: fmt.Sprintf("user agent %q", cfg.UserAgent())}
}

// checkSQLite verifies the embedded SQLite works
func checkSQLite() checkResult {
	version := store.SQLiteVersion()
	if version == "" {
		return checkResult{
			name:    "SQLite",
			error:   true,
			message: "unable to determine version",
		}
	}

	return checkResult{
		name:    "SQLite",
		message: fmt.Sprintf("version %s (built-in)", version),
	}
}

// checkDatabase verifies the catalogue is accessible and reports its contents
func checkDatabase(dbPath string) checkResult {
	info, err := os.Stat(dbPath)
	if err != nil {
		if os.IsNotExist(err) {
			return checkResult{
				name:    "Database",
				message: fmt.Sprintf("%s (will be created on first run)", dbPath),
			}
		}
		return checkResult{
			name:    "Database",
			error:   true,
			message: fmt.Sprintf("cannot access %s: %v", dbPath, err),
		}
	}

	if !info.Mode().IsRegular() {
		return checkResult{
			name:    "Database",
			error:   true,
			message: fmt.Sprintf("%s is not a regular file", dbPath),
		}
	}

	db, err := store.Open(dbPath)
	if err != nil {
		return checkResult{
			name:    "Database",
			error:   true,
			message: fmt.Sprintf("cannot open %s: %v", dbPath, err),
		}
	}
	defer db.Close()

	if err := db.CheckIntegrity(); err != nil {
		return checkResult{
			name:    "Database",
			error:   true,
			message: fmt.Sprintf("integrity check failed: %v", err),
		}
	}

	version, err := db.SchemaVersion()
	if err != nil {
		return checkResult{
			name:    "Database",
			error:   true,
			message: fmt.Sprintf("migrations: %v", err),
		}
	}

	songs, _ := db.Count()
	msg := fmt.Sprintf("%s (schema v%d, %s, %d songs", dbPath, version, humanize.Bytes(uint64(info.Size())), songs)

	if statuses, err := db.CountByMoveStatus(); err == nil {
		msg += formatStatuses(statuses)
	}

	cache := musicbrainz.NewCache(db.DB(), nil)
	if entries, hits, err := cache.GetStats(); err == nil {
		msg += fmt.Sprintf(", %d cached genres, %d cache hits", entries, hits)
	}

	return checkResult{name: "Database", message: msg + ")"}
}

// formatStatuses lists move statuses other than "never planned" in a stable order
func formatStatuses(statuses map[string]int) string {
	keys := make([]string, 0, len(statuses))
	for k := range statuses {
		if k != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, ", %d %s", statuses[k], k)
	}
	return b.String()
}
