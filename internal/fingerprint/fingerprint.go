// Package fingerprint computes Chromaprint acoustic fingerprints with fpcalc.
package fingerprint

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/franz/songsearch/internal/util"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Binary is the name of the Chromaprint command line tool
const Binary = "fpcalc"

// Result is an acoustic fingerprint and the duration it covers
type Result struct {
	Fingerprint string  `json:"fingerprint"`
	Duration    float64 `json:"duration"`
}

// Path returns the location of fpcalc on PATH, or "" when it is not installed.
func Path() string {
	p, err := exec.LookPath(Binary)
	if err != nil {
		return ""
	}
	return p
}

// Available reports whether fpcalc is installed
func Available() bool {
	return Path() != ""
}

// Compute fingerprints the audio file at path.
// Returns util.ErrNotFound when fpcalc is not installed.
func Compute(ctx context.Context, path string) (*Result, error) {
	bin := Path()
	if bin == "" {
		return nil, util.ErrNotFound
	}

	cmd := exec.CommandContext(ctx, bin, "-json", path)
	output, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("fpcalc failed: %s", strings.TrimSpace(string(exitErr.Stderr)))
		}
		return nil, fmt.Errorf("fpcalc execution failed: %w", err)
	}

	var result Result
	if err := json.Unmarshal(output, &result); err != nil {
		return nil, fmt.Errorf("failed to parse fpcalc output: %w", err)
	}
	if result.Fingerprint == "" {
		return nil, fmt.Errorf("fpcalc returned no fingerprint for %s", path)
	}

	return &result, nil
}
