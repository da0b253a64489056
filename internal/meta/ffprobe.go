package meta

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"

	jsoniter "github.com/json-iterator/go"

	"github.com/franz/songsearch/internal/util"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// FFprobeInfo is the subset of ffprobe output used for indexing
type FFprobeInfo struct {
	Streams []FFprobeStream `json:"streams"`
	Format  *FFprobeFormat  `json:"format"`
}

// FFprobeStream represents an audio stream
type FFprobeStream struct {
	CodecName string `json:"codec_name"`
	CodecType string `json:"codec_type"`
	Duration  string `json:"duration"`
}

// FFprobeFormat represents container format metadata
type FFprobeFormat struct {
	FormatName string `json:"format_name"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
}

// DurationSeconds returns the container duration, falling back to the first
// stream that reports one. Zero means unknown.
func (i *FFprobeInfo) DurationSeconds() float64 {
	if i == nil {
		return 0
	}
	if i.Format != nil {
		if d, err := strconv.ParseFloat(i.Format.Duration, 64); err == nil && d > 0 {
			return d
		}
	}
	for _, s := range i.Streams {
		if d, err := strconv.ParseFloat(s.Duration, 64); err == nil && d > 0 {
			return d
		}
	}
	return 0
}

// RunFFprobe executes ffprobe and parses the JSON output.
// Returns util.ErrNotFound when ffprobe is not installed.
func RunFFprobe(ctx context.Context, path string) (*FFprobeInfo, error) {
	bin, err := exec.LookPath("ffprobe")
	if err != nil {
		return nil, util.ErrNotFound
	}

	cmd := exec.CommandContext(ctx, bin,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)

	output, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("ffprobe failed: %s", string(exitErr.Stderr))
		}
		return nil, fmt.Errorf("ffprobe execution failed: %w", err)
	}

	var info FFprobeInfo
	if err := json.Unmarshal(output, &info); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	return &info, nil
}

// CheckFFprobeAvailable checks if ffprobe is available in PATH
func CheckFFprobeAvailable() bool {
	_, err := exec.LookPath("ffprobe")
	return err == nil
}
