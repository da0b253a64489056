package meta

import (
	"context"
	"errors"
	"testing"

	"github.com/franz/songsearch/internal/util"
)

func TestFFprobeDurationSeconds(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected float64
	}{
		{
			name:     "format duration",
			input:    `{"format": {"format_name": "mp3", "duration": "215.432"}}`,
			expected: 215.432,
		},
		{
			name:     "stream fallback",
			input:    `{"streams": [{"codec_type": "audio", "duration": "12.5"}], "format": {"duration": "N/A"}}`,
			expected: 12.5,
		},
		{
			name:     "unknown",
			input:    `{"streams": [], "format": {}}`,
			expected: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var info FFprobeInfo
			if err := json.Unmarshal([]byte(tt.input), &info); err != nil {
				t.Fatalf("Failed to unmarshal: %v", err)
			}
			if got := info.DurationSeconds(); got != tt.expected {
				t.Errorf("DurationSeconds() = %v, expected %v", got, tt.expected)
			}
		})
	}
}

func TestRunFFprobeMissingBinary(t *testing.T) {
	t.Setenv("PATH", t.TempDir())

	if CheckFFprobeAvailable() {
		t.Fatal("ffprobe should not be found on an empty PATH")
	}
	if _, err := RunFFprobe(context.Background(), "song.mp3"); !errors.Is(err, util.ErrNotFound) {
		t.Errorf("RunFFprobe error = %v, want ErrNotFound", err)
	}
}
