package config

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"

	"github.com/franz/songsearch/internal/util"
)

func TestLoadDefaults(t *testing.T) {
	dataDir := t.TempDir()
	t.Setenv("SONGSEARCH_DATA_DIR", dataDir)
	t.Setenv("ACOUSTID_API_KEY", "")

	v := viper.New()
	SetDefaults(v)

	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.DataDir != dataDir {
		t.Errorf("DataDir = %q, want %q", cfg.DataDir, dataDir)
	}
	if cfg.DBPath != filepath.Join(dataDir, "songsearch.db") {
		t.Errorf("DBPath = %q", cfg.DBPath)
	}
	if cfg.Threshold != DefaultThreshold {
		t.Errorf("Threshold = %v, want %v", cfg.Threshold, DefaultThreshold)
	}
	if cfg.Template != DefaultTemplate {
		t.Errorf("Template = %q", cfg.Template)
	}
	if len(cfg.Extensions) != len(DefaultExtensions) {
		t.Errorf("Extensions = %v", cfg.Extensions)
	}
	if cfg.AcoustIDKey != "" {
		t.Errorf("AcoustIDKey = %q, want empty", cfg.AcoustIDKey)
	}
	if got := cfg.UserAgent(); got != "SongSearch/1.0" {
		t.Errorf("UserAgent = %q", got)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("SONGSEARCH_DATA_DIR", t.TempDir())
	t.Setenv("ACOUSTID_API_KEY", " secret ")
	t.Setenv("SONGSEARCH_MB_CONTACT", "me@example.com")

	v := viper.New()
	SetDefaults(v)
	v.Set("extensions", []string{"MP3", ".Flac", ""})

	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.AcoustIDKey != "secret" {
		t.Errorf("AcoustIDKey = %q, want %q", cfg.AcoustIDKey, "secret")
	}
	if got := cfg.UserAgent(); got != "SongSearch/1.0 ( me@example.com )" {
		t.Errorf("UserAgent = %q", got)
	}
	set := cfg.ExtensionSet()
	if !set[".mp3"] || !set[".flac"] || len(set) != 2 {
		t.Errorf("ExtensionSet = %v", set)
	}
}

func TestLoadRejectsBadThreshold(t *testing.T) {
	t.Setenv("SONGSEARCH_DATA_DIR", t.TempDir())

	v := viper.New()
	SetDefaults(v)
	v.Set("threshold", 150)

	if _, err := Load(v); !errors.Is(err, util.ErrInvalidConfig) {
		t.Errorf("Load error = %v, want ErrInvalidConfig", err)
	}
}
