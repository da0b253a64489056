// Package config builds the application configuration once at startup.
// Components receive the values they need from Config instead of reading
// viper themselves.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"

	"github.com/franz/songsearch/internal/util"
)

const (
	AppName    = "SongSearch"
	AppVersion = "1.0"

	// DefaultTemplate lays files out as year/month/genre/artist.
	DefaultTemplate = "{year}/{month}/{genre}/{artist}/{artist} - {title}{ext}"

	DefaultThreshold = 70
)

// DefaultExtensions are the audio file extensions picked up by indexing and planning.
var DefaultExtensions = []string{".mp3", ".flac", ".wav", ".aiff", ".ogg", ".aac", ".m4a", ".mp4"}

// Config holds every tunable value of the application
type Config struct {
	DataDir      string
	DBPath       string
	ArtifactsDir string

	Threshold float64
	Template  string

	AcoustIDKey string
	MBAppName   string
	MBVersion   string
	MBContact   string

	Extensions []string
	Workers    int
}

// DataDir returns the default data directory, honouring SONGSEARCH_DATA_DIR.
func DataDir() string {
	if explicit := os.Getenv("SONGSEARCH_DATA_DIR"); explicit != "" {
		return explicit
	}

	xdg.Reload()

	dataHome := xdg.DataHome
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(os.TempDir(), "songsearch")
		}
		dataHome = filepath.Join(home, ".local", "share")
	}

	return filepath.Join(dataHome, "songsearch")
}

// SetDefaults registers default values and environment bindings on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", DataDir())
	v.SetDefault("threshold", DefaultThreshold)
	v.SetDefault("template", DefaultTemplate)
	v.SetDefault("mb_app", AppName)
	v.SetDefault("mb_version", AppVersion)
	v.SetDefault("mb_contact", "")
	v.SetDefault("extensions", DefaultExtensions)
	v.SetDefault("workers", runtime.NumCPU())

	v.SetEnvPrefix("SONGSEARCH")
	v.AutomaticEnv()
	// The AcoustID key is conventionally exported without our prefix
	_ = v.BindEnv("acoustid_key", "SONGSEARCH_ACOUSTID_KEY", "ACOUSTID_API_KEY")
}

// Load reads the configuration from v. Paths not given explicitly are derived
// from data_dir.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		DataDir:      v.GetString("data_dir"),
		DBPath:       v.GetString("db"),
		ArtifactsDir: v.GetString("artifacts"),
		Threshold:    v.GetFloat64("threshold"),
		Template:     v.GetString("template"),
		AcoustIDKey:  strings.TrimSpace(v.GetString("acoustid_key")),
		MBAppName:    v.GetString("mb_app"),
		MBVersion:    v.GetString("mb_version"),
		MBContact:    v.GetString("mb_contact"),
		Workers:      v.GetInt("workers"),
	}

	if cfg.DataDir == "" {
		cfg.DataDir = DataDir()
	}
	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join(cfg.DataDir, "songsearch.db")
	}
	if cfg.ArtifactsDir == "" {
		cfg.ArtifactsDir = filepath.Join(cfg.DataDir, "artifacts")
	}
	if cfg.Template == "" {
		cfg.Template = DefaultTemplate
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}

	for _, ext := range v.GetStringSlice("extensions") {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		cfg.Extensions = append(cfg.Extensions, ext)
	}
	if len(cfg.Extensions) == 0 {
		cfg.Extensions = append([]string(nil), DefaultExtensions...)
	}

	if cfg.Threshold < 0 || cfg.Threshold > 100 {
		return nil, fmt.Errorf("%w: threshold must be between 0 and 100, got %v", util.ErrInvalidConfig, cfg.Threshold)
	}

	return cfg, nil
}

// UserAgent is the identification string sent to MusicBrainz.
func (c *Config) UserAgent() string {
	ua := fmt.Sprintf("%s/%s", c.MBAppName, c.MBVersion)
	if c.MBContact != "" {
		ua += fmt.Sprintf(" ( %s )", c.MBContact)
	}
	return ua
}

// ExtensionSet returns the configured extensions as a lookup map.
func (c *Config) ExtensionSet() map[string]bool {
	set := make(map[string]bool, len(c.Extensions))
	for _, ext := range c.Extensions {
		set[ext] = true
	}
	return set
}
