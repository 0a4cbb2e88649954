package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// CaptureMode selects which clipboard representations are captured when more
// than one is present at the same time.
type CaptureMode string

const (
	CaptureTextOnly  CaptureMode = "text_only"
	CaptureImageOnly CaptureMode = "image_only"
	CaptureBoth      CaptureMode = "both"
	CaptureBothAsOne CaptureMode = "both_as_one"
)

// Valid reports whether m is a known capture mode.
func (m CaptureMode) Valid() bool {
	switch m {
	case CaptureTextOnly, CaptureImageOnly, CaptureBoth, CaptureBothAsOne:
		return true
	}
	return false
}

// Config holds application configuration.
type Config struct {
	// BaseDir is where the database, config file, and exports live.
	BaseDir string `mapstructure:"-"`

	CaptureMode    CaptureMode `mapstructure:"capture_mode"`
	PollIntervalMS int         `mapstructure:"poll_interval_ms"`

	// MaxFileBytes bounds clipboard file reads. Over-limit files are dropped
	// with a warning, never captured.
	MaxFileBytes int64 `mapstructure:"max_file_bytes"`

	// PreviewChars is the length of the derived content preview.
	PreviewChars int `mapstructure:"preview_chars"`

	// PageSize is the working-window page size for offset-based load-more.
	PageSize    int `mapstructure:"page_size"`
	SearchLimit int `mapstructure:"search_limit"`

	RetentionEnabled bool `mapstructure:"retention_enabled"`
	MaxRecordsToKeep int  `mapstructure:"max_records_to_keep"`

	MemoryCleanupEnabled         bool `mapstructure:"memory_cleanup_enabled"`
	MemoryCleanupIntervalMinutes int  `mapstructure:"memory_cleanup_interval_minutes"`
	InactivityThresholdMinutes   int  `mapstructure:"inactivity_threshold_minutes"`

	ExclusionEnabled bool `mapstructure:"exclusion_enabled"`

	ThumbnailMaxPx int `mapstructure:"thumbnail_max_px"`

	// DBMaxOpenConns limits open database connections. If set to 1, all
	// database access is serialized. 0 means use sql.DB defaults.
	DBMaxOpenConns int `mapstructure:"db_max_open_conns"`
	DBMaxIdleConns int `mapstructure:"db_max_idle_conns"`
}

// DefaultBaseDir returns ~/.clipkeep.
func DefaultBaseDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".clipkeep"), nil
}

// Load reads configuration from baseDir/config.yaml with CLIPKEEP_* env
// overrides. Missing file means defaults. The baseDir parameter lets tests
// use t.TempDir() instead of ~/.clipkeep.
func Load(baseDir string) (*Config, error) {
	v := viper.New()

	v.SetDefault("capture_mode", string(CaptureTextOnly))
	v.SetDefault("poll_interval_ms", 500)
	v.SetDefault("max_file_bytes", int64(100*1024*1024))
	v.SetDefault("preview_chars", 200)
	v.SetDefault("page_size", 50)
	v.SetDefault("search_limit", 100)
	v.SetDefault("retention_enabled", true)
	v.SetDefault("max_records_to_keep", 500)
	v.SetDefault("memory_cleanup_enabled", true)
	v.SetDefault("memory_cleanup_interval_minutes", 5)
	v.SetDefault("inactivity_threshold_minutes", 30)
	v.SetDefault("exclusion_enabled", true)
	v.SetDefault("thumbnail_max_px", 256)
	v.SetDefault("db_max_open_conns", 0)
	v.SetDefault("db_max_idle_conns", 0)

	v.SetEnvPrefix("CLIPKEEP")
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(baseDir)

	// Read config file if it exists (defaults apply if not).
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.BaseDir = baseDir

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if !c.CaptureMode.Valid() {
		return fmt.Errorf("invalid capture_mode %q (want one of: text_only, image_only, both, both_as_one)", c.CaptureMode)
	}
	if c.PollIntervalMS <= 0 {
		return fmt.Errorf("poll_interval_ms must be positive, got %d", c.PollIntervalMS)
	}
	if c.MaxFileBytes <= 0 {
		return fmt.Errorf("max_file_bytes must be positive, got %d", c.MaxFileBytes)
	}
	if c.PageSize <= 0 {
		return fmt.Errorf("page_size must be positive, got %d", c.PageSize)
	}
	if c.RetentionEnabled && c.MaxRecordsToKeep <= 0 {
		return fmt.Errorf("max_records_to_keep must be positive when retention is enabled, got %d", c.MaxRecordsToKeep)
	}
	if c.MemoryCleanupEnabled {
		if c.MemoryCleanupIntervalMinutes <= 0 {
			return fmt.Errorf("memory_cleanup_interval_minutes must be positive, got %d", c.MemoryCleanupIntervalMinutes)
		}
		if c.InactivityThresholdMinutes <= 0 {
			return fmt.Errorf("inactivity_threshold_minutes must be positive, got %d", c.InactivityThresholdMinutes)
		}
	}
	return nil
}

// DBPath returns the SQLite database path under the base directory.
func (c *Config) DBPath() string {
	return filepath.Join(c.BaseDir, "clipkeep.db")
}

// ExportsDir returns the default export directory.
func (c *Config) ExportsDir() string {
	return filepath.Join(c.BaseDir, "exports")
}
