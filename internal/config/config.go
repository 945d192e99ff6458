// Package config loads settings from a YAML file with environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Config captures the settings the sync engine and CLI run with.
type Config struct {
	// BaseURL is the endpoint serving the public school directory.
	BaseURL string `yaml:"base_url"`
	// SchoolURL is the selected school's endpoint. Empty until the user
	// picks a school.
	SchoolURL  string `yaml:"school_url"`
	SchoolName string `yaml:"school_name"`

	// AppVersion and AppOS identify the client build to the service.
	AppVersion string `yaml:"app_version"`
	AppOS      string `yaml:"app_os"`
	// DeviceID is generated on first load and kept stable afterwards.
	DeviceID string `yaml:"device_id"`

	Database   string `yaml:"database"`
	SecretFile string `yaml:"secret_file"`

	// RefreshSchedule is the cron expression driving background refreshes
	// in daemon mode.
	RefreshSchedule string `yaml:"refresh_schedule"`
	// TokenRefreshMargin is the remaining token lifetime below which a
	// refresh is issued.
	TokenRefreshMargin time.Duration `yaml:"token_refresh_margin"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

func defaults() Config {
	return Config{
		BaseURL:            "https://sms.schoolsoft.se",
		AppVersion:         "2.3.2",
		AppOS:              "ios",
		Database:           "schoolsync.db",
		SecretFile:         "schoolsync.secret",
		RefreshSchedule:    "@every 1h",
		TokenRefreshMargin: time.Hour,
		LogLevel:           "info",
		LogFormat:          "text",
	}
}

// Load reads the YAML file at path, applies environment overrides, and fills
// unset fields with defaults. A missing file is not an error; defaults and
// the environment still apply. When no device id is present one is generated
// and written back so the service sees a stable device across runs.
func Load(path string) (Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parsing %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// First run; the file is created below when the device id is
		// persisted.
	default:
		return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
	}

	applyDefaults(&cfg)
	invalid := applyEnvironment(&cfg)
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("config: invalid environment values: %s", strings.Join(invalid, ", "))
	}

	if cfg.TokenRefreshMargin <= 0 {
		return Config{}, fmt.Errorf("config: token_refresh_margin must be positive")
	}

	if cfg.DeviceID == "" {
		cfg.DeviceID = uuid.NewString()
		if err := save(path, cfg); err != nil {
			return Config{}, err
		}
	}

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	base := defaults()
	if cfg.BaseURL == "" {
		cfg.BaseURL = base.BaseURL
	}
	if cfg.AppVersion == "" {
		cfg.AppVersion = base.AppVersion
	}
	if cfg.AppOS == "" {
		cfg.AppOS = base.AppOS
	}
	if cfg.Database == "" {
		cfg.Database = base.Database
	}
	if cfg.SecretFile == "" {
		cfg.SecretFile = base.SecretFile
	}
	if cfg.RefreshSchedule == "" {
		cfg.RefreshSchedule = base.RefreshSchedule
	}
	if cfg.TokenRefreshMargin == 0 {
		cfg.TokenRefreshMargin = base.TokenRefreshMargin
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = base.LogLevel
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = base.LogFormat
	}
}

func applyEnvironment(cfg *Config) []string {
	var invalid []string

	override := func(name string, target *string) {
		if value := strings.TrimSpace(os.Getenv(name)); value != "" {
			*target = value
		}
	}
	override("SCHOOLSYNC_BASE_URL", &cfg.BaseURL)
	override("SCHOOLSYNC_SCHOOL_URL", &cfg.SchoolURL)
	override("SCHOOLSYNC_DEVICE_ID", &cfg.DeviceID)
	override("SCHOOLSYNC_DATABASE", &cfg.Database)
	override("SCHOOLSYNC_SECRET_FILE", &cfg.SecretFile)
	override("SCHOOLSYNC_REFRESH_SCHEDULE", &cfg.RefreshSchedule)
	override("SCHOOLSYNC_LOG_LEVEL", &cfg.LogLevel)
	override("SCHOOLSYNC_LOG_FORMAT", &cfg.LogFormat)

	if value := strings.TrimSpace(os.Getenv("SCHOOLSYNC_TOKEN_REFRESH_MARGIN")); value != "" {
		margin, err := time.ParseDuration(value)
		if err != nil || margin <= 0 {
			invalid = append(invalid, "SCHOOLSYNC_TOKEN_REFRESH_MARGIN")
		} else {
			cfg.TokenRefreshMargin = margin
		}
	}

	return invalid
}

// save writes the file through a temp sibling and rename so a crash mid-write
// never leaves a truncated config behind.
func save(path string, cfg Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: encoding %s: %w", path, err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("config: creating %s: %w", dir, err)
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("config: writing %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("config: replacing %s: %w", path, err)
	}
	return nil
}

// SetSchool records the selected school and persists the file.
func SetSchool(path string, cfg Config, name, url string) (Config, error) {
	cfg.SchoolName = name
	cfg.SchoolURL = url
	if err := save(path, cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
