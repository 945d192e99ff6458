package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_FirstRunGeneratesDeviceID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.BaseURL != "https://sms.schoolsoft.se" {
		t.Errorf("base url = %q", cfg.BaseURL)
	}
	if cfg.TokenRefreshMargin != time.Hour {
		t.Errorf("token refresh margin = %v", cfg.TokenRefreshMargin)
	}
	if cfg.DeviceID == "" {
		t.Fatal("no device id generated")
	}

	// The generated id is persisted, so a second load sees the same one.
	again, err := Load(path)
	if err != nil {
		t.Fatalf("second Load failed: %v", err)
	}
	if again.DeviceID != cfg.DeviceID {
		t.Errorf("device id changed between loads: %q vs %q", again.DeviceID, cfg.DeviceID)
	}
}

func TestLoad_FileValuesAndDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	contents := `school_url: https://sms.schoolsoft.se/mock/
school_name: Mock School
device_id: fixed-device
token_refresh_margin: 30m
`
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.SchoolURL != "https://sms.schoolsoft.se/mock/" {
		t.Errorf("school url = %q", cfg.SchoolURL)
	}
	if cfg.TokenRefreshMargin != 30*time.Minute {
		t.Errorf("token refresh margin = %v", cfg.TokenRefreshMargin)
	}
	if cfg.AppOS != "ios" {
		t.Errorf("default app_os not applied: %q", cfg.AppOS)
	}
	if cfg.RefreshSchedule != "@every 1h" {
		t.Errorf("default refresh schedule not applied: %q", cfg.RefreshSchedule)
	}
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	t.Setenv("SCHOOLSYNC_SCHOOL_URL", "https://sms.schoolsoft.se/env/")
	t.Setenv("SCHOOLSYNC_TOKEN_REFRESH_MARGIN", "45m")
	t.Setenv("SCHOOLSYNC_DEVICE_ID", "env-device")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.SchoolURL != "https://sms.schoolsoft.se/env/" {
		t.Errorf("school url = %q", cfg.SchoolURL)
	}
	if cfg.TokenRefreshMargin != 45*time.Minute {
		t.Errorf("token refresh margin = %v", cfg.TokenRefreshMargin)
	}
	if cfg.DeviceID != "env-device" {
		t.Errorf("device id = %q", cfg.DeviceID)
	}
}

func TestLoad_RejectsBadMargin(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	t.Setenv("SCHOOLSYNC_TOKEN_REFRESH_MARGIN", "not-a-duration")

	if _, err := Load(path); err == nil {
		t.Fatal("Load accepted an unparseable margin")
	}
}

func TestSetSchool_Persists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	cfg, err = SetSchool(path, cfg, "Mock School", "https://sms.schoolsoft.se/mock/")
	if err != nil {
		t.Fatalf("SetSchool failed: %v", err)
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if reloaded.SchoolURL != cfg.SchoolURL || reloaded.SchoolName != "Mock School" {
		t.Errorf("school selection not persisted: %#v", reloaded)
	}
}
