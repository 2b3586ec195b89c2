package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSaveAndLoad(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")

	cfg := &Config{DefaultDevice: "pixel_8a"}
	cfg.Timeouts.ThreadActivityMS = 1500
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.DefaultDevice != "pixel_8a" {
		t.Errorf("DefaultDevice = %q, want %q", loaded.DefaultDevice, "pixel_8a")
	}
	if got := loaded.SyncTimeouts().ThreadActivity; got != 1500*time.Millisecond {
		t.Errorf("ThreadActivity = %v, want 1.5s", got)
	}
}

func TestLoadMissing(t *testing.T) {
	_, err := Load("/nonexistent/config.toml")
	if err == nil {
		t.Error("Load() expected error for missing file")
	}
}

func TestDefaultTimeouts(t *testing.T) {
	var cfg *Config
	tm := cfg.SyncTimeouts()

	if tm.ListResponseCold != 8*time.Second {
		t.Errorf("ListResponseCold = %v, want 8s", tm.ListResponseCold)
	}
	if tm.ListResponseWarm != 3*time.Second {
		t.Errorf("ListResponseWarm = %v, want 3s", tm.ListResponseWarm)
	}
	if tm.ThreadHard != 20*time.Second {
		t.Errorf("ThreadHard = %v, want 20s", tm.ThreadHard)
	}
	if tm.ThreadPhoneWait != 8*time.Second {
		t.Errorf("ThreadPhoneWait = %v, want 8s", tm.ThreadPhoneWait)
	}
	if cfg.NotificationWindow() != 2*time.Second {
		t.Errorf("NotificationWindow = %v, want 2s", cfg.NotificationWindow())
	}
	if !cfg.NotificationsEnabled() {
		t.Error("NotificationsEnabled = false, want true by default")
	}
}

func TestSavePermissions(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")

	if err := Save(path, &Config{DefaultDevice: "main"}); err != nil {
		t.Fatal(err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	perm := info.Mode().Perm()
	if perm != 0600 {
		t.Errorf("file permission = %o, want 0600", perm)
	}
}
