package session

import (
	"os"
	"path/filepath"
)

// BaseDir returns ~/.phonelink.
func BaseDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".phonelink")
}

// DeviceDir returns the device-specific state directory.
func DeviceDir(deviceID string) string {
	return filepath.Join(BaseDir(), "devices", deviceID)
}

// ArchiveDBPath returns the per-device archive database path.
func ArchiveDBPath(deviceID string) string {
	return filepath.Join(DeviceDir(deviceID), "archive.db")
}

// LogDir returns the log directory for a device.
func LogDir(deviceID string) string {
	return filepath.Join(DeviceDir(deviceID), "logs")
}

// LogPath returns the daemon log file path for a device.
func LogPath(deviceID string) string {
	return filepath.Join(LogDir(deviceID), "phonelinkd.log")
}

// ConfigPath returns the global config file path.
func ConfigPath() string {
	return filepath.Join(BaseDir(), "config.toml")
}

// LedgerPath returns the fixed well-known path of the cross-process
// notification dedup ledger. It is deliberately not per-device: every
// phonelink process on the machine must serialize on the same file.
func LedgerPath() string {
	return filepath.Join(BaseDir(), "notify.ledger")
}

// EnsureDir creates the device directory tree with proper permissions.
func EnsureDir(deviceID string) error {
	dirs := []string{
		DeviceDir(deviceID),
		LogDir(deviceID),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0700); err != nil {
			return err
		}
	}
	return nil
}
