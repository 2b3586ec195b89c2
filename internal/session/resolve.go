package session

import "github.com/mvasconc/phonelink/internal/config"

// Resolve determines the active device id using precedence:
// 1. flagOverride (--device flag)
// 2. config.toml default_device
func Resolve(flagOverride string) string {
	if flagOverride != "" {
		return flagOverride
	}
	cfg, err := config.Load(ConfigPath())
	if err == nil && cfg.DefaultDevice != "" {
		return cfg.DefaultDevice
	}
	return ""
}
