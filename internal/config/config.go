package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the global ~/.phonelink/config.toml.
type Config struct {
	DefaultDevice string              `toml:"default_device"`
	Timeouts      TimeoutsConfig      `toml:"timeouts"`
	Notifications NotificationsConfig `toml:"notifications"`
}

// TimeoutsConfig holds the sync deadline tunables in milliseconds. Zero
// values fall back to the defaults in SyncTimeouts.
type TimeoutsConfig struct {
	ListResponseColdMS   int64 `toml:"list_response_cold_ms"`
	ListResponseWarmMS   int64 `toml:"list_response_warm_ms"`
	ListActivityMS       int64 `toml:"list_activity_ms"`
	ListHardMS           int64 `toml:"list_hard_ms"`
	ThreadHardMS         int64 `toml:"thread_hard_ms"`
	ThreadPhoneWaitMS    int64 `toml:"thread_phone_wait_ms"`
	ThreadActivityMS     int64 `toml:"thread_activity_ms"`
	MessagesPerPage      int   `toml:"messages_per_page"`
	PostSendRefreshMS    int64 `toml:"post_send_refresh_ms"`
	OutboxPollIntervalMS int64 `toml:"outbox_poll_interval_ms"`
}

// NotificationsConfig controls desktop notification behavior.
type NotificationsConfig struct {
	Enabled  *bool `toml:"enabled"`
	WindowMS int64 `toml:"window_ms"`
}

// Timeouts is the resolved set of durations the sync engines run with.
type Timeouts struct {
	// ListResponseCold bounds the wait for the first live conversation
	// signal when no cache existed; ListResponseWarm when it did.
	ListResponseCold time.Duration
	ListResponseWarm time.Duration
	// ListActivity is rearmed on each live conversation signal.
	ListActivity time.Duration
	// ListHard is the absolute safety ceiling for a list session.
	ListHard time.Duration
	// ThreadHard is the absolute safety ceiling for a thread session.
	ThreadHard time.Duration
	// ThreadPhoneWait bounds the wait for the first phone-sourced message
	// after the local store read completes.
	ThreadPhoneWait time.Duration
	// ThreadActivity is rearmed on each matching message once the phone
	// has started responding.
	ThreadActivity     time.Duration
	MessagesPerPage    int
	PostSendRefresh    time.Duration
	OutboxPollInterval time.Duration
}

// SyncTimeouts resolves the configured values, applying defaults for
// anything unset.
func (c *Config) SyncTimeouts() Timeouts {
	t := Timeouts{
		ListResponseCold:   8 * time.Second,
		ListResponseWarm:   3 * time.Second,
		ListActivity:       3 * time.Second,
		ListHard:           20 * time.Second,
		ThreadHard:         20 * time.Second,
		ThreadPhoneWait:    8 * time.Second,
		ThreadActivity:     3 * time.Second,
		MessagesPerPage:    30,
		PostSendRefresh:    2 * time.Second,
		OutboxPollInterval: 500 * time.Millisecond,
	}
	if c == nil {
		return t
	}
	ms := func(v int64, d *time.Duration) {
		if v > 0 {
			*d = time.Duration(v) * time.Millisecond
		}
	}
	ms(c.Timeouts.ListResponseColdMS, &t.ListResponseCold)
	ms(c.Timeouts.ListResponseWarmMS, &t.ListResponseWarm)
	ms(c.Timeouts.ListActivityMS, &t.ListActivity)
	ms(c.Timeouts.ListHardMS, &t.ListHard)
	ms(c.Timeouts.ThreadHardMS, &t.ThreadHard)
	ms(c.Timeouts.ThreadPhoneWaitMS, &t.ThreadPhoneWait)
	ms(c.Timeouts.ThreadActivityMS, &t.ThreadActivity)
	ms(c.Timeouts.PostSendRefreshMS, &t.PostSendRefresh)
	ms(c.Timeouts.OutboxPollIntervalMS, &t.OutboxPollInterval)
	if c.Timeouts.MessagesPerPage > 0 {
		t.MessagesPerPage = c.Timeouts.MessagesPerPage
	}
	return t
}

// NotificationWindow returns the cross-process dedup window.
func (c *Config) NotificationWindow() time.Duration {
	if c != nil && c.Notifications.WindowMS > 0 {
		return time.Duration(c.Notifications.WindowMS) * time.Millisecond
	}
	return 2 * time.Second
}

// NotificationsEnabled reports whether desktop notifications are on.
// Defaults to true.
func (c *Config) NotificationsEnabled() bool {
	if c != nil && c.Notifications.Enabled != nil {
		return *c.Notifications.Enabled
	}
	return true
}

// Load reads config from the given path. Returns zero config and error if
// file missing.
func Load(path string) (*Config, error) {
	var cfg Config
	_, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
