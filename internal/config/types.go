package config

import (
	"fmt"
	"time"

	"vitabot/internal/reminder"
	logx "vitabot/pkg/logx"
)

type Config struct {
	Telegram  TelegramConfig  `json:"telegram"`
	Logging   LoggingConfig   `json:"logging"`
	Storage   StorageConfig   `json:"storage"`
	Reminders RemindersConfig `json:"reminders"`
}

type TelegramConfig struct {
	Token string `json:"token"`
	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

type StorageConfig struct {
	Path string `json:"path"`
	// BusyTimeout is a Go duration string (sqlite busy handler).
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

// RemindersConfig controls the scheduling tick loop.
// All durations are Go duration strings (e.g. "60s", "5m").
type RemindersConfig struct {
	Tick            string `json:"tick,omitempty"`
	Lookbehind      string `json:"lookbehind,omitempty"`
	DispatchTimeout string `json:"dispatch_timeout,omitempty"`
	RatePerSec      int    `json:"rate_per_sec,omitempty"`
}

func (c LoggingConfig) Logx() logx.Config {
	return logx.Config{
		Level:   c.Level,
		Console: c.Console,
		File:    logx.FileConfig{Enabled: c.File.Enabled, Path: c.File.Path},
	}
}

func (c TelegramConfig) ResolvePollTimeout() (time.Duration, error) {
	return ParseDurationOrDefault("telegram.poll_timeout", c.PollTimeout, 10*time.Second)
}

func (c StorageConfig) ResolveBusyTimeout() (time.Duration, error) {
	return ParseDurationField("storage.busy_timeout", c.BusyTimeout)
}

// Resolve parses duration fields and applies the engine defaults. The
// grace-window invariant (lookbehind >= tick) is enforced here so a bad
// config is rejected at load and on hot reload, not discovered at runtime.
func (c RemindersConfig) Resolve() (reminder.Config, error) {
	tick, err := ParseDurationOrDefault("reminders.tick", c.Tick, time.Minute)
	if err != nil {
		return reminder.Config{}, err
	}
	behind, err := ParseDurationOrDefault("reminders.lookbehind", c.Lookbehind, 5*time.Minute)
	if err != nil {
		return reminder.Config{}, err
	}
	dt, err := ParseDurationOrDefault("reminders.dispatch_timeout", c.DispatchTimeout, 30*time.Second)
	if err != nil {
		return reminder.Config{}, err
	}
	rc := reminder.Config{
		TickInterval:    tick,
		Lookbehind:      behind,
		DispatchTimeout: dt,
		RatePerSec:      c.RatePerSec,
	}
	if err := rc.Validate(); err != nil {
		return reminder.Config{}, err
	}
	return rc, nil
}

// Validate checks the whole tree; used both at startup and by the watcher
// before publishing a reload.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if cfg.Telegram.Token == "" {
		return fmt.Errorf("telegram.token is required")
	}
	if cfg.Storage.Path == "" {
		return fmt.Errorf("storage.path is required")
	}
	if _, err := cfg.Telegram.ResolvePollTimeout(); err != nil {
		return err
	}
	if _, err := cfg.Storage.ResolveBusyTimeout(); err != nil {
		return err
	}
	if _, err := cfg.Reminders.Resolve(); err != nil {
		return err
	}
	return nil
}
