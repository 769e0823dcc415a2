package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type Config struct {
	Telegram  TelegramConfig  `json:"telegram"`
	Logging   LoggingConfig   `json:"logging"`
	Storage   StorageConfig   `json:"storage"`
	Menu      MenuConfig      `json:"menu"`
	Broadcast BroadcastConfig `json:"broadcast"`
}

type TelegramConfig struct {
	Token string `json:"token"`
	// OwnerUserIDs may always use the admin-only commands, and are the only
	// users allowed to force a broadcast pass.
	OwnerUserIDs []int64 `json:"owner_user_ids,omitempty"`
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
	// BusyTimeout is a Go duration string (sqlite busy_timeout pragma).
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

type MenuConfig struct {
	// BaseURL overrides the campus menu endpoint (tests, mirrors).
	BaseURL string `json:"base_url,omitempty"`
	// Timeout is a Go duration string for one menu request.
	Timeout string `json:"timeout,omitempty"`
	// RatePerSec bounds outbound calls to the menu source.
	RatePerSec float64 `json:"rate_per_sec,omitempty"`
}

type BroadcastConfig struct {
	Enabled bool `json:"enabled"`
	// Hour is the local wall-clock hour (0-23) at which the daily post
	// becomes eligible to fire.
	Hour int `json:"hour"`
	// Tick is a Go duration string for the scheduler's check interval.
	// Must be an hour or less so the trigger hour is never skipped.
	Tick string `json:"tick,omitempty"`
	// Timezone is an IANA TZ name, e.g. "America/Toronto".
	Timezone string `json:"timezone,omitempty"`
}

// Validate rejects configs that could not run. It is also used as the
// hot-reload gate, so it must not have side effects.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if strings.TrimSpace(c.Telegram.Token) == "" {
		return errors.New("telegram.token is required")
	}
	if strings.TrimSpace(c.Storage.Path) == "" {
		return errors.New("storage.path is required")
	}
	if c.Broadcast.Hour < 0 || c.Broadcast.Hour > 23 {
		return fmt.Errorf("broadcast.hour must be 0-23, got %d", c.Broadcast.Hour)
	}
	if tick, err := ParseDurationField("broadcast.tick", c.Broadcast.Tick); err != nil {
		return err
	} else if tick > time.Hour {
		return fmt.Errorf("broadcast.tick must be <= 1h, got %s", tick)
	}
	if c.Broadcast.Timezone != "" {
		if _, err := time.LoadLocation(c.Broadcast.Timezone); err != nil {
			return fmt.Errorf("broadcast.timezone: %w", err)
		}
	}
	if _, err := ParseDurationField("telegram.poll_timeout", c.Telegram.PollTimeout); err != nil {
		return err
	}
	if _, err := ParseDurationField("menu.timeout", c.Menu.Timeout); err != nil {
		return err
	}
	if _, err := ParseDurationField("storage.busy_timeout", c.Storage.BusyTimeout); err != nil {
		return err
	}
	return nil
}
