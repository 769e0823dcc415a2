package config

import (
	"os"
	"path/filepath"
	"testing"
)

const validYAML = `
telegram:
  token: "test-token"
logging:
  level: info
  console: true
storage:
  path: ./bot.sqlite
broadcast:
  enabled: true
  hour: 9
  tick: 30m
  timezone: America/Toronto
`

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadYAML(t *testing.T) {
	t.Parallel()
	m := NewManager(writeConfig(t, "config.yaml", validYAML))
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Telegram.Token != "test-token" {
		t.Fatalf("token = %q", cfg.Telegram.Token)
	}
	if cfg.Broadcast.Hour != 9 {
		t.Fatalf("broadcast.hour = %d, want 9", cfg.Broadcast.Hour)
	}
	if got := m.Get(); got != cfg {
		t.Fatal("Get() should return the committed config")
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	t.Parallel()
	m := NewManager(writeConfig(t, "config.yaml", validYAML+"\nextra_section:\n  x: 1\n"))
	if _, err := m.Load(); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{name: "valid", mutate: func(c *Config) {}, ok: true},
		{name: "missing token", mutate: func(c *Config) { c.Telegram.Token = "" }},
		{name: "missing storage path", mutate: func(c *Config) { c.Storage.Path = "" }},
		{name: "hour too large", mutate: func(c *Config) { c.Broadcast.Hour = 24 }},
		{name: "negative hour", mutate: func(c *Config) { c.Broadcast.Hour = -1 }},
		{name: "tick over an hour", mutate: func(c *Config) { c.Broadcast.Tick = "90m" }},
		{name: "bad timezone", mutate: func(c *Config) { c.Broadcast.Timezone = "Mars/Olympus" }},
		{name: "bad duration", mutate: func(c *Config) { c.Menu.Timeout = "ten seconds" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				Telegram:  TelegramConfig{Token: "x"},
				Storage:   StorageConfig{Path: "./bot.sqlite"},
				Broadcast: BroadcastConfig{Hour: 9, Tick: "30m"},
			}
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.ok && err != nil {
				t.Fatalf("Validate: %v", err)
			}
			if !tt.ok && err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestParseDurationOrDefault(t *testing.T) {
	t.Parallel()
	d, err := ParseDurationOrDefault("x", "", 5)
	if err != nil || d != 5 {
		t.Fatalf("got (%v, %v), want default", d, err)
	}
	if _, err := ParseDurationField("x", "-1s"); err == nil {
		t.Fatal("expected error for negative duration")
	}
}
