package storage

import (
	"context"
	"time"
)

// Config configures the sqlite registry database.
type Config struct {
	Path        string
	BusyTimeout time.Duration // 0 means default
}

// Store is the persistence API used by commands and the broadcast loop.
//
// One row per guild: registering twice overwrites, forgetting is a no-op
// when absent. Every write is durable before the call returns.
type Store interface {
	// SetMenuChannel persistently stores which channel in the guild the
	// daily menu should be posted to, replacing any earlier registration.
	SetMenuChannel(ctx context.Context, guildID, channelID int64) error
	// ForgetMenuChannel removes the guild's registration.
	ForgetMenuChannel(ctx context.Context, guildID int64) error
	// MenuChannel returns the registered channel for one guild.
	MenuChannel(ctx context.Context, guildID int64) (channelID int64, ok bool, err error)
	// MenuChannels returns every registered channel (one entry per guild;
	// guilds sharing a channel each contribute an entry).
	MenuChannels(ctx context.Context) ([]int64, error)

	// LastFired and SetLastFired persist the broadcast loop's most recent
	// firing date so a restart inside the trigger hour cannot double-post.
	LastFired(ctx context.Context) (time.Time, bool, error)
	SetLastFired(ctx context.Context, day time.Time) error

	Close() error
}
