package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Evan-Kreutzwiser/queensu-menu-bot/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

// lastFiredKey is the bot_state row holding the broadcast loop's most
// recent firing date (YYYY-MM-DD, local to the scheduler's timezone).
const lastFiredKey = "last_fired"

const dateKeyFormat = "2006-01-02"

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

// Open initializes the sqlite store and ensures the schema exists.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log}

	// Basic pragmas.
	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) SetMenuChannel(ctx context.Context, guildID, channelID int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO Channels (Guild, Channel) VALUES (?, ?)`,
		guildID, channelID,
	)
	return err
}

func (s *sqliteStore) ForgetMenuChannel(ctx context.Context, guildID int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM Channels WHERE Guild = ?`, guildID)
	return err
}

func (s *sqliteStore) MenuChannel(ctx context.Context, guildID int64) (int64, bool, error) {
	var channelID int64
	err := s.db.QueryRowContext(ctx,
		`SELECT Channel FROM Channels WHERE Guild = ?`, guildID,
	).Scan(&channelID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return channelID, true, nil
}

func (s *sqliteStore) MenuChannels(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT Channel FROM Channels`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *sqliteStore) LastFired(ctx context.Context) (time.Time, bool, error) {
	var v string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM bot_state WHERE key = ?`, lastFiredKey,
	).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	day, err := time.ParseInLocation(dateKeyFormat, v, time.Local)
	if err != nil {
		// A corrupt row should not wedge the scheduler permanently.
		s.log.Warn("discarding unparseable last_fired state", logx.String("value", v))
		return time.Time{}, false, nil
	}
	return day, true, nil
}

func (s *sqliteStore) SetLastFired(ctx context.Context, day time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO bot_state(key, value) VALUES(?, ?)
		 ON CONFLICT(key) DO UPDATE SET value=excluded.value`,
		lastFiredKey, day.Format(dateKeyFormat),
	)
	return err
}
