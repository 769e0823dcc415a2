package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/Evan-Kreutzwiser/queensu-menu-bot/pkg/logx"
)

func openTestStore(t *testing.T) Store {
	t.Helper()
	st, err := Open(Config{Path: filepath.Join(t.TempDir(), "bot.sqlite")}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestMenuChannelUpsertLastWriteWins(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := openTestStore(t)

	if err := st.SetMenuChannel(ctx, 100, 1); err != nil {
		t.Fatalf("SetMenuChannel: %v", err)
	}
	if err := st.SetMenuChannel(ctx, 100, 2); err != nil {
		t.Fatalf("SetMenuChannel overwrite: %v", err)
	}
	ch, ok, err := st.MenuChannel(ctx, 100)
	if err != nil {
		t.Fatalf("MenuChannel: %v", err)
	}
	if !ok || ch != 2 {
		t.Fatalf("MenuChannel = (%d, %v), want (2, true)", ch, ok)
	}
}

func TestMenuChannelAbsent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := openTestStore(t)

	_, ok, err := st.MenuChannel(ctx, 404)
	if err != nil {
		t.Fatalf("MenuChannel: %v", err)
	}
	if ok {
		t.Fatal("expected absent registration")
	}
}

func TestForgetMenuChannel(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := openTestStore(t)

	if err := st.SetMenuChannel(ctx, 7, 70); err != nil {
		t.Fatalf("SetMenuChannel: %v", err)
	}
	if err := st.ForgetMenuChannel(ctx, 7); err != nil {
		t.Fatalf("ForgetMenuChannel: %v", err)
	}
	if _, ok, _ := st.MenuChannel(ctx, 7); ok {
		t.Fatal("registration survived ForgetMenuChannel")
	}
	// Forgetting again is a no-op.
	if err := st.ForgetMenuChannel(ctx, 7); err != nil {
		t.Fatalf("ForgetMenuChannel (absent): %v", err)
	}
}

func TestMenuChannelsEnumeration(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := openTestStore(t)

	if err := st.SetMenuChannel(ctx, 1, 11); err != nil {
		t.Fatal(err)
	}
	if err := st.SetMenuChannel(ctx, 2, 22); err != nil {
		t.Fatal(err)
	}
	ids, err := st.MenuChannels(ctx)
	if err != nil {
		t.Fatalf("MenuChannels: %v", err)
	}
	got := map[int64]bool{}
	for _, id := range ids {
		got[id] = true
	}
	if len(ids) != 2 || !got[11] || !got[22] {
		t.Fatalf("MenuChannels = %v, want {11, 22}", ids)
	}
}

func TestMenuChannelsSharedChannelKeepsBothEntries(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := openTestStore(t)

	if err := st.SetMenuChannel(ctx, 1, 99); err != nil {
		t.Fatal(err)
	}
	if err := st.SetMenuChannel(ctx, 2, 99); err != nil {
		t.Fatal(err)
	}
	ids, err := st.MenuChannels(ctx)
	if err != nil {
		t.Fatalf("MenuChannels: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("MenuChannels = %v, want two entries (no dedup)", ids)
	}
}

func TestLastFiredRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := openTestStore(t)

	if _, ok, err := st.LastFired(ctx); err != nil || ok {
		t.Fatalf("LastFired on fresh store = ok=%v err=%v, want absent", ok, err)
	}

	day := time.Date(2023, time.October, 31, 0, 0, 0, 0, time.Local)
	if err := st.SetLastFired(ctx, day); err != nil {
		t.Fatalf("SetLastFired: %v", err)
	}
	got, ok, err := st.LastFired(ctx)
	if err != nil || !ok {
		t.Fatalf("LastFired = ok=%v err=%v", ok, err)
	}
	if got.Format("2006-01-02") != "2023-10-31" {
		t.Fatalf("LastFired = %v, want 2023-10-31", got)
	}

	// Overwrite with a newer day.
	if err := st.SetLastFired(ctx, day.AddDate(0, 0, 1)); err != nil {
		t.Fatalf("SetLastFired overwrite: %v", err)
	}
	got, _, _ = st.LastFired(ctx)
	if got.Format("2006-01-02") != "2023-11-01" {
		t.Fatalf("LastFired after overwrite = %v", got)
	}
}
