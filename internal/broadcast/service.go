package broadcast

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/time/rate"

	"github.com/Evan-Kreutzwiser/queensu-menu-bot/internal/dining"
	kit "github.com/Evan-Kreutzwiser/queensu-menu-bot/internal/transport"
	"github.com/Evan-Kreutzwiser/queensu-menu-bot/pkg/logx"
)

const dateKey = "2006-01-02"

type Config struct {
	Enabled bool
	// TriggerHour is the local wall-clock hour (0-23) at which the daily
	// pass becomes eligible.
	TriggerHour int
	// Tick is how often eligibility is checked. Must be an hour or less so
	// a trigger hour is never stepped over; values outside (0, 1h] fall
	// back to the default 30m.
	Tick time.Duration
	// Timezone is an IANA name; empty means the system's local time.
	Timezone string
	// SendRatePerSec bounds dispatches to the chat platform during a pass.
	SendRatePerSec float64
}

// Registry is the slice of the storage API the scheduler reads and writes.
type Registry interface {
	MenuChannels(ctx context.Context) ([]int64, error)
	LastFired(ctx context.Context) (time.Time, bool, error)
	SetLastFired(ctx context.Context, day time.Time) error
}

// Dispatcher delivers one rendered message to one recipient.
type Dispatcher interface {
	SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error)
}

// MenuSource yields the current day's normalized menu for one hall and meal.
type MenuSource interface {
	TodaysMenu(ctx context.Context, loc dining.Location, meal dining.MealPeriod) (dining.Result, error)
}

// RenderFunc turns one menu outcome into a ready-to-send message. fetchErr
// is non-nil only for transport-level failures.
type RenderFunc func(loc dining.Location, meal dining.MealPeriod, res dining.Result, fetchErr error) (text string, opt *kit.SendOptions)

// Service posts the full day's menus to every registered channel once per
// calendar day, after the trigger hour. It owns no goroutines beyond the
// cron tick; the pass itself runs sequentially to bound outbound fan-out.
type Service struct {
	mu  sync.Mutex
	cfg Config
	loc *time.Location

	reg    Registry
	disp   Dispatcher
	menus  MenuSource
	render RenderFunc
	log    logx.Logger

	// limiter is set once in New and only ever reconfigured in place, so a
	// running pass can read it without holding mu.
	limiter *rate.Limiter

	c       *cron.Cron
	entryID cron.EntryID

	// lastFired is the date key (YYYY-MM-DD) of the most recent completed
	// pass. Guarded by mu; the persisted copy is best-effort.
	lastFired string

	// inFlight makes a pass non-reentrant: ticks during a running pass are
	// no-ops.
	inFlight bool

	now func() time.Time // test hook
}

func New(cfg Config, reg Registry, disp Dispatcher, menus MenuSource, render RenderFunc, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{
		cfg:    cfg,
		reg:    reg,
		disp:   disp,
		menus:  menus,
		render: render,
		log:    log,
		now:    time.Now,
	}
	s.loc = loadLocation(cfg.Timezone, log)
	s.limiter = newLimiter(cfg.SendRatePerSec)
	return s
}

func loadLocation(tz string, log logx.Logger) *time.Location {
	if strings.TrimSpace(tz) == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Warn("invalid timezone, using local", logx.String("tz", tz), logx.Err(err))
		return time.Local
	}
	return loc
}

func newLimiter(rps float64) *rate.Limiter {
	if rps <= 0 {
		rps = 1
	}
	return rate.NewLimiter(rate.Limit(rps), 1)
}

// Start restores the persisted firing state and begins ticking. Call after
// the platform connection is up so the first pass has somewhere to send.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.cfg.Enabled {
		s.log.Info("daily broadcast disabled")
		return nil
	}
	if s.c != nil {
		return nil
	}

	// Re-read the last firing date so a restart inside the trigger hour
	// does not repost. When the store has never fired we default to today,
	// which keeps a freshly installed bot from posting mid-afternoon.
	if day, ok, err := s.reg.LastFired(ctx); err != nil {
		s.log.Warn("could not restore last firing date", logx.Err(err))
		s.lastFired = s.now().In(s.loc).Format(dateKey)
	} else if ok {
		s.lastFired = day.Format(dateKey)
	} else {
		s.lastFired = s.now().In(s.loc).Format(dateKey)
	}

	tick := s.cfg.Tick
	if tick <= 0 || tick > time.Hour {
		tick = 30 * time.Minute
	}

	s.c = cron.New(cron.WithLocation(s.loc))
	id, err := s.c.AddFunc("@every "+tick.String(), func() { s.tickOnce(ctx) })
	if err != nil {
		s.c = nil
		return err
	}
	s.entryID = id
	s.c.Start()
	s.log.Info("daily broadcast scheduler started",
		logx.Int("trigger_hour", s.cfg.TriggerHour),
		logx.Duration("tick", tick),
		logx.String("last_fired", s.lastFired))
	return nil
}

func (s *Service) Stop() {
	s.mu.Lock()
	c := s.c
	s.c = nil
	s.mu.Unlock()
	if c != nil {
		<-c.Stop().Done()
	}
}

// Apply updates hot-reloadable settings (trigger hour, send rate). Changing
// tick or timezone takes effect on the next restart.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	s.cfg.TriggerHour = cfg.TriggerHour
	s.cfg.SendRatePerSec = cfg.SendRatePerSec
	s.mu.Unlock()

	// The limiter is shared with a possibly running pass, so mutate it in
	// place; rate.Limiter is safe for concurrent use.
	rps := cfg.SendRatePerSec
	if rps <= 0 {
		rps = 1
	}
	s.limiter.SetLimit(rate.Limit(rps))
}

// tickOnce checks eligibility and runs at most one pass. The guard pair —
// hour equality plus a date different from the last firing — keeps multiple
// ticks within the trigger hour, and multiple hours within the day, from
// reposting.
func (s *Service) tickOnce(ctx context.Context) {
	now := s.now().In(s.loc)
	today := now.Format(dateKey)

	s.mu.Lock()
	eligible := now.Hour() == s.cfg.TriggerHour && today != s.lastFired && !s.inFlight
	if eligible {
		s.inFlight = true
	}
	s.mu.Unlock()
	if !eligible {
		return
	}

	s.runPass(ctx, today)
}

// RunNow forces a pass immediately, ignoring the hour guard. Used by the
// owner command. The pass still counts as the day's firing.
func (s *Service) RunNow(ctx context.Context) {
	now := s.now().In(s.loc)
	today := now.Format(dateKey)

	s.mu.Lock()
	if s.inFlight {
		s.mu.Unlock()
		return
	}
	s.inFlight = true
	s.mu.Unlock()

	s.runPass(ctx, today)
}
