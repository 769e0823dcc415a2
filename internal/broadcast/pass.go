package broadcast

import (
	"context"
	"time"

	"github.com/Evan-Kreutzwiser/queensu-menu-bot/internal/dining"
	kit "github.com/Evan-Kreutzwiser/queensu-menu-bot/internal/transport"
	"github.com/Evan-Kreutzwiser/queensu-menu-bot/pkg/logx"
)

type renderedMenu struct {
	text string
	opt  *kit.SendOptions
}

// runPass posts the full day's menu set to every registered channel.
// Recipients are processed sequentially; a failure for one recipient is
// logged and never aborts the rest. The firing date is recorded when the
// pass finishes, whether or not every dispatch succeeded — but only once
// the recipient list was obtained, so a transient storage error does not
// consume the day and the next tick retries.
func (s *Service) runPass(ctx context.Context, today string) {
	start := time.Now()
	fired := false
	defer func() {
		s.mu.Lock()
		if fired {
			s.lastFired = today
		}
		s.inFlight = false
		s.mu.Unlock()
		if !fired {
			return
		}
		if day, err := time.ParseInLocation(dateKey, today, s.loc); err == nil {
			if err := s.reg.SetLastFired(ctx, day); err != nil {
				s.log.Warn("could not persist firing date", logx.Err(err))
			}
		}
	}()

	recipients, err := s.reg.MenuChannels(ctx)
	if err != nil {
		s.log.Error("broadcast pass aborted: listing recipients failed, retrying next tick", logx.Err(err))
		return
	}
	fired = true
	if len(recipients) == 0 {
		s.log.Debug("broadcast pass skipped: no registered channels")
		return
	}

	// Menus are identical for every recipient, so fetch each hall/meal
	// combination once per pass instead of once per recipient. Transport
	// failures become renderable failure messages rather than aborting.
	messages := s.buildDayMessages(ctx)

	s.log.Info("broadcast pass started",
		logx.String("date", today),
		logx.Int("recipients", len(recipients)),
		logx.Int("messages", len(messages)))

	failed := 0
	for _, channelID := range recipients {
		if err := s.sendAll(ctx, channelID, messages); err != nil {
			failed++
			s.log.Warn("dispatch to channel failed",
				logx.Int64("channel", channelID), logx.Err(err))
		}
	}

	fields := []logx.Field{
		logx.String("date", today),
		logx.Int("recipients", len(recipients)),
		logx.Int("failed", failed),
		logx.Duration("dur", time.Since(start)),
	}
	if failed > 0 {
		s.log.Warn("broadcast pass finished with failures", fields...)
	} else {
		s.log.Info("broadcast pass finished", fields...)
	}
}

// buildDayMessages renders one message per hall and served meal, in display
// order. Closed halls and fetch failures still produce a message; the
// render layer decides the wording.
func (s *Service) buildDayMessages(ctx context.Context) []renderedMenu {
	var out []renderedMenu
	for _, loc := range dining.Locations() {
		for _, meal := range loc.Meals {
			res, err := s.menus.TodaysMenu(ctx, loc, meal)
			if err != nil {
				s.log.Error("menu fetch failed",
					logx.String("hall", loc.Name),
					logx.String("meal", meal.String()),
					logx.Err(err))
			}
			text, opt := s.render(loc, meal, res, err)
			if text == "" {
				continue
			}
			out = append(out, renderedMenu{text: text, opt: opt})
		}
	}
	return out
}

// sendAll delivers the day's messages to one channel. The first send error
// skips that channel's remaining messages; half-delivered menus are better
// than retry storms against a dead recipient.
func (s *Service) sendAll(ctx context.Context, channelID int64, messages []renderedMenu) error {
	target := kit.ChatTarget{ChatID: channelID}
	for _, m := range messages {
		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}
		if _, err := s.disp.SendText(ctx, target, m.text, m.opt); err != nil {
			return err
		}
	}
	return nil
}
