package app

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/Evan-Kreutzwiser/queensu-menu-bot/internal/dining"
	"github.com/Evan-Kreutzwiser/queensu-menu-bot/pkg/logx"
)

const (
	unknownHallReply = "Sorry, I can only get the menu for Leonard, Ban Righ, and Jean Royce"
	unknownMealReply = "I can only find menus for breakfast, lunch, and dinner"
)

func (a *App) registerCommands() {
	a.cmds.Register(
		Command{
			Route:       "menu",
			Description: "get today's menu for a dining hall",
			Usage:       "/menu <meal> <hall>",
			Access:      AccessEveryone,
			Handle:      a.handleMenu,
		},
		Command{
			Route:       "setchannel",
			Description: "post daily menus in this channel",
			Usage:       "/setchannel [channel-id]",
			Access:      AccessAdmin,
			Handle:      a.handleSetChannel,
		},
		Command{
			Route:       "forgetchannel",
			Description: "stop posting daily menus here",
			Usage:       "/forgetchannel",
			Access:      AccessAdmin,
			Handle:      a.handleForgetChannel,
		},
		Command{
			Route:       "broadcast",
			Description: "run the daily menu broadcast now",
			Usage:       "/broadcast",
			Access:      AccessOwnerOnly,
			Timeout:     10 * time.Minute,
			Handle:      a.handleBroadcast,
		},
		Command{
			Route:       "help",
			Description: "show this help",
			Usage:       "/help",
			Access:      AccessEveryone,
			Handle:      a.handleHelp,
		},
	)
}

// handleMenu validates both arguments before touching the network, then
// fetches and renders today's menu for the requested hall and meal.
func (a *App) handleMenu(ctx context.Context, req *Request) error {
	if len(req.Args) < 2 {
		_, err := req.Adapter.SendText(ctx, req.Chat, "Usage: /menu <meal> <hall>, e.g. /menu lunch leonard", nil)
		return err
	}

	meal, ok := dining.ParseMeal(req.Args[0])
	if !ok {
		_, err := req.Adapter.SendText(ctx, req.Chat, unknownMealReply, nil)
		return err
	}

	hallName := strings.Join(req.Args[1:], " ")
	loc, ok := dining.ResolveLocation(hallName)
	if !ok {
		req.Log.Info("unknown hall name", logx.String("hall", hallName))
		_, err := req.Adapter.SendText(ctx, req.Chat, unknownHallReply, nil)
		return err
	}

	res, err := a.menus.TodaysMenu(ctx, loc, meal)
	if err != nil {
		// Full detail stays in the log; the chat gets the generic apology
		// from RenderMenu.
		req.Log.Error("menu fetch failed",
			logx.String("hall", loc.Name),
			logx.String("meal", meal.String()),
			logx.Err(err))
	}
	text, opt := RenderMenu(loc, meal, res, err)
	_, sendErr := req.Adapter.SendText(ctx, req.Chat, text, opt)
	return sendErr
}

func (a *App) handleSetChannel(ctx context.Context, req *Request) error {
	channelID := req.Chat.ChatID
	if len(req.Args) >= 1 {
		id, err := strconv.ParseInt(req.Args[0], 10, 64)
		if err != nil {
			_, sendErr := req.Adapter.SendText(ctx, req.Chat, "That doesn't look like a channel id. Usage: /setchannel [channel-id]", nil)
			return sendErr
		}
		channelID = id
	}

	if err := a.store.SetMenuChannel(ctx, req.Chat.ChatID, channelID); err != nil {
		req.Log.Error("storing menu channel failed", logx.Err(err))
		_, sendErr := req.Adapter.SendText(ctx, req.Chat, "Sorry, I couldn't save that. Please try again.", nil)
		if sendErr != nil {
			return sendErr
		}
		return err
	}

	reply := "Daily menus will be posted in this channel."
	if channelID != req.Chat.ChatID {
		reply = "Daily menus will be posted in channel " + strconv.FormatInt(channelID, 10) + "."
	}
	_, err := req.Adapter.SendText(ctx, req.Chat, reply, nil)
	return err
}

func (a *App) handleForgetChannel(ctx context.Context, req *Request) error {
	if err := a.store.ForgetMenuChannel(ctx, req.Chat.ChatID); err != nil {
		req.Log.Error("forgetting menu channel failed", logx.Err(err))
		_, sendErr := req.Adapter.SendText(ctx, req.Chat, "Sorry, I couldn't update that. Please try again.", nil)
		if sendErr != nil {
			return sendErr
		}
		return err
	}
	_, err := req.Adapter.SendText(ctx, req.Chat, "This chat will no longer receive daily menus.", nil)
	return err
}

func (a *App) handleBroadcast(ctx context.Context, req *Request) error {
	if _, err := req.Adapter.SendText(ctx, req.Chat, "Running today's menu broadcast now.", nil); err != nil {
		return err
	}
	a.bcast.RunNow(ctx)
	return nil
}

func (a *App) handleHelp(ctx context.Context, req *Request) error {
	_, err := req.Adapter.SendText(ctx, req.Chat, a.cmds.helpText(), nil)
	return err
}
