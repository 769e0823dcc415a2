package app

import (
	"fmt"
	"strings"

	"github.com/Evan-Kreutzwiser/queensu-menu-bot/internal/dining"
	kit "github.com/Evan-Kreutzwiser/queensu-menu-bot/internal/transport"
	"github.com/Evan-Kreutzwiser/queensu-menu-bot/pkg/tgui"
)

var htmlOpts = &kit.SendOptions{ParseMode: "HTML", DisablePreview: true}

// RenderMenu turns one menu outcome into a sendable message. It is used by
// both the /menu command and the daily broadcast, so every outcome type
// produces text. Internal error detail never reaches the chat; callers log
// it separately.
func RenderMenu(loc dining.Location, meal dining.MealPeriod, res dining.Result, fetchErr error) (string, *kit.SendOptions) {
	title := fmt.Sprintf("%s at %s", meal.String(), loc.Name)

	if fetchErr != nil {
		return fmt.Sprintf("Sorry, I had a problem finding the %s menu for %s. Please try again later.",
			strings.ToLower(meal.String()), loc.Name), nil
	}

	switch res.Status {
	case dining.StatusClosed:
		return fmt.Sprintf("%s isn't serving %s today.", loc.Name, strings.ToLower(meal.String())), nil
	case dining.StatusAPIError:
		return fmt.Sprintf("I couldn't find a %s menu for %s. It may not be available for today.",
			strings.ToLower(meal.String()), loc.Name), nil
	case dining.StatusAvailable:
		parts := []tgui.H{tgui.B(title)}
		for _, st := range res.Stations {
			section := tgui.JoinH("\n", tgui.B(st.Name), tgui.Esc(strings.Join(st.Items, "\n")))
			parts = append(parts, section)
		}
		text := tgui.JoinH("\n\n", parts...).String()
		return tgui.TruncRunes(text, tgui.MaxMessageRunes), htmlOpts
	default:
		return "Sorry, something went wrong finding that menu.", nil
	}
}
