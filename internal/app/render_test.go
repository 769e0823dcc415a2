package app

import (
	"errors"
	"strings"
	"testing"

	"github.com/Evan-Kreutzwiser/queensu-menu-bot/internal/dining"
)

func leonard(t *testing.T) dining.Location {
	t.Helper()
	loc, ok := dining.ResolveLocation("leonard")
	if !ok {
		t.Fatal("leonard not resolvable")
	}
	return loc
}

func TestRenderMenuAvailable(t *testing.T) {
	t.Parallel()
	res := dining.Result{
		Status: dining.StatusAvailable,
		Stations: []dining.Station{
			{Name: "Grill", Items: []string{"Burger", "Fries"}},
			{Name: "Salad Bar", Items: []string{"Caesar"}},
		},
	}
	text, opt := RenderMenu(leonard(t), dining.Lunch, res, nil)
	if opt == nil || opt.ParseMode != "HTML" {
		t.Fatalf("expected HTML send options, got %+v", opt)
	}
	for _, want := range []string{"Lunch at Leonard Hall", "Grill", "Burger", "Fries", "Salad Bar", "Caesar"} {
		if !strings.Contains(text, want) {
			t.Fatalf("rendered menu missing %q:\n%s", want, text)
		}
	}
}

func TestRenderMenuEscapesHTML(t *testing.T) {
	t.Parallel()
	res := dining.Result{
		Status:   dining.StatusAvailable,
		Stations: []dining.Station{{Name: "Mac & Cheese <Bar>", Items: []string{"Mac & Cheese"}}},
	}
	text, _ := RenderMenu(leonard(t), dining.Dinner, res, nil)
	if strings.Contains(text, "<Bar>") {
		t.Fatalf("unescaped station name in output:\n%s", text)
	}
	if !strings.Contains(text, "&amp;") {
		t.Fatalf("ampersand not escaped:\n%s", text)
	}
}

func TestRenderMenuClosed(t *testing.T) {
	t.Parallel()
	text, opt := RenderMenu(leonard(t), dining.Breakfast, dining.Result{Status: dining.StatusClosed}, nil)
	if opt != nil {
		t.Fatalf("closed message should be plain text, got %+v", opt)
	}
	if !strings.Contains(text, "isn't serving breakfast today") {
		t.Fatalf("unexpected closed message: %q", text)
	}
}

func TestRenderMenuAPIError(t *testing.T) {
	t.Parallel()
	res := dining.Result{Status: dining.StatusAPIError, Err: dining.ErrMealPeriodsMissing}
	text, _ := RenderMenu(leonard(t), dining.Lunch, res, nil)
	if strings.Contains(text, "MealPeriods") {
		t.Fatalf("internal detail leaked to user: %q", text)
	}
	if !strings.Contains(text, "couldn't find") {
		t.Fatalf("unexpected api-error message: %q", text)
	}
}

func TestRenderMenuTransportFailure(t *testing.T) {
	t.Parallel()
	fetchErr := errors.New("dial tcp: connection refused")
	text, _ := RenderMenu(leonard(t), dining.Lunch, dining.Result{}, fetchErr)
	if strings.Contains(text, "connection refused") {
		t.Fatalf("internal detail leaked to user: %q", text)
	}
	if !strings.Contains(text, "problem finding") {
		t.Fatalf("unexpected failure message: %q", text)
	}
}

func TestRenderMenuTruncatesLongMenus(t *testing.T) {
	t.Parallel()
	items := make([]string, 0, 600)
	for i := 0; i < 600; i++ {
		items = append(items, "A very hearty menu item with a long name")
	}
	res := dining.Result{
		Status:   dining.StatusAvailable,
		Stations: []dining.Station{{Name: "Everything", Items: items}},
	}
	text, _ := RenderMenu(leonard(t), dining.Dinner, res, nil)
	if n := len([]rune(text)); n > 4096 {
		t.Fatalf("rendered menu is %d runes, over the platform limit", n)
	}
}
