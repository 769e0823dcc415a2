package dining

import "strings"

// MealPeriod is one of the day's three service windows. The String form is
// also the value the campus API expects in its mealPeriod query parameter.
type MealPeriod int

const (
	Breakfast MealPeriod = iota
	Lunch
	Dinner
)

func (m MealPeriod) String() string {
	switch m {
	case Breakfast:
		return "Breakfast"
	case Lunch:
		return "Lunch"
	case Dinner:
		return "Dinner"
	default:
		return ""
	}
}

// MealPeriods returns all meal periods in display order.
func MealPeriods() []MealPeriod {
	return []MealPeriod{Breakfast, Lunch, Dinner}
}

// ParseMeal validates free-text user input against the known meal periods.
// Matching is case-insensitive; unknown input returns ok=false rather than
// an error so command handlers can reject it with a corrective message
// before any network call.
func ParseMeal(s string) (MealPeriod, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "breakfast":
		return Breakfast, true
	case "lunch":
		return Lunch, true
	case "dinner":
		return Dinner, true
	default:
		return 0, false
	}
}
