package dining

import "errors"

// ErrMealPeriodsMissing marks a well-formed API response that lacks the
// MealPeriods collection entirely. This usually means the request
// parameters (hall/meal/date combination) were invalid, which is a
// different failure than a transport problem.
var ErrMealPeriodsMissing = errors.New("menu response missing MealPeriods")

// Status classifies the outcome of one menu query.
type Status int

const (
	// StatusAvailable means the hall is serving and Stations is populated.
	StatusAvailable Status = iota
	// StatusClosed means the hall does not serve this meal on this date.
	// This is an expected outcome, not an error.
	StatusClosed
	// StatusAPIError means the response was readable but structurally
	// unusable (see ErrMealPeriodsMissing).
	StatusAPIError
)

// Station is one named serving section and everything it offers, in the
// order the API listed it. Item names may repeat.
type Station struct {
	Name  string
	Items []string
}

// Result is the normalized outcome of one menu query. Exactly one of the
// three states holds: Available populates Stations, APIError populates Err,
// Closed populates neither.
type Result struct {
	Status   Status
	Stations []Station
	Err      error
}

// Payload mirrors the shape of the campus menu API's JSON response, keeping
// only the fields this bot reads. MealPeriods is a pointer so a missing key
// can be told apart from an empty array.
type Payload struct {
	MealPeriods *[]PayloadMealPeriod `json:"MealPeriods"`
}

type PayloadMealPeriod struct {
	Stations []PayloadStation `json:"Stations"`
}

type PayloadStation struct {
	Name          string               `json:"Name"`
	SubCategories []PayloadSubCategory `json:"SubCategories"`
}

type PayloadSubCategory struct {
	Items []PayloadItem `json:"Items"`
}

type PayloadItem struct {
	ProductName string `json:"ProductName"`
}

// Normalize classifies a raw API payload and, when the hall is serving,
// flattens it into per-station item lists. Item order within a station is
// preserved across sub-categories; nutritional data and identifiers are
// discarded. A duplicate station name appends to the earlier station's item
// list rather than replacing it.
func Normalize(raw *Payload) Result {
	if raw == nil || raw.MealPeriods == nil {
		return Result{Status: StatusAPIError, Err: ErrMealPeriodsMissing}
	}
	periods := *raw.MealPeriods
	if len(periods) == 0 {
		return Result{Status: StatusClosed}
	}

	// The API returns at most one relevant meal period per query.
	var stations []Station
	index := map[string]int{}
	for _, st := range periods[0].Stations {
		var items []string
		for _, cat := range st.SubCategories {
			for _, item := range cat.Items {
				items = append(items, item.ProductName)
			}
		}
		if at, seen := index[st.Name]; seen {
			stations[at].Items = append(stations[at].Items, items...)
			continue
		}
		index[st.Name] = len(stations)
		stations = append(stations, Station{Name: st.Name, Items: items})
	}
	return Result{Status: StatusAvailable, Stations: stations}
}
