package dining

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Evan-Kreutzwiser/queensu-menu-bot/pkg/logx"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewClient(ClientConfig{BaseURL: srv.URL, RatePerSec: 1000}, logx.Nop())
	return c
}

func TestFetchRawQueryParams(t *testing.T) {
	t.Parallel()
	var gotQuery map[string]string
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = map[string]string{
			"locationId": r.URL.Query().Get("locationId"),
			"mealPeriod": r.URL.Query().Get("mealPeriod"),
			"selDate":    r.URL.Query().Get("selDate"),
		}
		_, _ = w.Write([]byte(`{"MealPeriods": []}`))
	})

	date := time.Date(2023, time.March, 7, 0, 0, 0, 0, time.UTC)
	loc, _ := ResolveLocation("leonard")
	_, err := c.FetchRaw(context.Background(), Query{Location: loc, Meal: Lunch, Date: date})
	if err != nil {
		t.Fatalf("FetchRaw: %v", err)
	}
	if gotQuery["locationId"] != "14627" {
		t.Fatalf("locationId = %q", gotQuery["locationId"])
	}
	if gotQuery["mealPeriod"] != "Lunch" {
		t.Fatalf("mealPeriod = %q", gotQuery["mealPeriod"])
	}
	// Zero-padded MM-DD-YYYY.
	if gotQuery["selDate"] != "03-07-2023" {
		t.Fatalf("selDate = %q, want 03-07-2023", gotQuery["selDate"])
	}
}

func TestFetchRawNonOKStatus(t *testing.T) {
	t.Parallel()
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone fishing", http.StatusBadGateway)
	})
	_, err := c.FetchRaw(context.Background(), Query{Meal: Dinner, Date: time.Now()})
	if !errors.Is(err, ErrMenuUnavailable) {
		t.Fatalf("err = %v, want ErrMenuUnavailable for non-2xx status", err)
	}
}

func TestFetchRawBadBody(t *testing.T) {
	t.Parallel()
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>maintenance</html>"))
	})
	_, err := c.FetchRaw(context.Background(), Query{Meal: Breakfast, Date: time.Now()})
	if !errors.Is(err, ErrMenuUnavailable) {
		t.Fatalf("err = %v, want ErrMenuUnavailable for unparseable body", err)
	}
}

func TestTodaysMenuNormalizes(t *testing.T) {
	t.Parallel()
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"MealPeriods": [{"Stations": [
			{"Name": "Grill", "SubCategories": [{"Items": [{"ProductName": "Burger"}]}]}
		]}]}`))
	})
	loc, _ := ResolveLocation("ban righ")
	res, err := c.TodaysMenu(context.Background(), loc, Dinner)
	if err != nil {
		t.Fatalf("TodaysMenu: %v", err)
	}
	if res.Status != StatusAvailable || len(res.Stations) != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestTodaysMenuTransportError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on
	c := NewClient(ClientConfig{BaseURL: srv.URL, RatePerSec: 1000}, logx.Nop())
	loc, _ := ResolveLocation("west")
	if _, err := c.TodaysMenu(context.Background(), loc, Lunch); !errors.Is(err, ErrMenuUnavailable) {
		t.Fatalf("err = %v, want ErrMenuUnavailable", err)
	}
}
