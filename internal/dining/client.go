package dining

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/Evan-Kreutzwiser/queensu-menu-bot/pkg/logx"
)

// DefaultBaseURL is the campus food-service menu endpoint.
const DefaultBaseURL = "https://dining.queensu.ca/wp-content/themes/housing/campusDishAPI.php"

// apiDateFormat is the zero-padded MM-DD-YYYY form the API requires.
const apiDateFormat = "01-02-2006"

// ErrMenuUnavailable wraps every transport-level fetch failure: timeouts,
// connection errors, non-2xx statuses, and unparseable bodies. Callers match
// it with errors.Is when they only care that the menu could not be reached.
var ErrMenuUnavailable = errors.New("menu unavailable")

// Query names one menu request: a hall, a meal period, and a calendar date.
type Query struct {
	Location Location
	Meal     MealPeriod
	Date     time.Time
}

type ClientConfig struct {
	BaseURL string
	Timeout time.Duration
	// RatePerSec bounds outbound calls to the menu source. The broadcast
	// pass fans out over halls x meals x recipients, and the campus server
	// is not built for bursts.
	RatePerSec float64
}

// Client fetches raw menus from the remote source. One FetchRaw call is one
// network request; there is no internal retry.
type Client struct {
	base    string
	http    *http.Client
	limiter *rate.Limiter
	log     logx.Logger

	now func() time.Time // test hook
}

func NewClient(cfg ClientConfig, log logx.Logger) *Client {
	base := cfg.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = 2
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Client{
		base:    base,
		http:    &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		log:     log,
		now:     time.Now,
	}
}

// FetchRaw issues a single request for the given query and decodes the JSON
// body. Timeouts, connection failures, non-2xx statuses, and unparseable
// bodies all surface as errors; classification of a readable payload is
// Normalize's job.
func (c *Client) FetchRaw(ctx context.Context, q Query) (*Payload, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("locationId", strconv.Itoa(q.Location.ID))
	params.Set("mealPeriod", q.Meal.String())
	params.Set("selDate", q.Date.Format(apiDateFormat))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: request: %w", ErrMenuUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: unexpected status %d", ErrMenuUnavailable, resp.StatusCode)
	}

	var raw Payload
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: response decode: %w", ErrMenuUnavailable, err)
	}

	c.log.Debug("menu fetched",
		logx.Int("location", q.Location.ID),
		logx.String("meal", q.Meal.String()),
		logx.Duration("took", time.Since(started)))
	return &raw, nil
}

// TodaysMenu fetches and normalizes the current date's menu for one hall
// and meal. The returned error is transport-level only; "closed" and
// "bad arguments" outcomes are carried inside the Result.
func (c *Client) TodaysMenu(ctx context.Context, loc Location, meal MealPeriod) (Result, error) {
	raw, err := c.FetchRaw(ctx, Query{Location: loc, Meal: meal, Date: c.now()})
	if err != nil {
		return Result{}, err
	}
	return Normalize(raw), nil
}
