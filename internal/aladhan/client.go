// Package aladhan fetches reference prayer times from the Al Adhan API and
// compares them with locally calculated ones.
package aladhan

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/smokyabdulrahman/prayer-engine/internal/prayer"
)

const defaultBaseURL = "https://api.aladhan.com/v1"

// Client communicates with the Al Adhan prayer times API.
type Client struct {
	httpClient *http.Client
	// BaseURL is the API base URL. Defaults to the Al Adhan API.
	// Exported for testing with httptest.
	BaseURL string
}

// NewClient creates a new API client with sensible defaults.
func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		BaseURL: defaultBaseURL,
	}
}

// Query describes one reference request.
type Query struct {
	Date        time.Time
	Coordinates prayer.Coordinates
	Settings    prayer.Settings
	// Timezone is an IANA name the API should answer in; empty lets the API
	// pick the zone of the coordinates.
	Timezone string
}

// Fetch returns the API's timings for q.
func (c *Client) Fetch(ctx context.Context, q Query) (*Response, error) {
	if err := q.Coordinates.Validate(); err != nil {
		return nil, err
	}
	params, err := queryParams(q)
	if err != nil {
		return nil, err
	}
	endpoint := fmt.Sprintf("%s/timings/%s", c.BaseURL, q.Date.Format("02-01-2006"))
	return c.doRequest(ctx, endpoint, params)
}

func queryParams(q Query) (url.Values, error) {
	info, ok := q.Settings.Method.Info()
	if !ok {
		return nil, fmt.Errorf("method %q has no Al Adhan equivalent", q.Settings.Method)
	}

	params := url.Values{}
	params.Set("latitude", strconv.FormatFloat(q.Coordinates.Latitude, 'f', 6, 64))
	params.Set("longitude", strconv.FormatFloat(q.Coordinates.Longitude, 'f', 6, 64))
	params.Set("method", strconv.Itoa(info.AlAdhanID))
	params.Set("school", strconv.Itoa(School(q.Settings.Madhab)))
	params.Set("latitudeAdjustmentMethod", strconv.Itoa(LatitudeAdjustment(q.Settings.HighLatitudeRule)))
	if q.Timezone != "" {
		params.Set("timezonestring", q.Timezone)
	}
	return params, nil
}

// School maps a madhab to the API's school parameter.
func School(m prayer.Madhab) int {
	if m == prayer.Hanafi {
		return 1
	}
	return 0
}

// LatitudeAdjustment maps a high-latitude rule to the API's
// latitudeAdjustmentMethod parameter.
func LatitudeAdjustment(r prayer.HighLatitudeRule) int {
	switch r {
	case prayer.SeventhOfTheNight:
		return 2
	case prayer.TwilightAngle:
		return 3
	default:
		return 1
	}
}

func (c *Client) doRequest(ctx context.Context, endpoint string, params url.Values) (*Response, error) {
	reqURL := fmt.Sprintf("%s?%s", endpoint, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
	}

	var apiResp Response
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("failed to decode API response: %w", err)
	}

	if apiResp.Code != 200 {
		return nil, fmt.Errorf("API error: code=%d status=%s", apiResp.Code, apiResp.Status)
	}

	return &apiResp, nil
}
