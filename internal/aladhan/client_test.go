package aladhan

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/smokyabdulrahman/prayer-engine/internal/prayer"
)

var london = prayer.NewCoordinates(51.5074, -0.1278)

// sampleResponse returns a valid Al Adhan API response for testing.
func sampleResponse() Response {
	r := Response{
		Code:   200,
		Status: "OK",
		Data: Data{
			Timings: Timings{
				Fajr:    "05:17",
				Sunrise: "06:48",
				Dhuhr:   "12:13",
				Asr:     "15:02",
				Maghrib: "17:39",
				Isha:    "19:10 (GMT)",
			},
			Date: DateInfo{Readable: "28 Feb 2026"},
			Meta: Meta{Latitude: 51.5074, Longitude: -0.1278, Timezone: "Europe/London", School: "STANDARD"},
		},
	}
	r.Data.Meta.Method.ID = 2
	return r
}

func isnaQuery() Query {
	s := prayer.DefaultSettings()
	s.Method = prayer.NorthAmerica
	return Query{
		Date:        time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC),
		Coordinates: london,
		Settings:    s,
		Timezone:    "Europe/London",
	}
}

func TestNewClient(t *testing.T) {
	c := NewClient()
	if c == nil {
		t.Fatal("NewClient returned nil")
	}
	if c.BaseURL != defaultBaseURL {
		t.Errorf("BaseURL = %q, want %q", c.BaseURL, defaultBaseURL)
	}
}

func TestFetch_Success(t *testing.T) {
	resp := sampleResponse()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "/timings/28-02-2026") {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		q := r.URL.Query()
		checks := map[string]string{
			"latitude":                 "51.507400",
			"longitude":                "-0.127800",
			"method":                   "2",
			"school":                   "0",
			"latitudeAdjustmentMethod": "1",
			"timezonestring":           "Europe/London",
		}
		for k, want := range checks {
			if got := q.Get(k); got != want {
				t.Errorf("%s = %q, want %q", k, got, want)
			}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	c := NewClient()
	c.BaseURL = server.URL

	got, err := c.Fetch(context.Background(), isnaQuery())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Data.Timings.Fajr != "05:17" {
		t.Errorf("Fajr = %q, want %q", got.Data.Timings.Fajr, "05:17")
	}
	if got.Data.Meta.Method.ID != 2 {
		t.Errorf("Meta.Method.ID = %d, want 2", got.Data.Meta.Method.ID)
	}
}

func TestFetch_HanafiAndSeventh(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("school") != "1" {
			t.Errorf("school = %q, want 1", q.Get("school"))
		}
		if q.Get("latitudeAdjustmentMethod") != "2" {
			t.Errorf("latitudeAdjustmentMethod = %q, want 2", q.Get("latitudeAdjustmentMethod"))
		}
		if q.Get("timezonestring") != "" {
			t.Errorf("timezonestring should not be set, got %q", q.Get("timezonestring"))
		}
		json.NewEncoder(w).Encode(sampleResponse())
	}))
	defer server.Close()

	c := NewClient()
	c.BaseURL = server.URL

	q := isnaQuery()
	q.Settings.Madhab = prayer.Hanafi
	q.Settings.HighLatitudeRule = prayer.SeventhOfTheNight
	q.Timezone = ""
	if _, err := c.Fetch(context.Background(), q); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestFetch_Errors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		wantErr string
	}{
		{
			name: "non-200 status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
				w.Write([]byte("boom"))
			},
			wantErr: "status 500",
		},
		{
			name: "invalid JSON",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("{not json"))
			},
			wantErr: "decode",
		},
		{
			name: "API error code",
			handler: func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(Response{Code: 400, Status: "Bad Request"})
			},
			wantErr: "code=400",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			c := NewClient()
			c.BaseURL = server.URL
			_, err := c.Fetch(context.Background(), isnaQuery())
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestFetch_InvalidCoordinates(t *testing.T) {
	q := isnaQuery()
	q.Coordinates = prayer.NewCoordinates(0, 200)
	_, err := NewClient().Fetch(context.Background(), q)
	if err == nil {
		t.Fatal("expected error for invalid coordinates")
	}
}

func TestFetch_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(sampleResponse())
	}))
	defer server.Close()

	c := NewClient()
	c.BaseURL = server.URL
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Fetch(ctx, isnaQuery()); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}
