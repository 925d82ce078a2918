package vatsim

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestParseLogonTimeVariants(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		raw  string
		want time.Time
	}{
		{
			name: "nanosecond fraction",
			raw:  "2024-03-01T18:04:05.1234567Z",
			want: time.Date(2024, 3, 1, 18, 4, 5, 123456000, time.UTC),
		},
		{
			name: "microsecond fraction",
			raw:  "2024-03-01T18:04:05.123456Z",
			want: time.Date(2024, 3, 1, 18, 4, 5, 123456000, time.UTC),
		},
		{
			name: "no fraction",
			raw:  "2024-03-01T18:04:05Z",
			want: time.Date(2024, 3, 1, 18, 4, 5, 0, time.UTC),
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLogonTime(tt.raw)
			if err != nil {
				t.Fatalf("ParseLogonTime(%q): %v", tt.raw, err)
			}
			if !got.Equal(tt.want) {
				t.Fatalf("ParseLogonTime(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestParseLogonTimeInvalid(t *testing.T) {
	t.Parallel()
	if _, err := ParseLogonTime("not-a-time"); err == nil {
		t.Fatal("expected error")
	}
}

func TestControllersFetch(t *testing.T) {
	t.Parallel()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"controllers": [
				{"cid": 1, "name": "A", "callsign": "DCA_TWR", "frequency": "119.100", "rating": 3, "logon_time": "2024-03-01T18:04:05.1234567Z"},
				{"cid": 2, "name": "B", "callsign": "PCT_APP", "frequency": "199.998", "rating": 5, "logon_time": "2024-03-01T18:00:00Z"}
			]
		}`))
	}))
	defer ts.Close()

	got, err := NewClient(ts.URL).Controllers(context.Background())
	if err != nil {
		t.Fatalf("Controllers: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("controllers = %d, want 2", len(got))
	}
	if got[0].Callsign != "DCA_TWR" || got[1].Frequency != PlaceholderFrequency {
		t.Fatalf("unexpected payload: %+v", got)
	}
}

func TestControllersNon200(t *testing.T) {
	t.Parallel()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer ts.Close()

	if _, err := NewClient(ts.URL).Controllers(context.Background()); err == nil {
		t.Fatal("expected error for non-200 response")
	}
}

func TestRatingName(t *testing.T) {
	t.Parallel()
	if RatingName(5) != "C1" {
		t.Fatalf("RatingName(5) = %q", RatingName(5))
	}
	if RatingName(99) != "Rating 99" {
		t.Fatalf("RatingName(99) = %q", RatingName(99))
	}
}
