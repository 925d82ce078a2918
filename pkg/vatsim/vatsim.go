// Package vatsim is a minimal client for the public VATSIM datafeed.
package vatsim

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const DefaultFeedURL = "https://data.vatsim.net/v3/vatsim-data.json"

// Controller is one online ATC position from the datafeed.
type Controller struct {
	CID       int    `json:"cid"`
	Name      string `json:"name"`
	Callsign  string `json:"callsign"`
	Frequency string `json:"frequency"`
	Rating    int    `json:"rating"`
	LogonTime string `json:"logon_time"`
}

// PlaceholderFrequency marks positions that are connected but not staffed.
const PlaceholderFrequency = "199.998"

type datafeed struct {
	Controllers []Controller `json:"controllers"`
}

type Client struct {
	httpClient *http.Client
	feedURL    string
}

func NewClient(feedURL string) *Client {
	if strings.TrimSpace(feedURL) == "" {
		feedURL = DefaultFeedURL
	}
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		feedURL:    feedURL,
	}
}

// Controllers fetches the currently online controllers.
func (c *Client) Controllers(ctx context.Context) ([]Controller, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.feedURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("datafeed returned status %d", resp.StatusCode)
	}

	var feed datafeed
	if err := json.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("decode datafeed: %w", err)
	}
	return feed.Controllers, nil
}

// ParseLogonTime parses the datafeed's logon timestamps. The feed emits
// nanosecond-ish fractional seconds that time.RFC3339 chokes on, so the
// fraction is truncated to microseconds first.
func ParseLogonTime(raw string) (time.Time, error) {
	s := strings.TrimSuffix(strings.TrimSpace(raw), "Z")
	if i := strings.IndexByte(s, '.'); i >= 0 {
		frac := s[i+1:]
		if len(frac) > 6 {
			frac = frac[:6]
		}
		s = s[:i] + "." + frac
	}
	return time.Parse("2006-01-02T15:04:05.999999", s)
}

// RatingName maps a VATSIM ATC rating code to its short name.
func RatingName(code int) string {
	if name, ok := atcRatings[code]; ok {
		return name
	}
	return fmt.Sprintf("Rating %d", code)
}

var atcRatings = map[int]string{
	-1: "INA", 0: "SUS", 1: "OBS", 2: "S1", 3: "S2", 4: "S3",
	5: "C1", 6: "C2", 7: "C3", 8: "I1", 9: "I2", 10: "I3",
	11: "SUP", 12: "ADM",
}
