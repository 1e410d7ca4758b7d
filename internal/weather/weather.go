package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
)

// DefaultBaseURL is the wttr.in JSON endpoint.
const DefaultBaseURL = "https://wttr.in/?format=j1"

const requestTimeout = 5 * time.Second

// Report is the trimmed view handed to clients.
type Report struct {
	TempC       string `json:"temp_C"`
	Description string `json:"weatherDesc"`
	TimeOfDay   string `json:"time_of_day"`
}

// Client fetches current conditions from wttr.in. The base URL is
// injectable for tests; the clock decides day vs night.
type Client struct {
	http    *http.Client
	baseURL string
	clock   clockwork.Clock
}

func NewClient(baseURL string, clock clockwork.Clock) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		http:    &http.Client{Timeout: requestTimeout},
		baseURL: baseURL,
		clock:   clock,
	}
}

// Current returns the current conditions plus a day/night flag derived
// from the local hour (night before 06:00 and after 20:00).
func (c *Client) Current(ctx context.Context) (*Report, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL, nil)
	if err != nil {
		return nil, fmt.Errorf("weather: build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("weather: fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("weather: upstream status %d", resp.StatusCode)
	}

	var payload struct {
		CurrentCondition []struct {
			TempC       string `json:"temp_C"`
			WeatherDesc []struct {
				Value string `json:"value"`
			} `json:"weatherDesc"`
		} `json:"current_condition"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("weather: decode response: %w", err)
	}
	if len(payload.CurrentCondition) == 0 {
		return nil, fmt.Errorf("weather: empty current_condition")
	}

	current := payload.CurrentCondition[0]
	report := &Report{
		TempC:     current.TempC,
		TimeOfDay: c.timeOfDay(),
	}
	if len(current.WeatherDesc) > 0 {
		report.Description = current.WeatherDesc[0].Value
	}
	return report, nil
}

func (c *Client) timeOfDay() string {
	hour := c.clock.Now().Hour()
	if hour < 6 || hour > 20 {
		return "night"
	}
	return "day"
}
