// Package weather looks up current conditions from the Open-Meteo forecast API.
package weather

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const (
	DefaultEndpoint = "https://api.open-meteo.com/v1/forecast"
	DefaultTimeout  = 10 * time.Second

	currentParams = "temperature_2m,pressure_msl"

	// The current-conditions payload is a few hundred bytes.
	maxResponseBytes = 1 << 20
)

// Snapshot is the weather at the time of a catch. Nil fields were not reported.
type Snapshot struct {
	TemperatureC *float64
	PressureHpa  *float64
}

// Fetcher returns current conditions for a position, or nil when unavailable.
type Fetcher interface {
	Current(ctx context.Context, lat, lon float64) *Snapshot
}

// OpenMeteoAPIResponse is the subset of the forecast response we read.
type OpenMeteoAPIResponse struct {
	Latitude     float64      `json:"latitude"`
	Longitude    float64      `json:"longitude"`
	Timezone     string       `json:"timezone"`
	CurrentUnits CurrentUnits `json:"current_units"`
	Current      *Current     `json:"current"`
}

type Current struct {
	Time          string   `json:"time"`
	Interval      int64    `json:"interval"`
	Temperature2M *float64 `json:"temperature_2m"`
	PressureMSL   *float64 `json:"pressure_msl"`
}

type CurrentUnits struct {
	Temperature2M string `json:"temperature_2m"`
	PressureMSL   string `json:"pressure_msl"`
}

// Client queries Open-Meteo. The zero value uses the public endpoint.
type Client struct {
	Endpoint string
	Timeout  time.Duration
	HTTP     *http.Client
}

// NewClient returns a client for endpoint with the given request timeout.
// Empty endpoint and non-positive timeout fall back to the defaults.
func NewClient(endpoint string, timeout time.Duration) *Client {
	return &Client{Endpoint: endpoint, Timeout: timeout, HTTP: &http.Client{}}
}

// Current returns temperature (°C) and mean sea level pressure (hPa) at lat/lon.
// Any transport, status or decoding failure is logged and yields nil.
func (c *Client) Current(ctx context.Context, lat, lon float64) *Snapshot {
	endpoint := c.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	client := c.HTTP
	if client == nil {
		client = http.DefaultClient
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	params := url.Values{}
	params.Add("latitude", strconv.FormatFloat(lat, 'f', -1, 64))
	params.Add("longitude", strconv.FormatFloat(lon, 'f', -1, 64))
	params.Add("current", currentParams)
	params.Add("timezone", "auto")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		log.Println("ERROR: couldn't create Open-Meteo request:", err)
		return nil
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		log.Println("ERROR: Open-Meteo request failed:", err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Println("ERROR: Open-Meteo API response code:", resp.Status)
		return nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		log.Println("ERROR: reading Open-Meteo response:", err)
		return nil
	}

	var data OpenMeteoAPIResponse
	if err := json.Unmarshal(body, &data); err != nil {
		log.Println("ERROR: cannot unmarshal Open-Meteo JSON:", err)
		return nil
	}

	return data.Snapshot()
}

// Snapshot converts the response to a Snapshot, or nil when it has no current block.
func (data OpenMeteoAPIResponse) Snapshot() *Snapshot {
	if data.Current == nil {
		return nil
	}
	return &Snapshot{
		TemperatureC: data.Current.Temperature2M,
		PressureHpa:  data.Current.PressureMSL,
	}
}
