package weather

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleResponse = `{
  "latitude": -37.8,
  "longitude": 144.94,
  "timezone": "Australia/Melbourne",
  "current_units": {"time": "iso8601", "temperature_2m": "°C", "pressure_msl": "hPa"},
  "current": {"time": "2024-06-10T16:30", "interval": 900, "temperature_2m": 11.4, "pressure_msl": 1021.3}
}`

func TestCurrentParsesSnapshot(t *testing.T) {
	var gotQuery map[string][]string
	var gotAccept string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		gotAccept = r.Header.Get("Accept")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(sampleResponse))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	snap := c.Current(context.Background(), -37.8136, 144.9631)
	require.NotNil(t, snap)
	require.NotNil(t, snap.TemperatureC)
	require.NotNil(t, snap.PressureHpa)
	assert.Equal(t, 11.4, *snap.TemperatureC)
	assert.Equal(t, 1021.3, *snap.PressureHpa)

	assert.Equal(t, "application/json", gotAccept)
	assert.Equal(t, []string{"-37.8136"}, gotQuery["latitude"])
	assert.Equal(t, []string{"144.9631"}, gotQuery["longitude"])
	assert.Equal(t, []string{"temperature_2m,pressure_msl"}, gotQuery["current"])
	assert.Equal(t, []string{"auto"}, gotQuery["timezone"])
}

func TestCurrentMissingFieldsAreNil(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"current": {"time": "2024-06-10T16:30", "temperature_2m": null}}`))
	}))
	defer srv.Close()

	snap := NewClient(srv.URL, time.Second).Current(context.Background(), 0, 0)
	require.NotNil(t, snap)
	assert.Nil(t, snap.TemperatureC)
	assert.Nil(t, snap.PressureHpa)
}

func TestCurrentFailuresReturnNil(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"error":true}`, http.StatusBadRequest)
		}},
		{"bad json", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"current": `))
		}},
		{"no current block", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"latitude": 1}`))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()
			assert.Nil(t, NewClient(srv.URL, time.Second).Current(context.Background(), 1, 2))
		})
	}
}

func TestCurrentCapsResponseSize(t *testing.T) {
	// Valid JSON, but the padding pushes the snapshot past the read cap.
	body := `{"pad": "` + strings.Repeat("x", maxResponseBytes) + `", "current": {"temperature_2m": 11.4}}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	assert.Nil(t, c.Current(context.Background(), -37.8, 144.94))
}

func TestCurrentTimesOut(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	start := time.Now()
	snap := NewClient(srv.URL, 50*time.Millisecond).Current(context.Background(), 1, 2)
	assert.Nil(t, snap)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestCurrentUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	assert.Nil(t, NewClient(url, time.Second).Current(context.Background(), 1, 2))
}

func TestZeroClientDefaults(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// A cancelled context fails before any network access.
	assert.Nil(t, (&Client{}).Current(ctx, 1, 2))
}
