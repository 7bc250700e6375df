package weather

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kerala-agrisage/agrisage/internal/cache"
)

func fakeOpenMeteo(t *testing.T, calls *int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/search", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		if r.URL.Query().Get("name") == "Atlantis" {
			fmt.Fprint(w, `{}`)
			return
		}
		assert.Equal(t, "Kochi", r.URL.Query().Get("name"))
		fmt.Fprint(w, `{"results":[{"name":"Kochi","latitude":9.9312,"longitude":76.2673,"country":"India"}]}`)
	})
	mux.HandleFunc("/v1/forecast", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "9.9312", r.URL.Query().Get("latitude"))
		assert.Equal(t, "5", r.URL.Query().Get("forecast_days"))
		fmt.Fprint(w, `{
			"current": {"time":"2025-06-13T10:00","temperature_2m":29.4,"relative_humidity_2m":84,"wind_speed_10m":12.5,"precipitation":0.4,"weather_code":61},
			"daily": {
				"time":["2025-06-13","2025-06-14"],
				"weather_code":[61,2],
				"temperature_2m_max":[31.2,30.8],
				"temperature_2m_min":[24.1,24.6],
				"precipitation_probability_max":[90,40]
			}
		}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestLookup(t *testing.T) {
	var calls int32
	srv := fakeOpenMeteo(t, &calls)
	c := NewClient(srv.URL, srv.URL, cache.NewMemoryCache(), time.Minute, nil)

	r, err := c.Lookup(context.Background(), "Kochi")
	require.NoError(t, err)
	assert.Equal(t, "Kochi", r.Location)
	assert.Equal(t, "India", r.Country)
	assert.Equal(t, 29.4, r.Current.Temperature)
	assert.Equal(t, 84.0, r.Current.Humidity)
	assert.Equal(t, "Rain", r.Current.Condition)
	require.Len(t, r.Forecast, 2)
	assert.Equal(t, "Fri", r.Forecast[0].Day)
	assert.Equal(t, 90, r.Forecast[0].RainChance)
	assert.Equal(t, "Partly cloudy", r.Forecast[1].Condition)

	// Second lookup is served from the cache.
	_, err = c.Lookup(context.Background(), " kochi ")
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestLookupUnknownLocation(t *testing.T) {
	var calls int32
	srv := fakeOpenMeteo(t, &calls)
	c := NewClient(srv.URL, srv.URL, nil, 0, nil)

	_, err := c.Lookup(context.Background(), "Atlantis")
	assert.True(t, errors.Is(err, ErrLocationNotFound))

	_, err = c.Lookup(context.Background(), "  ")
	assert.Error(t, err)
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "Clear sky", Describe(0))
	assert.Equal(t, "Thunderstorm", Describe(95))
	assert.Equal(t, "Unknown", Describe(42))
}
