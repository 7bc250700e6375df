// Package weather looks up current conditions and a short forecast from open-meteo.
package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kerala-agrisage/agrisage/internal/cache"
	"github.com/kerala-agrisage/agrisage/internal/logger"
)

const forecastDays = 5

var ErrLocationNotFound = errors.New("location not found")

type Current struct {
	Temperature   float64 `json:"temperature"`
	Humidity      float64 `json:"humidity"`
	WindSpeed     float64 `json:"windSpeed"`
	Precipitation float64 `json:"precipitation"`
	WeatherCode   int     `json:"weatherCode"`
	Condition     string  `json:"condition"`
	Time          string  `json:"time"`
}

type DayForecast struct {
	Date       string  `json:"date"`
	Day        string  `json:"day"`
	TempMax    float64 `json:"tempMax"`
	TempMin    float64 `json:"tempMin"`
	RainChance int     `json:"rainChance"`
	Condition  string  `json:"condition"`
}

type Report struct {
	Location  string        `json:"location"`
	Country   string        `json:"country"`
	Latitude  float64       `json:"latitude"`
	Longitude float64       `json:"longitude"`
	Current   Current       `json:"current"`
	Forecast  []DayForecast `json:"forecast"`
	FetchedAt time.Time     `json:"fetchedAt"`
}

type Client struct {
	forecastURL  string
	geocodingURL string
	httpClient   *http.Client
	cache        cache.Cache
	ttl          time.Duration
	log          *logger.Logger
}

// NewClient builds an open-meteo client. store may be nil to disable caching.
func NewClient(forecastURL, geocodingURL string, store cache.Cache, ttl time.Duration, log *logger.Logger) *Client {
	if log == nil {
		log = logger.NewNop()
	}
	return &Client{
		forecastURL:  strings.TrimRight(forecastURL, "/"),
		geocodingURL: strings.TrimRight(geocodingURL, "/"),
		httpClient:   &http.Client{Timeout: 10 * time.Second},
		cache:        store,
		ttl:          ttl,
		log:          log.With("component", "weather"),
	}
}

type geocodeResponse struct {
	Results []struct {
		Name      string  `json:"name"`
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
		Country   string  `json:"country"`
	} `json:"results"`
}

type forecastResponse struct {
	Current struct {
		Time          string  `json:"time"`
		Temperature   float64 `json:"temperature_2m"`
		Humidity      float64 `json:"relative_humidity_2m"`
		WindSpeed     float64 `json:"wind_speed_10m"`
		Precipitation float64 `json:"precipitation"`
		WeatherCode   int     `json:"weather_code"`
	} `json:"current"`
	Daily struct {
		Time        []string  `json:"time"`
		WeatherCode []int     `json:"weather_code"`
		TempMax     []float64 `json:"temperature_2m_max"`
		TempMin     []float64 `json:"temperature_2m_min"`
		RainChance  []int     `json:"precipitation_probability_max"`
	} `json:"daily"`
}

// Lookup geocodes location and fetches its weather, serving repeated lookups from the cache.
func (c *Client) Lookup(ctx context.Context, location string) (*Report, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return nil, errors.New("no location provided")
	}
	key := "weather:" + strings.ToLower(location)

	if c.cache != nil {
		raw, ok, err := c.cache.Get(ctx, key)
		if err != nil {
			c.log.Warn("Weather cache read failed", "error", err)
		} else if ok {
			var cached Report
			if err := json.Unmarshal(raw, &cached); err == nil {
				return &cached, nil
			}
		}
	}

	report, err := c.fetch(ctx, location)
	if err != nil {
		return nil, err
	}

	if c.cache != nil && c.ttl > 0 {
		if raw, err := json.Marshal(report); err == nil {
			if err := c.cache.Set(ctx, key, raw, c.ttl); err != nil {
				c.log.Warn("Weather cache write failed", "error", err)
			}
		}
	}
	return report, nil
}

func (c *Client) fetch(ctx context.Context, location string) (*Report, error) {
	var geo geocodeResponse
	geoURL := c.geocodingURL + "/v1/search?" + url.Values{
		"name":  {location},
		"count": {"1"},
	}.Encode()
	if err := c.getJSON(ctx, geoURL, &geo); err != nil {
		return nil, fmt.Errorf("geocoding request failed: %w", err)
	}
	if len(geo.Results) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrLocationNotFound, location)
	}
	place := geo.Results[0]

	var fc forecastResponse
	fcURL := c.forecastURL + "/v1/forecast?" + url.Values{
		"latitude":      {fmt.Sprintf("%.4f", place.Latitude)},
		"longitude":     {fmt.Sprintf("%.4f", place.Longitude)},
		"current":       {"temperature_2m,relative_humidity_2m,wind_speed_10m,precipitation,weather_code"},
		"daily":         {"weather_code,temperature_2m_max,temperature_2m_min,precipitation_probability_max"},
		"forecast_days": {fmt.Sprint(forecastDays)},
		"timezone":      {"auto"},
	}.Encode()
	if err := c.getJSON(ctx, fcURL, &fc); err != nil {
		return nil, fmt.Errorf("weather request failed: %w", err)
	}

	report := &Report{
		Location:  place.Name,
		Country:   place.Country,
		Latitude:  place.Latitude,
		Longitude: place.Longitude,
		Current: Current{
			Temperature:   fc.Current.Temperature,
			Humidity:      fc.Current.Humidity,
			WindSpeed:     fc.Current.WindSpeed,
			Precipitation: fc.Current.Precipitation,
			WeatherCode:   fc.Current.WeatherCode,
			Condition:     Describe(fc.Current.WeatherCode),
			Time:          fc.Current.Time,
		},
		Forecast:  make([]DayForecast, 0, len(fc.Daily.Time)),
		FetchedAt: time.Now().UTC(),
	}
	for i, date := range fc.Daily.Time {
		day := DayForecast{Date: date, Day: weekday(date)}
		if i < len(fc.Daily.TempMax) {
			day.TempMax = fc.Daily.TempMax[i]
		}
		if i < len(fc.Daily.TempMin) {
			day.TempMin = fc.Daily.TempMin[i]
		}
		if i < len(fc.Daily.RainChance) {
			day.RainChance = fc.Daily.RainChance[i]
		}
		if i < len(fc.Daily.WeatherCode) {
			day.Condition = Describe(fc.Daily.WeatherCode[i])
		}
		report.Forecast = append(report.Forecast, day)
	}
	return report, nil
}

func (c *Client) getJSON(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func weekday(date string) string {
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return ""
	}
	return t.Format("Mon")
}

// Describe turns a WMO weather code into a short label.
func Describe(code int) string {
	switch code {
	case 0:
		return "Clear sky"
	case 1:
		return "Mainly clear"
	case 2:
		return "Partly cloudy"
	case 3:
		return "Overcast"
	case 45, 48:
		return "Fog"
	case 51, 53, 55:
		return "Drizzle"
	case 56, 57:
		return "Freezing drizzle"
	case 61, 63:
		return "Rain"
	case 65:
		return "Heavy rain"
	case 66, 67:
		return "Freezing rain"
	case 71, 73, 75, 77:
		return "Snow"
	case 80, 81:
		return "Rain showers"
	case 82:
		return "Violent rain showers"
	case 85, 86:
		return "Snow showers"
	case 95:
		return "Thunderstorm"
	case 96, 99:
		return "Thunderstorm with hail"
	default:
		return "Unknown"
	}
}
