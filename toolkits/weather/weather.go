// Package weather provides OpenWeatherMap-backed tools: current conditions
// and a multi-day forecast. Without an API key the tools return
// deterministic simulated payloads flagged "status": "simulated" so demos
// work out of the box.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/toolloop/toolloop"
)

const defaultBaseURL = "https://api.openweathermap.org/data/2.5"

// Config holds the externally supplied provider settings. Credentials are
// opaque; they never appear in transcript data.
type Config struct {
	// APIKey is the OpenWeatherMap key. Empty means simulated data.
	APIKey string
	// BaseURL overrides the OpenWeatherMap endpoint (tests, proxies).
	BaseURL string
	// HTTPClient overrides the default client. Tool-level timeouts are
	// enforced by the Executor through the request context.
	HTTPClient *http.Client
}

// Provider queries OpenWeatherMap.
type Provider struct {
	cfg Config
}

// NewProvider creates a Provider, filling in defaults.
func NewProvider(cfg Config) *Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	return &Provider{cfg: cfg}
}

// Tools returns the get_weather and get_weather_forecast tools.
func Tools(cfg Config) ([]toolloop.Tool, error) {
	p := NewProvider(cfg)
	current, err := toolloop.NewTool(
		"get_weather",
		"Get current weather information for any city worldwide using real weather data",
		p.current,
		toolloop.WithTimeout(10*time.Second),
	)
	if err != nil {
		return nil, err
	}
	forecast, err := toolloop.NewTool(
		"get_weather_forecast",
		"Get weather forecast for a location for the next few days",
		p.forecast,
		toolloop.WithTimeout(10*time.Second),
	)
	if err != nil {
		return nil, err
	}
	return []toolloop.Tool{current, forecast}, nil
}

// CurrentArgs are the arguments of get_weather.
type CurrentArgs struct {
	Location string `json:"location" description:"City name, optionally with country code (e.g. 'San Francisco', 'Tokyo,JP')"`
	Unit     string `json:"unit,omitempty" description:"Temperature unit preference" enum:"celsius,fahrenheit"`
}

// Report is the structured current-conditions payload shown to the model.
type Report struct {
	Location    string  `json:"location"`
	Temperature float64 `json:"temperature"`
	FeelsLike   float64 `json:"feels_like,omitempty"`
	Humidity    int     `json:"humidity"`
	Pressure    int     `json:"pressure,omitempty"`
	Unit        string  `json:"unit"`
	Conditions  string  `json:"conditions"`
	WindSpeed   float64 `json:"wind_speed,omitempty"`
	Status      string  `json:"status"`
	Note        string  `json:"note,omitempty"`
}

func (p *Provider) current(ctx context.Context, args CurrentArgs) (Report, error) {
	unit := args.Unit
	if unit == "" {
		unit = "celsius"
	}
	if p.cfg.APIKey == "" {
		return simulatedReport(args.Location, unit), nil
	}

	q := url.Values{}
	q.Set("q", args.Location)
	q.Set("appid", p.cfg.APIKey)
	q.Set("units", owmUnits(unit))
	var raw owmCurrent
	if err := p.get(ctx, "/weather", q, &raw); err != nil {
		return Report{}, err
	}
	return Report{
		Location:    fmt.Sprintf("%s, %s", raw.Name, raw.Sys.Country),
		Temperature: raw.Main.Temp,
		FeelsLike:   raw.Main.FeelsLike,
		Humidity:    raw.Main.Humidity,
		Pressure:    raw.Main.Pressure,
		Unit:        unitSymbol(unit),
		Conditions:  conditionText(raw.Weather),
		WindSpeed:   raw.Wind.Speed,
		Status:      "success",
	}, nil
}

// ForecastArgs are the arguments of get_weather_forecast.
type ForecastArgs struct {
	Location string `json:"location" description:"City name for the forecast"`
	Days     int    `json:"days,omitempty" description:"Number of days for forecast (1-5)"`
}

// Validate bounds the requested day count (business validation on top of
// the schema).
func (a ForecastArgs) Validate() error {
	if a.Days < 0 || a.Days > 5 {
		return fmt.Errorf("days must be between 1 and 5, got %d", a.Days)
	}
	return nil
}

// DayForecast is one forecast entry (around midday of the given date).
type DayForecast struct {
	Date        string  `json:"date"`
	Time        string  `json:"time,omitempty"`
	Temperature float64 `json:"temperature"`
	Conditions  string  `json:"conditions"`
	Humidity    int     `json:"humidity"`
	WindSpeed   float64 `json:"wind_speed,omitempty"`
}

// ForecastReport is the structured forecast payload shown to the model.
type ForecastReport struct {
	Location  string        `json:"location"`
	Forecasts []DayForecast `json:"forecasts"`
	Status    string        `json:"status"`
	Note      string        `json:"note,omitempty"`
}

func (p *Provider) forecast(ctx context.Context, args ForecastArgs) (ForecastReport, error) {
	days := args.Days
	if days == 0 {
		days = 5
	}
	if p.cfg.APIKey == "" {
		return simulatedForecast(args.Location, days), nil
	}

	q := url.Values{}
	q.Set("q", args.Location)
	q.Set("appid", p.cfg.APIKey)
	q.Set("units", "metric")
	// 8 entries per day (3-hour intervals), capped at the API maximum of 40.
	q.Set("cnt", strconv.Itoa(min(days*8, 40)))
	var raw owmForecast
	if err := p.get(ctx, "/forecast", q, &raw); err != nil {
		return ForecastReport{}, err
	}

	forecasts := make([]DayForecast, 0, days)
	seen := make(map[string]bool)
	for _, item := range raw.List {
		ts := time.Unix(item.DT, 0).UTC()
		day := ts.Format("2006-01-02")
		// One entry per day, around midday.
		if seen[day] || ts.Hour() < 12 {
			continue
		}
		forecasts = append(forecasts, DayForecast{
			Date:        day,
			Time:        ts.Format("15:04"),
			Temperature: item.Main.Temp,
			Conditions:  conditionText(item.Weather),
			Humidity:    item.Main.Humidity,
			WindSpeed:   item.Wind.Speed,
		})
		seen[day] = true
		if len(forecasts) >= days {
			break
		}
	}
	return ForecastReport{
		Location:  fmt.Sprintf("%s, %s", raw.City.Name, raw.City.Country),
		Forecasts: forecasts,
		Status:    "success",
	}, nil
}

func (p *Provider) get(ctx context.Context, path string, q url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.BaseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return err
	}
	resp, err := p.cfg.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("openweathermap request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("openweathermap: %s returned status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("openweathermap response: %w", err)
	}
	return nil
}

func owmUnits(unit string) string {
	if unit == "fahrenheit" {
		return "imperial"
	}
	return "metric"
}

func unitSymbol(unit string) string {
	if unit == "fahrenheit" {
		return "°F"
	}
	return "°C"
}

func conditionText(weather []owmCondition) string {
	if len(weather) == 0 {
		return "unknown"
	}
	return weather[0].Description
}

const simulatedNote = "This is simulated data. Configure an OpenWeatherMap API key for real weather."

func simulatedReport(location, unit string) Report {
	temp := 22.0
	if unit == "fahrenheit" {
		temp = temp*9/5 + 32
	}
	return Report{
		Location:    location,
		Temperature: temp,
		Humidity:    55,
		Unit:        unitSymbol(unit),
		Conditions:  "Sunny",
		Status:      "simulated",
		Note:        simulatedNote,
	}
}

func simulatedForecast(location string, days int) ForecastReport {
	base := time.Now()
	forecasts := make([]DayForecast, 0, days)
	for i := 0; i < days; i++ {
		forecasts = append(forecasts, DayForecast{
			Date:        base.AddDate(0, 0, i).Format("2006-01-02"),
			Temperature: 20 + float64(i),
			Conditions:  "Scattered Clouds",
			Humidity:    60,
		})
	}
	return ForecastReport{
		Location:  location,
		Forecasts: forecasts,
		Status:    "simulated",
		Note:      simulatedNote,
	}
}

// OpenWeatherMap wire shapes (only the fields we read).

type owmCondition struct {
	Description string `json:"description"`
}

type owmCurrent struct {
	Name string `json:"name"`
	Sys  struct {
		Country string `json:"country"`
	} `json:"sys"`
	Main struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
		Humidity  int     `json:"humidity"`
		Pressure  int     `json:"pressure"`
	} `json:"main"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
	Weather []owmCondition `json:"weather"`
}

type owmForecast struct {
	City struct {
		Name    string `json:"name"`
		Country string `json:"country"`
	} `json:"city"`
	List []struct {
		DT   int64 `json:"dt"`
		Main struct {
			Temp     float64 `json:"temp"`
			Humidity int     `json:"humidity"`
		} `json:"main"`
		Wind struct {
			Speed float64 `json:"speed"`
		} `json:"wind"`
		Weather []owmCondition `json:"weather"`
	} `json:"list"`
}
