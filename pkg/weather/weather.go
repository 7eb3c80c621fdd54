// Package weather fetches current conditions and forecasts used to ground
// agricultural answers.
//
// The JSON shape follows weatherapi.com's forecast endpoint so that a
// provider payload and the built-in mock are interchangeable.
package weather

import (
	"context"
	"time"
)

// Condition is a textual weather condition.
type Condition struct {
	Text string `json:"text"`
	Icon string `json:"icon,omitempty"`
	Code int    `json:"code,omitempty"`
}

// Location identifies where a report applies.
type Location struct {
	Name      string `json:"name"`
	Region    string `json:"region,omitempty"`
	Country   string `json:"country,omitempty"`
	LocalTime string `json:"localtime,omitempty"`
}

// Current holds the present conditions.
type Current struct {
	TempC     float64   `json:"temp_c"`
	Humidity  float64   `json:"humidity"`
	WindKph   float64   `json:"wind_kph,omitempty"`
	PrecipMm  float64   `json:"precip_mm,omitempty"`
	Condition Condition `json:"condition"`
}

// Day is the daily summary inside a forecast day.
type Day struct {
	MaxTempC          float64   `json:"maxtemp_c"`
	MinTempC          float64   `json:"mintemp_c"`
	AvgHumidity       float64   `json:"avghumidity"`
	DailyChanceOfRain int       `json:"daily_chance_of_rain"`
	TotalPrecipMm     float64   `json:"totalprecip_mm,omitempty"`
	Condition         Condition `json:"condition"`
}

// ForecastDay is one day of forecast.
type ForecastDay struct {
	Date string `json:"date"`
	Day  Day    `json:"day"`
}

// Forecast wraps the per-day list.
type Forecast struct {
	ForecastDay []ForecastDay `json:"forecastday"`
}

// Alert is a weather alert issued for the location.
type Alert struct {
	Headline string `json:"headline"`
	Severity string `json:"severity,omitempty"`
	Event    string `json:"event,omitempty"`
}

// Alerts wraps the alert list.
type Alerts struct {
	Alert []Alert `json:"alert"`
}

// Report is a full weather snapshot for a location.
type Report struct {
	Location Location `json:"location"`
	Current  Current  `json:"current"`
	Forecast Forecast `json:"forecast"`
	Alerts   *Alerts  `json:"alerts,omitempty"`

	// Mock is set when the report is the built-in fallback payload.
	Mock bool `json:"mock,omitempty"`
}

// Today returns the first forecast day, if any.
func (r *Report) Today() (ForecastDay, bool) {
	if r == nil || len(r.Forecast.ForecastDay) == 0 {
		return ForecastDay{}, false
	}
	return r.Forecast.ForecastDay[0], true
}

// Provider fetches a weather report.
type Provider interface {
	// Forecast returns current conditions plus `days` forecast days.
	Forecast(ctx context.Context, location string, days int) (*Report, error)
}

// Mock returns the deterministic fallback report used when no provider is
// reachable. Every call returns a fresh copy.
func Mock(location string) *Report {
	if location == "" {
		location = DefaultLocation
	}
	return &Report{
		Location: Location{Name: location, Country: "India"},
		Current: Current{
			TempC:     28,
			Humidity:  65,
			Condition: Condition{Text: "Partly cloudy"},
		},
		Forecast: Forecast{ForecastDay: []ForecastDay{{
			Date: "2024-01-20",
			Day: Day{
				MaxTempC:          30,
				MinTempC:          18,
				AvgHumidity:       65,
				DailyChanceOfRain: 80,
				Condition:         Condition{Text: "Light rain"},
			},
		}}},
		Mock: true,
	}
}

// DefaultLocation is used when the caller supplies none.
const DefaultLocation = "Delhi"

// DefaultDays is the forecast horizon requested by default.
const DefaultDays = 7

// DefaultTimeout bounds one provider call.
const DefaultTimeout = 8 * time.Second
