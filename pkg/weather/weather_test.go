package weather_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/agrivoice/internal/log"
	"github.com/teslashibe/agrivoice/pkg/weather"
)

const forecastJSON = `{
  "location": {"name": "Pune", "region": "Maharashtra", "country": "India"},
  "current": {"temp_c": 31.5, "humidity": 40, "condition": {"text": "Sunny"}},
  "forecast": {"forecastday": [
    {"date": "2025-06-01", "day": {"maxtemp_c": 34, "mintemp_c": 22, "avghumidity": 45, "daily_chance_of_rain": 10, "condition": {"text": "Sunny"}}}
  ]}
}`

func TestClientForecast(t *testing.T) {
	var gotQuery map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/forecast.json", r.URL.Path)
		gotQuery = map[string]string{
			"key":    r.URL.Query().Get("key"),
			"q":      r.URL.Query().Get("q"),
			"days":   r.URL.Query().Get("days"),
			"aqi":    r.URL.Query().Get("aqi"),
			"alerts": r.URL.Query().Get("alerts"),
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(forecastJSON))
	}))
	defer srv.Close()

	c, err := weather.NewClient("k", weather.WithBaseURL(srv.URL))
	require.NoError(t, err)

	report, err := c.Forecast(context.Background(), "Pune", 0)
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"key": "k", "q": "Pune", "days": "7", "aqi": "no", "alerts": "yes"}, gotQuery)
	assert.Equal(t, "Pune", report.Location.Name)
	assert.Equal(t, 31.5, report.Current.TempC)
	today, ok := report.Today()
	require.True(t, ok)
	assert.Equal(t, 10, today.Day.DailyChanceOfRain)
	assert.False(t, report.Mock)
}

func TestClientErrors(t *testing.T) {
	_, err := weather.NewClient("")
	assert.ErrorIs(t, err, weather.ErrNoAPIKey)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"bad key"}}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	c, err := weather.NewClient("k", weather.WithBaseURL(srv.URL))
	require.NoError(t, err)
	_, err = c.Forecast(context.Background(), "Delhi", 3)
	assert.Error(t, err)
}

func TestResolveFallsBackToMock(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c, err := weather.NewClient("k", weather.WithBaseURL(srv.URL), weather.WithTimeout(20*time.Millisecond))
	require.NoError(t, err)

	report := weather.Resolve(context.Background(), c, "Delhi", 7, log.Discard())
	require.NotNil(t, report)
	assert.True(t, report.Mock)
	today, ok := report.Today()
	require.True(t, ok)
	assert.Equal(t, 80, today.Day.DailyChanceOfRain)

	nilProvider := weather.Resolve(context.Background(), nil, "", 7, nil)
	assert.Equal(t, "Delhi", nilProvider.Location.Name)
}

func TestMockIsFreshCopy(t *testing.T) {
	a := weather.Mock("Delhi")
	a.Forecast.ForecastDay[0].Day.DailyChanceOfRain = 5
	b := weather.Mock("Delhi")
	assert.Equal(t, 80, b.Forecast.ForecastDay[0].Day.DailyChanceOfRain)
	assert.Equal(t, "Partly cloudy", b.Current.Condition.Text)
}
