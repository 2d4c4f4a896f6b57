package aggregator

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/izdev-digital/e-paper-dashboard-sub000/internal/hass"
)

type forecastBody struct {
	Forecast []struct {
		Datetime                 string   `json:"datetime"`
		Condition                string   `json:"condition"`
		Temperature              *float64 `json:"temperature"`
		TempLow                  *float64 `json:"templow"`
		Humidity                 *float64 `json:"humidity"`
		WindSpeed                *float64 `json:"wind_speed"`
		Precipitation            *float64 `json:"precipitation"`
		PrecipitationProbability *float64 `json:"precipitation_probability"`
	} `json:"forecast"`
}

// ForecastType maps a widget forecast mode onto the service's forecast type.
// Weekly views are built from daily data.
func ForecastType(mode string) string {
	if strings.EqualFold(strings.TrimSpace(mode), ForecastHourly) {
		return ForecastHourly
	}
	return ForecastDaily
}

// FetchWeatherForecast returns forecast items of a weather entity for mode
// (hourly, daily or weekly).
func (s *Service) FetchWeatherForecast(ctx context.Context, dashboardID, entityID, mode string) ([]ForecastItem, error) {
	entityID = strings.TrimSpace(entityID)
	if entityID == "" {
		return nil, validationErr("Entity ID is required")
	}
	return run(ctx, s, "forecast", dashboardID, func(ctx context.Context, conn hass.Conn) ([]ForecastItem, error) {
		res, err := callService(ctx, conn, "weather", "get_forecasts", entityID, map[string]any{"type": ForecastType(mode)}, true)
		if err != nil {
			return nil, err
		}
		if err := res.Err("Failed to fetch weather forecast"); err != nil {
			return nil, err
		}
		var resp serviceResponse
		if err := res.Decode(&resp); err != nil {
			return nil, err
		}
		raw, ok := resp.entity(entityID)
		if !ok {
			return []ForecastItem{}, nil
		}
		var body forecastBody
		if err := json.Unmarshal(raw, &body); err != nil {
			return nil, err
		}
		out := make([]ForecastItem, 0, len(body.Forecast))
		for _, f := range body.Forecast {
			out = append(out, ForecastItem{
				Time:                     hass.ParseTime(f.Datetime),
				Condition:                f.Condition,
				Temperature:              f.Temperature,
				TempLow:                  f.TempLow,
				Humidity:                 f.Humidity,
				WindSpeed:                f.WindSpeed,
				Precipitation:            f.Precipitation,
				PrecipitationProbability: f.PrecipitationProbability,
			})
		}
		return out, nil
	})
}
