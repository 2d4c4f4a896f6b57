package widgets

import (
	"strings"
	"testing"

	"github.com/izdev-digital/e-paper-dashboard-sub000/internal/layout"
)

func TestMaxForecastItemsAnchors(t *testing.T) {
	for _, mode := range []string{"hourly", "daily", "weekly"} {
		if got := MaxForecastItems(1, 1, mode); got != 0 {
			t.Fatalf("1x1 %s: expected 0, got %d", mode, got)
		}
	}
	if got := MaxForecastItems(3, 3, "hourly"); got != 8 {
		t.Fatalf("3x3 hourly: expected 8, got %d", got)
	}
	if got := MaxForecastItems(2, 2, "daily"); got != 3 {
		t.Fatalf("2x2 daily: expected 3, got %d", got)
	}
}

func TestMaxForecastItemsTable(t *testing.T) {
	cases := []struct {
		w, h int
		mode string
		want int
	}{
		{1, 2, "hourly", 2},
		{2, 1, "hourly", 2},
		{4, 4, "hourly", 8},
		{2, 4, "hourly", 6},
		{4, 4, "daily", 7},
		{1, 4, "daily", 3},
		{4, 4, "weekly", 7},
		{2, 2, "weekly", 4},
		{1, 2, "weekly", 2},
		{9, 9, "hourly", 8},
		{0, -3, "daily", 0},
		{3, 2, "", 4},
		{3, 2, "HOURLY", 6},
	}
	for _, tc := range cases {
		if got := MaxForecastItems(tc.w, tc.h, tc.mode); got != tc.want {
			t.Fatalf("MaxForecastItems(%d, %d, %q) = %d want %d", tc.w, tc.h, tc.mode, got, tc.want)
		}
	}
}

func TestWeatherDensity(t *testing.T) {
	cases := []struct {
		w, h int
		want Density
	}{
		{1, 1, DensityMinimal},
		{2, 1, DensityHorizontal},
		{4, 1, DensityHorizontal},
		{1, 3, DensityVertical},
		{2, 2, DensityFull},
	}
	for _, tc := range cases {
		if got := WeatherDensity(layout.Position{Width: tc.w, Height: tc.h}); got != tc.want {
			t.Fatalf("%dx%d: got %v want %v", tc.w, tc.h, got, tc.want)
		}
	}
}

func TestRenderForecastCapsItems(t *testing.T) {
	cfg := layout.Default()
	w := entry(t, layout.TypeWeatherForecast, layout.Position{Width: 2, Height: 2}, `{"entityId":"weather.home","mode":"daily"}`)
	data := sampleData()
	out := string(Render(w, cfg, data))
	if n := strings.Count(out, `class="forecast-item"`); n != 3 {
		t.Fatalf("expected 3 forecast items, got %d in %s", n, out)
	}

	tiny := entry(t, layout.TypeWeatherForecast, layout.Position{Width: 1, Height: 1}, `{"entityId":"weather.home","mode":"hourly"}`)
	out = string(Render(tiny, cfg, data))
	if strings.Contains(out, "forecast-item") || !strings.Contains(out, "21°C") {
		t.Fatalf("1x1 forecast should only show the temperature: %s", out)
	}
}

func TestRenderWeatherDensities(t *testing.T) {
	cfg := layout.Default()
	data := sampleData()
	full := string(Render(entry(t, layout.TypeWeather, layout.Position{Width: 3, Height: 2}, `{"entityId":"weather.home"}`), cfg, data))
	for _, want := range []string{"Home weather", "Sunny", "21°C", "55%", "12 km/h", "mdi-weather-sunny"} {
		if !strings.Contains(full, want) {
			t.Fatalf("full weather missing %q: %s", want, full)
		}
	}
	minimal := string(Render(entry(t, layout.TypeWeather, layout.Position{Width: 1, Height: 1}, `{"entityId":"weather.home"}`), cfg, data))
	if strings.Contains(minimal, "Sunny") || !strings.Contains(minimal, "21°C") {
		t.Fatalf("1x1 weather should only show the temperature: %s", minimal)
	}
	missing := string(Render(entry(t, layout.TypeWeather, layout.Position{Width: 2, Height: 2}, `{"entityId":"weather.gone"}`), cfg, data))
	if !strings.Contains(missing, "widget-placeholder") {
		t.Fatalf("expected placeholder for unknown entity: %s", missing)
	}
}
