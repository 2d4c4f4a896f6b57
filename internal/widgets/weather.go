package widgets

import (
	"html/template"
	"math"
	"strconv"
	"strings"

	"github.com/izdev-digital/e-paper-dashboard-sub000/internal/aggregator"
	"github.com/izdev-digital/e-paper-dashboard-sub000/internal/hass"
	"github.com/izdev-digital/e-paper-dashboard-sub000/internal/layout"
)

type WeatherConfig struct {
	EntityID string `json:"entityId"`
	Title    string `json:"title"`
}

func (c *WeatherConfig) Normalize() { c.EntityID = strings.TrimSpace(c.EntityID) }

type ForecastConfig struct {
	EntityID string `json:"entityId"`
	Title    string `json:"title"`
	Mode     string `json:"mode"`
}

func (c *ForecastConfig) Normalize() {
	c.EntityID = strings.TrimSpace(c.EntityID)
	c.Mode = strings.TrimSpace(c.Mode)
}

// Density is how much a weather widget shows for its footprint.
type Density int

const (
	DensityMinimal Density = iota
	DensityHorizontal
	DensityVertical
	DensityFull
)

func WeatherDensity(p layout.Position) Density {
	switch {
	case p.Width == 1 && p.Height == 1:
		return DensityMinimal
	case p.Width >= 2 && p.Height < 2:
		return DensityHorizontal
	case p.Width < 2:
		return DensityVertical
	default:
		return DensityFull
	}
}

var hourlyItems = [4][4]int{
	{0, 2, 3, 4},
	{2, 4, 5, 6},
	{3, 6, 8, 8},
	{4, 8, 8, 8},
}

var dailyItems = [4][4]int{
	{0, 1, 2, 3},
	{2, 3, 4, 5},
	{3, 4, 5, 6},
	{4, 5, 6, 7},
}

// MaxForecastItems is the number of forecast entries a w×h widget shows.
// Sizes beyond 4 cells count as 4.
func MaxForecastItems(w, h int, mode string) int {
	wi := min(max(w, 1), 4) - 1
	hi := min(max(h, 1), 4) - 1
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case aggregator.ForecastHourly:
		return hourlyItems[wi][hi]
	case aggregator.ForecastWeekly:
		n := dailyItems[wi][hi]
		if n == 0 {
			return 0
		}
		return min(n+1, 7)
	default:
		return dailyItems[wi][hi]
	}
}

type conditionInfo struct {
	icon, label string
}

var conditions = map[string]conditionInfo{
	"clear-night":     {"weather-night", "Clear night"},
	"cloudy":          {"weather-cloudy", "Cloudy"},
	"exceptional":     {"alert-circle-outline", "Exceptional"},
	"fog":             {"weather-fog", "Fog"},
	"hail":            {"weather-hail", "Hail"},
	"lightning":       {"weather-lightning", "Lightning"},
	"lightning-rainy": {"weather-lightning-rainy", "Thunderstorm"},
	"partlycloudy":    {"weather-partly-cloudy", "Partly cloudy"},
	"pouring":         {"weather-pouring", "Pouring"},
	"rainy":           {"weather-rainy", "Rainy"},
	"snowy":           {"weather-snowy", "Snowy"},
	"snowy-rainy":     {"weather-snowy-rainy", "Sleet"},
	"sunny":           {"weather-sunny", "Sunny"},
	"windy":           {"weather-windy", "Windy"},
	"windy-variant":   {"weather-windy-variant", "Windy"},
}

func condition(state string) conditionInfo {
	if c, ok := conditions[strings.ToLower(state)]; ok {
		return c
	}
	if state == "" {
		return conditionInfo{"weather-cloudy-alert", "Unknown"}
	}
	return conditionInfo{"weather-cloudy-alert", state}
}

func formatNumber(v float64) string {
	if math.Abs(v-math.Round(v)) < 0.05 {
		return strconv.FormatFloat(math.Round(v), 'f', 0, 64)
	}
	return strconv.FormatFloat(v, 'f', 1, 64)
}

type current struct {
	cond     conditionInfo
	temp     string
	humidity string
	wind     string
	tempUnit string
	windUnit string
}

func currentWeather(st hass.EntityState) current {
	c := current{cond: condition(st.State), tempUnit: st.AttrString("temperature_unit"), windUnit: st.AttrString("wind_speed_unit")}
	if c.tempUnit == "" {
		c.tempUnit = "°"
	}
	if v, ok := st.AttrFloat("temperature"); ok {
		c.temp = formatNumber(v) + c.tempUnit
	} else {
		c.temp = "--"
	}
	if v, ok := st.AttrFloat("humidity"); ok {
		c.humidity = formatNumber(v) + "%"
	}
	if v, ok := st.AttrFloat("wind_speed"); ok {
		c.wind = formatNumber(v)
		if c.windUnit != "" {
			c.wind += " " + c.windUnit
		}
	}
	return c
}

func renderWeather(w layout.WidgetEntry, cfg layout.Config, data *Data) template.HTML {
	var c WeatherConfig
	if !w.DecodeConfig(&c) || strings.TrimSpace(c.EntityID) == "" {
		return Placeholder("weather-partly-cloudy", "Select a weather entity")
	}
	st, ok := data.State(c.EntityID)
	if !ok {
		return Placeholder("weather-partly-cloudy", "No weather data")
	}
	cur := currentWeather(st)
	density := WeatherDensity(w.Position)
	var b strings.Builder
	b.WriteString(`<div class="weather-current weather-` + densityClass(density) + `">`)
	switch density {
	case DensityMinimal:
		b.WriteString(`<span class="weather-temp">` + esc(cur.temp) + `</span>`)
	case DensityHorizontal, DensityVertical:
		b.WriteString(mdi(cur.cond.icon, "weather-icon"))
		b.WriteString(`<span class="weather-temp">` + esc(cur.temp) + `</span>`)
		b.WriteString(`<span class="weather-condition">` + esc(cur.cond.label) + `</span>`)
	default:
		b.WriteString(mdi(cur.cond.icon, "weather-icon"))
		b.WriteString(`<div class="weather-details">`)
		b.WriteString(`<span class="weather-condition">` + esc(cur.cond.label) + `</span>`)
		b.WriteString(`<span class="weather-temp">` + esc(cur.temp) + `</span>`)
		if cur.humidity != "" {
			b.WriteString(`<span class="weather-humidity">` + mdi("water-percent", "") + esc(cur.humidity) + `</span>`)
		}
		if cur.wind != "" {
			b.WriteString(`<span class="weather-wind">` + mdi("weather-windy", "") + esc(cur.wind) + `</span>`)
		}
		b.WriteString(`</div>`)
	}
	b.WriteString(`</div>`)

	heading := ""
	if density == DensityFull {
		heading = title(w, c.Title, st.FriendlyName())
	}
	return frame("weather", heading, b.String())
}

func densityClass(d Density) string {
	switch d {
	case DensityMinimal:
		return "minimal"
	case DensityHorizontal:
		return "horizontal"
	case DensityVertical:
		return "vertical"
	default:
		return "full"
	}
}

func renderForecast(w layout.WidgetEntry, cfg layout.Config, data *Data) template.HTML {
	var c ForecastConfig
	if !w.DecodeConfig(&c) || strings.TrimSpace(c.EntityID) == "" {
		return Placeholder("weather-partly-cloudy", "Select a weather entity")
	}
	mode := strings.ToLower(strings.TrimSpace(c.Mode))
	if mode != aggregator.ForecastHourly && mode != aggregator.ForecastWeekly {
		mode = aggregator.ForecastDaily
	}
	st, hasState := data.State(c.EntityID)
	var items []aggregator.ForecastItem
	hasForecast := false
	if data != nil {
		items, hasForecast = data.Forecasts[ForecastKey(c.EntityID, mode)]
	}
	if !hasState && !hasForecast {
		return Placeholder("weather-partly-cloudy", "No forecast data")
	}

	n := MaxForecastItems(w.Position.Width, w.Position.Height, mode)
	var b strings.Builder
	if hasState {
		cur := currentWeather(st)
		b.WriteString(`<div class="forecast-current">`)
		if n > 0 {
			b.WriteString(mdi(cur.cond.icon, "weather-icon"))
		}
		b.WriteString(`<span class="weather-temp">` + esc(cur.temp) + `</span>`)
		b.WriteString(`</div>`)
	}
	if n > 0 && len(items) > 0 {
		if len(items) > n {
			items = items[:n]
		}
		b.WriteString(`<ul class="forecast-items forecast-` + mode + `">`)
		for _, it := range items {
			b.WriteString(`<li class="forecast-item">`)
			b.WriteString(`<span class="forecast-time">` + esc(forecastLabel(it, mode, data)) + `</span>`)
			b.WriteString(mdi(condition(it.Condition).icon, "forecast-icon"))
			temp := "--"
			if it.Temperature != nil {
				temp = formatNumber(*it.Temperature) + "°"
			}
			if it.TempLow != nil {
				temp += " / " + formatNumber(*it.TempLow) + "°"
			}
			b.WriteString(`<span class="forecast-temp">` + esc(temp) + `</span>`)
			b.WriteString(`</li>`)
		}
		b.WriteString(`</ul>`)
	}
	heading := ""
	if w.Position.Height >= 2 {
		heading = title(w, c.Title, st.FriendlyName())
	}
	return frame("weather-forecast", heading, b.String())
}

func forecastLabel(it aggregator.ForecastItem, mode string, data *Data) string {
	if it.Time.IsZero() {
		return ""
	}
	t := it.Time.In(data.loc())
	if mode == aggregator.ForecastHourly {
		return t.Format("15:04")
	}
	return t.Format("Mon")
}
