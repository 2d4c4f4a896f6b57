package aggregator

import "time"

// DashboardView is one view of a remote Lovelace dashboard.
type DashboardView struct {
	URL   string `json:"url"`
	Title string `json:"title"`
	ID    string `json:"id"`
}

type Entity struct {
	ID           string `json:"id"`
	FriendlyName string `json:"friendly_name"`
}

// HistorySample is one recorded state of an entity. Value is only meaningful
// when Numeric is set.
type HistorySample struct {
	Time        time.Time      `json:"time"`
	LastChanged time.Time      `json:"last_changed"`
	State       string         `json:"state"`
	Value       float64        `json:"value"`
	Numeric     bool           `json:"numeric"`
	Attributes  map[string]any `json:"attributes,omitempty"`
}

type TodoItem struct {
	UID         string     `json:"uid"`
	Summary     string     `json:"summary"`
	Status      string     `json:"status"`
	Description string     `json:"description,omitempty"`
	Due         *time.Time `json:"due,omitempty"`
}

func (t TodoItem) Completed() bool { return t.Status == "completed" }

type CalendarEvent struct {
	Summary     string    `json:"summary"`
	Description string    `json:"description,omitempty"`
	Location    string    `json:"location,omitempty"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	AllDay      bool      `json:"all_day"`
}

type ForecastItem struct {
	Time                     time.Time `json:"datetime"`
	Condition                string    `json:"condition"`
	Temperature              *float64  `json:"temperature,omitempty"`
	TempLow                  *float64  `json:"templow,omitempty"`
	Humidity                 *float64  `json:"humidity,omitempty"`
	WindSpeed                *float64  `json:"wind_speed,omitempty"`
	Precipitation            *float64  `json:"precipitation,omitempty"`
	PrecipitationProbability *float64  `json:"precipitation_probability,omitempty"`
}

type FeedEntry struct {
	Title       string    `json:"title"`
	Link        string    `json:"link,omitempty"`
	Description string    `json:"description,omitempty"`
	Published   time.Time `json:"published,omitempty"`
}

// Forecast modes accepted by FetchWeatherForecast.
const (
	ForecastHourly = "hourly"
	ForecastDaily  = "daily"
	ForecastWeekly = "weekly"
)
