package agent

// WeatherDay is one day of forecast data as returned to callers.
type WeatherDay struct {
	Date          string  `json:"date"`
	MaxTemp       float64 `json:"max_temp"`
	MinTemp       float64 `json:"min_temp"`
	Precipitation float64 `json:"precipitation"`
	WindSpeed     float64 `json:"wind_speed"`
}

// WeatherResult is the terminal answer for one query.
type WeatherResult struct {
	Success     bool         `json:"success"`
	Location    string       `json:"location"`
	StartDate   string       `json:"start_date"`
	EndDate     string       `json:"end_date"`
	WeatherData []WeatherDay `json:"weather_data"`
	Summary     string       `json:"summary"`
	RawQuery    string       `json:"raw_query"`
}

// CoordinatesResult is the answer shape of the coordinate lookup tool.
type CoordinatesResult struct {
	Place     string  `json:"place"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Success   bool    `json:"success"`
}
