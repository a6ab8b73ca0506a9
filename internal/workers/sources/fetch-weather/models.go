package fetchweather

import "time"

type Input struct {
	Location string `json:"location,omitempty"`
}

type Output struct {
	Location     string     `json:"location"`
	Country      string     `json:"country,omitempty"`
	Latitude     float64    `json:"latitude"`
	Longitude    float64    `json:"longitude"`
	TemperatureC float64    `json:"temperatureC"`
	WindSpeedKmh float64    `json:"windSpeedKmh"`
	WeatherCode  int        `json:"weatherCode"`
	Conditions   string     `json:"conditions"`
	ObservedAt   *time.Time `json:"observedAt,omitempty"`
}

type geocodingResponse struct {
	Results []struct {
		Name      string  `json:"name"`
		Country   string  `json:"country"`
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	} `json:"results"`
}

type forecastResponse struct {
	Current struct {
		Time          string  `json:"time"`
		Temperature2m float64 `json:"temperature_2m"`
		WindSpeed10m  float64 `json:"wind_speed_10m"`
		WeatherCode   int     `json:"weather_code"`
	} `json:"current"`
}

// WMO weather interpretation codes, grouped the way Open-Meteo documents them.
var conditions = map[int]string{
	0:  "Clear sky",
	1:  "Mainly clear",
	2:  "Partly cloudy",
	3:  "Overcast",
	45: "Fog",
	48: "Depositing rime fog",
	51: "Light drizzle",
	53: "Drizzle",
	55: "Dense drizzle",
	61: "Light rain",
	63: "Rain",
	65: "Heavy rain",
	71: "Light snow",
	73: "Snow",
	75: "Heavy snow",
	80: "Rain showers",
	81: "Heavy rain showers",
	82: "Violent rain showers",
	95: "Thunderstorm",
	96: "Thunderstorm with hail",
	99: "Thunderstorm with heavy hail",
}

func describe(code int) string {
	if c, ok := conditions[code]; ok {
		return c
	}
	return "Unknown"
}
