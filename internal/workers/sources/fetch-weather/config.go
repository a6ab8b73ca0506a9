package fetchweather

import (
	"time"

	"newsletter-agent/internal/common/config"
)

type Config struct {
	GeocodingURL    string
	ForecastURL     string
	DefaultLocation string
	Timeout         time.Duration
}

func LoadConfig(cfg *config.Config) *Config {
	return &Config{
		GeocodingURL:    cfg.Sources.Weather.GeocodingURL,
		ForecastURL:     cfg.Sources.Weather.ForecastURL,
		DefaultLocation: cfg.Sources.Weather.DefaultLocation,
		Timeout:         config.GetDuration(cfg.Sources.Weather.Timeout),
	}
}
