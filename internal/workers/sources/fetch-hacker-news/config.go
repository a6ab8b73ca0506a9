package fetchhackernews

import (
	"time"

	"newsletter-agent/internal/common/config"
)

type Config struct {
	BaseURL      string
	HitsPerTopic int
	Timeout      time.Duration
}

func LoadConfig(cfg *config.Config) *Config {
	return &Config{
		BaseURL:      cfg.Sources.HackerNews.BaseURL,
		HitsPerTopic: cfg.Sources.HackerNews.HitsPerTopic,
		Timeout:      config.GetDuration(cfg.Sources.HackerNews.Timeout),
	}
}
