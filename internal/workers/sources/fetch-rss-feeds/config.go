package fetchrssfeeds

import (
	"time"

	"newsletter-agent/internal/common/config"
)

type Config struct {
	Feeds           map[string]string
	MaxItemsPerFeed int
	Timeout         time.Duration
}

func LoadConfig(cfg *config.Config) *Config {
	return &Config{
		Feeds:           cfg.Sources.RSS.Feeds,
		MaxItemsPerFeed: cfg.Sources.RSS.MaxItemsPerFeed,
		Timeout:         config.GetDuration(cfg.Sources.RSS.Timeout),
	}
}
