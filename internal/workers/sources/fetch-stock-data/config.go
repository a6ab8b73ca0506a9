package fetchstockdata

import (
	"time"

	"newsletter-agent/internal/common/config"
)

type Config struct {
	BaseURL        string
	APIKey         string
	Symbols        []string
	ItemsPerSymbol int
	Timeout        time.Duration
	TopicKeywords  map[string][]string
}

func LoadConfig(cfg *config.Config) *Config {
	return &Config{
		BaseURL:        cfg.Sources.Stocks.BaseURL,
		APIKey:         cfg.Sources.Stocks.APIKey,
		Symbols:        cfg.Sources.Stocks.Symbols,
		ItemsPerSymbol: cfg.Sources.Stocks.ItemsPerSymbol,
		Timeout:        config.GetDuration(cfg.Sources.Stocks.Timeout),
		TopicKeywords:  cfg.Sources.Topics,
	}
}
