package fetchnews

import (
	"time"

	"newsletter-agent/internal/common/config"
)

type Config struct {
	BaseURL       string
	APIKey        string
	PageSize      int
	MaxKeywords   int
	Timeout       time.Duration
	TopicKeywords map[string][]string
}

func LoadConfig(cfg *config.Config) *Config {
	return &Config{
		BaseURL:       cfg.Sources.NewsAPI.BaseURL,
		APIKey:        cfg.Sources.NewsAPI.APIKey,
		PageSize:      cfg.Sources.NewsAPI.PageSize,
		MaxKeywords:   5,
		Timeout:       config.GetDuration(cfg.Sources.NewsAPI.Timeout),
		TopicKeywords: cfg.Sources.Topics,
	}
}
