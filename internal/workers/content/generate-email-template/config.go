package generateemailtemplate

import (
	"newsletter-agent/internal/common/config"
)

type Config struct {
	DefaultFormat string
	TopStories    int
	SummaryChars  int
	AppName       string
}

func LoadConfig(cfg *config.Config) *Config {
	return &Config{
		DefaultFormat: cfg.Pipeline.DefaultFormat,
		TopStories:    cfg.Pipeline.TopStories,
		SummaryChars:  200,
		AppName:       cfg.App.Name,
	}
}
