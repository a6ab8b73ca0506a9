package summarizecontent

import (
	"time"

	"newsletter-agent/internal/common/config"
)

type Config struct {
	BaseURL      string
	APIKey       string
	Model        string
	MaxTokens    int
	Temperature  float64
	MaxRecords   int
	MaxBodyChars int
	Timeout      time.Duration
}

func LoadConfig(cfg *config.Config) *Config {
	return &Config{
		BaseURL:      cfg.LLM.BaseURL,
		APIKey:       cfg.LLM.APIKey,
		Model:        cfg.LLM.Model,
		MaxTokens:    cfg.LLM.MaxTokens,
		Temperature:  cfg.LLM.Temperature,
		MaxRecords:   cfg.LLM.MaxRecords,
		MaxBodyChars: cfg.LLM.MaxBodyChars,
		Timeout:      config.GetDuration(cfg.LLM.Timeout),
	}
}
