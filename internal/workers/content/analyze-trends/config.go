package analyzetrends

import (
	"newsletter-agent/internal/common/config"
)

type Config struct {
	Vocabulary []string
	Keywords   []string
	Limit      int
}

func LoadConfig(cfg *config.Config) *Config {
	return &Config{
		Vocabulary: cfg.Pipeline.Vocabulary,
		Keywords:   cfg.Pipeline.Keywords,
		Limit:      DefaultLimit,
	}
}
