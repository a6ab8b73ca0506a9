package aggregatecontent

import (
	"time"

	"newsletter-agent/internal/common/config"
)

type Config struct {
	MaxRecords    int
	TopicKeywords map[string][]string
	Timeout       time.Duration
}

func LoadConfig(cfg *config.Config) *Config {
	wcfg := config.GetWorkerConfig(cfg, TaskType)
	return &Config{
		MaxRecords:    cfg.Pipeline.MaxRecords,
		TopicKeywords: cfg.Sources.Topics,
		Timeout:       config.GetDuration(wcfg.Timeout),
	}
}
