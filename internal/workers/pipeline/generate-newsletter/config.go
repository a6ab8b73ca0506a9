package generatenewsletter

import (
	"time"

	"newsletter-agent/internal/common/config"
)

const defaultTimeout = 2 * time.Minute

type Config struct {
	Timeout time.Duration
}

// LoadConfig uses the configured worker timeout. A run spans every upstream
// plus the LLM, so the default is longer than other workers'.
func LoadConfig(cfg *config.Config) *Config {
	if wcfg, ok := cfg.Workers[TaskType]; ok && wcfg.Timeout > 0 {
		return &Config{Timeout: config.GetDuration(wcfg.Timeout)}
	}
	return &Config{Timeout: defaultTimeout}
}
