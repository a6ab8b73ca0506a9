package sendnewsletter

import (
	"fmt"
	"time"

	"newsletter-agent/internal/common/config"
)

const (
	ProviderSES  = "ses"
	ProviderSMTP = "smtp"
)

type Config struct {
	Provider     string
	FromEmail    string
	FromName     string
	Region       string
	Timeout      time.Duration
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	UseTLS       bool
}

func LoadConfig(cfg *config.Config) *Config {
	d := cfg.Delivery
	return &Config{
		Provider:     d.Provider,
		FromEmail:    d.FromEmail,
		FromName:     d.FromName,
		Region:       d.AWS.Region,
		Timeout:      config.GetDuration(d.Timeout),
		SMTPHost:     d.SMTP.Host,
		SMTPPort:     d.SMTP.Port,
		SMTPUsername: d.SMTP.Username,
		SMTPPassword: d.SMTP.Password,
		UseTLS:       d.SMTP.UseTLS,
	}
}

func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.FromEmail == "" {
		return fmt.Errorf("from_email is required")
	}
	switch c.Provider {
	case ProviderSES:
		if c.Region == "" {
			return fmt.Errorf("aws region is required for ses")
		}
	case ProviderSMTP:
		if c.SMTPHost == "" {
			return fmt.Errorf("smtp host is required")
		}
		if c.SMTPPort <= 0 || c.SMTPPort > 65535 {
			return fmt.Errorf("smtp port must be between 1 and 65535")
		}
	default:
		return fmt.Errorf("unknown delivery provider %q", c.Provider)
	}
	return nil
}
