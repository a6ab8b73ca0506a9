package fetchrssfeeds

import "newsletter-agent/internal/models"

type Input struct {
	Topics   []string `json:"topics"`
	MaxItems int      `json:"maxItems,omitempty"`
}

type Output struct {
	Source  string          `json:"source"`
	Records []models.Record `json:"records"`
	Feeds   []FeedStatus    `json:"feeds"`
}

// FeedStatus reports what one feed contributed to the result.
type FeedStatus struct {
	Topic string `json:"topic"`
	URL   string `json:"url"`
	Items int    `json:"items"`
	Error string `json:"error,omitempty"`
}
