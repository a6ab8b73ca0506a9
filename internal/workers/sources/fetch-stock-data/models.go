package fetchstockdata

import "newsletter-agent/internal/models"

type Input struct {
	Topics  []string `json:"topics,omitempty"`
	Symbols []string `json:"symbols,omitempty"`
}

type Output struct {
	Source  string          `json:"source"`
	Symbols []string        `json:"symbols"`
	Records []models.Record `json:"records"`
	Failed  []string        `json:"failedSymbols,omitempty"`
}

// Alpha Vantage NEWS_SENTIMENT payload. Errors and rate limiting arrive as
// 200 responses carrying Note, Information or Error Message.
type avResponse struct {
	Items        string       `json:"items"`
	Feed         []avFeedItem `json:"feed"`
	Note         string       `json:"Note,omitempty"`
	Information  string       `json:"Information,omitempty"`
	ErrorMessage string       `json:"Error Message,omitempty"`
}

type avFeedItem struct {
	Title         string `json:"title"`
	URL           string `json:"url"`
	TimePublished string `json:"time_published"`
	Summary       string `json:"summary"`
	Source        string `json:"source"`
}
