package analyzetrends

import "newsletter-agent/internal/models"

type Input struct {
	Records    []models.Record `json:"records"`
	Vocabulary []string        `json:"vocabulary,omitempty"`
	Keywords   []string        `json:"keywords,omitempty"`
	Limit      int             `json:"limit,omitempty"`
}

type Output struct {
	Trends models.TrendSummary `json:"trends"`
}
