package summarizecontent

import "newsletter-agent/internal/models"

type Input struct {
	Records  []models.Record `json:"records"`
	Topics   []string        `json:"topics"`
	UserName string          `json:"userName,omitempty"`
}

type Output struct {
	Summary     string `json:"summary"`
	Model       string `json:"model"`
	RecordsUsed int    `json:"recordsUsed"`
	TokensUsed  int    `json:"tokensUsed,omitempty"`
}
