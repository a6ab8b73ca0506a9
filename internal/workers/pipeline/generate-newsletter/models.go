package generatenewsletter

import (
	"newsletter-agent/internal/models"
	"newsletter-agent/internal/pipeline"
)

type Input struct {
	RunID      string   `json:"runId,omitempty"`
	UserEmail  string   `json:"userEmail"`
	UserName   string   `json:"userName,omitempty"`
	Topics     []string `json:"topics"`
	Sources    []string `json:"sources,omitempty"`
	Symbols    []string `json:"symbols,omitempty"`
	Vocabulary []string `json:"vocabulary,omitempty"`
	Format     string   `json:"format,omitempty"`
}

type Output struct {
	RunID   string                  `json:"runId"`
	Status  string                  `json:"status"`
	Draft   *models.NewsletterDraft `json:"draft"`
	Sources []pipeline.SourceStatus `json:"sources"`
}
