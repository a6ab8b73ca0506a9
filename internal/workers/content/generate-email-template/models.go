package generateemailtemplate

import (
	"time"

	"newsletter-agent/internal/models"
)

type Input struct {
	RunID       string              `json:"runId,omitempty"`
	UserEmail   string              `json:"userEmail"`
	UserName    string              `json:"userName,omitempty"`
	Topics      []string            `json:"topics"`
	Summary     string              `json:"summary"`
	Trends      models.TrendSummary `json:"trends"`
	Records     []models.Record     `json:"records"`
	Format      string              `json:"format,omitempty"`
	GeneratedAt *time.Time          `json:"generatedAt,omitempty"`
}

type Output struct {
	Draft models.NewsletterDraft `json:"draft"`
}

// view is what both templates render.
type view struct {
	Title       string
	Greeting    string
	Topics      []string
	NewsCount   int
	GeneratedAt string
	Sources     []string
	Paragraphs  []string
	Trends      []models.TopicCount
	Keywords    []models.TopicCount
	Stories     []story
	AppName     string
}

type story struct {
	Title   string
	Summary string
	Source  string
	URL     string
}
