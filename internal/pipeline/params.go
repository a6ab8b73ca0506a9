package pipeline

import (
	"time"

	"newsletter-agent/internal/models"
)

// Stage parameters, encoded with tools.ToMap before dispatch. Field names follow
// the json tags of the corresponding tool inputs.

type fetchParams struct {
	Topics  []string `json:"topics"`
	Symbols []string `json:"symbols,omitempty"`
}

type fetchResult struct {
	Source  string          `json:"source"`
	Records []models.Record `json:"records"`
}

type aggregateParams struct {
	Results    []models.SourceResult `json:"results"`
	Topics     []string              `json:"topics"`
	MaxRecords int                   `json:"maxRecords,omitempty"`
}

type aggregateResult struct {
	Records []models.Record `json:"records"`
	Sources []string        `json:"sources"`
}

type trendParams struct {
	Records    []models.Record `json:"records"`
	Vocabulary []string        `json:"vocabulary,omitempty"`
	Keywords   []string        `json:"keywords,omitempty"`
}

type trendResult struct {
	Trends models.TrendSummary `json:"trends"`
}

type summarizeParams struct {
	Records  []models.Record `json:"records"`
	Topics   []string        `json:"topics"`
	UserName string          `json:"userName,omitempty"`
}

type summarizeResult struct {
	Summary     string `json:"summary"`
	RecordsUsed int    `json:"recordsUsed"`
}

type templateParams struct {
	RunID       string              `json:"runId"`
	UserEmail   string              `json:"userEmail"`
	UserName    string              `json:"userName,omitempty"`
	Topics      []string            `json:"topics"`
	Summary     string              `json:"summary"`
	Trends      models.TrendSummary `json:"trends"`
	Records     []models.Record     `json:"records"`
	Format      string              `json:"format,omitempty"`
	GeneratedAt time.Time           `json:"generatedAt"`
}

type templateResult struct {
	Draft models.NewsletterDraft `json:"draft"`
}

// runContext carries the typed output of each completed stage.
type runContext struct {
	req     Request
	run     *Run
	results []models.SourceResult
	records []models.Record
	trends  models.TrendSummary
	summary string
}
