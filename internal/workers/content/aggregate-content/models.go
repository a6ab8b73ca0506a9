package aggregatecontent

import "newsletter-agent/internal/models"

type Input struct {
	Results    []models.SourceResult `json:"results"`
	Topics     []string              `json:"topics,omitempty"`
	MaxRecords int                   `json:"maxRecords,omitempty"`
}

type Output struct {
	Records      []models.Record `json:"records"`
	Sources      []string        `json:"sources"`
	TotalFetched int             `json:"totalFetched"`
	Duplicates   int             `json:"duplicates"`
	Irrelevant   int             `json:"irrelevant"`
}
