package models

import (
	"strings"
	"time"
)

// Output formats. FormatTextAlias is accepted on input and stored as FormatText.
const (
	FormatHTML      = "html"
	FormatText      = "plain-text"
	FormatBoth      = "both"
	FormatTextAlias = "text"
)

// NormalizeFormat lowercases f and maps the text alias onto FormatText. Unknown
// values are returned as is; use ValidFormat to check them.
func NormalizeFormat(f string) string {
	f = strings.ToLower(strings.TrimSpace(f))
	if f == FormatTextAlias {
		return FormatText
	}
	return f
}

// ValidFormat reports whether f, after normalization, is an output format.
func ValidFormat(f string) bool {
	switch NormalizeFormat(f) {
	case FormatHTML, FormatText, FormatBoth:
		return true
	}
	return false
}

// NewsletterDraft is the terminal artifact of a successful run.
type NewsletterDraft struct {
	RunID       string    `json:"runId"`
	UserEmail   string    `json:"userEmail"`
	Subject     string    `json:"subject"`
	HTMLBody    string    `json:"htmlBody,omitempty"`
	TextBody    string    `json:"textBody,omitempty"`
	Topics      []string  `json:"topics"`
	NewsCount   int       `json:"newsCount"`
	Format      string    `json:"format"`
	GeneratedAt time.Time `json:"generatedAt"`
}

// Newsletter log statuses.
const (
	StatusGenerated = "generated"
	StatusSent      = "sent"
	StatusFailed    = "failed"
)

// NewsletterLog is the persisted record of one run.
type NewsletterLog struct {
	ID          int64      `json:"id"`
	RunID       string     `json:"runId"`
	UserEmail   string     `json:"userEmail"`
	Subject     string     `json:"subject,omitempty"`
	Topics      []string   `json:"topics"`
	Status      string     `json:"status"`
	FailedStage string     `json:"failedStage,omitempty"`
	Error       string     `json:"error,omitempty"`
	NewsCount   int        `json:"newsCount"`
	CreatedAt   time.Time  `json:"createdAt"`
	SentAt      *time.Time `json:"sentAt,omitempty"`
}

// NewsletterStats backs the /stats endpoint.
type NewsletterStats struct {
	TotalUsers    int            `json:"totalUsers"`
	ActiveUsers   int            `json:"activeUsers"`
	Newsletters   map[string]int `json:"newsletters"`
	PopularTopics []TopicCount   `json:"popularTopics"`
}
