package generateemailtemplate

import (
	"context"
	"strings"
	"testing"
	"time"

	apperrors "newsletter-agent/internal/common/errors"
	"newsletter-agent/internal/common/logger"
	"newsletter-agent/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestConfig() *Config {
	return &Config{
		DefaultFormat: models.FormatBoth,
		TopStories:    8,
		SummaryChars:  200,
		AppName:       "Newsletter Agent",
	}
}

func validInput() *Input {
	at := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	return &Input{
		RunID:     "run-1",
		UserEmail: "ada@example.com",
		UserName:  "Ada",
		Topics:    []string{"technology", "finance"},
		Summary:   "Chips are hot.\n\nMarkets followed.",
		Trends: models.TrendSummary{
			Topics:      []models.TopicCount{{Topic: "technology", Count: 2}},
			Keywords:    []models.TopicCount{{Topic: "AI", Count: 1}},
			RecordCount: 2,
		},
		Records: []models.Record{
			{Title: "AI chip unveiled", Source: models.SourceNewsAPI, Publisher: "The Verge", URL: "https://example.com/chip", Summary: "New silicon."},
			{Title: "Markets rally", Source: models.SourceStocks, URL: "https://example.com/rally"},
		},
		GeneratedAt: &at,
	}
}

func TestHandler_Execute_BothFormats(t *testing.T) {
	h := NewHandler(createTestConfig(), logger.NewTestLogger(t))

	out, err := h.Execute(context.Background(), validInput())
	require.NoError(t, err)
	draft := out.Draft

	assert.Equal(t, "Your Daily News Summary - technology, finance", draft.Subject)
	assert.Equal(t, "ada@example.com", draft.UserEmail)
	assert.Equal(t, "run-1", draft.RunID)
	assert.Equal(t, 2, draft.NewsCount)
	assert.Equal(t, models.FormatBoth, draft.Format)
	assert.Equal(t, 2024, draft.GeneratedAt.Year())

	html := draft.HTMLBody
	assert.Contains(t, html, "<title>Your Daily News Summary - technology, finance</title>")
	assert.Contains(t, html, "Good morning, Ada!")
	assert.Contains(t, html, "<p>Chips are hot.</p>")
	assert.Contains(t, html, "<p>Markets followed.</p>")
	assert.Contains(t, html, `<span class="trend">technology (2)</span>`)
	assert.Contains(t, html, `<span class="trend">AI (1)</span>`)
	assert.Contains(t, html, `href="https://example.com/chip"`)
	assert.Contains(t, html, "Source: The Verge")
	assert.Contains(t, html, "Sources used: The Verge, stocks")

	text := draft.TextBody
	assert.Contains(t, text, "Topics: technology, finance")
	assert.Contains(t, text, "1. AI chip unveiled")
	assert.Contains(t, text, "   Read more: https://example.com/rally")
	assert.Contains(t, text, "- technology: 2")
	assert.Contains(t, text, "Generated: Wednesday, May 1, 2024 09:00 UTC")
}

func TestHandler_Execute_TextBodyListsEveryTopic(t *testing.T) {
	h := NewHandler(createTestConfig(), logger.NewNoOpLogger())

	input := validInput()
	input.Topics = []string{"science", "health", "sports", "entertainment"}
	input.Format = models.FormatText

	out, err := h.Execute(context.Background(), input)
	require.NoError(t, err)
	assert.Empty(t, out.Draft.HTMLBody)
	for _, topic := range input.Topics {
		assert.Contains(t, out.Draft.TextBody, topic)
	}
}

func TestHandler_Execute_Formats(t *testing.T) {
	tests := []struct {
		name       string
		format     string
		wantFormat string
		wantHTML   bool
		wantText   bool
	}{
		{"html", "html", models.FormatHTML, true, false},
		{"plain text", "plain-text", models.FormatText, false, true},
		{"text alias", "text", models.FormatText, false, true},
		{"mixed case", " Plain-Text ", models.FormatText, false, true},
		{"both", "both", models.FormatBoth, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(createTestConfig(), logger.NewNoOpLogger())
			input := validInput()
			input.Format = tt.format

			out, err := h.Execute(context.Background(), input)
			require.NoError(t, err)
			assert.Equal(t, tt.wantFormat, out.Draft.Format)
			assert.Equal(t, tt.wantHTML, out.Draft.HTMLBody != "")
			assert.Equal(t, tt.wantText, out.Draft.TextBody != "")
		})
	}
}

func TestHandler_Execute_EscapesUserControlledValues(t *testing.T) {
	h := NewHandler(createTestConfig(), logger.NewNoOpLogger())

	input := validInput()
	input.UserName = `<script>alert("x")</script>`
	input.Records[0].Title = `<img src=x onerror=alert(1)>`
	input.Records[0].URL = "javascript:alert(1)"
	input.Format = models.FormatHTML

	out, err := h.Execute(context.Background(), input)
	require.NoError(t, err)

	html := out.Draft.HTMLBody
	assert.NotContains(t, html, "<script>alert")
	assert.NotContains(t, html, "<img src=x")
	assert.Contains(t, html, "&lt;img src=x onerror=alert(1)&gt;")
	assert.NotContains(t, html, `href="javascript:`)
	assert.Empty(t, out.Draft.TextBody)
}

func TestHandler_Execute_CapsTopStoriesAndSummaries(t *testing.T) {
	cfg := createTestConfig()
	cfg.TopStories = 1
	cfg.SummaryChars = 5
	h := NewHandler(cfg, logger.NewNoOpLogger())

	input := validInput()
	input.Records[0].Summary = "abcdefghij"
	input.Format = models.FormatText

	out, err := h.Execute(context.Background(), input)
	require.NoError(t, err)
	assert.Contains(t, out.Draft.TextBody, "abcde...")
	assert.NotContains(t, out.Draft.TextBody, "2. Markets rally")
	assert.Equal(t, 2, out.Draft.NewsCount)
}

func TestHandler_Execute_TemplateErrors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Input)
		wantMsg string
	}{
		{"missing email", func(in *Input) { in.UserEmail = " " }, "user email is required"},
		{"bad email", func(in *Input) { in.UserEmail = "not-an-email" }, "invalid user email"},
		{"no topics", func(in *Input) { in.Topics = []string{"", " "} }, "at least one topic is required"},
		{"no summary", func(in *Input) { in.Summary = "\n" }, "summary text is required"},
		{"no timestamp", func(in *Input) { in.GeneratedAt = nil }, "generation time is required"},
		{"bad format", func(in *Input) { in.Format = "pdf" }, "unsupported format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(createTestConfig(), logger.NewNoOpLogger())
			input := validInput()
			tt.mutate(input)

			out, err := h.Execute(context.Background(), input)
			require.Error(t, err)
			assert.Nil(t, out)
			assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeTemplateError))
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestSubject_StripsLineBreaks(t *testing.T) {
	got := Subject([]string{"tech\r\nBcc: victim@example.com", "finance"})
	assert.False(t, strings.ContainsAny(got, "\r\n"))
	assert.Equal(t, "Your Daily News Summary - techBcc: victim@example.com, finance", got)
}
