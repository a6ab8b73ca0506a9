package generateemailtemplate

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"newsletter-agent/internal/common/validation"
	"newsletter-agent/internal/models"
)

const (
	subjectPrefix   = "Your Daily News Summary - "
	generatedLayout = "Monday, January 2, 2006 15:04 MST"
)

// Build renders the newsletter draft. It performs no I/O; GeneratedAt must be
// set by the caller.
func (h *Handler) Build(input *Input) (*models.NewsletterDraft, error) {
	if problem := h.check(input); problem != "" {
		return nil, errors.New(problem)
	}

	format := models.NormalizeFormat(input.Format)
	if format == "" {
		format = models.NormalizeFormat(h.config.DefaultFormat)
	}
	if format == "" {
		format = models.FormatBoth
	}
	if !models.ValidFormat(format) {
		return nil, fmt.Errorf("unsupported format %q", input.Format)
	}

	v := h.view(input)
	draft := &models.NewsletterDraft{
		RunID:       input.RunID,
		UserEmail:   strings.TrimSpace(input.UserEmail),
		Subject:     v.Title,
		Topics:      v.Topics,
		NewsCount:   len(input.Records),
		Format:      format,
		GeneratedAt: input.GeneratedAt.UTC(),
	}

	if format != models.FormatText {
		var buf bytes.Buffer
		if err := htmlTemplate.Execute(&buf, v); err != nil {
			return nil, fmt.Errorf("render html: %w", err)
		}
		draft.HTMLBody = buf.String()
	}
	if format != models.FormatHTML {
		var buf bytes.Buffer
		if err := textTemplate.Execute(&buf, v); err != nil {
			return nil, fmt.Errorf("render text: %w", err)
		}
		draft.TextBody = buf.String()
	}
	return draft, nil
}

// Subject joins the topics onto the fixed prefix. Line breaks are removed so a
// topic cannot inject mail headers.
func Subject(topics []string) string {
	subject := subjectPrefix + strings.Join(topics, ", ")
	return strings.NewReplacer("\r", "", "\n", "").Replace(subject)
}

func (h *Handler) check(input *Input) string {
	email := strings.TrimSpace(input.UserEmail)
	switch {
	case email == "":
		return "user email is required"
	case !validation.ValidateEmail(email):
		return fmt.Sprintf("invalid user email %q", email)
	case len(nonBlank(input.Topics)) == 0:
		return "at least one topic is required"
	case strings.TrimSpace(input.Summary) == "":
		return "summary text is required"
	case input.GeneratedAt == nil || input.GeneratedAt.IsZero():
		return "generation time is required"
	}
	return ""
}

func (h *Handler) view(input *Input) view {
	topics := nonBlank(input.Topics)
	v := view{
		Title:       Subject(topics),
		Greeting:    greeting(input.UserName),
		Topics:      topics,
		NewsCount:   len(input.Records),
		GeneratedAt: input.GeneratedAt.UTC().Format(generatedLayout),
		Paragraphs:  paragraphs(input.Summary),
		Trends:      input.Trends.Topics,
		Keywords:    input.Trends.Keywords,
		AppName:     h.config.AppName,
	}
	if v.AppName == "" {
		v.AppName = "Newsletter Agent"
	}

	seen := map[string]bool{}
	for _, r := range input.Records {
		if src := r.DisplaySource(); src != "" && !seen[src] {
			seen[src] = true
			v.Sources = append(v.Sources, src)
		}
	}

	limit := h.config.TopStories
	for i, r := range input.Records {
		if limit > 0 && i == limit {
			break
		}
		v.Stories = append(v.Stories, story{
			Title:   r.Title,
			Summary: shorten(r.Summary, h.config.SummaryChars),
			Source:  r.DisplaySource(),
			URL:     r.URL,
		})
	}
	return v
}

func greeting(name string) string {
	if name = strings.TrimSpace(name); name != "" {
		return fmt.Sprintf("Good morning, %s!", name)
	}
	return "Good morning!"
}

func paragraphs(text string) []string {
	var out []string
	for _, p := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func shorten(s string, max int) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if max <= 0 || len(runes) <= max {
		return s
	}
	return strings.TrimSpace(string(runes[:max])) + "..."
}

func nonBlank(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
