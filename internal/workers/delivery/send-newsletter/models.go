package sendnewsletter

import "newsletter-agent/internal/models"

type Input struct {
	Draft models.NewsletterDraft `json:"draft"`
}

type Output struct {
	Delivery models.Delivery `json:"delivery"`
}

// Message is one outgoing mail. At least one body is set.
type Message struct {
	From     string
	To       string
	Subject  string
	HTMLBody string
	TextBody string
}
