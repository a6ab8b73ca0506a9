package fetchnews

import "newsletter-agent/internal/models"

type Input struct {
	Topics   []string `json:"topics"`
	PageSize int      `json:"pageSize,omitempty"`
}

type Output struct {
	Source  string          `json:"source"`
	Query   string          `json:"query"`
	Records []models.Record `json:"records"`
}

type newsAPIResponse struct {
	Status       string           `json:"status"`
	Code         string           `json:"code,omitempty"`
	Message      string           `json:"message,omitempty"`
	TotalResults int              `json:"totalResults"`
	Articles     []newsAPIArticle `json:"articles"`
}

type newsAPIArticle struct {
	Source struct {
		Name string `json:"name"`
	} `json:"source"`
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
	PublishedAt string `json:"publishedAt"`
}
