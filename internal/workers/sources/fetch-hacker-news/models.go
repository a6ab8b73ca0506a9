package fetchhackernews

import "newsletter-agent/internal/models"

type Input struct {
	Topics       []string `json:"topics"`
	HitsPerTopic int      `json:"hitsPerTopic,omitempty"`
}

type Output struct {
	Source  string          `json:"source"`
	Records []models.Record `json:"records"`
}

type searchResponse struct {
	Hits []searchHit `json:"hits"`
}

type searchHit struct {
	ObjectID    string `json:"objectID"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	Author      string `json:"author"`
	Points      int    `json:"points"`
	NumComments int    `json:"num_comments"`
	CreatedAtI  int64  `json:"created_at_i"`
	StoryText   string `json:"story_text"`
}
