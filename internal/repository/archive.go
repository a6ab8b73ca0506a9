package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	apperrors "newsletter-agent/internal/common/errors"
	"newsletter-agent/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

const DefaultArchiveIndex = "newsletters"

// ArchivedNewsletter is the document stored per generated newsletter.
type ArchivedNewsletter struct {
	RunID       string    `json:"runId"`
	UserEmail   string    `json:"userEmail"`
	Subject     string    `json:"subject"`
	Topics      []string  `json:"topics"`
	TextBody    string    `json:"textBody,omitempty"`
	HTMLBody    string    `json:"htmlBody,omitempty"`
	NewsCount   int       `json:"newsCount"`
	GeneratedAt time.Time `json:"generatedAt"`
}

// SearchHit is one archive match.
type SearchHit struct {
	ArchivedNewsletter
	Score float64 `json:"score"`
}

// Archive stores generated newsletters in Elasticsearch for full text search.
type Archive struct {
	client *elasticsearch.Client
	index  string
}

func NewArchive(client *elasticsearch.Client, index string) *Archive {
	if index == "" {
		index = DefaultArchiveIndex
	}
	return &Archive{client: client, index: index}
}

// Index stores draft under its run id, so re-indexing a run replaces it.
func (a *Archive) Index(ctx context.Context, draft *models.NewsletterDraft) error {
	doc := ArchivedNewsletter{
		RunID:       draft.RunID,
		UserEmail:   draft.UserEmail,
		Subject:     draft.Subject,
		Topics:      draft.Topics,
		TextBody:    draft.TextBody,
		HTMLBody:    draft.HTMLBody,
		NewsCount:   draft.NewsCount,
		GeneratedAt: draft.GeneratedAt,
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return apperrors.NewArchiveIndexFailedError(a.index, err)
	}

	req := esapi.IndexRequest{
		Index:      a.index,
		DocumentID: draft.RunID,
		Body:       bytes.NewReader(body),
		Refresh:    "false",
	}
	res, err := req.Do(ctx, a.client)
	if err != nil {
		return apperrors.NewArchiveIndexFailedError(a.index, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return apperrors.NewArchiveIndexFailedError(a.index, fmt.Errorf("status %s", res.Status()))
	}
	return nil
}

// Search runs a full text query over subjects, topics and bodies. An empty
// email searches every subscriber.
func (a *Archive) Search(ctx context.Context, text, email string, size int) ([]SearchHit, error) {
	if size <= 0 {
		size = 10
	}
	body, err := json.Marshal(buildArchiveQuery(text, email))
	if err != nil {
		return nil, apperrors.NewSearchQueryFailedError(a.index, err)
	}

	req := esapi.SearchRequest{
		Index: []string{a.index},
		Body:  bytes.NewReader(body),
		Size:  &size,
	}
	res, err := req.Do(ctx, a.client)
	if err != nil {
		return nil, apperrors.NewSearchQueryFailedError(a.index, err)
	}
	defer res.Body.Close()

	if res.StatusCode == 404 {
		return []SearchHit{}, nil
	}
	if res.IsError() {
		return nil, apperrors.NewSearchQueryFailedError(a.index, fmt.Errorf("status %s", res.Status()))
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				Score  float64            `json:"_score"`
				Source ArchivedNewsletter `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, apperrors.NewSearchQueryFailedError(a.index, err)
	}

	hits := make([]SearchHit, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		hits = append(hits, SearchHit{ArchivedNewsletter: h.Source, Score: h.Score})
	}
	return hits, nil
}

func buildArchiveQuery(text, email string) map[string]interface{} {
	must := []interface{}{}
	if text != "" {
		must = append(must, map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  text,
				"fields": []string{"subject^3", "topics^2", "textBody"},
				"type":   "best_fields",
			},
		})
	} else {
		must = append(must, map[string]interface{}{"match_all": map[string]interface{}{}})
	}

	boolQuery := map[string]interface{}{"must": must}
	if email != "" {
		boolQuery["filter"] = []interface{}{
			map[string]interface{}{"term": map[string]interface{}{"userEmail": email}},
		}
	}

	return map[string]interface{}{
		"query": map[string]interface{}{"bool": boolQuery},
		"sort": []interface{}{
			map[string]interface{}{"_score": "desc"},
			map[string]interface{}{"generatedAt": "desc"},
		},
	}
}
