package fetchnews

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"newsletter-agent/internal/common/camunda"
	apperrors "newsletter-agent/internal/common/errors"
	httpclient "newsletter-agent/internal/common/http"
	"newsletter-agent/internal/common/logger"
	"newsletter-agent/internal/common/topics"
	"newsletter-agent/internal/models"
	"newsletter-agent/internal/tools"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "fetch-news"

var (
	ErrAPIKeyMissing    = errors.New("NEWSAPI_KEY_MISSING")
	ErrNoTopics         = errors.New("NEWSAPI_NO_TOPICS")
	ErrUpstreamFailed   = errors.New("NEWSAPI_UPSTREAM_FAILED")
	ErrUpstreamRejected = errors.New("NEWSAPI_REQUEST_REJECTED")
)

type Handler struct {
	config *Config
	client *httpclient.Client
	logger logger.Logger
}

func NewHandler(config *Config, log logger.Logger) *Handler {
	return &Handler{
		config: config,
		client: httpclient.NewClient(config.Timeout),
		logger: log.With(map[string]interface{}{"taskType": TaskType}),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	started := time.Now()
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		camunda.FailJob(client, job, apperrors.NewInvalidParametersError(TaskType, []string{err.Error()}), started, h.logger)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.execute(ctx, &input)
	if err != nil {
		camunda.FailJob(client, job, err, started, h.logger)
		return
	}

	camunda.CompleteJob(client, job, output, started, h.logger)
}

// Execute queries NewsAPI's everything endpoint for the topic keywords.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}

// Tool exposes the handler to the tool registry.
func (h *Handler) Tool() tools.Tool {
	return tools.Typed(tools.FetchNews, h.Execute)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if h.config.APIKey == "" {
		return nil, apperrors.NewSourceUnavailableError(models.SourceNewsAPI, ErrAPIKeyMissing, false)
	}

	query := h.buildQuery(input.Topics)
	if query == "" {
		return nil, apperrors.NewSourceUnavailableError(models.SourceNewsAPI, ErrNoTopics, false)
	}

	pageSize := input.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = h.config.PageSize
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("language", "en")
	params.Set("sortBy", "relevancy")
	params.Set("pageSize", fmt.Sprintf("%d", pageSize))
	endpoint := strings.TrimRight(h.config.BaseURL, "/") + "/v2/everything?" + params.Encode()

	var resp newsAPIResponse
	if err := h.client.GetJSON(ctx, endpoint, map[string]string{"X-Api-Key": h.config.APIKey}, &resp); err != nil {
		h.logger.Warn("newsapi request failed", map[string]interface{}{"error": err.Error()})
		return nil, apperrors.NewSourceUnavailableError(models.SourceNewsAPI,
			fmt.Errorf("%w: %v", ErrUpstreamFailed, err), httpclient.IsRetryable(err))
	}
	if resp.Status != "ok" {
		return nil, apperrors.NewSourceUnavailableError(models.SourceNewsAPI,
			fmt.Errorf("%w: %s: %s", ErrUpstreamRejected, resp.Code, resp.Message), false)
	}

	records := make([]models.Record, 0, len(resp.Articles))
	for _, a := range resp.Articles {
		record, ok := h.toRecord(a, input.Topics)
		if !ok {
			continue
		}
		records = append(records, record)
	}

	h.logger.Info("news fetched", map[string]interface{}{
		"query":    query,
		"articles": len(resp.Articles),
		"records":  len(records),
	})

	return &Output{Source: models.SourceNewsAPI, Query: query, Records: records}, nil
}

// buildQuery ORs the first MaxKeywords keywords. Multi-word keywords are quoted.
func (h *Handler) buildQuery(requested []string) string {
	keywords := topics.Keywords(requested, h.config.TopicKeywords)
	if len(keywords) > h.config.MaxKeywords {
		keywords = keywords[:h.config.MaxKeywords]
	}

	terms := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if strings.Contains(k, " ") {
			k = `"` + k + `"`
		}
		terms = append(terms, k)
	}
	return strings.Join(terms, " OR ")
}

func (h *Handler) toRecord(a newsAPIArticle, requested []string) (models.Record, bool) {
	title := strings.TrimSpace(a.Title)
	link := strings.TrimSpace(a.URL)
	// NewsAPI blanks out articles withdrawn by the publisher
	if title == "" || link == "" || title == "[Removed]" {
		return models.Record{}, false
	}

	record := models.Record{
		ID:        models.RecordID(models.SourceNewsAPI, link, title),
		Title:     title,
		Source:    models.SourceNewsAPI,
		Publisher: a.Source.Name,
		URL:       link,
		Summary:   strings.TrimSpace(a.Description),
		Topics:    topics.Match(title+" "+a.Description, requested, h.config.TopicKeywords),
	}
	if ts, err := time.Parse(time.RFC3339, a.PublishedAt); err == nil {
		ts = ts.UTC()
		record.PublishedAt = &ts
	}
	return record, true
}
