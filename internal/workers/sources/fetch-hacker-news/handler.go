package fetchhackernews

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
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
	"golang.org/x/sync/errgroup"
)

const (
	TaskType = "fetch-hacker-news"

	publisher = "Hacker News"
	itemURL   = "https://news.ycombinator.com/item?id="
)

var (
	ErrNoTopics       = errors.New("HN_NO_TOPICS")
	ErrUpstreamFailed = errors.New("HN_UPSTREAM_FAILED")
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

// Execute runs one story search per topic.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}

func (h *Handler) Tool() tools.Tool {
	return tools.Typed(tools.FetchHackerNews, h.Execute)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	requested := topics.Normalize(input.Topics)
	if len(requested) == 0 {
		return nil, apperrors.NewSourceUnavailableError(models.SourceHackerNews, ErrNoTopics, false)
	}

	hits := input.HitsPerTopic
	if hits <= 0 {
		hits = h.config.HitsPerTopic
	}

	perTopic := make([][]models.Record, len(requested))
	errs := make([]error, len(requested))

	var g errgroup.Group
	for i, topic := range requested {
		i, topic := i, topic
		g.Go(func() error {
			perTopic[i], errs[i] = h.search(ctx, topic, hits)
			return nil
		})
	}
	_ = g.Wait()

	out := &Output{Source: models.SourceHackerNews, Records: []models.Record{}}
	var lastErr error
	for i, topic := range requested {
		if errs[i] != nil {
			lastErr = errs[i]
			h.logger.Warn("story search failed", map[string]interface{}{"topic": topic, "error": errs[i].Error()})
			continue
		}
		out.Records = append(out.Records, perTopic[i]...)
	}

	if len(out.Records) == 0 && lastErr != nil {
		return nil, apperrors.NewSourceUnavailableError(models.SourceHackerNews, lastErr, httpclient.IsRetryable(lastErr))
	}

	h.logger.Info("stories fetched", map[string]interface{}{
		"topics":  len(requested),
		"records": len(out.Records),
	})
	return out, nil
}

func (h *Handler) search(ctx context.Context, topic string, hits int) ([]models.Record, error) {
	params := url.Values{}
	params.Set("query", topic)
	params.Set("tags", "story")
	params.Set("hitsPerPage", strconv.Itoa(hits))
	endpoint := strings.TrimRight(h.config.BaseURL, "/") + "/api/v1/search?" + params.Encode()

	var resp searchResponse
	if err := h.client.GetJSON(ctx, endpoint, nil, &resp); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrUpstreamFailed, topic, err)
	}

	records := make([]models.Record, 0, len(resp.Hits))
	for _, hit := range resp.Hits {
		title := strings.TrimSpace(hit.Title)
		if title == "" || hit.ObjectID == "" {
			continue
		}
		link := strings.TrimSpace(hit.URL)
		if link == "" {
			// Ask HN and similar text posts link to the discussion.
			link = itemURL + hit.ObjectID
		}

		record := models.Record{
			ID:        models.RecordID(models.SourceHackerNews, link, title),
			Title:     title,
			Source:    models.SourceHackerNews,
			Publisher: publisher,
			URL:       link,
			Summary:   summarize(hit),
			Topics:    []string{topic},
		}
		if hit.CreatedAtI > 0 {
			ts := time.Unix(hit.CreatedAtI, 0).UTC()
			record.PublishedAt = &ts
		}
		records = append(records, record)
	}
	return records, nil
}

func summarize(hit searchHit) string {
	if text := strings.TrimSpace(hit.StoryText); text != "" {
		return text
	}
	return fmt.Sprintf("%d points by %s, %d comments", hit.Points, hit.Author, hit.NumComments)
}
